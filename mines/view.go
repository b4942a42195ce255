// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mines

// CellView 對外的格子；未翻開且未終局時 Hazard 一律為 false。
type CellView struct {
	Index    int  `json:"index"`
	Revealed bool `json:"revealed"`
	Hazard   bool `json:"hazard"`
}

// View 對外的整局視圖。Seed 只在終局後公開。
type View struct {
	RoundID           string     `json:"round_id"`
	State             string     `json:"state"`
	Rows              int        `json:"rows"`
	Cols              int        `json:"cols"`
	Hazards           int        `json:"hazards"`
	Wager             float64    `json:"wager"`
	SafeRevealed      int        `json:"safe_revealed"`
	Multiplier        float64    `json:"multiplier"`
	MultiplierDisplay float64    `json:"multiplier_display"`
	NextMultiplier    float64    `json:"next_multiplier"`
	Payout            float64    `json:"payout"`
	Settled           bool       `json:"settled"`
	Warning           string     `json:"warning,omitempty"`
	Commitment        string     `json:"commitment,omitempty"`
	Seed              *int64     `json:"seed,omitempty"`
	Cells             []CellView `json:"cells,omitempty"`
}

// view 呼叫端需持有 mu。
func (r *Round) view() View {
	b := r.board
	st := b.State()
	v := View{
		RoundID:           r.id,
		State:             st.String(),
		Rows:              r.cfg.Rows,
		Cols:              r.cfg.Cols,
		Wager:             b.Wager(),
		SafeRevealed:      b.SafeRevealed(),
		Multiplier:        b.Multiplier(),
		MultiplierDisplay: Round2(b.Multiplier()),
		Payout:            b.Payout(),
		Settled:           r.settled,
		Warning:           r.warning,
		Commitment:        r.commitment,
	}
	g := b.Grid()
	if g == nil {
		return v
	}
	v.Hazards = g.Hazards()
	if st == Running {
		v.NextMultiplier = Multiplier(g.Total(), g.Hazards(), b.SafeRevealed()+1, b.RTP())
	}
	if st.Terminal() {
		seed := r.seed
		v.Seed = &seed
	}
	v.Cells = make([]CellView, len(g.Cells))
	for i, c := range g.Cells {
		v.Cells[i] = CellView{
			Index:    c.Index,
			Revealed: c.Revealed,
			Hazard:   c.Hazard && (c.Revealed || st.Terminal()),
		}
	}
	return v
}
