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

package minelab

import (
	"github.com/zintix-labs/minelab/corefmt"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/mines"
	"github.com/zintix-labs/minelab/spec"
	"github.com/zintix-labs/minelab/stats"
)

// DevSimulator
//
// 只提供給 Dev 模式使用的模擬器，單線（不併發），重點在可審計、可重現：
// 每次模擬前後都會留下 PRNG 快照，可從任一快照重跑出完全相同的結果。
type DevSimulator struct {
	sim *Simulator
}

// NewDevSimulator 建立 Dev 模擬器。
func (m *Minelab) NewDevSimulator(id spec.GID, seed int64) (*DevSimulator, error) {
	sim, err := m.NewSimulatorWithSeed(id, seed)
	if err != nil {
		return nil, err
	}
	return &DevSimulator{sim: sim}, nil
}

// DevRound 一局的完整紀錄。
type DevRound struct {
	Hazards   []int   `json:"hazards"`
	Picks     []int   `json:"picks"`
	Lost      bool    `json:"lost"`
	Mult      float64 `json:"mult"`
	MultRound float64 `json:"mult_display"`
}

type DevRoundsReport struct {
	Before   string     `json:"start_b64u"`
	After    string     `json:"after_b64u"`
	Round    int        `json:"round"`
	Rtp      float64    `json:"rtp"`
	TotalBet float64    `json:"total_bet"`
	TotalWin float64    `json:"total_win"`
	Busts    int        `json:"busts"`
	Results  []DevRound `json:"results"`
}

// Rounds 逐局輸出（上限 5,000 局）。
func (d *DevSimulator) Rounds(st Strategy, round int) (DevRoundsReport, error) {
	if round < 1 || round > 5000 {
		return DevRoundsReport{}, errs.NewWarn("round must be between 1 and 5,000")
	}
	st, err := st.prepare(d.sim.ts)
	if err != nil {
		return DevRoundsReport{}, err
	}
	w := d.sim.wBuf[0]
	be, err := w.core.Snapshot()
	if err != nil {
		return DevRoundsReport{}, err
	}

	rep := DevRoundsReport{Before: corefmt.EncodeSnap(be), Round: round, Results: make([]DevRound, 0, round)}
	for range round {
		rr := w.play(st)
		g := w.board.Grid()
		dr := DevRound{
			Picks: append([]int(nil), w.order[:rr.Picks]...),
			Lost:  rr.Busted(),
			Mult:  rr.Mult,
		}
		if g != nil {
			dr.Hazards = g.HazardPositions()
		}
		dr.MultRound = mines.Round2(dr.Mult)
		rep.TotalBet++
		rep.TotalWin += rr.Mult
		if dr.Lost {
			rep.Busts++
		}
		rep.Results = append(rep.Results, dr)
	}
	af, err := w.core.Snapshot()
	if err != nil {
		return DevRoundsReport{}, err
	}
	rep.After = corefmt.EncodeSnap(af)
	rep.Rtp = 100.0 * rep.TotalWin / rep.TotalBet
	return rep, nil
}

// RestoreRounds 從快照重跑 Rounds。
func (d *DevSimulator) RestoreRounds(be64 string, st Strategy, round int) (DevRoundsReport, error) {
	if err := d.restore(be64); err != nil {
		return DevRoundsReport{}, err
	}
	return d.Rounds(st, round)
}

type DevSimReport struct {
	Before string            `json:"before"`
	After  string            `json:"after"`
	Stat   *stats.StatReport `json:"statistic"`
}

// Sim 單線模擬（上限 3,000,000 局），回傳前後快照與統計。
func (d *DevSimulator) Sim(st Strategy, round int) (DevSimReport, error) {
	if round < 1 || round > 3_000_000 {
		return DevSimReport{}, errs.NewWarn("round must be between 1 and 3,000,000")
	}
	w := d.sim.wBuf[0]
	be, err := w.core.Snapshot()
	if err != nil {
		return DevSimReport{}, err
	}
	stat, _, err := d.sim.Sim(st, round, false)
	if err != nil {
		return DevSimReport{}, errs.Wrap(err, "sim failed")
	}
	af, err := w.core.Snapshot()
	if err != nil {
		return DevSimReport{}, err
	}
	return DevSimReport{
		Before: corefmt.EncodeSnap(be),
		After:  corefmt.EncodeSnap(af),
		Stat:   stat,
	}, nil
}

// RestoreSim 從快照重跑 Sim。
func (d *DevSimulator) RestoreSim(be64 string, st Strategy, round int) (DevSimReport, error) {
	if err := d.restore(be64); err != nil {
		return DevSimReport{}, err
	}
	return d.Sim(st, round)
}

func (d *DevSimulator) restore(be64 string) error {
	be, err := corefmt.DecodeSnap(be64)
	if err != nil {
		return err
	}
	if err := d.sim.wBuf[0].core.Restore(be); err != nil {
		return errs.WrapKind(err, errs.Warn, errs.InvalidConfig, "restore simulator failed")
	}
	return nil
}

// AuditReport 以 seed 重建的盤面與逐步結果。
type AuditReport struct {
	Commitment string           `json:"commitment"`
	Hazards    []int            `json:"hazards"`
	Steps      []mines.CellView `json:"steps"`
	State      string           `json:"state"`
	Multiplier float64          `json:"multiplier"`
	Odds       []mines.Step     `json:"odds"`
}

// Audit 以 seed 決定性地重建一局，並依 picks 重播翻格；用於核對公開的 seed 與承諾值。
func (m *Minelab) Audit(id spec.GID, seed int64, hazards int, picks []int) (AuditReport, error) {
	ts, err := m.Table(id)
	if err != nil {
		return AuditReport{}, err
	}
	g, err := mines.Layout(m.cf, seed, ts.Rows, ts.Columns, hazards)
	if err != nil {
		return AuditReport{}, err
	}
	rep := AuditReport{
		Commitment: mines.Commitment(seed),
		Hazards:    g.HazardPositions(),
		Odds:       mines.OddsTable(ts.Total(), hazards, ts.RTP),
	}
	b := mines.NewBoard(ts.RTP)
	if err := b.Deal(g, 1); err != nil {
		return AuditReport{}, err
	}
	for _, idx := range picks {
		res := b.Reveal(idx)
		if !res.Changed {
			continue
		}
		rep.Steps = append(rep.Steps, mines.CellView{Index: idx, Revealed: true, Hazard: res.Cell.Hazard})
	}
	rep.State = b.State().String()
	rep.Multiplier = b.Multiplier()
	return rep, nil
}
