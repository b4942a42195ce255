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

import (
	"github.com/zintix-labs/minelab/errs"
)

// State 一局的狀態。
type State uint8

const (
	Idle State = iota
	Starting
	Running
	Lost
	Won
	CashedOut
)

var stateMap = map[State]string{
	Idle:      "idle",
	Starting:  "starting",
	Running:   "running",
	Lost:      "lost",
	Won:       "won",
	CashedOut: "cashed_out",
}

func (s State) String() string {
	if str, ok := stateMap[s]; ok {
		return str
	}
	return "unknown"
}

// Terminal 回報是否為終局（Lost / Won / CashedOut）。
func (s State) Terminal() bool {
	return s == Lost || s == Won || s == CashedOut
}

// Board 是純狀態機：不碰帳本、不上鎖、不產生亂數。
//
// Round 在外層包上錢包與鎖；模擬器直接驅動 Board 跑百萬局。
type Board struct {
	rtp          float64
	grid         *Grid
	state        State
	wager        float64
	safeRevealed int
	multiplier   float64
	payout       float64
}

// RevealResult 一次翻格的結果。
type RevealResult struct {
	Cell       Cell
	Changed    bool
	State      State
	Multiplier float64
	Payout     float64 // 僅在轉為 Won 時非零
}

// NewBoard 建立 Idle 狀態的 Board；rtp <= 0 時使用 DefaultRTP。
func NewBoard(rtp float64) *Board {
	if rtp <= 0 {
		rtp = DefaultRTP
	}
	return &Board{rtp: rtp, multiplier: 1}
}

func (b *Board) State() State        { return b.state }
func (b *Board) Grid() *Grid         { return b.grid }
func (b *Board) Wager() float64      { return b.wager }
func (b *Board) SafeRevealed() int   { return b.safeRevealed }
func (b *Board) Multiplier() float64 { return b.multiplier }
func (b *Board) Payout() float64     { return b.payout }
func (b *Board) RTP() float64        { return b.rtp }

// begin Idle -> Starting：扣款進行中，拒絕翻格。
func (b *Board) begin() error {
	if b.state != Idle {
		return errs.NewKind(errs.Warn, errs.InvalidState, "round already in progress: "+b.state.String())
	}
	b.state = Starting
	return nil
}

// abort Starting -> Idle：扣款失敗，不建立盤面。
func (b *Board) abort() {
	if b.state == Starting {
		b.state = Idle
	}
}

// Deal 放入新盤面並進入 Running。只接受 Idle 或 Starting。
func (b *Board) Deal(g *Grid, wager float64) error {
	if b.state != Idle && b.state != Starting {
		return errs.NewKind(errs.Warn, errs.InvalidState, "cannot deal in state "+b.state.String())
	}
	if g == nil {
		return errs.NewKind(errs.Fatal, errs.InvalidConfig, "nil grid")
	}
	if wager <= 0 {
		return errs.NewKind(errs.Warn, errs.InvalidConfig, "wager must be > 0")
	}
	b.grid = g
	b.wager = wager
	b.safeRevealed = 0
	b.multiplier = 1
	b.payout = 0
	b.state = Running
	return nil
}

// Reveal 翻開 idx。
//
// 非 Running、越界、已翻開時為無動作（Changed=false），不回傳錯誤。
func (b *Board) Reveal(idx int) RevealResult {
	res := RevealResult{State: b.state, Multiplier: b.multiplier}
	if b.state != Running || b.grid == nil {
		return res
	}
	cell, changed := b.grid.Reveal(idx)
	res.Cell = cell
	if !changed {
		return res
	}
	res.Changed = true

	if cell.Hazard {
		b.state = Lost
		res.State = Lost
		return res
	}

	b.safeRevealed++
	b.multiplier = Multiplier(b.grid.Total(), b.grid.Hazards(), b.safeRevealed, b.rtp)
	res.Multiplier = b.multiplier

	if b.safeRevealed == b.grid.Safe() {
		b.state = Won
		b.payout = b.wager * b.multiplier
		res.Payout = b.payout
	}
	res.State = b.state
	return res
}

// CashOut Running -> CashedOut，至少需翻開一個安全格。回傳應派彩金額。
func (b *Board) CashOut() (float64, error) {
	if b.state != Running {
		return 0, errs.NewKind(errs.Warn, errs.InvalidState, "cash out requires a running round, got "+b.state.String())
	}
	if b.safeRevealed == 0 {
		return 0, errs.NewKind(errs.Warn, errs.InvalidState, "cash out requires at least one safe reveal")
	}
	b.state = CashedOut
	b.payout = b.wager * b.multiplier
	return b.payout, nil
}

// Reset 終局 -> Idle，清空盤面與計數。
func (b *Board) Reset() error {
	if !b.state.Terminal() {
		return errs.NewKind(errs.Warn, errs.InvalidState, "reset requires a finished round, got "+b.state.String())
	}
	b.grid = nil
	b.wager = 0
	b.safeRevealed = 0
	b.multiplier = 1
	b.payout = 0
	b.state = Idle
	return nil
}
