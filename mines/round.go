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
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/sdk/core"
	"github.com/zintix-labs/minelab/wager"
)

// WarnUnsettled 派彩入帳失敗時回給玩家的提示。
const WarnUnsettled = wager.WarnUnsettled

// Wallet 是 Round 對帳本的最小需求（由 ledger.Client 實作）。
type Wallet = wager.Wallet

// SeedSource 產生每局的盤面 seed。
type SeedSource func() (int64, error)

// Config 一張桌子的固定設定。
type Config struct {
	Rows        int
	Cols        int
	RTP         float64
	CoreFactory core.CoreFactory
	Seeds       SeedSource
}

// Round 一位玩家的一張桌子：Board + 錢包 + 鎖。
//
// 與帳本的接觸點只有兩個：Start 扣款、終局（Won / CashedOut）派彩。
// 所有事件以 mu 串行化；Start 在等待扣款回應時釋放鎖並停在 Starting，
// 這段期間的翻格一律忽略，重複開局回傳 InvalidState。
type Round struct {
	mu     sync.Mutex
	cfg    Config
	wallet Wallet
	log    *slog.Logger
	board  *Board

	id         string
	seed       int64
	commitment string
	settled    bool
	warning    string
	pending    *reservation
}

type reservation struct {
	hazards int
	wager   float64
}

// Outcome 一次事件（翻格 / 兌現）之後的結果。
type Outcome struct {
	RoundID      string  `json:"round_id"`
	State        State   `json:"-"`
	StateName    string  `json:"state"`
	Index        int     `json:"index"`
	Hazard       bool    `json:"hazard"`
	Changed      bool    `json:"changed"`
	SafeRevealed int     `json:"safe_revealed"`
	Multiplier   float64 `json:"multiplier"`
	Payout       float64 `json:"payout"`
	Settled      bool    `json:"settled"`
	Warning      string  `json:"warning,omitempty"`
}

// NewRound 建立 Idle 的 Round。
func NewRound(cfg Config, wallet Wallet, log *slog.Logger) (*Round, error) {
	if wallet == nil {
		return nil, errs.NewKind(errs.Fatal, errs.InvalidConfig, "wallet required")
	}
	if cfg.Rows <= 0 || cfg.Cols <= 0 || cfg.Rows*cfg.Cols < 2 {
		return nil, errs.NewKind(errs.Fatal, errs.InvalidConfig, fmt.Sprintf("invalid grid dimensions: rows=%d cols=%d", cfg.Rows, cfg.Cols))
	}
	if cfg.RTP <= 0 {
		cfg.RTP = DefaultRTP
	}
	if cfg.CoreFactory == nil {
		cfg.CoreFactory = core.Default()
	}
	if cfg.Seeds == nil {
		cfg.Seeds = core.NewSeed
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Round{
		cfg:    cfg,
		wallet: wallet,
		log:    log,
		board:  NewBoard(cfg.RTP),
	}, nil
}

// Start Idle -> Running，等同 Reserve 之後 Commit。
//
// 先扣款，扣款成功後才建立盤面；扣款失敗時維持 Idle、不建盤面，
// 並回傳 InsufficientFunds（押注大於已知餘額）或 LedgerRejected。
func (r *Round) Start(ctx context.Context, hazards int, amount float64) (View, error) {
	if err := r.Reserve(hazards, amount); err != nil {
		return View{}, err
	}
	return r.Commit(ctx)
}

// Reserve 檢查參數並把 Round 佔住（Idle -> Starting），不碰帳本。
//
// 之後必須呼叫 Commit 完成開局；呼叫端可在自己的鎖內 Reserve，鎖外 Commit。
func (r *Round) Reserve(hazards int, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ValidateLayout(r.cfg.Rows, r.cfg.Cols, hazards); err != nil {
		return err
	}
	// 扣款與派彩用同一個金額
	if err := wager.Check(amount, 0); err != nil {
		return err
	}
	if err := r.board.begin(); err != nil {
		return err
	}
	r.pending = &reservation{hazards: hazards, wager: amount}
	return nil
}

// Commit 完成 Reserve 佔住的開局：取 seed、扣款、建盤面。
func (r *Round) Commit(ctx context.Context) (View, error) {
	r.mu.Lock()
	rs := r.pending
	r.pending = nil
	r.mu.Unlock()
	if rs == nil {
		return View{}, errs.NewKind(errs.Warn, errs.InvalidState, "no reserved round to start")
	}
	hazards, amount := rs.hazards, rs.wager

	// seed 先取得：扣款之後不應再有可能失敗的步驟
	seed, err := r.cfg.Seeds()
	if err != nil {
		r.mu.Lock()
		r.board.abort()
		r.mu.Unlock()
		return View{}, errs.Wrap(err, "generate round seed")
	}

	debit := wager.Debit(ctx, r.wallet, amount)

	r.mu.Lock()
	defer r.mu.Unlock()
	if debit != nil {
		r.board.abort()
		return View{}, debit
	}

	grid, err := Layout(r.cfg.CoreFactory, seed, r.cfg.Rows, r.cfg.Cols, hazards)
	if err != nil {
		r.board.abort()
		return View{}, err
	}
	if err := r.board.Deal(grid, amount); err != nil {
		r.board.abort()
		return View{}, err
	}
	r.id = uuid.NewString()
	r.seed = seed
	r.commitment = Commitment(seed)
	r.settled = false
	r.warning = ""

	r.log.Debug("round started",
		slog.String("round", r.id),
		slog.Int("hazards", hazards),
		slog.Float64("wager", amount),
		slog.String("commitment", r.commitment),
	)
	return r.view(), nil
}

// Reveal 翻開 idx；非法翻格（非 Running、越界、重複）為無動作，Changed=false。
//
// 最後一個安全格翻開時轉為 Won，並以當下倍數派彩。
func (r *Round) Reveal(ctx context.Context, idx int) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := r.board.Reveal(idx)
	out := r.outcome(res.Multiplier)
	out.Index = idx
	out.Changed = res.Changed
	out.Hazard = res.Changed && res.Cell.Hazard
	if !res.Changed {
		return out
	}
	switch res.State {
	case Lost:
		r.log.Debug("round lost", slog.String("round", r.id), slog.Int("index", idx))
	case Won:
		r.settle(ctx, res.Payout)
		out.Payout = res.Payout
		out.Settled = r.settled
		out.Warning = r.warning
	}
	out.State = r.board.State()
	out.StateName = out.State.String()
	return out
}

// CashOut Running -> CashedOut，並以當下倍數派彩。
func (r *Round) CashOut(ctx context.Context) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	payout, err := r.board.CashOut()
	if err != nil {
		return r.outcome(r.board.Multiplier()), err
	}
	r.settle(ctx, payout)
	out := r.outcome(r.board.Multiplier())
	out.Index = -1
	return out, nil
}

// Reset 終局 -> Idle；不碰帳本。
func (r *Round) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.board.Reset(); err != nil {
		return err
	}
	r.id = ""
	r.seed = 0
	r.commitment = ""
	r.settled = false
	r.warning = ""
	return nil
}

// Snapshot 回傳目前狀態的對外視圖。
func (r *Round) Snapshot() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view()
}

// State 回傳目前狀態。
func (r *Round) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.board.State()
}

// settle 呼叫 RecordWin；失敗時終局不回滾，只留下警告。呼叫端需持有 mu。
func (r *Round) settle(ctx context.Context, amount float64) {
	r.settled, r.warning = wager.Credit(ctx, r.wallet, amount)
	if r.settled {
		r.log.Debug("round settled", slog.String("round", r.id), slog.Float64("payout", amount))
		return
	}
	r.log.Warn("round payout not credited",
		slog.String("round", r.id),
		slog.Float64("payout", amount),
		slog.String("state", r.board.State().String()),
	)
}

func (r *Round) outcome(mult float64) Outcome {
	st := r.board.State()
	return Outcome{
		RoundID:      r.id,
		State:        st,
		StateName:    st.String(),
		Index:        -1,
		SafeRevealed: r.board.SafeRevealed(),
		Multiplier:   mult,
		Payout:       r.board.Payout(),
		Settled:      r.settled,
		Warning:      r.warning,
	}
}
