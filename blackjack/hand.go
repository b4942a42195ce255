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

package blackjack

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/sdk/core"
	"github.com/zintix-labs/minelab/wager"
)

// State 一手牌的狀態。
type State uint8

const (
	Idle State = iota
	Starting
	Playing
	Won
	Lost
	Push
)

var stateMap = map[State]string{
	Idle:     "idle",
	Starting: "starting",
	Playing:  "playing",
	Won:      "won",
	Lost:     "lost",
	Push:     "push",
}

func (s State) String() string {
	if str, ok := stateMap[s]; ok {
		return str
	}
	return "unknown"
}

func (s State) Terminal() bool {
	return s == Won || s == Lost || s == Push
}

// Config 牌桌設定。
type Config struct {
	CoreFactory core.CoreFactory
	Seeds       func() (int64, error)
	MaxWager    float64 // 0 代表不限
}

// Hand 一位玩家的一手牌：押注、發牌、要牌、停牌、派彩。
//
// 與帳本的接觸點只有 Commit 扣款和終局派彩；所有事件以 mu 串行化。
// 每手牌由一個 seed 決定全部的牌序，終局後公開 seed。
type Hand struct {
	mu     sync.Mutex
	cfg    Config
	wallet wager.Wallet
	log    *slog.Logger

	state   State
	pending float64
	core    *core.Core
	id      string
	seed    int64
	wager   float64
	player  []Card
	dealer  []Card
	payout  float64
	settled bool
	warning string
}

// View 對外視圖；進行中只公開莊家第一張牌。
type View struct {
	HandID      string  `json:"hand_id"`
	State       string  `json:"state"`
	Wager       float64 `json:"wager"`
	Player      []Card  `json:"player"`
	PlayerScore int     `json:"player_score"`
	Dealer      []Card  `json:"dealer"`
	DealerScore int     `json:"dealer_score"`
	Payout      float64 `json:"payout"`
	Settled     bool    `json:"settled"`
	Warning     string  `json:"warning,omitempty"`
	Seed        *int64  `json:"seed,omitempty"`
}

func NewHand(cfg Config, w wager.Wallet, log *slog.Logger) (*Hand, error) {
	if w == nil {
		return nil, errs.NewKind(errs.Fatal, errs.InvalidConfig, "wallet required")
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
	return &Hand{cfg: cfg, wallet: w, log: log}, nil
}

// Deal 等同 Reserve 之後 Commit。
func (h *Hand) Deal(ctx context.Context, amount float64) (View, error) {
	if err := h.Reserve(amount); err != nil {
		return View{}, err
	}
	return h.Commit(ctx)
}

// Reserve Idle -> Starting，不碰帳本。
func (h *Hand) Reserve(amount float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := wager.Check(amount, h.cfg.MaxWager); err != nil {
		return err
	}
	if h.state != Idle {
		return errs.NewKind(errs.Warn, errs.InvalidState, "hand already in progress: "+h.state.String())
	}
	h.state = Starting
	h.pending = amount
	return nil
}

// Commit 扣款後發牌：玩家兩張、莊家兩張。扣款失敗回到 Idle。
func (h *Hand) Commit(ctx context.Context) (View, error) {
	h.mu.Lock()
	if h.state != Starting || h.pending <= 0 {
		h.mu.Unlock()
		return View{}, errs.NewKind(errs.Warn, errs.InvalidState, "no reserved hand to deal")
	}
	amount := h.pending
	h.pending = 0
	h.mu.Unlock()

	seed, err := h.cfg.Seeds()
	if err != nil {
		h.abort()
		return View{}, errs.Wrap(err, "generate hand seed")
	}
	if err := wager.Debit(ctx, h.wallet, amount); err != nil {
		h.abort()
		return View{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.core = core.New(h.cfg.CoreFactory.New(seed))
	h.id = uuid.NewString()
	h.seed = seed
	h.wager = amount
	h.player = []Card{Draw(h.core), Draw(h.core)}
	h.dealer = []Card{Draw(h.core), Draw(h.core)}
	h.payout, h.settled, h.warning = 0, false, ""
	h.state = Playing
	h.log.Debug("hand dealt", slog.String("hand", h.id), slog.Float64("wager", amount))
	return h.view(), nil
}

func (h *Hand) abort() {
	h.mu.Lock()
	if h.state == Starting {
		h.state = Idle
	}
	h.mu.Unlock()
}

// Hit 要一張牌；超過 21 直接輸，不派彩。
func (h *Hand) Hit(ctx context.Context) (View, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Playing {
		return h.view(), errs.NewKind(errs.Warn, errs.InvalidState, "cannot hit in state "+h.state.String())
	}
	h.player = append(h.player, Draw(h.core))
	if Score(h.player) > Limit {
		h.state = Lost
		h.settled = true
		h.log.Debug("hand bust", slog.String("hand", h.id))
	}
	return h.view(), nil
}

// Stand 停牌：莊家補牌、判定、派彩。
func (h *Hand) Stand(ctx context.Context) (View, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Playing {
		return h.view(), errs.NewKind(errs.Warn, errs.InvalidState, "cannot stand in state "+h.state.String())
	}
	h.dealer = DealerPlay(h.core, h.dealer)
	h.state = Judge(Score(h.player), Score(h.dealer))
	h.payout = Payout(h.state, h.wager)
	h.settled, h.warning = wager.Credit(ctx, h.wallet, h.payout)
	if !h.settled {
		h.log.Warn("hand payout not credited", slog.String("hand", h.id), slog.Float64("payout", h.payout))
	}
	return h.view(), nil
}

// Reset 終局 -> Idle。
func (h *Hand) Reset() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.state.Terminal() {
		return errs.NewKind(errs.Warn, errs.InvalidState, "cannot reset in state "+h.state.String())
	}
	h.state = Idle
	h.core = nil
	h.id, h.seed, h.wager = "", 0, 0
	h.player, h.dealer = nil, nil
	h.payout, h.settled, h.warning = 0, false, ""
	return nil
}

func (h *Hand) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Hand) Snapshot() View {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.view()
}

// view 呼叫端需持有 mu。
func (h *Hand) view() View {
	v := View{
		HandID:      h.id,
		State:       h.state.String(),
		Wager:       h.wager,
		Player:      slices.Clone(h.player),
		PlayerScore: Score(h.player),
		Dealer:      slices.Clone(h.dealer),
		Payout:      h.payout,
		Settled:     h.settled,
		Warning:     h.warning,
	}
	if h.state == Playing && len(h.dealer) > 1 {
		v.Dealer = v.Dealer[:1]
	}
	v.DealerScore = Score(v.Dealer)
	if h.state.Terminal() {
		seed := h.seed
		v.Seed = &seed
	}
	return v
}
