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

// Package rps 是帶莊家偏置的剪刀石頭布：莊家有 Rigged 的機率直接出剋制玩家的手勢，
// 其餘時候三種手勢等機率。
package rps

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/sdk/core"
	"github.com/zintix-labs/minelab/wager"
)

// DefaultRigged 莊家出剋制手勢的預設機率。
const DefaultRigged = 0.6

type Choice uint8

const (
	Rock Choice = iota
	Paper
	Scissors
)

var choiceNames = [...]string{"rock", "paper", "scissors"}

func (c Choice) String() string {
	if int(c) < len(choiceNames) {
		return choiceNames[c]
	}
	return "unknown"
}

// ParseChoice 不分大小寫。
func ParseChoice(s string) (Choice, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range choiceNames {
		if n == s {
			return Choice(i), nil
		}
	}
	return 0, errs.NewKind(errs.Warn, errs.InvalidConfig, "unknown choice: "+s)
}

// Beats c 贏過的手勢。
func (c Choice) Beats() Choice { return (c + 2) % 3 }

// Counter 贏過 c 的手勢。
func (c Choice) Counter() Choice { return (c + 1) % 3 }

type Result uint8

const (
	Lose Result = iota
	Draw
	Win
)

var resultNames = [...]string{"lose", "draw", "win"}

func (r Result) String() string {
	if int(r) < len(resultNames) {
		return resultNames[r]
	}
	return "unknown"
}

// Judge 以玩家角度判定。
func Judge(player, dealer Choice) Result {
	switch {
	case player == dealer:
		return Draw
	case player.Beats() == dealer:
		return Win
	default:
		return Lose
	}
}

// DealerChoice 先抽偏置，未命中時三選一等機率。
func DealerChoice(c *core.Core, player Choice, rigged float64) Choice {
	if c.Float64() < rigged {
		return player.Counter()
	}
	return Choice(c.IntN(3))
}

// Payout 贏 2 倍（含本金）、和局退回本金、輸為 0。
func Payout(r Result, amount float64) float64 {
	switch r {
	case Win:
		return 2 * amount
	case Draw:
		return amount
	default:
		return 0
	}
}

// RTP 理論回報率：P(win) = P(draw) = (1-rigged)/3。
func RTP(rigged float64) float64 {
	p := (1 - rigged) / 3
	return 2*p + p
}

// Config 牌桌設定。Rigged 需在 [0,1]。
type Config struct {
	Rigged      float64
	CoreFactory core.CoreFactory
	Seeds       func() (int64, error)
	MaxWager    float64
}

// Game 一局即結算，不保留狀態；可同時被多個 goroutine 使用。
type Game struct {
	cfg    Config
	wallet wager.Wallet
	log    *slog.Logger
}

// Outcome 一局的結果，Seed 可重建莊家的手勢。
type Outcome struct {
	PlayID  string  `json:"play_id"`
	Player  string  `json:"player"`
	Dealer  string  `json:"dealer"`
	Result  string  `json:"result"`
	Wager   float64 `json:"wager"`
	Payout  float64 `json:"payout"`
	Settled bool    `json:"settled"`
	Warning string  `json:"warning,omitempty"`
	Seed    int64   `json:"seed"`
}

func NewGame(cfg Config, w wager.Wallet, log *slog.Logger) (*Game, error) {
	if w == nil {
		return nil, errs.NewKind(errs.Fatal, errs.InvalidConfig, "wallet required")
	}
	if cfg.Rigged < 0 || cfg.Rigged > 1 {
		return nil, errs.NewKind(errs.Fatal, errs.InvalidConfig, "rigged probability must be within [0,1]")
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
	return &Game{cfg: cfg, wallet: w, log: log}, nil
}

// Play 扣款、出拳、派彩。扣款失敗時不出拳。
func (g *Game) Play(ctx context.Context, player Choice, amount float64) (Outcome, error) {
	if player > Scissors {
		return Outcome{}, errs.NewKind(errs.Warn, errs.InvalidConfig, "unknown choice")
	}
	if err := wager.Check(amount, g.cfg.MaxWager); err != nil {
		return Outcome{}, err
	}
	seed, err := g.cfg.Seeds()
	if err != nil {
		return Outcome{}, errs.Wrap(err, "generate play seed")
	}
	if err := wager.Debit(ctx, g.wallet, amount); err != nil {
		return Outcome{}, err
	}
	dealer := DealerChoice(core.New(g.cfg.CoreFactory.New(seed)), player, g.cfg.Rigged)
	res := Judge(player, dealer)
	out := Outcome{
		PlayID: uuid.NewString(),
		Player: player.String(),
		Dealer: dealer.String(),
		Result: res.String(),
		Wager:  amount,
		Payout: Payout(res, amount),
		Seed:   seed,
	}
	out.Settled, out.Warning = wager.Credit(ctx, g.wallet, out.Payout)
	if !out.Settled {
		g.log.Warn("rps payout not credited", slog.String("play", out.PlayID), slog.Float64("payout", out.Payout))
	}
	return out, nil
}
