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

// Package reels 是 5x5 的計數型拉霸：同一圖標在盤面上每湊滿 8 顆，就加上一次該圖標的倍數。
package reels

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/sdk/core"
	"github.com/zintix-labs/minelab/wager"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	Cols     = 5
	Rows     = 5
	Cells    = Cols * Rows
	MinCount = 8 // 每 8 顆算一組
)

type Symbol uint8

const (
	DiscoBall Symbol = iota
	Star
	MusicNote
	Headphones
	Guitar
	numSymbols
)

var symbolNames = [numSymbols]string{"disco_ball", "star", "music_note", "headphones", "guitar"}

// Pays 每組的倍數（以押注計）。
var Pays = [numSymbols]float64{0.25, 0.5, 0.75, 1, 1.5}

func (s Symbol) String() string {
	if s < numSymbols {
		return symbolNames[s]
	}
	return "unknown"
}

// Screen 依欄排列：index = col*Rows + row。
type Screen [Cells]Symbol

// SpinScreen 每格獨立、五種圖標等機率。
func SpinScreen(c *core.Core) Screen {
	var s Screen
	for i := range s {
		s[i] = Symbol(c.IntN(int(numSymbols)))
	}
	return s
}

// Columns 轉成對外的欄陣列。
func (s Screen) Columns() [][]string {
	out := make([][]string, Cols)
	for c := range out {
		col := make([]string, Rows)
		for r := range col {
			col[r] = s[c*Rows+r].String()
		}
		out[c] = col
	}
	return out
}

// Win 一個得分圖標。
type Win struct {
	Symbol     string  `json:"symbol"`
	Count      int     `json:"count"`
	Groups     int     `json:"groups"`
	Multiplier float64 `json:"multiplier"`
}

// Evaluate 計算盤面總倍數與得分明細。
func Evaluate(s Screen) (float64, []Win) {
	var cnt [numSymbols]int
	for _, sym := range s {
		cnt[sym]++
	}
	total := 0.0
	var wins []Win
	for sym, n := range cnt {
		g := n / MinCount
		if g == 0 {
			continue
		}
		m := Pays[sym] * float64(g)
		total += m
		wins = append(wins, Win{Symbol: Symbol(sym).String(), Count: n, Groups: g, Multiplier: m})
	}
	return total, wins
}

// RTP 理論回報率。單一圖標顆數 ~ Binomial(25, 1/5)，期望值線性相加。
func RTP() float64 {
	b := distuv.Binomial{N: Cells, P: 1 / float64(numSymbols)}
	groups := 0.0
	for n := MinCount; n <= Cells; n++ {
		groups += float64(n/MinCount) * b.Prob(float64(n))
	}
	sum := 0.0
	for _, p := range Pays {
		sum += p
	}
	return groups * sum
}

// Config 機台設定。
type Config struct {
	CoreFactory core.CoreFactory
	Seeds       func() (int64, error)
	MaxWager    float64
}

// Game 一轉即結算，可同時被多個 goroutine 使用。
type Game struct {
	cfg    Config
	wallet wager.Wallet
	log    *slog.Logger
}

// Outcome 一轉的結果；Payout 已四捨五入到分，與入帳金額一致。
type Outcome struct {
	SpinID     string     `json:"spin_id"`
	Screen     [][]string `json:"screen"`
	Wins       []Win      `json:"wins,omitempty"`
	Multiplier float64    `json:"multiplier"`
	Wager      float64    `json:"wager"`
	Payout     float64    `json:"payout"`
	Settled    bool       `json:"settled"`
	Warning    string     `json:"warning,omitempty"`
	Seed       int64      `json:"seed"`
}

func NewGame(cfg Config, w wager.Wallet, log *slog.Logger) (*Game, error) {
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
	return &Game{cfg: cfg, wallet: w, log: log}, nil
}

// Spin 扣款、轉輪、派彩。
func (g *Game) Spin(ctx context.Context, amount float64) (Outcome, error) {
	if err := wager.Check(amount, g.cfg.MaxWager); err != nil {
		return Outcome{}, err
	}
	seed, err := g.cfg.Seeds()
	if err != nil {
		return Outcome{}, errs.Wrap(err, "generate spin seed")
	}
	if err := wager.Debit(ctx, g.wallet, amount); err != nil {
		return Outcome{}, err
	}
	screen := SpinScreen(core.New(g.cfg.CoreFactory.New(seed)))
	mult, wins := Evaluate(screen)
	payout, _ := decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(mult)).Round(2).Float64()
	out := Outcome{
		SpinID:     uuid.NewString(),
		Screen:     screen.Columns(),
		Wins:       wins,
		Multiplier: mult,
		Wager:      amount,
		Payout:     payout,
		Seed:       seed,
	}
	out.Settled, out.Warning = wager.Credit(ctx, g.wallet, payout)
	if !out.Settled {
		g.log.Warn("spin payout not credited", slog.String("spin", out.SpinID), slog.Float64("payout", payout))
	}
	return out, nil
}
