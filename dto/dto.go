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

// Package dto 對外 HTTP 介面的請求 / 回應結構；不滲透到 mines / ledger 的邏輯層。
package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/minelab/blackjack"
	"github.com/zintix-labs/minelab/ledger"
	"github.com/zintix-labs/minelab/mines"
	"github.com/zintix-labs/minelab/reels"
	"github.com/zintix-labs/minelab/rps"
	"github.com/zintix-labs/minelab/spec"
)

// Money 金額以字串輸出（兩位小數），避免前端浮點誤差。
func Money(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

type BalanceResult struct {
	Identity  string           `json:"identity"`
	Balance   float64          `json:"balance"`
	Display   string           `json:"display"`
	Unsettled []ledger.Pending `json:"unsettled,omitempty"`
}

func NewBalanceResult(c *ledger.Client) BalanceResult {
	bal := c.CurrentBalance()
	return BalanceResult{
		Identity:  c.Identity(),
		Balance:   bal,
		Display:   Money(ledger.ToCents(bal)),
		Unsettled: c.Unsettled(),
	}
}

// TransactionResult 單筆交易，金額同時給分與顯示字串。
type TransactionResult struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Credit      bool      `json:"credit"`
	Cents       int64     `json:"cents"`
	Amount      string    `json:"amount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

func NewTransactionResult(t ledger.Transaction) TransactionResult {
	return TransactionResult{
		ID:          t.ID,
		Type:        string(t.Type),
		Credit:      t.Type.Credit(),
		Cents:       t.Amount,
		Amount:      Money(t.Amount),
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		Description: t.Description,
	}
}

// HistoryResult 近 N 天交易與淨額。
type HistoryResult struct {
	Days         int                 `json:"days"`
	Count        int                 `json:"count"`
	NetCents     int64               `json:"net_cents"`
	Net          string              `json:"net"`
	Transactions []TransactionResult `json:"transactions"`
}

func NewHistoryResult(txs []ledger.Transaction, days int) HistoryResult {
	if days <= 0 {
		days = ledger.DefaultRecentDays
	}
	net := ledger.NetTotal(txs)
	out := HistoryResult{
		Days:         days,
		Count:        len(txs),
		NetCents:     net,
		Net:          Money(net),
		Transactions: make([]TransactionResult, 0, len(txs)),
	}
	for _, t := range txs {
		out.Transactions = append(out.Transactions, NewTransactionResult(t))
	}
	return out
}

type SettleResult struct {
	Settled   int              `json:"settled"`
	Remaining []ledger.Pending `json:"remaining,omitempty"`
	Balance   float64          `json:"balance"`
}

// OddsResult 賠率表。
type OddsResult struct {
	GameId  spec.GID     `json:"game_id"`
	Hazards int          `json:"hazards"`
	Steps   []mines.Step `json:"steps"`
}

// RoundResult 翻格 / 兌現後的結果，附上更新後的整局視圖與餘額。
type RoundResult struct {
	Outcome *mines.Outcome `json:"outcome,omitempty"`
	View    mines.View     `json:"round"`
	Balance float64        `json:"balance"`
}

type BlackjackResult struct {
	Hand    blackjack.View `json:"hand"`
	Balance float64        `json:"balance"`
}

type RPSResult struct {
	Play    rps.Outcome `json:"play"`
	Balance float64     `json:"balance"`
}

type SpinResult struct {
	Spin    reels.Outcome `json:"spin"`
	Balance float64       `json:"balance"`
}

// ArcadeRules 三個小遊戲的規則與理論 RTP。
type ArcadeRules struct {
	Blackjack struct {
		Limit        int     `json:"limit"`
		DealerStands int     `json:"dealer_stands"`
		WinPays      float64 `json:"win_pays"`
		PushPays     float64 `json:"push_pays"`
	} `json:"blackjack"`
	RPS struct {
		Rigged float64 `json:"rigged"`
		RTP    float64 `json:"rtp"`
	} `json:"rps"`
	Reels struct {
		Cols     int                `json:"cols"`
		Rows     int                `json:"rows"`
		MinCount int                `json:"min_count"`
		Pays     map[string]float64 `json:"pays"`
		RTP      float64            `json:"rtp"`
	} `json:"reels"`
	MaxWager float64 `json:"max_wager,omitempty"`
}

func NewArcadeRules(rigged, maxWager float64) ArcadeRules {
	var a ArcadeRules
	a.Blackjack.Limit = blackjack.Limit
	a.Blackjack.DealerStands = blackjack.DealerStands
	a.Blackjack.WinPays = blackjack.Payout(blackjack.Won, 1)
	a.Blackjack.PushPays = blackjack.Payout(blackjack.Push, 1)
	a.RPS.Rigged = rigged
	a.RPS.RTP = rps.RTP(rigged)
	a.Reels.Cols, a.Reels.Rows, a.Reels.MinCount = reels.Cols, reels.Rows, reels.MinCount
	a.Reels.Pays = make(map[string]float64, len(reels.Pays))
	for i, p := range reels.Pays {
		a.Reels.Pays[reels.Symbol(i).String()] = p
	}
	a.Reels.RTP = reels.RTP()
	a.MaxWager = maxWager
	return a
}
