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

// Package blackjack 是簡化版 21 點：無限牌靴、不分牌不加倍，莊家補到 17。
package blackjack

import "github.com/zintix-labs/minelab/sdk/core"

const (
	Limit        = 21 // 超過即爆牌
	DealerStands = 17 // 莊家點數 >= 17 停牌
)

// Card 一張牌。A 的 Value 記為 11，由 Score 決定要不要降成 1。
type Card struct {
	Rank  string `json:"rank"`
	Value int    `json:"value"`
}

func (c Card) Ace() bool { return c.Rank == "A" }

var deck = [...]Card{
	{"2", 2}, {"3", 3}, {"4", 4}, {"5", 5}, {"6", 6}, {"7", 7}, {"8", 8}, {"9", 9},
	{"10", 10}, {"J", 10}, {"Q", 10}, {"K", 10}, {"A", 11},
}

// Draw 每張牌獨立、13 種點數等機率（無限牌靴）。
func Draw(c *core.Core) Card {
	return deck[c.IntN(len(deck))]
}

// Score A 先算 11，總和超過 21 時逐張改算 1。
func Score(cards []Card) int {
	total, aces := 0, 0
	for _, c := range cards {
		total += c.Value
		if c.Ace() {
			aces++
		}
	}
	for total > Limit && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// DealerPlay 莊家補牌直到 >= 17（軟 17 也停）。
func DealerPlay(c *core.Core, cards []Card) []Card {
	for Score(cards) < DealerStands {
		cards = append(cards, Draw(c))
	}
	return cards
}

// Judge 玩家停牌後的結果（莊家已補完牌）。
//
// 莊家爆牌玩家贏；莊家剛好 21 一律莊家贏（包含玩家也是 21）；其餘比點數，同點為和局。
func Judge(player, dealer int) State {
	switch {
	case player > Limit:
		return Lost
	case dealer > Limit:
		return Won
	case dealer == Limit:
		return Lost
	case dealer == player:
		return Push
	case dealer > player:
		return Lost
	default:
		return Won
	}
}

// Payout 依結果回傳派彩：贏 2 倍（含本金）、和局退回本金、輸為 0。
func Payout(st State, wager float64) float64 {
	switch st {
	case Won:
		return 2 * wager
	case Push:
		return wager
	default:
		return 0
	}
}
