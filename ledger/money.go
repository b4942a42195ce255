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

package ledger

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToCents 金額轉成分，四捨五入（遠離零）。
func ToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

// FromCents 分轉回金額。
func FromCents(cents int64) float64 {
	f, _ := decimal.New(cents, -2).Float64()
	return f
}

// DefaultRecentDays Recent 的預設天數。
const DefaultRecentDays = 7

// Recent 回傳 now 往前 days 天內（含邊界）的交易，新的在前。days <= 0 時使用 7 天。
func Recent(txs []Transaction, days int, now time.Time) []Transaction {
	if days <= 0 {
		days = DefaultRecentDays
	}
	cutoff := now.AddDate(0, 0, -days)
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if !t.CreatedAt.Before(cutoff) {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b Transaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// NetTotal 交易淨額（分）：入金與派彩為正，其餘為負。
func NetTotal(txs []Transaction) int64 {
	var total int64
	for _, t := range txs {
		if t.Type.Credit() {
			total += t.Amount
		} else {
			total -= t.Amount
		}
	}
	return total
}
