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

// Package wager 是各個遊戲與帳本之間共用的押注規則。
//
// 遊戲只透過 Wallet 扣款與派彩；金額必須是整數分，扣款與派彩用同一個數字。
package wager

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/minelab/errs"
)

// WarnUnsettled 派彩入帳失敗時回給玩家的提示。
const WarnUnsettled = "balance may not reflect the win: credit was not acknowledged by the ledger"

// Wallet 是遊戲對帳本的最小需求（由 ledger.Client 實作）。
//
// 失敗一律以 false 表示，不回傳 error；呼叫端依 CurrentBalance 判斷失敗原因。
type Wallet interface {
	PlaceBet(ctx context.Context, amount float64) bool
	RecordWin(ctx context.Context, amount float64) bool
	CurrentBalance() float64
}

// WholeCents 回報 amount 是否能無誤差地以分表示。
func WholeCents(amount float64) bool {
	return decimal.NewFromFloat(amount).Exponent() >= -2
}

// Check 押注必須 > 0、為整數分，且 max > 0 時不可超過 max。
func Check(amount, max float64) error {
	if amount <= 0 {
		return errs.NewKind(errs.Warn, errs.InvalidConfig, "wager must be > 0")
	}
	if !WholeCents(amount) {
		return errs.NewKind(errs.Warn, errs.InvalidConfig, fmt.Sprintf("wager %v is not a whole number of cents", amount))
	}
	if max > 0 && amount > max {
		return errs.NewKind(errs.Warn, errs.InvalidConfig, fmt.Sprintf("wager above maximum %v", max))
	}
	return nil
}

// Debit 扣款；失敗時回傳 InsufficientFunds（押注大於已知餘額）或 LedgerRejected。
func Debit(ctx context.Context, w Wallet, amount float64) error {
	if w.PlaceBet(ctx, amount) {
		return nil
	}
	if amount > w.CurrentBalance() {
		return errs.NewKind(errs.Warn, errs.InsufficientFunds, "insufficient balance")
	}
	return errs.NewKind(errs.Warn, errs.LedgerRejected, "bet was not acknowledged by the ledger")
}

// Credit 派彩。amount <= 0 時沒有東西要入帳，視為已結清。
//
// 失敗時不回滾遊戲結果，回傳 settled=false 與 WarnUnsettled。
func Credit(ctx context.Context, w Wallet, amount float64) (settled bool, warning string) {
	if amount <= 0 {
		return true, ""
	}
	if w.RecordWin(ctx, amount) {
		return true, ""
	}
	return false, WarnUnsettled
}
