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
	"encoding/json"
	"strings"
	"time"

	"github.com/zintix-labs/minelab/errs"
)

// TxType 交易種類。
type TxType string

const (
	BetPlaced TxType = "BET_PLACED"
	BetWin    TxType = "BET_WIN"
	Deposit   TxType = "DEPOSIT"
)

// ParseTxType 大小寫不敏感。
func ParseTxType(s string) (TxType, bool) {
	switch t := TxType(strings.ToUpper(strings.TrimSpace(s))); t {
	case BetPlaced, BetWin, Deposit:
		return t, true
	}
	return "", false
}

// Credit 回報此類交易是否增加餘額。
func (t TxType) Credit() bool {
	switch TxType(strings.ToUpper(string(t))) {
	case BetWin, Deposit:
		return true
	}
	return false
}

// Account 遠端帳戶；Balance 以分（cents）為單位。
type Account struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Balance int64  `json:"balance"`
}

// Transaction 遠端交易紀錄；Amount 以分為單位。
type Transaction struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"userId"`
	Amount      int64     `json:"amount"`
	Type        TxType    `json:"type"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	Description string    `json:"description,omitempty"`
}

// 帳本服務回傳的時間可能不帶時區（視為 UTC）。
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *Transaction) UnmarshalJSON(b []byte) error {
	type alias Transaction
	aux := struct {
		*alias
		CreatedAt string `json:"createdAt"`
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	t.CreatedAt = time.Time{}
	if aux.CreatedAt == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, aux.CreatedAt); err == nil {
			t.CreatedAt = ts
			return nil
		}
	}
	return errs.NewWarn("unrecognised createdAt: " + aux.CreatedAt)
}

// BalanceEvent 快取餘額變動通知。
type BalanceEvent struct {
	Balance  float64   `json:"balance"`
	Previous float64   `json:"previous"`
	Reason   TxType    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// Pending 遠端未確認的入帳，保留原本的 Idempotency-Key 供重送。
type Pending struct {
	Key       string    `json:"key"`
	Type      TxType    `json:"type"`
	Amount    float64   `json:"amount"`
	Cents     int64     `json:"cents"`
	At        time.Time `json:"at"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
}
