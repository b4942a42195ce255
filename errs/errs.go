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

package errs

import (
	"errors"
	"fmt"
)

// ErrLevel : Error 分級，使最上層理解問題嚴重程度
type ErrLevel uint8

const (
	None ErrLevel = iota
	Fatal
	Warn
	Log
)

var errLvMap = map[ErrLevel]string{
	None:  "",
	Fatal: "fatal",
	Warn:  "warn",
	Log:   "log",
}

func ErrLv(errlv ErrLevel) string {
	if str, ok := errLvMap[errlv]; ok {
		return str
	}
	return ""
}

// Kind 描述錯誤「是什麼」，ErrLevel 描述「多嚴重」。
//
// 兩者正交：同一個 InsufficientFunds 對 server 是 Warn，對模擬器可能直接 Fatal。
// 邊界層（server/httperr）優先看 Kind 決定 status code，再退回 ErrLevel。
type Kind uint8

const (
	KindNone Kind = iota
	InsufficientFunds
	LedgerRejected
	NetworkFailure
	InvalidReveal
	InvalidState
	InvalidConfig
	Unauthenticated
	NotFound
)

var kindMap = map[Kind]string{
	KindNone:          "",
	InsufficientFunds: "insufficient_funds",
	LedgerRejected:    "ledger_rejected",
	NetworkFailure:    "network_failure",
	InvalidReveal:     "invalid_reveal",
	InvalidState:      "invalid_state",
	InvalidConfig:     "invalid_config",
	Unauthenticated:   "unauthenticated",
	NotFound:          "not_found",
}

func (k Kind) String() string {
	if str, ok := kindMap[k]; ok {
		return str
	}
	return ""
}

// E 是統一的錯誤型別。
// Message 為主訊息；Extra 為呼叫端可追加的額外上下文；
// Cause 可串接下層錯誤（wrap）；ErrLv 為嚴重度；Kind 為錯誤分類。
type E struct {
	Message string
	Extra   string
	Cause   error
	ErrLv   ErrLevel
	Kind    Kind
}

// Error 實作 error 介面並回傳格式化後的錯誤訊息。
func (e *E) Error() string {
	base := fmt.Sprintf("errlv=%s %s", ErrLv(e.ErrLv), e.Message)
	if e.Kind != KindNone {
		base = fmt.Sprintf("errlv=%s kind=%s %s", ErrLv(e.ErrLv), e.Kind, e.Message)
	}
	if e.Extra != "" {
		base += " | extra: " + e.Extra
	}
	if e.Cause != nil {
		base += fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return base
}

// Unwrap 讓 errors.Is / errors.As 能夠向下展開。
func (e *E) Unwrap() error { return e.Cause }

// Is 讓 errors.Is(err, errs.Of(kind)) 以 Kind 比對，而非指標比對。
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	if !ok {
		return false
	}
	return t.Kind != KindNone && t.Kind == e.Kind && t.Message == ""
}

// New 依錯誤等級與訊息建立錯誤
func New(errLv ErrLevel, msg string) *E {
	return &E{Message: msg, ErrLv: errLv}
}

func NewFatal(msg string) *E {
	return &E{Message: msg, ErrLv: Fatal}
}

func NewWarn(msg string) *E {
	return &E{Message: msg, ErrLv: Warn}
}

func NewLog(msg string) *E {
	return &E{Message: msg, ErrLv: Log}
}

func Fatalf(format string, a ...any) *E {
	return NewFatal(fmt.Sprintf(format, a...))
}

func Warnf(format string, a ...any) *E {
	return NewWarn(fmt.Sprintf(format, a...))
}

// NewKind 建立帶分類的錯誤。
func NewKind(errLv ErrLevel, kind Kind, msg string) *E {
	return &E{Message: msg, ErrLv: errLv, Kind: kind}
}

// Of 回傳只帶 Kind 的比對用哨兵，給 errors.Is 使用。
//
//	errors.Is(err, errs.Of(errs.InsufficientFunds))
func Of(kind Kind) *E {
	return &E{Kind: kind}
}

// NewWithExtra 與 New 相同，但可附加額外上下文字串（不影響主訊息）。
func NewWithExtra(errLv ErrLevel, msg string, extra string) *E {
	e := New(errLv, msg)
	e.Extra = extra
	return e
}

// Wrap 使用給定的訊息包裝底層錯誤，建立一個 *E。
//
// ErrLevel / Kind 規則：
//   - 若 cause 已經是 *E，則沿用其 ErrLv 與 Kind。
//   - 若 cause 不是本包定義的 *E（多半是標準庫或三方依賴錯誤），則 ErrLv 一律視為 Fatal。
func Wrap(cause error, msg string) *E {
	var e *E
	errLv := Fatal
	kind := KindNone
	if errors.As(cause, &e) {
		errLv = e.ErrLv
		kind = e.Kind
	}
	r := NewKind(errLv, kind, msg)
	r.Cause = cause
	return r
}

// WrapKind 以指定的等級與分類包裝底層錯誤（通常是三方或標準庫錯誤）。
func WrapKind(cause error, errLv ErrLevel, kind Kind, msg string) *E {
	r := NewKind(errLv, kind, msg)
	r.Cause = cause
	return r
}

func AsErr(err error) (*E, bool) {
	var e *E
	if errors.As(err, &e) {
		return e, true
	}
	return e, false
}

// KindOf 回傳錯誤鏈上第一個非 KindNone 的分類。
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*E); ok && e.Kind != KindNone {
			return e.Kind
		}
		err = errors.Unwrap(err)
	}
	return KindNone
}

// IsKind 是 KindOf(err) == kind 的簡寫。
func IsKind(err error, kind Kind) bool {
	return kind != KindNone && KindOf(err) == kind
}
