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

package httperr

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zintix-labs/minelab/errs"
)

// StatusCode 將錯誤映射成 HTTP status code。
//
// 規則（邊界層最小映射、可預期）：
//   - ctx timeout/cancel → 504/408（請求生命週期問題）
//   - errs.Kind          → 依種類（餘額不足 402、帳本拒絕 / 網路失敗 502、狀態不符 409 ...）
//   - errs.Warn          → 400（請求/參數問題）
//   - errs.Fatal         → 500（系統/不可恢復問題）
//
// 放在 server/* 而不是 errs，核心錯誤包不依賴 net/http。
func StatusCode(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout // 504
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout // 408
	}

	if st, ok := kindStatus[errs.KindOf(err)]; ok {
		return st
	}

	var e *errs.E
	if errors.As(err, &e) && e.ErrLv == errs.Warn {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

var kindStatus = map[errs.Kind]int{
	errs.InsufficientFunds: http.StatusPaymentRequired,
	errs.LedgerRejected:    http.StatusBadGateway,
	errs.NetworkFailure:    http.StatusBadGateway,
	errs.InvalidState:      http.StatusConflict,
	errs.InvalidReveal:     http.StatusConflict,
	errs.InvalidConfig:     http.StatusBadRequest,
	errs.Unauthenticated:   http.StatusUnauthorized,
	errs.NotFound:          http.StatusNotFound,
}

// Errs 決定 status code 並寫回純文字錯誤。
func Errs(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	http.Error(w, err.Error(), StatusCode(err))
}

// Log 依 status 等級記錄：4xx 中的 408/409/429 與 502 記 Warn，其餘 5xx 記 Error。
func Log(log *slog.Logger, msg string, err error) {
	if err == nil {
		return
	}
	status := StatusCode(err)
	switch {
	case status == 408 || status == 409 || status == 429 || status == 502:
		log.Warn(msg, slog.Any("err", err), slog.Int("status", status))
	case status >= 500 && status < 600:
		log.Error(msg, slog.Any("err", err), slog.Int("status", status))
	}
}
