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

package v1

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/zintix-labs/minelab"
	"github.com/zintix-labs/minelab/dto"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/ledger"
	"github.com/zintix-labs/minelab/server/httperr"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 5 * time.Second
)

// WalletHandler 餘額、交易紀錄、未入帳派彩重送、餘額推播。
type WalletHandler struct {
	rt       *minelab.Runtime
	log      *slog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewWalletHandler checkOrigin 為 nil 時沿用 gorilla 預設的同源檢查。
func NewWalletHandler(rt *minelab.Runtime, log *slog.Logger, checkOrigin func(r *http.Request) bool) (*WalletHandler, error) {
	if rt == nil {
		return nil, errs.NewFatal("runtime is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &WalletHandler{
		rt:  rt,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		now: time.Now,
	}, nil
}

// Balance GET /v1/balance：重新向帳本讀取後回傳。
func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	s, err := session(h.rt, r)
	if err != nil {
		fail(w, h.log, "v1.balance session", err)
		return
	}
	if err := s.Wallet().Reload(r.Context()); err != nil {
		fail(w, h.log, "v1.balance reload", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewBalanceResult(s.Wallet()))
}

// Transactions GET /v1/transactions?days=N：近 N 天（預設 7）交易，新的在前。
func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httperr.Errs(w, errs.NewWarn("days must be a non-negative integer"))
			return
		}
		days = n
	}
	s, err := session(h.rt, r)
	if err != nil {
		fail(w, h.log, "v1.transactions session", err)
		return
	}
	txs, err := s.Wallet().Transactions(r.Context())
	if err != nil {
		fail(w, h.log, "v1.transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewHistoryResult(ledger.Recent(txs, days, h.now()), days))
}

// Transaction GET /v1/transactions/{id}：只能查自己的交易。
func (h *WalletHandler) Transaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httperr.Errs(w, errs.NewKind(errs.Warn, errs.NotFound, "invalid transaction id"))
		return
	}
	s, err := session(h.rt, r)
	if err != nil {
		fail(w, h.log, "v1.transaction session", err)
		return
	}
	tx, err := s.Wallet().Transaction(r.Context(), id)
	if err != nil {
		fail(w, h.log, "v1.transaction", err)
		return
	}
	if own := s.Wallet().Account().ID; own != "" && tx.UserID != own {
		httperr.Errs(w, errs.NewKind(errs.Warn, errs.NotFound, "transaction not found"))
		return
	}
	writeJSON(w, http.StatusOK, dto.NewTransactionResult(tx))
}

// Settle POST /v1/ledger/settle：以原去重鍵重送未入帳的派彩。
//
// 部分失敗時仍回 200 並列出剩餘項目；全部失敗時回錯誤狀態。
func (h *WalletHandler) Settle(w http.ResponseWriter, r *http.Request) {
	s, err := session(h.rt, r)
	if err != nil {
		fail(w, h.log, "v1.settle session", err)
		return
	}
	n, err := s.Wallet().SettlePending(r.Context())
	if err != nil && n == 0 {
		fail(w, h.log, "v1.settle", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SettleResult{
		Settled:   n,
		Remaining: s.Wallet().Unsettled(),
		Balance:   s.Wallet().CurrentBalance(),
	})
}

// Logout POST /v1/logout：丟棄 Session；進行中的回合不退押注。
func (h *WalletHandler) Logout(w http.ResponseWriter, r *http.Request) {
	s, err := session(h.rt, r)
	if err != nil {
		fail(w, h.log, "v1.logout session", err)
		return
	}
	h.rt.Logout(s.Identity())
	w.WriteHeader(http.StatusNoContent)
}

// Stream GET /v1/balance/stream：websocket，先送目前餘額，之後每次變動推一筆 ledger.BalanceEvent。
func (h *WalletHandler) Stream(w http.ResponseWriter, r *http.Request) {
	s, err := session(h.rt, r)
	if err != nil {
		fail(w, h.log, "v1.stream session", err)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已寫回 HTTP 錯誤
		h.log.Warn("v1.stream upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	events, cancel := s.Wallet().Subscribe()
	defer cancel()

	// 讀取端只處理 pong / close；讀錯代表對方離線
	gone := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	bal := s.Wallet().CurrentBalance()
	if err := h.send(conn, ledger.BalanceEvent{Balance: bal, Previous: bal, At: h.now()}); err != nil {
		return
	}
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := h.send(conn, ev); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *WalletHandler) send(conn *websocket.Conn, ev ledger.BalanceEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ev); err != nil {
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			h.log.Debug("v1.stream write failed", slog.Any("err", err))
		}
		return err
	}
	return nil
}
