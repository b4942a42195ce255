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

package ledgersvr

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/zintix-labs/minelab/auth"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/ledger"
	"github.com/zintix-labs/minelab/server/httperr"
)

// Options 帳本服務設定。
type Options struct {
	Verifier       *auth.Verifier // nil 時只要求帶 bearer token，不解析
	InitialBalance int64          // /users/sync 開戶時的初始餘額（分）
	Log            *slog.Logger
}

// Handler 帳本 HTTP 介面。
type Handler struct {
	store *Store
	opt   Options
}

func NewHandler(store *Store, opt Options) *Handler {
	if opt.Log == nil {
		opt.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{store: store, opt: opt}
}

// Routes 掛上所有路由：
//
//	GET  /users                       全部帳戶
//	GET  /users/{email}               依 email 查帳戶
//	POST /users/sync                  {email} 開戶（已存在則不變）
//	POST /users/{email}/deposit       ?amount=<cents> 入金
//	GET  /transactions                全部交易
//	GET  /transactions/user/{userId}  使用者交易
//	GET  /transactions/{id}           單筆交易
//	POST /transactions/create/{userId}?type=&amount=<cents>
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimid.RequestID)
	r.Use(chimid.Recoverer)
	r.Use(h.requireBearer)

	r.Get("/users", h.listUsers)
	r.Get("/users/{email}", h.getUser)
	r.Post("/users/sync", h.syncUser)
	r.Post("/users/{email}/deposit", h.deposit)
	r.Get("/transactions", h.listTransactions)
	r.Get("/transactions/user/{userId}", h.userTransactions)
	r.Get("/transactions/{id}", h.getTransaction)
	r.Post("/transactions/create/{userId}", h.createTransaction)
	return r
}

func (h *Handler) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := auth.BearerToken(r)
		if !ok {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if h.opt.Verifier != nil {
			if _, err := h.opt.Verifier.Parse(tok); err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.Users(r.Context())
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.UserByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) syncUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err != nil {
		httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
		return
	}
	a, err := h.store.EnsureUser(r.Context(), body.Email, h.opt.InitialBalance)
	if err != nil {
		h.fail(w, "sync user", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		httperr.Errs(w, errs.NewKind(errs.Warn, errs.InvalidConfig, "amount must be an integer number of cents"))
		return
	}
	a, err := h.store.UserByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		h.fail(w, "deposit", err)
		return
	}
	t, _, err := h.store.Create(r.Context(), a.ID, ledger.Deposit, amount, r.Header.Get(ledger.IdempotencyHeader), "deposit")
	if err != nil {
		h.fail(w, "deposit", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.store.AllTransactions(r.Context())
	if err != nil {
		h.fail(w, "list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *Handler) userTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.store.TransactionsByUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.fail(w, "user transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httperr.Errs(w, errs.NewKind(errs.Warn, errs.NotFound, "invalid transaction id"))
		return
	}
	t, err := h.store.TransactionByID(r.Context(), id)
	if err != nil {
		h.fail(w, "get transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// createTransaction 回應為純文字，呼叫端只看 status。
func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typ, ok := ledger.ParseTxType(q.Get("type"))
	if !ok {
		httperr.Errs(w, errs.NewKind(errs.Warn, errs.InvalidConfig, "unknown transaction type: "+q.Get("type")))
		return
	}
	amount, err := strconv.ParseInt(q.Get("amount"), 10, 64)
	if err != nil {
		httperr.Errs(w, errs.NewKind(errs.Warn, errs.InvalidConfig, "amount must be an integer number of cents"))
		return
	}
	key := strings.TrimSpace(r.Header.Get(ledger.IdempotencyHeader))
	t, replay, err := h.store.Create(r.Context(), chi.URLParam(r, "userId"), typ, amount, key, "")
	if err != nil {
		h.fail(w, "create transaction", err)
		return
	}
	h.opt.Log.Info("ledger.transaction",
		slog.Int64("id", t.ID),
		slog.String("user", t.UserID),
		slog.String("type", string(t.Type)),
		slog.Int64("amount", t.Amount),
		slog.Bool("replay", replay),
	)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if replay {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusCreated)
	}
	_, _ = io.WriteString(w, "Transaction created: "+strconv.FormatInt(t.ID, 10))
}

// fail 餘額不足回 409，其餘依 httperr 映射。
func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if errs.IsKind(err, errs.InsufficientFunds) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	httperr.Log(h.opt.Log, "ledgersvr: "+msg, err)
	httperr.Errs(w, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
