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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zintix-labs/minelab/auth"
	"github.com/zintix-labs/minelab/errs"
)

// fakeRemote 最小的遠端帳本：一個帳戶、交易寫入與去重。
type fakeRemote struct {
	mu       sync.Mutex
	balance  int64
	txs      []Transaction
	seenKeys map[string]bool
	failPost bool
	calls    int
	posts    int
	tokens   []string
}

func newFakeRemote(balance int64) *fakeRemote {
	return &fakeRemote{balance: balance, seenKeys: map[string]bool{}}
}

func (f *fakeRemote) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/{email}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls++
		f.tokens = append(f.tokens, r.Header.Get("Authorization"))
		if r.PathValue("email") != "alice@example.com" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(Account{ID: "u-1", Email: "alice@example.com", Balance: f.balance})
	})
	mux.HandleFunc("POST /transactions/create/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls++
		f.posts++
		if f.failPost {
			http.Error(w, "boom", http.StatusServiceUnavailable)
			return
		}
		key := r.Header.Get(IdempotencyHeader)
		if key == "" {
			http.Error(w, "missing key", http.StatusBadRequest)
			return
		}
		if f.seenKeys[key] {
			w.WriteHeader(http.StatusOK)
			return
		}
		amt, _ := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
		typ := TxType(r.URL.Query().Get("type"))
		if typ.Credit() {
			f.balance += amt
		} else {
			if amt > f.balance {
				http.Error(w, "insufficient", http.StatusConflict)
				return
			}
			f.balance -= amt
		}
		f.seenKeys[key] = true
		f.txs = append(f.txs, Transaction{ID: int64(len(f.txs) + 1), UserID: r.PathValue("id"), Amount: amt, Type: typ, Status: "COMPLETED", CreatedAt: time.Now().UTC()})
		_, _ = w.Write([]byte("Transaction created"))
	})
	mux.HandleFunc("GET /transactions/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(f.txs)
	})
	mux.HandleFunc("GET /transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		for _, t := range f.txs {
			if t.ID == id {
				_ = json.NewEncoder(w).Encode(t)
				return
			}
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("POST /users/sync", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	return mux
}

func (f *fakeRemote) setFail(b bool) {
	f.mu.Lock()
	f.failPost = b
	f.mu.Unlock()
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestClient(t *testing.T, f *fakeRemote, sess auth.Session) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, Identity: "alice@example.com", Timeout: time.Second}, sess, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestReloadReadsCents(t *testing.T) {
	f := newFakeRemote(3050)
	c := newTestClient(t, f, auth.Static("tok"))
	if err := c.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.CurrentBalance() != 30.5 {
		t.Fatalf("balance got %v want 30.5", c.CurrentBalance())
	}
	f.mu.Lock()
	tok := f.tokens[0]
	f.mu.Unlock()
	if tok != "Bearer tok" {
		t.Fatalf("bearer token not forwarded: %q", tok)
	}
	if c.Account().ID != "u-1" {
		t.Fatalf("account id not cached")
	}
}

func TestPlaceBetRefusesWithoutNetwork(t *testing.T) {
	f := newFakeRemote(3000)
	c := newTestClient(t, f, auth.Static("tok"))
	ctx := context.Background()
	if err := c.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	before := f.callCount()
	if c.PlaceBet(ctx, 50) {
		t.Fatalf("bet above balance must fail")
	}
	if c.PlaceBet(ctx, 0) || c.PlaceBet(ctx, -1) {
		t.Fatalf("non-positive bet must fail")
	}
	if f.callCount() != before {
		t.Fatalf("refused bets must not touch the network")
	}
	if c.CurrentBalance() != 30 {
		t.Fatalf("balance changed: %v", c.CurrentBalance())
	}
}

func TestPlaceBetAndWinRefreshFromRemote(t *testing.T) {
	f := newFakeRemote(10000)
	c := newTestClient(t, f, auth.Static("tok"))
	ctx := context.Background()
	if err := c.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	events, cancel := c.Subscribe()
	defer cancel()

	if !c.PlaceBet(ctx, 10) {
		t.Fatalf("bet must succeed")
	}
	if c.CurrentBalance() != 90 {
		t.Fatalf("balance got %v want 90", c.CurrentBalance())
	}
	ev := <-events
	if ev.Reason != BetPlaced || ev.Previous != 100 || ev.Balance != 90 {
		t.Fatalf("unexpected event: %+v", ev)
	}

	if !c.RecordWin(ctx, 10.979310344827586) {
		t.Fatalf("win must succeed")
	}
	if c.CurrentBalance() != 100.98 {
		t.Fatalf("balance got %v want 100.98", c.CurrentBalance())
	}
	f.mu.Lock()
	credit := f.txs[1]
	f.mu.Unlock()
	if credit.Amount != 1098 || credit.Type != BetWin {
		t.Fatalf("unexpected credit: %+v", credit)
	}
}

func TestPlaceBetRemoteFailure(t *testing.T) {
	f := newFakeRemote(10000)
	c := newTestClient(t, f, auth.Static("tok"))
	ctx := context.Background()
	if err := c.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	f.setFail(true)
	if c.PlaceBet(ctx, 10) {
		t.Fatalf("bet must fail when remote fails")
	}
	if c.CurrentBalance() != 100 {
		t.Fatalf("cached balance must stay unchanged")
	}
}

func TestRecordWinFailureIsKeptAndSettled(t *testing.T) {
	f := newFakeRemote(10000)
	c := newTestClient(t, f, auth.Static("tok"))
	ctx := context.Background()
	if err := c.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	f.setFail(true)
	if c.RecordWin(ctx, 25) {
		t.Fatalf("win must fail")
	}
	pend := c.Unsettled()
	if len(pend) != 1 || pend[0].Cents != 2500 || pend[0].Key == "" || pend[0].Attempts != 1 {
		t.Fatalf("unexpected pending: %+v", pend)
	}

	n, err := c.SettlePending(ctx)
	if n != 0 || !errs.IsKind(err, errs.NetworkFailure) {
		t.Fatalf("settle while remote down: n=%d err=%v", n, err)
	}
	if p := c.Unsettled(); len(p) != 1 || p[0].Attempts != 2 {
		t.Fatalf("failed settle must keep the credit: %+v", p)
	}

	f.setFail(false)
	n, err = c.SettlePending(ctx)
	if err != nil || n != 1 {
		t.Fatalf("settle: n=%d err=%v", n, err)
	}
	if len(c.Unsettled()) != 0 || c.CurrentBalance() != 125 {
		t.Fatalf("settle must clear pending and refresh balance, got %v", c.CurrentBalance())
	}

	// 遠端已套用過同一把 key 時不會重複入帳
	f.mu.Lock()
	f.seenKeys[pend[0].Key] = true
	f.mu.Unlock()
	c.mu.Lock()
	c.pending = append(c.pending, pend[0])
	c.mu.Unlock()
	if _, err := c.SettlePending(ctx); err != nil {
		t.Fatal(err)
	}
	if c.CurrentBalance() != 125 {
		t.Fatalf("resent key must not double-credit, got %v", c.CurrentBalance())
	}
}

func TestInactiveSession(t *testing.T) {
	f := newFakeRemote(10000)
	c := newTestClient(t, f, auth.Static(""))
	err := c.Reload(context.Background())
	if !errs.IsKind(err, errs.Unauthenticated) {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
	if f.callCount() != 0 {
		t.Fatalf("inactive session must not reach the remote")
	}
	if c.RecordWin(context.Background(), 5) {
		t.Fatalf("win without session must fail")
	}
}

func TestTransactionsAndLookup(t *testing.T) {
	f := newFakeRemote(10000)
	c := newTestClient(t, f, auth.Static("tok"))
	ctx := context.Background()
	if err := c.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	c.PlaceBet(ctx, 5)
	c.RecordWin(ctx, 7.5)
	txs, err := c.Transactions(ctx)
	if err != nil || len(txs) != 2 {
		t.Fatalf("transactions: %v %v", txs, err)
	}
	if NetTotal(txs) != 250 {
		t.Fatalf("net total got %d", NetTotal(txs))
	}
	tx, err := c.Transaction(ctx, 2)
	if err != nil || tx.Type != BetWin {
		t.Fatalf("lookup: %+v %v", tx, err)
	}
	if _, err := c.Transaction(ctx, 99); !errs.IsKind(err, errs.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestSubscribeCancel(t *testing.T) {
	f := newFakeRemote(100)
	c := newTestClient(t, f, auth.Static("tok"))
	ch, cancel := c.Subscribe()
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("channel must be closed after cancel")
	}
	// 取消後不會再送到已關閉的 channel
	if err := c.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{BaseURL: "::", Identity: "a"}, auth.Static("t"), nil); err == nil {
		t.Fatalf("bad url must fail")
	}
	if _, err := New(Config{BaseURL: "http://x", Identity: " "}, auth.Static("t"), nil); err == nil {
		t.Fatalf("empty identity must fail")
	}
	if _, err := New(Config{BaseURL: "http://x", Identity: "a"}, nil, nil); err == nil {
		t.Fatalf("nil session must fail")
	}
}

func TestMoneyHelpers(t *testing.T) {
	cases := map[float64]int64{10.98: 1098, 0.1 + 0.2: 30, 10.979: 1098, 1.005: 101, 0: 0}
	for in, want := range cases {
		if got := ToCents(in); got != want {
			t.Fatalf("ToCents(%v) got %d want %d", in, got, want)
		}
	}
	if FromCents(3050) != 30.5 || FromCents(-1) != -0.01 {
		t.Fatalf("FromCents mismatch")
	}
}

func TestRecentAndTxJSON(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	raw := `[
	{"id":1,"userId":"u","amount":100,"type":"deposit","status":"OK","createdAt":"2025-03-01T00:00:00"},
	{"id":2,"userId":"u","amount":50,"type":"BET_PLACED","status":"OK","createdAt":"2025-03-05T10:00:00Z"},
	{"id":3,"userId":"u","amount":80,"type":"BET_WIN","status":"OK","createdAt":"2025-03-09 08:30:00"}
	]`
	var txs []Transaction
	if err := json.Unmarshal([]byte(raw), &txs); err != nil {
		t.Fatal(err)
	}
	if NetTotal(txs) != 130 {
		t.Fatalf("net total got %d want 130", NetTotal(txs))
	}
	r := Recent(txs, 7, now)
	if len(r) != 2 || r[0].ID != 3 || r[1].ID != 2 {
		t.Fatalf("unexpected recent: %+v", r)
	}
	if len(Recent(txs, 0, now)) != 2 {
		t.Fatalf("days <= 0 must default to 7")
	}
	if err := json.Unmarshal([]byte(`{"createdAt":"yesterday"}`), &Transaction{}); err == nil {
		t.Fatalf("bad timestamp must fail")
	}
	if !strings.EqualFold(string(txs[0].Type), "deposit") {
		t.Fatalf("type must be preserved")
	}
}
