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
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/zintix-labs/minelab/auth"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/ledger"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreCreateIdempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	a, err := s.EnsureUser(ctx, "Alice@Example.com", 1000)
	if err != nil {
		t.Fatal(err)
	}
	again, err := s.EnsureUser(ctx, "alice@example.com", 99999)
	if err != nil || again.ID != a.ID || again.Balance != 1000 {
		t.Fatalf("sync must not reopen the account: %+v %v", again, err)
	}

	t1, replay, err := s.Create(ctx, a.ID, ledger.BetPlaced, 300, "k1", "")
	if err != nil || replay {
		t.Fatalf("create: %v replay=%v", err, replay)
	}
	t2, replay, err := s.Create(ctx, a.ID, ledger.BetPlaced, 300, "k1", "")
	if err != nil || !replay || t2.ID != t1.ID {
		t.Fatalf("replayed key must return the original: %+v replay=%v err=%v", t2, replay, err)
	}
	u, _ := s.UserByEmail(ctx, "alice@example.com")
	if u.Balance != 700 {
		t.Fatalf("balance got %d want 700", u.Balance)
	}

	if _, _, err := s.Create(ctx, a.ID, ledger.BetPlaced, 701, "k2", ""); !errs.IsKind(err, errs.InsufficientFunds) {
		t.Fatalf("overdraft must be InsufficientFunds, got %v", err)
	}
	if _, _, err := s.Create(ctx, a.ID, ledger.BetWin, 0, "k3", ""); err == nil {
		t.Fatalf("zero amount must fail")
	}
	if _, _, err := s.Create(ctx, "nobody", ledger.BetWin, 5, "k4", ""); !errs.IsKind(err, errs.NotFound) {
		t.Fatalf("unknown user must be NotFound, got %v", err)
	}

	txs, err := s.TransactionsByUser(ctx, a.ID)
	if err != nil || len(txs) != 1 || txs[0].Status != statusCompleted {
		t.Fatalf("unexpected transactions: %+v %v", txs, err)
	}
	if _, err := s.TransactionByID(ctx, 42); !errs.IsKind(err, errs.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestClientAgainstServer(t *testing.T) {
	secret := []byte("dev")
	s := newStore(t)
	h := NewHandler(s, Options{Verifier: auth.NewVerifier(secret), InitialBalance: 5000})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	tok, err := auth.Issue(secret, "bob@example.com", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	c, err := ledger.New(ledger.Config{BaseURL: srv.URL, Identity: "bob@example.com"}, auth.Static(tok), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := c.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if c.CurrentBalance() != 50 {
		t.Fatalf("opening balance got %v", c.CurrentBalance())
	}
	if !c.PlaceBet(ctx, 10) || c.CurrentBalance() != 40 {
		t.Fatalf("bet failed, balance %v", c.CurrentBalance())
	}
	if !c.RecordWin(ctx, 10.98) || c.CurrentBalance() != 50.98 {
		t.Fatalf("win failed, balance %v", c.CurrentBalance())
	}
	txs, err := c.Transactions(ctx)
	if err != nil || len(txs) != 2 {
		t.Fatalf("transactions: %v %v", txs, err)
	}
	if txs[0].CreatedAt.IsZero() {
		t.Fatalf("createdAt not decoded")
	}
	tx, err := c.Transaction(ctx, txs[0].ID)
	if err != nil || tx.ID != txs[0].ID {
		t.Fatalf("lookup: %v", err)
	}
}

func TestServerRejects(t *testing.T) {
	s := newStore(t)
	h := NewHandler(s, Options{Verifier: auth.NewVerifier([]byte("dev")), InitialBalance: 100})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/users")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token must be 401, got %d", resp.StatusCode)
	}

	tok, _ := auth.Issue([]byte("dev"), "carol@example.com", time.Hour)
	a, _ := s.EnsureUser(context.Background(), "carol@example.com", 100)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/transactions/create/"+a.ID+"?type=BET_PLACED&amount=500", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("overdraft must be 409, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/transactions/create/"+a.ID+"?type=REFUND&amount=5", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown type must be 400, got %d", resp.StatusCode)
	}
}
