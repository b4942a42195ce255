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

package minelab

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zintix-labs/minelab/auth"
	"github.com/zintix-labs/minelab/demo/demo_configs"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/ledger"
	"github.com/zintix-labs/minelab/ledger/ledgersvr"
	"github.com/zintix-labs/minelab/mines"
	"github.com/zintix-labs/minelab/rps"
	"github.com/zintix-labs/minelab/sdk/core"
)

func newDemoLab(t *testing.T) *Minelab {
	t.Helper()
	lab, err := NewAuto(core.Default(), Configs(demo_configs.FS))
	if err != nil {
		t.Fatalf("new auto: %v", err)
	}
	return lab
}

func TestNewAutoDemo(t *testing.T) {
	lab := newDemoLab(t)
	if got := len(lab.IDs()); got != 2 {
		t.Fatalf("ids got %d want 2", got)
	}
	ent, ok := lab.EntryByName("classic")
	if !ok || ent.GID != 2 {
		t.Fatalf("classic entry: %+v %v", ent, ok)
	}
	sum, err := lab.Summary()
	if err != nil || len(sum) != 2 {
		t.Fatalf("summary: %v %v", sum, err)
	}
	steps, hz, err := lab.Odds(1, "", 0)
	if err != nil || hz != 3 || len(steps) != 29 {
		t.Fatalf("default odds: hazards=%d steps=%d err=%v", hz, len(steps), err)
	}
	if _, _, err := lab.Odds(1, "nightmare", 0); !errs.IsKind(err, errs.InvalidConfig) {
		t.Fatalf("unknown level must be InvalidConfig, got %v", err)
	}
	if _, err := lab.Table(99); err == nil {
		t.Fatalf("unknown game must fail")
	}
}

func TestSimRTP(t *testing.T) {
	lab := newDemoLab(t)
	s, err := lab.NewSimulatorWithSeed(1, 7)
	if err != nil {
		t.Fatal(err)
	}
	rep, _, err := s.Sim(Strategy{Hazards: 3, Picks: 1}, 200_000, false)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Summary.Rounds != 200_000 {
		t.Fatalf("rounds got %d", rep.Summary.Rounds)
	}
	if math.Abs(rep.Summary.RTP-0.995) > 0.01 {
		t.Fatalf("rtp got %.4f want ~0.995", rep.Summary.RTP)
	}
	// 一格就兌現：爆雷率應接近 3/32
	if math.Abs(rep.Summary.BustRate-3.0/32) > 0.01 {
		t.Fatalf("bust rate got %.4f", rep.Summary.BustRate)
	}
}

func TestSimReproducible(t *testing.T) {
	lab := newDemoLab(t)
	st := Strategy{Hazards: 5, Picks: 2, MaxPicks: 6}
	a, _ := lab.NewSimulatorWithSeed(1, 99)
	b, _ := lab.NewSimulatorWithSeed(1, 99)
	ra, _, err := a.Sim(st, 5000, false)
	if err != nil {
		t.Fatal(err)
	}
	rb, _, _ := b.Sim(st, 5000, false)
	if ra.Summary.TotalWin != rb.Summary.TotalWin || ra.Summary.Busts != rb.Summary.Busts {
		t.Fatalf("same seed must reproduce: %v vs %v", ra.Summary.TotalWin, rb.Summary.TotalWin)
	}

	snap, err := a.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	first, _, _ := a.Sim(st, 3000, false)
	if err := a.Restore(snap); err != nil {
		t.Fatal(err)
	}
	again, _, _ := a.Sim(st, 3000, false)
	if first.Summary.TotalWin != again.Summary.TotalWin {
		t.Fatalf("restore must replay: %v vs %v", first.Summary.TotalWin, again.Summary.TotalWin)
	}
	if err := a.Restore([]byte("junk")); !errs.IsKind(err, errs.InvalidConfig) {
		t.Fatalf("bad snapshot must be InvalidConfig, got %v", err)
	}
}

func TestSimMPAndPlayers(t *testing.T) {
	lab := newDemoLab(t)
	s, _ := lab.NewSimulatorWithSeed(2, 3)
	st := Strategy{Hazards: 3, Picks: 3}
	rep, _, err := s.SimMP(st, 10_000, 4, false)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Summary.Rounds != 40_000 {
		t.Fatalf("mp rounds got %d want 40000", rep.Summary.Rounds)
	}

	total, est, _, err := s.SimPlayers(st, 2, 50, 100, 200, false)
	if err != nil {
		t.Fatal(err)
	}
	if est == nil || total.Summary.Rounds == 0 || total.Summary.Rounds > 50*200 {
		t.Fatalf("players report: rounds=%d est=%v", total.Summary.Rounds, est)
	}
	if _, _, _, err := s.SimPlayers(st, 2, 0, 100, 200, false); err == nil {
		t.Fatalf("zero players must fail")
	}
}

func TestStrategyRejects(t *testing.T) {
	lab := newDemoLab(t)
	s, _ := lab.NewSimulatorWithSeed(1, 1)
	for _, st := range []Strategy{
		{Hazards: 0, Picks: 1},
		{Hazards: 32, Picks: 1},
		{Hazards: 3, Picks: 30},
		{Hazards: 3, Picks: 4, MaxPicks: 2},
	} {
		if _, _, err := s.Sim(st, 10, false); err == nil {
			t.Fatalf("strategy %+v must be rejected", st)
		}
	}
	if _, _, err := s.Sim(Strategy{Hazards: 3, Picks: 1}, 0, false); err == nil {
		t.Fatalf("zero rounds must be rejected")
	}
}

func TestDevSimulatorReplay(t *testing.T) {
	lab := newDemoLab(t)
	d, err := lab.NewDevSimulator(1, 42)
	if err != nil {
		t.Fatal(err)
	}
	st := Strategy{Hazards: 5, Picks: 4}
	rep, err := d.Rounds(st, 200)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Results) != 200 {
		t.Fatalf("results got %d", len(rep.Results))
	}
	for _, r := range rep.Results {
		if len(r.Hazards) != 5 {
			t.Fatalf("round must carry 5 hazards, got %v", r.Hazards)
		}
	}
	again, err := d.RestoreRounds(rep.Before, st, 200)
	if err != nil {
		t.Fatal(err)
	}
	if again.TotalWin != rep.TotalWin || again.After != rep.After {
		t.Fatalf("replay diverged: %v/%v", again.TotalWin, rep.TotalWin)
	}
	if _, err := d.Rounds(st, 5001); err == nil {
		t.Fatalf("round cap must be enforced")
	}
}

func TestAuditMatchesCommitment(t *testing.T) {
	lab := newDemoLab(t)
	rep, err := lab.Audit(1, 42, 3, []int{0, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Commitment != mines.Commitment(42) || len(rep.Hazards) != 3 {
		t.Fatalf("audit: %+v", rep)
	}
	ts, _ := lab.Table(1)
	if err := mines.Verify(core.Default(), 42, rep.Commitment, ts.Rows, ts.Columns, 3, rep.Hazards); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(rep.Steps) == 0 {
		t.Fatalf("at least the first pick must be replayed")
	}
}

// ledgerFixture 起一個 sqlite 開發帳本，回傳 base url 與可用的 token。
func ledgerFixture(t *testing.T, email string) (string, string) {
	t.Helper()
	secret := []byte("test-secret")
	store, err := ledgersvr.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	h := ledgersvr.NewHandler(store, ledgersvr.Options{Verifier: auth.NewVerifier(secret), InitialBalance: 5000})
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	tok, err := auth.Issue(secret, email, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return srv.URL, tok
}

func TestRuntimeSessionRound(t *testing.T) {
	lab := newDemoLab(t)
	url, tok := ledgerFixture(t, "ann@example.com")
	rt, err := lab.BuildRuntime(RuntimeOptions{Ledger: ledger.Config{BaseURL: url}})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()
	ctx := context.Background()

	s, err := rt.Session(ctx, auth.Principal{Identity: "Ann@Example.com", Token: tok})
	if err != nil {
		t.Fatal(err)
	}
	same, _ := rt.Session(ctx, auth.Principal{Identity: "ann@example.com", Token: tok})
	if same != s {
		t.Fatalf("one identity must map to one session")
	}
	if v := s.View(); v.State != mines.Idle.String() {
		t.Fatalf("fresh session state %q", v.State)
	}

	v, err := s.Start(ctx, 1, "", 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if v.State != mines.Running.String() || v.Hazards != 3 || v.Seed != nil || v.Commitment == "" {
		t.Fatalf("start view: %+v", v)
	}
	if got := s.Wallet().CurrentBalance(); got != 45 {
		t.Fatalf("balance after bet got %v want 45", got)
	}
	if _, err := s.Start(ctx, 1, "", 0, 5); !errs.IsKind(err, errs.InvalidState) {
		t.Fatalf("second start must be InvalidState, got %v", err)
	}
	if _, err := s.Start(ctx, 2, "", 0, 5); !errs.IsKind(err, errs.InvalidState) {
		t.Fatalf("switching games mid-round must be InvalidState, got %v", err)
	}

	out, err := s.Reveal(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := 45.0
	if !out.Hazard {
		co, err := s.CashOut(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if co.StateName != mines.CashedOut.String() || !co.Settled {
			t.Fatalf("cashout: %+v", co)
		}
		want = ledger.FromCents(4500 + ledger.ToCents(co.Payout))
	}
	if got := s.Wallet().CurrentBalance(); got != want {
		t.Fatalf("balance got %v want %v", got, want)
	}
	if v := s.View(); v.Seed == nil || mines.Commitment(*v.Seed) != v.Commitment {
		t.Fatalf("terminal view must reveal a seed matching the commitment: %+v", v)
	}
	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Start(ctx, 2, "one", 0, 1000); !errs.IsKind(err, errs.InvalidConfig) {
		t.Fatalf("wager above table max must be InvalidConfig, got %v", err)
	}

	m := rt.Metrics(true)
	if m.Sessions != 1 || m.Created != 1 || len(m.Detail) != 1 {
		t.Fatalf("metrics: %+v", m)
	}
	if !rt.Logout("ann@example.com") {
		t.Fatalf("logout must find the session")
	}
	if _, ok := rt.Lookup("ann@example.com"); ok {
		t.Fatalf("session must be gone after logout")
	}
}

func TestRuntimeForeignTokenKeepsSession(t *testing.T) {
	lab := newDemoLab(t)
	url, tok := ledgerFixture(t, "ann@example.com")
	rt, err := lab.BuildRuntime(RuntimeOptions{Ledger: ledger.Config{BaseURL: url}})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()
	ctx := context.Background()

	s, err := rt.Session(ctx, auth.Principal{Identity: "ann@example.com", Token: tok})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Start(ctx, 1, "", 0, 5); err != nil {
		t.Fatal(err)
	}

	// 未驗章的 token 簽錯金鑰：帳本拒絕，Session 不可被接手
	forged, _ := auth.Issue([]byte("other-key"), "ann@example.com", 0)
	if _, err := rt.Session(ctx, auth.Principal{Identity: "ann@example.com", Token: forged}); !errs.IsKind(err, errs.Unauthenticated) {
		t.Fatalf("foreign token must be Unauthenticated, got %v", err)
	}
	if cur, _ := s.bearer.Token(); cur != tok {
		t.Fatalf("session token must not be replaced by a rejected one")
	}
	if v := s.View(); v.State != mines.Running.String() {
		t.Fatalf("round must stay running, got %q", v.State)
	}

	// 同一把金鑰換發的新 token 可以沿用
	renewed, _ := auth.Issue([]byte("test-secret"), "ann@example.com", 2*time.Hour)
	got, err := rt.Session(ctx, auth.Principal{Identity: "ann@example.com", Token: renewed})
	if err != nil || got != s {
		t.Fatalf("renewed token must reuse the session: %v", err)
	}
	if cur, _ := s.bearer.Token(); cur != renewed {
		t.Fatalf("renewed token not adopted")
	}
}

func TestSessionStartReservesBeforeDebit(t *testing.T) {
	lab := newDemoLab(t)
	secret := []byte("test-secret")
	store, err := ledgersvr.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	h := ledgersvr.NewHandler(store, ledgersvr.Options{Verifier: auth.NewVerifier(secret), InitialBalance: 5000}).Routes()

	entered := make(chan struct{}, 1)
	gate := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/transactions/create/") {
			entered <- struct{}{}
			<-gate
		}
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	tok, _ := auth.Issue(secret, "dan@example.com", time.Hour)
	rt, err := lab.BuildRuntime(RuntimeOptions{Ledger: ledger.Config{BaseURL: srv.URL}})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()
	ctx := context.Background()
	s, err := rt.Session(ctx, auth.Principal{Identity: "dan@example.com", Token: tok})
	if err != nil {
		t.Fatal(err)
	}

	first := make(chan error, 1)
	go func() {
		_, err := s.Start(ctx, 1, "", 0, 5)
		first <- err
	}()
	<-entered

	// 第一局還在等扣款：另一張桌台不能再開
	if _, err := s.Start(ctx, 2, "", 0, 5); !errs.IsKind(err, errs.InvalidState) {
		t.Fatalf("start on another game while debiting must be InvalidState, got %v", err)
	}
	if !s.Busy() {
		t.Fatalf("session must be busy while the first start is pending")
	}
	close(gate)
	if err := <-first; err != nil {
		t.Fatal(err)
	}
	if gid, _ := s.CurrentGame(); gid != 1 {
		t.Fatalf("current game got %d want 1", gid)
	}
	if got := s.Wallet().CurrentBalance(); got != 45 {
		t.Fatalf("exactly one bet must be debited, balance %v", got)
	}
}

func TestSessionArcadeExclusive(t *testing.T) {
	lab := newDemoLab(t)
	url, tok := ledgerFixture(t, "eve@example.com")
	rt, err := lab.BuildRuntime(RuntimeOptions{Ledger: ledger.Config{BaseURL: url}, Rigged: -1, ArcadeMaxWager: 10})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()
	if rt.Options().Rigged != 0 {
		t.Fatalf("negative rigged must normalize to fair, got %v", rt.Options().Rigged)
	}
	ctx := context.Background()
	s, err := rt.Session(ctx, auth.Principal{Identity: "eve@example.com", Token: tok})
	if err != nil {
		t.Fatal(err)
	}

	play, err := s.PlayRPS(ctx, rps.Rock, 1)
	if err != nil || !play.Settled || play.Player != "rock" {
		t.Fatalf("rps play: %+v %v", play, err)
	}
	spin, err := s.Spin(ctx, 1)
	if err != nil || !spin.Settled || len(spin.Screen) != 5 {
		t.Fatalf("spin: %+v %v", spin, err)
	}
	if _, err := s.Spin(ctx, 11); !errs.IsKind(err, errs.InvalidConfig) {
		t.Fatalf("wager above arcade cap must be InvalidConfig, got %v", err)
	}
	want := 50 - 2 + play.Payout + spin.Payout
	if got := s.Wallet().CurrentBalance(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("balance after quick games got %v want %v", got, want)
	}

	// 21 點進行中：其他遊戲都不能開
	v, err := s.DealBlackjack(ctx, 5)
	if err != nil || v.State != "playing" || len(v.Dealer) != 1 {
		t.Fatalf("deal: %+v %v", v, err)
	}
	if _, err := s.Start(ctx, 1, "", 0, 5); !errs.IsKind(err, errs.InvalidState) {
		t.Fatalf("mines start during blackjack must be InvalidState, got %v", err)
	}
	if _, err := s.PlayRPS(ctx, rps.Paper, 1); !errs.IsKind(err, errs.InvalidState) {
		t.Fatalf("rps during blackjack must be InvalidState, got %v", err)
	}
	if _, err := s.DealBlackjack(ctx, 5); !errs.IsKind(err, errs.InvalidState) {
		t.Fatalf("second deal must be InvalidState, got %v", err)
	}
	if !s.Busy() || s.Metrics().Hand != "playing" {
		t.Fatalf("session must report the open hand: busy=%v %+v", s.Busy(), s.Metrics())
	}
	if v, err = s.Stand(ctx); err != nil || !v.Settled || v.Seed == nil {
		t.Fatalf("stand: %+v %v", v, err)
	}
	if err := s.ResetBlackjack(); err != nil {
		t.Fatal(err)
	}

	// 踩地雷進行中：小遊戲也不能開
	if _, err := s.Start(ctx, 1, "", 0, 5); err != nil {
		t.Fatal(err)
	}
	if _, err := s.DealBlackjack(ctx, 5); !errs.IsKind(err, errs.InvalidState) {
		t.Fatalf("deal during mines must be InvalidState, got %v", err)
	}
	if _, err := s.Spin(ctx, 1); !errs.IsKind(err, errs.InvalidState) {
		t.Fatalf("spin during mines must be InvalidState, got %v", err)
	}
	if got := s.BlackjackView().State; got != "idle" {
		t.Fatalf("rejected deal must leave the hand idle, got %q", got)
	}
}

func TestRuntimeSweepAndClose(t *testing.T) {
	lab := newDemoLab(t)
	url, tok := ledgerFixture(t, "bea@example.com")
	rt, err := lab.BuildRuntime(RuntimeOptions{Ledger: ledger.Config{BaseURL: url}, IdleTTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := rt.Session(ctx, auth.Principal{Identity: "bea@example.com", Token: tok}); err != nil {
		t.Fatal(err)
	}
	if n := rt.Sweep(time.Now()); n != 0 {
		t.Fatalf("fresh session must survive, swept %d", n)
	}
	if n := rt.Sweep(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("idle session must be swept, got %d", n)
	}

	rt.Close()
	rt.Close()
	if !rt.Closed() || rt.ClosedReason() != "closed" {
		t.Fatalf("close state: %v %q", rt.Closed(), rt.ClosedReason())
	}
	if _, err := rt.Session(ctx, auth.Principal{Identity: "bea@example.com", Token: tok}); err == nil {
		t.Fatalf("closed runtime must refuse sessions")
	}
}

func TestRuntimeLedgerDown(t *testing.T) {
	lab := newDemoLab(t)
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()
	rt, err := lab.BuildRuntime(RuntimeOptions{Ledger: ledger.Config{BaseURL: url, Timeout: time.Second}})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()
	_, err = rt.Session(context.Background(), auth.Principal{Identity: "cid@example.com", Token: "x"})
	if !errs.IsKind(err, errs.NetworkFailure) {
		t.Fatalf("unreachable ledger must be NetworkFailure, got %v", err)
	}
	if m := rt.Metrics(false); m.Sessions != 0 {
		t.Fatalf("failed sync must not keep a session")
	}

	if _, err := lab.BuildRuntime(RuntimeOptions{}); !errs.IsKind(err, errs.InvalidConfig) {
		t.Fatalf("missing ledger url must be InvalidConfig, got %v", err)
	}
}
