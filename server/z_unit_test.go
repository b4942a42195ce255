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

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zintix-labs/minelab/auth"
	"github.com/zintix-labs/minelab/demo"
	"github.com/zintix-labs/minelab/dto"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/ledger"
	"github.com/zintix-labs/minelab/ledger/ledgersvr"
	"github.com/zintix-labs/minelab/server/logger"
	"github.com/zintix-labs/minelab/server/netsvr"
	"github.com/zintix-labs/minelab/server/svrcfg"
)

var secret = []byte("test-secret")

type harness struct {
	t     *testing.T
	srv   *httptest.Server
	token string
}

func newHarness(t *testing.T, initialCents int64) *harness {
	t.Helper()
	store, err := ledgersvr.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	ls := httptest.NewServer(ledgersvr.NewHandler(store, ledgersvr.Options{
		Verifier:       auth.NewVerifier(secret),
		InitialBalance: initialCents,
	}).Routes())
	t.Cleanup(ls.Close)

	lab, err := demo.NewMinelab()
	if err != nil {
		t.Fatal(err)
	}
	sCfg := &svrcfg.SvrCfg{
		Log:     logger.NewDefaultLogger(logger.ModeSilence),
		Minelab: lab,
		Ledger:  svrcfg.LedgerCfg{BaseURL: ls.URL, Timeout: 5 * time.Second},
		Secret:  secret,
		Dev:     true,
	}
	svr := netsvr.NewChiServer(":0")
	rt, err := Build(sCfg, svr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(rt.Close)
	srv := httptest.NewServer(svr.Handler())
	t.Cleanup(srv.Close)

	tok, err := auth.Issue(secret, "player@example.com", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return &harness{t: t, srv: srv, token: tok}
}

func (h *harness) do(method, path string, body any, out any) int {
	h.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, h.srv.URL+path, rd)
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			h.t.Fatalf("%s %s decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestPublicRoutes(t *testing.T) {
	h := newHarness(t, 5000)
	h.token = ""

	var games []map[string]any
	if st := h.do(http.MethodGet, "/v1/games", nil, &games); st != http.StatusOK || len(games) != 2 {
		t.Fatalf("games: status %d, %d entries", st, len(games))
	}
	var odds dto.OddsResult
	if st := h.do(http.MethodGet, "/v1/odds?game_id=1&level=easy", nil, &odds); st != http.StatusOK {
		t.Fatalf("odds status %d", st)
	}
	if odds.Hazards != 3 || len(odds.Steps) != 29 {
		t.Fatalf("unexpected odds: hazards=%d steps=%d", odds.Hazards, len(odds.Steps))
	}
	if st := h.do(http.MethodGet, "/v1/odds?game_id=99", nil, nil); st != http.StatusNotFound {
		t.Fatalf("unknown game must be 404, got %d", st)
	}
	if st := h.do(http.MethodGet, "/v1/rounds", nil, nil); st != http.StatusUnauthorized {
		t.Fatalf("missing token must be 401, got %d", st)
	}
	h.token = "not-a-jwt"
	if st := h.do(http.MethodGet, "/v1/balance", nil, nil); st != http.StatusUnauthorized {
		t.Fatalf("bad token must be 401, got %d", st)
	}
	if st := h.do(http.MethodGet, "/healthz", nil, nil); st != http.StatusOK {
		t.Fatalf("healthz status %d", st)
	}
}

func TestSimRoutes(t *testing.T) {
	h := newHarness(t, 5000)
	h.token = ""

	var out struct {
		Seed  int64 `json:"seed"`
		Stats struct {
			Summary struct {
				Rounds  int     `json:"Rounds"`
				Hazards int     `json:"Hazards"`
				RTP     float64 `json:"RTP"`
			} `json:"Summary"`
		} `json:"stats"`
	}
	if st := h.do(http.MethodGet, "/v1/sim?game_id=2&hazards=3&picks=1&rounds=2000&seed=5", nil, &out); st != http.StatusOK {
		t.Fatalf("sim status %d", st)
	}
	if out.Seed != 5 || out.Stats.Summary.Rounds != 2000 || out.Stats.Summary.Hazards != 3 {
		t.Fatalf("unexpected sim summary: %+v", out)
	}
	if st := h.do(http.MethodGet, "/v1/sim?game_id=2&hazards=3&picks=1&weights=2,1&rounds=500", nil, nil); st != http.StatusOK {
		t.Fatalf("weighted sim status %d", st)
	}
	if st := h.do(http.MethodGet, "/v1/sim?game_id=2&hazards=3&picks=30&rounds=10", nil, nil); st != http.StatusBadRequest {
		t.Fatalf("picks beyond safe cells must be 400, got %d", st)
	}

	cfg := `game_name: classic
game_id: 2
rows: 5
columns: 5
rtp: 0.9
levels:
  - name: three
    hazards: 3
default_level: three
min_wager: 0.1
max_wager: 100
`
	body := map[string]any{"hazards": 3, "picks": 2, "rounds": 1000, "seed": 9, "cfg_yaml": cfg}
	if st := h.do(http.MethodPost, "/v1/simbycfg", body, &out); st != http.StatusOK || out.Stats.Summary.Rounds != 1000 {
		t.Fatalf("simbycfg yaml: status %d, %+v", st, out)
	}
	body["cfg"] = map[string]any{"game_name": "classic"}
	if st := h.do(http.MethodPost, "/v1/simbycfg", body, nil); st != http.StatusBadRequest {
		t.Fatalf("cfg and cfg_yaml together must be 400, got %d", st)
	}
}

func TestRoundLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t, 5000)

	var started dto.RoundResult
	st := h.do(http.MethodPost, "/v1/rounds", map[string]any{"game_id": 1, "level": "easy", "wager": 10}, &started)
	if st != http.StatusCreated {
		t.Fatalf("start status %d", st)
	}
	if started.View.State != "running" || started.View.Hazards != 3 || started.Balance != 40 {
		t.Fatalf("unexpected start: %+v", started)
	}
	if started.View.Seed != nil || started.View.Commitment == "" {
		t.Fatalf("seed must stay hidden until the round ends")
	}
	for _, c := range started.View.Cells {
		if c.Hazard {
			t.Fatalf("hazards must be masked while running")
		}
	}

	// 另一局不能在進行中開始
	if st := h.do(http.MethodPost, "/v1/rounds", map[string]any{"game_id": 1, "wager": 10}, nil); st != http.StatusConflict {
		t.Fatalf("second start must be 409, got %d", st)
	}
	if st := h.do(http.MethodPost, "/v1/rounds/reveal", map[string]any{}, nil); st != http.StatusConflict {
		t.Fatalf("missing position must be 409, got %d", st)
	}

	var rev dto.RoundResult
	if st := h.do(http.MethodPost, "/v1/rounds/reveal", map[string]any{"position": 0}, &rev); st != http.StatusOK {
		t.Fatalf("reveal status %d", st)
	}
	want := 40.0
	if rev.Outcome.Hazard {
		if rev.View.State != "lost" {
			t.Fatalf("hazard must lose, got %s", rev.View.State)
		}
	} else {
		var out dto.RoundResult
		if st := h.do(http.MethodPost, "/v1/rounds/cashout", nil, &out); st != http.StatusOK {
			t.Fatalf("cashout status %d", st)
		}
		if out.View.State != "cashed_out" || !out.Outcome.Settled {
			t.Fatalf("unexpected cashout: %+v", out)
		}
		want = ledger.FromCents(4000 + ledger.ToCents(out.Outcome.Payout))
	}
	var done dto.RoundResult
	if h.do(http.MethodGet, "/v1/rounds", nil, &done); done.View.Seed == nil {
		t.Fatalf("seed must be revealed after the round ends")
	}

	var bal dto.BalanceResult
	if st := h.do(http.MethodGet, "/v1/balance", nil, &bal); st != http.StatusOK {
		t.Fatalf("balance status %d", st)
	}
	if bal.Balance != want || bal.Identity != "player@example.com" {
		t.Fatalf("balance got %+v want %v", bal, want)
	}

	var hist dto.HistoryResult
	if st := h.do(http.MethodGet, "/v1/transactions?days=1", nil, &hist); st != http.StatusOK {
		t.Fatalf("transactions status %d", st)
	}
	if hist.Count < 1 || hist.Transactions[0].CreatedAt.IsZero() {
		t.Fatalf("unexpected history: %+v", hist)
	}
	var one dto.TransactionResult
	if st := h.do(http.MethodGet, "/v1/transactions/"+jsonID(hist.Transactions[0].ID), nil, &one); st != http.StatusOK || one.ID != hist.Transactions[0].ID {
		t.Fatalf("transaction lookup status %d", st)
	}

	if st := h.do(http.MethodPost, "/v1/rounds/reset", nil, nil); st != http.StatusOK {
		t.Fatalf("reset status %d", st)
	}
	// 押注超過餘額
	if st := h.do(http.MethodPost, "/v1/rounds", map[string]any{"game_id": 1, "wager": 999}, nil); st != http.StatusPaymentRequired {
		t.Fatalf("overdraft must be 402, got %d", st)
	}
	var settle dto.SettleResult
	if st := h.do(http.MethodPost, "/v1/ledger/settle", nil, &settle); st != http.StatusOK || settle.Settled != 0 {
		t.Fatalf("settle with nothing pending: %d %+v", st, settle)
	}
	if st := h.do(http.MethodPost, "/v1/logout", nil, nil); st != http.StatusNoContent {
		t.Fatalf("logout status %d", st)
	}
}

func TestArcadeOverHTTP(t *testing.T) {
	h := newHarness(t, 5000)

	var rules dto.ArcadeRules
	if st := h.do(http.MethodGet, "/v1/arcade", nil, &rules); st != http.StatusOK {
		t.Fatalf("arcade rules status %d", st)
	}
	if rules.Blackjack.Limit != 21 || rules.Blackjack.WinPays != 2 || rules.RPS.Rigged != 0.6 || rules.Reels.RTP <= 0 || len(rules.Reels.Pays) != 5 {
		t.Fatalf("unexpected rules: %+v", rules)
	}

	var rp dto.RPSResult
	if st := h.do(http.MethodPost, "/v1/rps", map[string]any{"choice": "Scissors", "wager": 2}, &rp); st != http.StatusOK {
		t.Fatalf("rps status %d", st)
	}
	if rp.Play.Player != "scissors" || !rp.Play.Settled || rp.Play.PlayID == "" {
		t.Fatalf("unexpected rps play: %+v", rp.Play)
	}
	if st := h.do(http.MethodPost, "/v1/rps", map[string]any{"choice": "lizard", "wager": 2}, nil); st != http.StatusBadRequest {
		t.Fatalf("unknown choice must be 400, got %d", st)
	}

	var sp dto.SpinResult
	if st := h.do(http.MethodPost, "/v1/reels", map[string]any{"wager": 1}, &sp); st != http.StatusOK {
		t.Fatalf("reels status %d", st)
	}
	if len(sp.Spin.Screen) != 5 || sp.Spin.Payout != sp.Spin.Multiplier*1 {
		t.Fatalf("unexpected spin: %+v", sp.Spin)
	}
	if st := h.do(http.MethodPost, "/v1/reels", map[string]any{"wager": 0.005}, nil); st != http.StatusBadRequest {
		t.Fatalf("fractional-cent wager must be 400, got %d", st)
	}

	var bj dto.BlackjackResult
	if st := h.do(http.MethodPost, "/v1/blackjack", map[string]any{"wager": 5}, &bj); st != http.StatusCreated {
		t.Fatalf("deal status %d", st)
	}
	if bj.Hand.State != "playing" || len(bj.Hand.Player) != 2 || len(bj.Hand.Dealer) != 1 || bj.Hand.Seed != nil {
		t.Fatalf("unexpected dealt hand: %+v", bj.Hand)
	}
	if st := h.do(http.MethodPost, "/v1/rounds", map[string]any{"game_id": 1, "wager": 5}, nil); st != http.StatusConflict {
		t.Fatalf("mines start during blackjack must be 409, got %d", st)
	}
	if st := h.do(http.MethodPost, "/v1/reels", map[string]any{"wager": 1}, nil); st != http.StatusConflict {
		t.Fatalf("spin during blackjack must be 409, got %d", st)
	}
	if st := h.do(http.MethodPost, "/v1/blackjack/reset", nil, nil); st != http.StatusConflict {
		t.Fatalf("reset while playing must be 409, got %d", st)
	}
	if st := h.do(http.MethodPost, "/v1/blackjack/stand", nil, &bj); st != http.StatusOK {
		t.Fatalf("stand status %d", st)
	}
	if bj.Hand.State == "playing" || bj.Hand.Seed == nil || len(bj.Hand.Dealer) < 2 {
		t.Fatalf("stand must finish the hand: %+v", bj.Hand)
	}
	if st := h.do(http.MethodPost, "/v1/blackjack/hit", nil, nil); st != http.StatusConflict {
		t.Fatalf("hit after stand must be 409, got %d", st)
	}
	if st := h.do(http.MethodPost, "/v1/blackjack/reset", nil, &bj); st != http.StatusOK || bj.Hand.State != "idle" {
		t.Fatalf("reset: status %d, %+v", st, bj.Hand)
	}

	var bal dto.BalanceResult
	if st := h.do(http.MethodGet, "/v1/balance", nil, &bal); st != http.StatusOK {
		t.Fatalf("balance status %d", st)
	}
	if bal.Balance != bj.Balance {
		t.Fatalf("arcade balance %v disagrees with /v1/balance %v", bj.Balance, bal.Balance)
	}
}

func TestConfigRequiresSecret(t *testing.T) {
	lab, err := demo.NewMinelab()
	if err != nil {
		t.Fatal(err)
	}
	sCfg := &svrcfg.SvrCfg{
		Log:     logger.NewDefaultLogger(logger.ModeSilence),
		Minelab: lab,
		Ledger:  svrcfg.LedgerCfg{BaseURL: "http://127.0.0.1:1"},
	}
	if _, err := Build(sCfg, netsvr.NewChiServer(":0")); !errs.IsKind(err, errs.InvalidConfig) {
		t.Fatalf("empty secret without trust gateway must be InvalidConfig, got %v", err)
	}
	sCfg.Rigged = 1.5
	sCfg.TrustGateway = true
	if err := sCfg.Vaild(); !errs.IsKind(err, errs.InvalidConfig) {
		t.Fatalf("rigged above 1 must be InvalidConfig, got %v", err)
	}
	sCfg.Rigged = 0
	if err := sCfg.Vaild(); err != nil {
		t.Fatalf("trust gateway allows an empty secret: %v", err)
	}
}

func TestBalanceStream(t *testing.T) {
	h := newHarness(t, 5000)

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+h.token)
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/v1/balance/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, hdr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev ledger.BalanceEvent
	if err := conn.ReadJSON(&ev); err != nil || ev.Balance != 50 {
		t.Fatalf("first event: %+v %v", ev, err)
	}
	if st := h.do(http.MethodPost, "/v1/rounds", map[string]any{"game_id": 2, "level": "one", "wager": 5}, nil); st != http.StatusCreated {
		t.Fatalf("start status %d", st)
	}
	for ev.Balance != 45 {
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("waiting for debit event: %v", err)
		}
	}
}

func TestDevRoutes(t *testing.T) {
	h := newHarness(t, 5000)
	h.token = ""

	var rounds map[string]any
	st := h.do(http.MethodPost, "/dev/rounds", map[string]any{"gid": 1, "hazards": 3, "picks": 2, "rounds": 10, "seed": "42"}, &rounds)
	if st != http.StatusOK || len(rounds["results"].([]any)) != 10 {
		t.Fatalf("dev rounds: %d", st)
	}
	var again map[string]any
	h.do(http.MethodPost, "/dev/rounds", map[string]any{"gid": 1, "hazards": 3, "picks": 2, "rounds": 10, "snap": rounds["start_b64u"]}, &again)
	if again["total_win"] != rounds["total_win"] || again["after_b64u"] != rounds["after_b64u"] {
		t.Fatalf("restore from snapshot must replay the same rounds")
	}
	if st := h.do(http.MethodPost, "/dev/audit", map[string]any{"gid": 1, "seed": "7", "hazards": 3, "picks": []int{0, 1}}, nil); st != http.StatusOK {
		t.Fatalf("dev audit status %d", st)
	}
	if st := h.do(http.MethodGet, "/dev/metrics", nil, nil); st != http.StatusOK {
		t.Fatalf("dev metrics status %d", st)
	}
}

func jsonID(id int64) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}
