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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zintix-labs/minelab/auth"
	"github.com/zintix-labs/minelab/blackjack"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/ledger"
	"github.com/zintix-labs/minelab/mines"
	"github.com/zintix-labs/minelab/reels"
	"github.com/zintix-labs/minelab/rps"
	"github.com/zintix-labs/minelab/spec"
)

// Session 一位玩家：一個帳本客戶端 + 每張桌台一個 Round，另有一手 21 點與兩個一局即結算的遊戲。
//
// 同一時間只有一個遊戲可以在進行中；切換桌台或遊戲前，目前的回合必須結束。
// 回合操作若 panic，會被收斂成 Fatal 錯誤並把該桌台的 Round 換成新的（押注已扣款，不退回）。
type Session struct {
	identity string
	lab      *Minelab
	bearer   *auth.Bearer
	wallet   *ledger.Client
	rt       *Runtime

	mu      sync.Mutex
	rounds  map[spec.GID]*mines.Round
	current spec.GID
	active  bool
	hand    *blackjack.Hand
	rps     *rps.Game
	reels   *reels.Game
	quick   bool // 剪刀石頭布 / 拉霸進行中

	lastSeen atomic.Int64
	inflight atomic.Int32
	started  atomic.Int64
	panics   atomic.Int32
}

func newSession(rt *Runtime, identity string, p auth.Principal) (*Session, error) {
	bearer := auth.NewBearer(p.Token, p.Expires)
	cfg := rt.opt.Ledger
	cfg.Identity = identity
	wallet, err := ledger.New(cfg, bearer, rt.log)
	if err != nil {
		return nil, err
	}
	log := rt.log.With("identity", identity)
	s := &Session{
		identity: identity,
		lab:      rt.lab,
		bearer:   bearer,
		wallet:   wallet,
		rt:       rt,
		rounds:   map[spec.GID]*mines.Round{},
	}
	limit := rt.opt.ArcadeMaxWager
	if s.hand, err = blackjack.NewHand(blackjack.Config{CoreFactory: rt.lab.cf, MaxWager: limit}, wallet, log); err != nil {
		return nil, err
	}
	if s.rps, err = rps.NewGame(rps.Config{Rigged: rt.opt.Rigged, CoreFactory: rt.lab.cf, MaxWager: limit}, wallet, log); err != nil {
		return nil, err
	}
	if s.reels, err = reels.NewGame(reels.Config{CoreFactory: rt.lab.cf, MaxWager: limit}, wallet, log); err != nil {
		return nil, err
	}
	s.touch()
	return s, nil
}

func (s *Session) Identity() string { return s.identity }

// Wallet 回傳此玩家的帳本客戶端。
func (s *Session) Wallet() *ledger.Client { return s.wallet }

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen 最後一次被存取的時間。
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Busy 回報是否有進行中的回合（任何遊戲）或尚未結束的請求。
func (s *Session) Busy() bool {
	if s.inflight.Load() > 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engagedLocked() != ""
}

// engagedLocked 回傳進行中的遊戲名稱，沒有時回傳空字串。呼叫端需持有 s.mu。
func (s *Session) engagedLocked() string {
	if s.quick {
		return "a single play"
	}
	if s.active {
		if r, ok := s.rounds[s.current]; ok {
			if st := r.State(); st == mines.Starting || st == mines.Running {
				return fmt.Sprintf("game %d", s.current)
			}
		}
	}
	if st := s.hand.State(); st == blackjack.Starting || st == blackjack.Playing {
		return "blackjack"
	}
	return ""
}

// Start 在 gid 桌台開局。hazards > 0 時優先於 level；level 為空時用桌台預設難度。
func (s *Session) Start(ctx context.Context, gid spec.GID, level string, hazards int, wager float64) (view mines.View, err error) {
	defer s.guard(gid, &err)()

	ts, err := s.lab.Table(gid)
	if err != nil {
		return mines.View{}, err
	}
	h, err := ts.Hazards(level, hazards)
	if err != nil {
		return mines.View{}, err
	}
	if err := ts.CheckWager(wager); err != nil {
		return mines.View{}, err
	}

	r, err := s.switchTo(gid, ts, h, wager)
	if err != nil {
		return mines.View{}, err
	}
	view, err = r.Commit(ctx)
	if err == nil {
		s.started.Add(1)
	}
	return view, err
}

// Reveal 在目前回合翻開 idx。
func (s *Session) Reveal(ctx context.Context, idx int) (out mines.Outcome, err error) {
	defer s.guard(s.currentID(), &err)()
	r, ok := s.currentRound()
	if !ok {
		return mines.Outcome{Index: idx}, errs.NewKind(errs.Warn, errs.InvalidState, "no round started")
	}
	return r.Reveal(ctx, idx), nil
}

// CashOut 兌現目前回合。
func (s *Session) CashOut(ctx context.Context) (out mines.Outcome, err error) {
	defer s.guard(s.currentID(), &err)()
	r, ok := s.currentRound()
	if !ok {
		return mines.Outcome{Index: -1}, errs.NewKind(errs.Warn, errs.InvalidState, "no round started")
	}
	return r.CashOut(ctx)
}

// Reset 把已結束的回合歸零，才能再開下一局。
func (s *Session) Reset() (err error) {
	defer s.guard(s.currentID(), &err)()
	r, ok := s.currentRound()
	if !ok {
		return errs.NewKind(errs.Warn, errs.InvalidState, "no round started")
	}
	return r.Reset()
}

// View 目前回合的視圖；沒有回合時回傳 Idle 視圖。
func (s *Session) View() mines.View {
	s.touch()
	r, ok := s.currentRound()
	if !ok {
		return mines.View{State: mines.Idle.String()}
	}
	return r.Snapshot()
}

// CurrentGame 目前的桌台；尚未開局時 ok=false。
func (s *Session) CurrentGame() (spec.GID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.active
}

// switchTo 切換到 gid 桌台並在 s.mu 內 Reserve 它的 Round（必要時建立），
// 兩個同時開局的請求只會有一個佔到。
func (s *Session) switchTo(gid spec.GID, ts *spec.TableSetting, hazards int, wager float64) (*mines.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if busy := s.engagedLocked(); busy != "" {
		return nil, errs.NewKind(errs.Warn, errs.InvalidState, "round in progress on "+busy)
	}
	r, ok := s.rounds[gid]
	if !ok {
		var err error
		r, err = mines.NewRound(roundConfig(ts, s.lab.cf), s.wallet, s.rt.log.With("identity", s.identity, "gid", uint(gid)))
		if err != nil {
			return nil, err
		}
		s.rounds[gid] = r
	}
	if err := r.Reserve(hazards, wager); err != nil {
		return nil, err
	}
	s.current = gid
	s.active = true
	return r, nil
}

// DealBlackjack 押注並發一手 21 點。
func (s *Session) DealBlackjack(ctx context.Context, amount float64) (v blackjack.View, err error) {
	defer s.recoverInto("blackjack", &err, s.dropHand)()
	h, err := s.reserveHand(amount)
	if err != nil {
		return h.Snapshot(), err
	}
	v, err = h.Commit(ctx)
	if err == nil {
		s.started.Add(1)
	}
	return v, err
}

// Hit 21 點要牌。
func (s *Session) Hit(ctx context.Context) (v blackjack.View, err error) {
	defer s.recoverInto("blackjack", &err, s.dropHand)()
	return s.currentHand().Hit(ctx)
}

// Stand 21 點停牌並結算。
func (s *Session) Stand(ctx context.Context) (v blackjack.View, err error) {
	defer s.recoverInto("blackjack", &err, s.dropHand)()
	return s.currentHand().Stand(ctx)
}

// ResetBlackjack 結束的牌局回到 Idle。
func (s *Session) ResetBlackjack() (err error) {
	defer s.recoverInto("blackjack", &err, s.dropHand)()
	return s.currentHand().Reset()
}

// BlackjackView 目前這手牌。
func (s *Session) BlackjackView() blackjack.View {
	s.touch()
	return s.currentHand().Snapshot()
}

func (s *Session) currentHand() *blackjack.Hand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hand
}

// reserveHand 在 s.mu 內佔住 21 點這手牌，和 switchTo 同理。
func (s *Session) reserveHand(amount float64) (*blackjack.Hand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if busy := s.engagedLocked(); busy != "" {
		return s.hand, errs.NewKind(errs.Warn, errs.InvalidState, "round in progress on "+busy)
	}
	return s.hand, s.hand.Reserve(amount)
}

// dropHand 換一手新的牌（押注已扣，不退回）。呼叫端需持有 s.mu。
func (s *Session) dropHand() {
	h, err := blackjack.NewHand(blackjack.Config{CoreFactory: s.lab.cf, MaxWager: s.rt.opt.ArcadeMaxWager}, s.wallet, s.rt.log.With("identity", s.identity))
	if err == nil {
		s.hand = h
	}
}

// PlayRPS 剪刀石頭布一局。
func (s *Session) PlayRPS(ctx context.Context, choice rps.Choice, amount float64) (out rps.Outcome, err error) {
	defer s.recoverInto("rps", &err, func() { s.quick = false })()
	if err := s.beginQuick(); err != nil {
		return rps.Outcome{}, err
	}
	defer s.endQuick()
	out, err = s.rps.Play(ctx, choice, amount)
	if err == nil {
		s.started.Add(1)
	}
	return out, err
}

// Spin 拉霸一轉。
func (s *Session) Spin(ctx context.Context, amount float64) (out reels.Outcome, err error) {
	defer s.recoverInto("reels", &err, func() { s.quick = false })()
	if err := s.beginQuick(); err != nil {
		return reels.Outcome{}, err
	}
	defer s.endQuick()
	out, err = s.reels.Spin(ctx, amount)
	if err == nil {
		s.started.Add(1)
	}
	return out, err
}

func (s *Session) beginQuick() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if busy := s.engagedLocked(); busy != "" {
		return errs.NewKind(errs.Warn, errs.InvalidState, "round in progress on "+busy)
	}
	s.quick = true
	return nil
}

func (s *Session) endQuick() {
	s.mu.Lock()
	s.quick = false
	s.mu.Unlock()
}

func (s *Session) currentRound() (*mines.Round, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil, false
	}
	r, ok := s.rounds[s.current]
	return r, ok
}

func (s *Session) currentID() spec.GID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// guard 計數 inflight，並把 panic 收斂成 Fatal 錯誤；壞掉的 Round 直接丟棄，下次操作時重建。
//
//	defer s.guard(gid, &err)()
func (s *Session) guard(gid spec.GID, err *error) func() {
	return s.recoverInto(fmt.Sprintf("game %d", gid), err, func() {
		delete(s.rounds, gid)
		if s.current == gid {
			s.active = false
		}
	})
}

// recoverInto 同 guard；panic 時在 s.mu 內呼叫 drop 丟棄壞掉的狀態。
func (s *Session) recoverInto(what string, err *error, drop func()) func() {
	s.touch()
	s.inflight.Add(1)
	return func() {
		s.inflight.Add(-1)
		if r := recover(); r != nil {
			s.panics.Add(1)
			s.mu.Lock()
			drop()
			s.mu.Unlock()
			*err = errs.NewFatal(fmt.Sprintf("session %s %s panic : %v", s.identity, what, r))
			s.rt.log.Error("round panic", "identity", s.identity, "game", what, "panic", fmt.Sprint(r))
		}
	}
}

// SessionMetrics 單一玩家的觀測快照。
type SessionMetrics struct {
	Identity string    `json:"identity"`
	Game     spec.GID  `json:"game"`
	State    string    `json:"state"`
	Hand     string    `json:"blackjack"`
	Balance  float64   `json:"balance"`
	Pending  int       `json:"pending"`
	Inflight int       `json:"inflight"`
	Started  int64     `json:"started"`
	Panics   int       `json:"panics"`
	LastSeen time.Time `json:"last_seen"`
}

func (s *Session) Metrics() SessionMetrics {
	st := mines.Idle.String()
	if r, ok := s.currentRound(); ok {
		st = r.State().String()
	}
	return SessionMetrics{
		Identity: s.identity,
		Game:     s.currentID(),
		State:    st,
		Hand:     s.currentHand().State().String(),
		Balance:  s.wallet.CurrentBalance(),
		Pending:  len(s.wallet.Unsettled()),
		Inflight: int(s.inflight.Load()),
		Started:  s.started.Load(),
		Panics:   int(s.panics.Load()),
		LastSeen: s.LastSeen(),
	}
}
