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
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zintix-labs/minelab/auth"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/ledger"
	"github.com/zintix-labs/minelab/rps"
)

const defaultIdleTTL = 30 * time.Minute

// RuntimeOptions 執行期設定。
type RuntimeOptions struct {
	Ledger  ledger.Config // BaseURL / Timeout / HTTPClient；Identity 由每個 Session 自己帶
	IdleTTL time.Duration // 閒置多久回收 Session，0 代表 30 分鐘
	Log     *slog.Logger

	// Rigged 剪刀石頭布莊家出剋制手勢的機率；0 使用 rps.DefaultRigged，< 0 代表公平
	Rigged float64
	// ArcadeMaxWager 21 點 / 剪刀石頭布 / 拉霸的押注上限，0 代表不限
	ArcadeMaxWager float64
}

// Runtime 持有所有玩家的 Session（以身分鍵索引）。
//
// 一位玩家在同一個 Runtime 內只會有一個 Session，因此同一個錢包不會被兩個 Round 同時扣款。
type Runtime struct {
	lab *Minelab
	opt RuntimeOptions
	log *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	// lifecycle
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	reason    atomic.Value // string
	created   atomic.Int64
	evicted   atomic.Int64
}

// BuildRuntime 進入執行階段：Freeze catalog 並建立 Runtime。
func (m *Minelab) BuildRuntime(opt RuntimeOptions) (*Runtime, error) {
	m.Freeze()
	if len(m.cat.IDs()) == 0 {
		return nil, errs.NewFatal("no games registered")
	}
	if strings.TrimSpace(opt.Ledger.BaseURL) == "" {
		return nil, errs.NewKind(errs.Fatal, errs.InvalidConfig, "ledger base url required")
	}
	if opt.IdleTTL <= 0 {
		opt.IdleTTL = defaultIdleTTL
	}
	switch {
	case opt.Rigged == 0:
		opt.Rigged = rps.DefaultRigged
	case opt.Rigged < 0:
		opt.Rigged = 0
	case opt.Rigged > 1:
		return nil, errs.NewKind(errs.Fatal, errs.InvalidConfig, "rigged probability must be within [0,1]")
	}
	if opt.ArcadeMaxWager < 0 {
		return nil, errs.NewKind(errs.Fatal, errs.InvalidConfig, "arcade max wager must be >= 0")
	}
	if opt.Log == nil {
		opt.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	rt := &Runtime{
		lab:      m,
		opt:      opt,
		log:      opt.Log,
		sessions: map[string]*Session{},
		done:     make(chan struct{}),
	}
	rt.reason.Store("")
	return rt, nil
}

// Lab 回傳組裝此 Runtime 的 Minelab。
func (rt *Runtime) Lab() *Minelab {
	return rt.lab
}

// Options 回傳正規化後的執行期設定。
func (rt *Runtime) Options() RuntimeOptions {
	return rt.opt
}

// Session 取得（或建立）呼叫者的 Session，並以本次請求的 token 更新身分。
//
// 新建時會向帳本同步帳戶並讀取餘額；同步失敗時不保留 Session。
func (rt *Runtime) Session(ctx context.Context, p auth.Principal) (*Session, error) {
	select {
	case <-ctx.Done():
		return nil, errs.WrapKind(ctx.Err(), errs.Warn, errs.NetworkFailure, "session canceled/timeout")
	case <-rt.done:
		return nil, errs.NewFatal("runtime closed: " + rt.ClosedReason())
	default:
	}
	key := strings.ToLower(strings.TrimSpace(p.Identity))
	if key == "" {
		return nil, errs.NewKind(errs.Warn, errs.Unauthenticated, "identity required")
	}

	rt.mu.Lock()
	s, ok := rt.sessions[key]
	rt.mu.Unlock()
	if ok {
		if err := rt.adopt(ctx, s, p); err != nil {
			return nil, err
		}
		return s, nil
	}

	s, err := newSession(rt, key, p)
	if err != nil {
		return nil, err
	}
	if err := s.wallet.Sync(ctx); err != nil {
		rt.log.Warn("ledger sync failed", slog.String("identity", key), slog.Any("err", err))
		return nil, err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	// 兩個請求同時建立時，保留先寫入的那個
	if prev, ok := rt.sessions[key]; ok {
		// 本次 token 已經過帳本 Sync 驗證
		prev.bearer.Set(p.Token, p.Expires)
		prev.touch()
		return prev, nil
	}
	rt.sessions[key] = s
	rt.created.Add(1)
	rt.log.Info("session opened", slog.String("identity", key), slog.Float64("balance", s.wallet.CurrentBalance()))
	return s, nil
}

// adopt 讓既有 Session 改用本次請求的 token。
//
// token 與 Session 目前持有的不同且未在本地驗章時，先以新 token 向帳本讀一次帳戶，
// 帳本拒絕就不動 Session，避免偽造的 token 接手別人進行中的回合。
func (rt *Runtime) adopt(ctx context.Context, s *Session, p auth.Principal) error {
	if cur, ok := s.bearer.Token(); !ok || cur != p.Token {
		if !p.Verified {
			cfg := rt.opt.Ledger
			cfg.Identity = s.identity
			c, err := ledger.New(cfg, auth.Static(p.Token), rt.log)
			if err != nil {
				return err
			}
			if err := c.Reload(ctx); err != nil {
				rt.log.Warn("token rejected by ledger", slog.String("identity", s.identity), slog.Any("err", err))
				return err
			}
		}
		s.bearer.Set(p.Token, p.Expires)
	}
	s.touch()
	return nil
}

// Lookup 取得已存在的 Session，不建立。
func (rt *Runtime) Lookup(identity string) (*Session, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	s, ok := rt.sessions[strings.ToLower(strings.TrimSpace(identity))]
	return s, ok
}

// Logout 清除 Session 的 token 並移除；進行中的回合會隨 Session 一起丟棄，已扣的押注不退。
func (rt *Runtime) Logout(identity string) bool {
	key := strings.ToLower(strings.TrimSpace(identity))
	rt.mu.Lock()
	s, ok := rt.sessions[key]
	delete(rt.sessions, key)
	rt.mu.Unlock()
	if ok {
		s.bearer.Clear()
		rt.evicted.Add(1)
	}
	return ok
}

// Sweep 回收閒置超過 IdleTTL 且沒有進行中回合的 Session，回傳回收數量。
func (rt *Runtime) Sweep(now time.Time) int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	n := 0
	for k, s := range rt.sessions {
		if now.Sub(s.LastSeen()) < rt.opt.IdleTTL || s.Busy() {
			continue
		}
		delete(rt.sessions, k)
		s.bearer.Clear()
		n++
	}
	rt.evicted.Add(int64(n))
	return n
}

// Run 定期 Sweep，直到 ctx 結束或 Runtime 關閉。
func (rt *Runtime) Run(ctx context.Context) {
	tk := time.NewTicker(max(rt.opt.IdleTTL/4, time.Second))
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-rt.done:
			return
		case now := <-tk.C:
			if n := rt.Sweep(now); n > 0 {
				rt.log.Debug("sessions swept", slog.Int("count", n))
			}
		}
	}
}

// Close transitions the runtime into a closed state. It is safe to call multiple times.
func (rt *Runtime) Close() {
	rt.closeWithReason("closed")
}

func (rt *Runtime) closeWithReason(reason string) {
	rt.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		rt.reason.Store(reason)
		rt.closed.Store(true)
		close(rt.done)
	})
}

// Closed reports whether the runtime has been closed.
func (rt *Runtime) Closed() bool {
	return rt.closed.Load()
}

func (rt *Runtime) ClosedReason() string {
	if v := rt.reason.Load(); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// RuntimeMetrics 拉取式觀測快照。
type RuntimeMetrics struct {
	Sessions    int              `json:"sessions"`
	Created     int64            `json:"created"`
	Evicted     int64            `json:"evicted"`
	Closed      bool             `json:"closed"`
	CloseReason string           `json:"close_reason"`
	Detail      []SessionMetrics `json:"detail,omitempty"`
}

// Metrics 回傳目前快照；detail 為 true 時附上每個 Session 的計數。
func (rt *Runtime) Metrics(detail bool) RuntimeMetrics {
	rt.mu.Lock()
	m := RuntimeMetrics{
		Sessions:    len(rt.sessions),
		Created:     rt.created.Load(),
		Evicted:     rt.evicted.Load(),
		Closed:      rt.Closed(),
		CloseReason: rt.ClosedReason(),
	}
	if detail {
		for _, s := range rt.sessions {
			m.Detail = append(m.Detail, s.Metrics())
		}
		slices.SortFunc(m.Detail, func(a, b SessionMetrics) int { return strings.Compare(a.Identity, b.Identity) })
	}
	rt.mu.Unlock()
	return m
}
