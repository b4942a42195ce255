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

// Package auth 提供帳本呼叫所需的身分協作者。
//
// 登入、換發 token 都是身分提供者（IdP）的事；這裡只回答兩件事：
// 目前是否已登入，以及要帶在 Authorization 標頭上的 bearer token。
package auth

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Session 是帳本客戶端對身分層的唯一需求。
//
// Active 為 false 或 Token 回傳 ok=false 時，帳本客戶端不發出遠端呼叫。
type Session interface {
	Active() bool
	Token() (string, bool)
}

// Static 固定 token 的 Session，給 CLI、模擬器與測試使用。
type Static string

func (s Static) Active() bool { return s != "" }

func (s Static) Token() (string, bool) { return string(s), s != "" }

// Bearer 由 HTTP 請求帶入的 token 組成的 Session，可在每次請求時更新。
//
// exp 為零值時視為不過期。
type Bearer struct {
	mu    sync.RWMutex
	token string
	exp   time.Time
	now   func() time.Time
}

// NewBearer 建立 Bearer session。
func NewBearer(token string, exp time.Time) *Bearer {
	return &Bearer{token: token, exp: exp, now: time.Now}
}

// Set 以新 token 取代舊 token（IdP 換發後由上層呼叫）。
func (b *Bearer) Set(token string, exp time.Time) {
	b.mu.Lock()
	b.token = token
	b.exp = exp
	b.mu.Unlock()
}

// Clear 登出。
func (b *Bearer) Clear() {
	b.Set("", time.Time{})
}

func (b *Bearer) Active() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.activeLocked()
}

func (b *Bearer) Token() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.activeLocked() {
		return "", false
	}
	return b.token, true
}

func (b *Bearer) activeLocked() bool {
	if b.token == "" {
		return false
	}
	return b.exp.IsZero() || b.now().Before(b.exp)
}

// BearerToken 取出 Authorization: Bearer <token>。
func BearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

// Principal 通過驗證的呼叫者。
type Principal struct {
	Identity string
	Token    string
	Expires  time.Time
	Verified bool // token 簽章已在本地驗過
}

type ctxKey struct{}

// WithPrincipal 把呼叫者放進 context。
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext 取出呼叫者。
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
