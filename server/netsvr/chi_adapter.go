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

package netsvr

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultAddr = ":5808"

// Option 調整 ChiAdapter 底下的 http.Server。
type Option func(*http.Server)

// WithWriteTimeout 大量模擬（/v1/sim）可能超過預設 15 秒；d <= 0 時不設上限。
func WithWriteTimeout(d time.Duration) Option {
	return func(s *http.Server) { s.WriteTimeout = max(d, 0) }
}

// WithIdleTimeout keep-alive 連線閒置上限。
func WithIdleTimeout(d time.Duration) Option {
	return func(s *http.Server) {
		if d > 0 {
			s.IdleTimeout = d
		}
	}
}

// ChiAdapter 以 chi 實作 NetSvr；由 Group / With 產生的子路由沒有 server，只能註冊路由。
//
// websocket 升級後的讀寫 deadline 由連線自己管理，不受 WriteTimeout 影響。
type ChiAdapter struct {
	mux chi.Router
	srv *http.Server
}

// NewChiServer addr 為空時使用 :5808。
func NewChiServer(addr string, opts ...Option) *ChiAdapter {
	if addr == "" {
		addr = defaultAddr
	}
	mux := chi.NewRouter()
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return &ChiAdapter{mux: mux, srv: srv}
}

// Ready 只有 NewChiServer 建出的根節點可以 Run。
func (c *ChiAdapter) Ready() bool {
	return c != nil && c.mux != nil && c.srv != nil &&
		c.srv.Handler == c.mux && strings.Contains(c.srv.Addr, ":")
}

// Run 阻塞到 Shutdown；ErrServerClosed 視為正常結束。
func (c *ChiAdapter) Run() error {
	if err := c.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (c *ChiAdapter) Shutdown(ctx context.Context) error {
	return c.srv.Shutdown(ctx)
}

func (c *ChiAdapter) Handler() http.Handler { return c.mux }

func (c *ChiAdapter) Address() string {
	if c.srv == nil {
		return ""
	}
	return c.srv.Addr
}

func (c *ChiAdapter) Use(mw func(http.Handler) http.Handler) { c.mux.Use(mw) }

func (c *ChiAdapter) Get(path string, h http.HandlerFunc) { c.mux.Get(path, h) }

func (c *ChiAdapter) Post(path string, h http.HandlerFunc) { c.mux.Post(path, h) }

// Mount 把整個 http.Handler（例如開發帳本）掛在 pattern 之下。
func (c *ChiAdapter) Mount(pattern string, h http.Handler) { c.mux.Mount(pattern, h) }

func (c *ChiAdapter) Group(path string, fn func(NetRouter)) {
	c.mux.Route(path, func(r chi.Router) { fn(&ChiAdapter{mux: r}) })
}

func (c *ChiAdapter) With(mws ...func(http.Handler) http.Handler) NetRouter {
	return &ChiAdapter{mux: c.mux.With(mws...)}
}
