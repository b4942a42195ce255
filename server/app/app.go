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

// Package app 提供應用程式生命週期管理（App），負責統一啟動與關閉多個 Component。
package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const defaultShutdownTimeout = 5 * time.Second

// App 啟動所有註冊的 Component，收到 OS 信號或任一 Component 結束時協調優雅關閉。
//
// 關閉順序與註冊順序相反：先停 HTTP 入口，再停背景工作。
type App struct {
	comps   []Component
	log     *slog.Logger
	timeout time.Duration
	stop    chan struct{} // 測試或嵌入時取代 OS 信號
}

// New 建立一個新的 App 實例。
func New() *App {
	return &App{
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: defaultShutdownTimeout,
		stop:    make(chan struct{}),
	}
}

// NewWith 是 New 的語法糖，允許在建立時直接註冊多個 Component。
func NewWith(comps ...Component) *App {
	app := New()
	for _, c := range comps {
		app.Register(c)
	}
	return app
}

// Register 將一個 Component 註冊到 App 中，該 Component 將在 Run 時被管理。
func (a *App) Register(c Component) {
	a.comps = append(a.comps, c)
}

// WithLogger 關閉錯誤寫入 log（預設丟棄）。
func (a *App) WithLogger(log *slog.Logger) *App {
	if log != nil {
		a.log = log
	}
	return a
}

// WithShutdownTimeout 設定優雅關閉的總期限，<= 0 時維持 5 秒。
func (a *App) WithShutdownTimeout(td time.Duration) *App {
	if td > 0 {
		a.timeout = td
	}
	return a
}

// Stop 要求 Run 結束，效果等同收到 SIGTERM。只能呼叫一次。
func (a *App) Stop() {
	close(a.stop)
}

// Run 啟動所有 Component（各自一個 goroutine），阻塞直到：
//   - 收到 SIGINT/SIGTERM 或 Stop：優雅關閉後回傳 nil
//   - 任一 Component.Run 返回：優雅關閉後回傳該結果
func (a *App) Run() error {
	errCh := make(chan error, len(a.comps))
	for _, c := range a.comps {
		go func(c Component) {
			errCh <- c.Run()
		}(c)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		a.log.Info("app.signal", slog.String("signal", sig.String()))
		a.gracefulShutdown()
		return nil
	case <-a.stop:
		a.gracefulShutdown()
		return nil
	case err := <-errCh:
		a.gracefulShutdown()
		return err
	}
}

// gracefulShutdown 在期限內逆序呼叫 Component.Shutdown。
func (a *App) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	for i := len(a.comps) - 1; i >= 0; i-- {
		if err := a.comps[i].Shutdown(ctx); err != nil {
			a.log.Error("app.shutdown", slog.Int("component", i), slog.Any("err", err))
		}
	}
}
