// Package app 定義應用程式根目錄用以管理長期運行元件的最小生命週期抽象。
package app

import (
	"context"
	"sync"
)

// Component 任何「可啟動 / 可關閉」的長生命週期元件。
//   - Run() 阻塞直到元件停止（正常或錯誤）。
//   - Shutdown(ctx) 要求優雅關閉，需尊重 ctx deadline/cancel。
type Component interface {
	Run() error
	Shutdown(ctx context.Context) error
}

// Worker 把 func(ctx) 形式的背景工作（例如定期回收閒置 Session）包成 Component。
//
// Run 以可取消的 context 呼叫 fn；Shutdown 取消後等待 fn 返回或 ctx 到期。
type Worker struct {
	fn     func(ctx context.Context)
	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWorker(fn func(ctx context.Context)) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{fn: fn, ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

func (w *Worker) Run() error {
	w.once.Do(func() {
		defer close(w.done)
		w.fn(w.ctx)
	})
	return nil
}

func (w *Worker) Shutdown(ctx context.Context) error {
	w.cancel()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
