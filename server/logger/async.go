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

package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// AsyncHandler 把任何 slog.Handler 變成非阻塞：
//   - Handle 只做 enqueue，背景 goroutine 逐筆交給 next 寫出。
//   - 緩衝滿或 Close 之後直接丟棄並計數，不把 I/O 延遲帶回請求路徑。
//
// slog.Logger 會忽略 Handle 的 error，寫出錯誤需由 next 自行處理。
type AsyncHandler struct {
	next slog.Handler
	q    *queue
}

// queue 由同一個 AsyncHandler 衍生出的 WithAttrs / WithGroup handler 共用。
type queue struct {
	ch      chan entry
	closed  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

type entry struct {
	ctx  context.Context
	rec  slog.Record
	next slog.Handler
}

// NewAsyncHandler buf <= 0 時為 1024；buf 越大越不容易丟，但 Close 時要寫完的也越多。
func NewAsyncHandler(next slog.Handler, buf int) *AsyncHandler {
	if next == nil {
		next = buildHandler(ModeDev)
	}
	if buf <= 0 {
		buf = 1024
	}
	q := &queue{ch: make(chan entry, buf), closed: make(chan struct{})}
	q.wg.Add(1)
	go q.run()
	return &AsyncHandler{next: next, q: q}
}

func (q *queue) run() {
	defer q.wg.Done()
	for {
		select {
		case e := <-q.ch:
			_ = e.next.Handle(e.ctx, e.rec)
		case <-q.closed:
			// 寫完剩下的就結束
			for {
				select {
				case e := <-q.ch:
					_ = e.next.Handle(e.ctx, e.rec)
				default:
					return
				}
			}
		}
	}
}

func (h *AsyncHandler) Ready() bool {
	return h != nil && h.q != nil
}

// Dropped 因緩衝滿或已關閉而丟棄的筆數。
func (h *AsyncHandler) Dropped() uint64 {
	if !h.Ready() {
		return 0
	}
	return h.q.dropped.Load()
}

// Close 停止收件並寫完緩衝，可重複呼叫。
func (h *AsyncHandler) Close() {
	if !h.Ready() {
		return
	}
	h.q.once.Do(func() { close(h.q.closed) })
	h.q.wg.Wait()
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Ready() {
		return nil
	}
	select {
	case <-h.q.closed:
		h.q.dropped.Add(1)
		return nil
	default:
	}
	// Clone：Record 內的 attr slice 不能跨 goroutine 共用
	select {
	case h.q.ch <- entry{ctx: ctx, rec: r.Clone(), next: h.next}:
	default:
		h.q.dropped.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{next: h.next.WithAttrs(attrs), q: h.q}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{next: h.next.WithGroup(name), q: h.q}
}

// Drain 若 log 底層是 AsyncHandler，關閉並寫完緩衝；程序結束前呼叫。
func Drain(log *slog.Logger) {
	if ah, ok := asAsync(log); ok {
		ah.Close()
	}
}

// Dropped 回傳 log 底層 AsyncHandler 的丟棄筆數；同步 logger 一律為 0。
func Dropped(log *slog.Logger) uint64 {
	if ah, ok := asAsync(log); ok {
		return ah.Dropped()
	}
	return 0
}

func asAsync(log *slog.Logger) (*AsyncHandler, bool) {
	if log == nil {
		return nil, false
	}
	ah, ok := log.Handler().(*AsyncHandler)
	return ah, ok
}
