package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/server/httperr"
)

// Recover 攔截 handler panic，記一筆 Error 並回 500。
//
// http.ErrAbortHandler 照原樣往上拋，讓 net/http 中止連線。
func Recover(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				if log != nil {
					log.LogAttrs(r.Context(), slog.LevelError, "http.panic",
						slog.String("path", r.URL.Path),
						slog.String("req_id", GetReqId(r)),
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
					)
				}
				// 已升級的 websocket 連線沒有可寫的 HTTP 回應
				if !upgrading(r) {
					httperr.Errs(w, errs.NewFatal("internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
