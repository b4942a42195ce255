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

package middleware

import (
	"context"
	"net/http"

	"github.com/zintix-labs/minelab/auth"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/server/httperr"
)

type callerKey struct{}

func withCaller(ctx context.Context, c *caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// Bearer 驗證 Authorization: Bearer <token>，通過後把 auth.Principal 放進 request context。
//
// 失敗一律 401，不呼叫下游。
func Bearer(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := auth.BearerToken(r)
			if !ok {
				httperr.Errs(w, errs.NewKind(errs.Warn, errs.Unauthenticated, "missing bearer token"))
				return
			}
			claims, err := v.Parse(tok)
			if err != nil {
				httperr.Errs(w, err)
				return
			}
			p := auth.Principal{Identity: claims.Identity(), Token: tok, Expires: claims.Expires(), Verified: v.Verified()}
			if c, ok := r.Context().Value(callerKey{}).(*caller); ok {
				c.p = p
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}
