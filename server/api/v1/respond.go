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

// Package v1 對外 HTTP API（/v1）。需要身分的路由由 middleware.Bearer 先放入 auth.Principal。
package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/zintix-labs/minelab"
	"github.com/zintix-labs/minelab/auth"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/server/httperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail 記錄（依 status 分級）後寫回錯誤。
func fail(w http.ResponseWriter, log *slog.Logger, msg string, err error) {
	httperr.Log(log, msg, err)
	httperr.Errs(w, err)
}

// session 取出呼叫者的 Session，首次呼叫時建立並同步帳本。
func session(rt *minelab.Runtime, r *http.Request) (*minelab.Session, error) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		return nil, errs.NewKind(errs.Warn, errs.Unauthenticated, "no principal on request")
	}
	return rt.Session(r.Context(), p)
}
