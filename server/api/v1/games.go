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

package v1

import (
	"net/http"
	"strconv"

	"github.com/zintix-labs/minelab"
	"github.com/zintix-labs/minelab/dto"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/server/httperr"
)

// GamesHandler 公開的桌台資訊，不需要身分。
type GamesHandler struct {
	lab *minelab.Minelab
}

func NewGamesHandler(lab *minelab.Minelab) (*GamesHandler, error) {
	if lab == nil {
		return nil, errs.NewFatal("minelab is required")
	}
	return &GamesHandler{lab: lab}, nil
}

// Games GET /v1/games
func (h *GamesHandler) Games(w http.ResponseWriter, r *http.Request) {
	sum, err := h.lab.Summary()
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Odds GET /v1/odds?game_id=&level=&hazards=
func (h *GamesHandler) Odds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	gid, err := dto.QueryGID(q.Get("game_id"))
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	if gid == 0 {
		httperr.Errs(w, errs.NewWarn("game_id is required"))
		return
	}
	hazards := 0
	if s := q.Get("hazards"); s != "" {
		if hazards, err = strconv.Atoi(s); err != nil {
			httperr.Errs(w, errs.NewKind(errs.Warn, errs.InvalidConfig, "hazards must be integer"))
			return
		}
	}
	steps, h2, err := h.lab.Odds(gid, q.Get("level"), hazards)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.OddsResult{GameId: gid, Hazards: h2, Steps: steps})
}

// Health GET /healthz：Runtime 關閉後回 503。
func Health(rt *minelab.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m := rt.Metrics(false)
		status := http.StatusOK
		if m.Closed {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, m)
	}
}
