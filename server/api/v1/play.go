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
	"log/slog"
	"net/http"

	"github.com/zintix-labs/minelab"
	"github.com/zintix-labs/minelab/dto"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/server/httperr"
)

// PlayHandler 一局的開始 / 翻格 / 兌現 / 重置。
type PlayHandler struct {
	rt  *minelab.Runtime
	log *slog.Logger
}

func NewPlayHandler(rt *minelab.Runtime, log *slog.Logger) (*PlayHandler, error) {
	if rt == nil {
		return nil, errs.NewFatal("runtime is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &PlayHandler{rt: rt, log: log}, nil
}

// Start POST /v1/rounds
func (h *PlayHandler) Start(w http.ResponseWriter, r *http.Request) {
	req, err := dto.DecodeStartRequest(r)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	gid := req.GameId
	if gid == 0 && req.Game != "" {
		ent, ok := h.rt.Lab().EntryByName(req.Game)
		if !ok {
			httperr.Errs(w, errs.NewKind(errs.Warn, errs.NotFound, "unknown game: "+req.Game))
			return
		}
		gid = ent.GID
	}
	s, err := session(h.rt, r)
	if err != nil {
		fail(w, h.log, "v1.start session", err)
		return
	}
	view, err := s.Start(r.Context(), gid, req.Level, req.Hazards, req.Wager)
	if err != nil {
		fail(w, h.log, "v1.start", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.RoundResult{View: view, Balance: s.Wallet().CurrentBalance()})
}

// Reveal POST /v1/rounds/reveal {position}
func (h *PlayHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	pos, err := dto.DecodeRevealRequest(r)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	s, err := session(h.rt, r)
	if err != nil {
		fail(w, h.log, "v1.reveal session", err)
		return
	}
	out, err := s.Reveal(r.Context(), pos)
	if err != nil {
		fail(w, h.log, "v1.reveal", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.RoundResult{Outcome: &out, View: s.View(), Balance: s.Wallet().CurrentBalance()})
}

// CashOut POST /v1/rounds/cashout
func (h *PlayHandler) CashOut(w http.ResponseWriter, r *http.Request) {
	s, err := session(h.rt, r)
	if err != nil {
		fail(w, h.log, "v1.cashout session", err)
		return
	}
	out, err := s.CashOut(r.Context())
	if err != nil {
		fail(w, h.log, "v1.cashout", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.RoundResult{Outcome: &out, View: s.View(), Balance: s.Wallet().CurrentBalance()})
}

// Reset POST /v1/rounds/reset：終局後回到 Idle。
func (h *PlayHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s, err := session(h.rt, r)
	if err != nil {
		fail(w, h.log, "v1.reset session", err)
		return
	}
	if err := s.Reset(); err != nil {
		fail(w, h.log, "v1.reset", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.RoundResult{View: s.View(), Balance: s.Wallet().CurrentBalance()})
}

// Current GET /v1/rounds：目前這局；地雷位置在終局前不公開。
func (h *PlayHandler) Current(w http.ResponseWriter, r *http.Request) {
	s, err := session(h.rt, r)
	if err != nil {
		fail(w, h.log, "v1.round session", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.RoundResult{View: s.View(), Balance: s.Wallet().CurrentBalance()})
}
