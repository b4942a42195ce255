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
	"github.com/zintix-labs/minelab/rps"
	"github.com/zintix-labs/minelab/server/httperr"
)

// ArcadeHandler 21 點 / 剪刀石頭布 / 拉霸。與踩地雷共用同一個 Session 與帳本。
type ArcadeHandler struct {
	rt  *minelab.Runtime
	log *slog.Logger
}

func NewArcadeHandler(rt *minelab.Runtime, log *slog.Logger) (*ArcadeHandler, error) {
	if rt == nil {
		return nil, errs.NewFatal("runtime is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &ArcadeHandler{rt: rt, log: log}, nil
}

// Rules GET /v1/arcade
func (h *ArcadeHandler) Rules(w http.ResponseWriter, _ *http.Request) {
	opt := h.rt.Options()
	writeJSON(w, http.StatusOK, dto.NewArcadeRules(opt.Rigged, opt.ArcadeMaxWager))
}

// Hand GET /v1/blackjack
func (h *ArcadeHandler) Hand(w http.ResponseWriter, r *http.Request) {
	s, err := session(h.rt, r)
	if err != nil {
		fail(w, h.log, "v1.blackjack session", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BlackjackResult{Hand: s.BlackjackView(), Balance: s.Wallet().CurrentBalance()})
}

// Deal POST /v1/blackjack {wager}
func (h *ArcadeHandler) Deal(w http.ResponseWriter, r *http.Request) {
	var req dto.WagerRequest
	if err := dto.DecodeJSON(r, &req); err != nil {
		httperr.Errs(w, err)
		return
	}
	s, err := session(h.rt, r)
	if err != nil {
		fail(w, h.log, "v1.deal session", err)
		return
	}
	v, err := s.DealBlackjack(r.Context(), req.Wager)
	if err != nil {
		fail(w, h.log, "v1.deal", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.BlackjackResult{Hand: v, Balance: s.Wallet().CurrentBalance()})
}

// Hit POST /v1/blackjack/hit
func (h *ArcadeHandler) Hit(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, "v1.hit", func(s *minelab.Session) (any, error) {
		return s.Hit(r.Context())
	})
}

// Stand POST /v1/blackjack/stand
func (h *ArcadeHandler) Stand(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, "v1.stand", func(s *minelab.Session) (any, error) {
		return s.Stand(r.Context())
	})
}

// Reset POST /v1/blackjack/reset
func (h *ArcadeHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, "v1.blackjack reset", func(s *minelab.Session) (any, error) {
		if err := s.ResetBlackjack(); err != nil {
			return nil, err
		}
		return s.BlackjackView(), nil
	})
}

func (h *ArcadeHandler) step(w http.ResponseWriter, r *http.Request, msg string, fn func(*minelab.Session) (any, error)) {
	s, err := session(h.rt, r)
	if err != nil {
		fail(w, h.log, msg+" session", err)
		return
	}
	if _, err := fn(s); err != nil {
		fail(w, h.log, msg, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BlackjackResult{Hand: s.BlackjackView(), Balance: s.Wallet().CurrentBalance()})
}

// RPS POST /v1/rps {choice, wager}
func (h *ArcadeHandler) RPS(w http.ResponseWriter, r *http.Request) {
	var req dto.RPSRequest
	if err := dto.DecodeJSON(r, &req); err != nil {
		httperr.Errs(w, err)
		return
	}
	choice, err := rps.ParseChoice(req.Choice)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	s, err := session(h.rt, r)
	if err != nil {
		fail(w, h.log, "v1.rps session", err)
		return
	}
	out, err := s.PlayRPS(r.Context(), choice, req.Wager)
	if err != nil {
		fail(w, h.log, "v1.rps", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.RPSResult{Play: out, Balance: s.Wallet().CurrentBalance()})
}

// Spin POST /v1/reels {wager}
func (h *ArcadeHandler) Spin(w http.ResponseWriter, r *http.Request) {
	var req dto.WagerRequest
	if err := dto.DecodeJSON(r, &req); err != nil {
		httperr.Errs(w, err)
		return
	}
	s, err := session(h.rt, r)
	if err != nil {
		fail(w, h.log, "v1.spin session", err)
		return
	}
	out, err := s.Spin(r.Context(), req.Wager)
	if err != nil {
		fail(w, h.log, "v1.spin", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SpinResult{Spin: out, Balance: s.Wallet().CurrentBalance()})
}
