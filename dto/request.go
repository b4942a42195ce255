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

package dto

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/zintix-labs/minelab"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/spec"
)

// 防止 body 過大（1MiB）
const maxBody = 1 << 20

// StartRequest 開局請求。Level 與 Hazards 擇一；都沒給時用桌台預設等級。
type StartRequest struct {
	GameId  spec.GID `json:"game_id"`
	Game    string   `json:"game,omitempty"` // game_id 為 0 時以名稱查桌台
	Level   string   `json:"level,omitempty"`
	Hazards int      `json:"hazards,omitempty"`
	Wager   float64  `json:"wager"`
}

// RevealRequest 翻格請求，Position 為 0-based 格子索引。
type RevealRequest struct {
	Position *int `json:"position"`
}

// WagerRequest 21 點發牌與拉霸的押注。
type WagerRequest struct {
	Wager float64 `json:"wager"`
}

// RPSRequest 剪刀石頭布：choice 為 rock / paper / scissors。
type RPSRequest struct {
	Choice string  `json:"choice"`
	Wager  float64 `json:"wager"`
}

// SimRequest 模擬請求（/v1/sim、/v1/simplayer）。
type SimRequest struct {
	GameId   spec.GID `json:"game_id"`
	Hazards  int      `json:"hazards"`
	Picks    int      `json:"picks"`
	MaxPicks int      `json:"max_picks,omitempty"`
	Weights  []int    `json:"weights,omitempty"`
	Rounds   int      `json:"rounds"`
	Workers  int      `json:"workers,omitempty"`
	Players  int      `json:"players,omitempty"`
	InitBets int      `json:"init_bets,omitempty"`
	Seed     *int64   `json:"seed,omitempty"`
}

// DecodeStartRequest 會把 HTTP 請求解碼成 StartRequest。
//
//   - GET：從 query string 讀取（game_id/game/level/hazards/wager），方便手動測試。
//   - POST：JSON body，開啟 DisallowUnknownFields。
//
// 這裡只做解碼與型別轉換；桌台是否存在、押注是否合法由 Session 決定。
func DecodeStartRequest(r *http.Request) (*StartRequest, error) {
	req := new(StartRequest)
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		var err error
		if req.GameId, err = QueryGID(q.Get("game_id")); err != nil {
			return nil, err
		}
		req.Game = q.Get("game")
		req.Level = q.Get("level")
		if req.Hazards, err = queryInt(q.Get("hazards"), "hazards"); err != nil {
			return nil, err
		}
		if req.Wager, err = queryWager(q.Get("wager")); err != nil {
			return nil, err
		}
		return req, nil
	case http.MethodPost:
		if err := DecodeJSON(r, req); err != nil {
			return nil, err
		}
		return req, nil
	default:
		return nil, errs.NewWarn("method not allowed")
	}
}

// DecodeRevealRequest 解碼翻格請求；position 必填。
func DecodeRevealRequest(r *http.Request) (int, error) {
	req := new(RevealRequest)
	if err := DecodeJSON(r, req); err != nil {
		return 0, err
	}
	if req.Position == nil {
		return 0, errs.NewKind(errs.Warn, errs.InvalidReveal, "position is required")
	}
	return *req.Position, nil
}

// DecodeSimRequest GET 讀 query（weights 以逗號分隔），POST 讀 JSON body。
//
// 打法是否合法（picks、weights 與地雷數的關係）由 Strategy.prepare 判斷。
func DecodeSimRequest(r *http.Request) (*SimRequest, error) {
	req := new(SimRequest)
	if r.Method == http.MethodPost {
		if err := DecodeJSON(r, req); err != nil {
			return nil, err
		}
		return req, nil
	}
	q := r.URL.Query()
	var err error
	if req.GameId, err = QueryGID(q.Get("game_id")); err != nil {
		return nil, err
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"hazards", &req.Hazards},
		{"picks", &req.Picks},
		{"max_picks", &req.MaxPicks},
		{"rounds", &req.Rounds},
		{"workers", &req.Workers},
		{"players", &req.Players},
		{"init_bets", &req.InitBets},
	}
	for _, it := range ints {
		if *it.dst, err = queryInt(q.Get(it.key), it.key); err != nil {
			return nil, err
		}
	}
	if req.Weights, err = ParseInts(q.Get("weights"), "weights"); err != nil {
		return nil, err
	}
	if s := q.Get("seed"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errs.NewWarn("seed must be int64")
		}
		req.Seed = &v
	}
	return req, nil
}

// DecodeJSON 嚴格解碼 JSON body（大小上限 1MiB、拒絕未知欄位）。空 body 視為 {}。
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return errs.NewWarn("invalid json: " + err.Error())
	}
	return nil
}

// QueryGID 解析 game_id，空字串回傳 0。
func QueryGID(s string) (spec.GID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	u, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return 0, errs.NewWarn("game_id must be non-negative integer")
	}
	return spec.GID(u), nil
}

// Strategy 轉成模擬打法。
func (r *SimRequest) Strategy() minelab.Strategy {
	return minelab.Strategy{Hazards: r.Hazards, Picks: r.Picks, MaxPicks: r.MaxPicks, Weights: r.Weights}
}

// ParseInts 解析逗號分隔的整數清單，例如 "5,3,2"；空字串回傳 nil。
func ParseInts(s, name string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := queryInt(strings.TrimSpace(p), name)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func queryInt(s, name string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errs.NewWarn(fmt.Sprintf("invalid %s: %v", name, err))
	}
	return v, nil
}

func queryWager(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errs.NewWarn(fmt.Sprintf("invalid wager: %v", err))
	}
	return v, nil
}
