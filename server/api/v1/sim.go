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
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/zintix-labs/minelab"
	"github.com/zintix-labs/minelab/dto"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/mines"
	"github.com/zintix-labs/minelab/recorder"
	"github.com/zintix-labs/minelab/sdk/core"
	"github.com/zintix-labs/minelab/server/httperr"
	"github.com/zintix-labs/minelab/spec"
	"github.com/zintix-labs/minelab/stats"
)

const (
	maxSimRounds    = 1_000_000
	maxPlayerRounds = 100_000
	maxPlayers      = 10_000
)

// SimHandler 以固定打法（翻 N 格後兌現）模擬大量回合。公開、不動用帳本。
type SimHandler struct {
	lab *minelab.Minelab
}

func NewSimHandler(lab *minelab.Minelab) (*SimHandler, error) {
	if lab == nil {
		return nil, errs.NewFatal("minelab is required")
	}
	return &SimHandler{lab: lab}, nil
}

type simResponse struct {
	Seed     int64                   `json:"seed"`
	Stats    *stats.StatReport       `json:"stats"`
	Est      *stats.EstimatorPlayers `json:"est,omitempty"`
	UsedTime int64                   `json:"used_ms"`
}

// Sim GET|POST /v1/sim
func (sh *SimHandler) Sim(w http.ResponseWriter, r *http.Request) {
	req, err := dto.DecodeSimRequest(r)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	if req.Rounds < 1 || req.Rounds > maxSimRounds {
		httperr.Errs(w, errs.NewWarn(fmt.Sprintf("rounds must be between 1 to %d", maxSimRounds)))
		return
	}
	seed, err := seedOf(req.Seed)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	sim, err := sh.lab.NewSimulatorWithSeed(req.GameId, seed)
	if err != nil {
		// 尊重 minelab 的錯誤分級
		httperr.Errs(w, errs.Wrap(err, fmt.Sprintf("build simulator err: %d", req.GameId)))
		return
	}
	st := req.Strategy()
	rep, used, err := sim.SimMP(st, req.Rounds, workers(req.Workers), false)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, "simulate err"))
		return
	}
	writeJSON(w, http.StatusOK, simResponse{Seed: seed, Stats: rep, UsedTime: used.Milliseconds()})
}

// SimPlayers GET|POST /v1/simplayer：players 位玩家各帶 init_bets 單位，各玩 rounds 局。
func (sh *SimHandler) SimPlayers(w http.ResponseWriter, r *http.Request) {
	req, err := dto.DecodeSimRequest(r)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	if req.Players < 1 || req.Players > maxPlayers {
		httperr.Errs(w, errs.NewWarn(fmt.Sprintf("players must be between 1 to %d", maxPlayers)))
		return
	}
	if req.Rounds < 1 || req.Rounds > maxPlayerRounds {
		httperr.Errs(w, errs.NewWarn(fmt.Sprintf("rounds must be between 1 to %d", maxPlayerRounds)))
		return
	}
	if req.InitBets < 1 {
		httperr.Errs(w, errs.NewWarn("init_bets must be at least 1"))
		return
	}
	seed, err := seedOf(req.Seed)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	sim, err := sh.lab.NewSimulatorWithSeed(req.GameId, seed)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, fmt.Sprintf("build simulator err: %d", req.GameId)))
		return
	}
	st := req.Strategy()
	rep, est, used, err := sim.SimPlayers(st, workers(req.Workers), req.Players, req.InitBets, req.Rounds, false)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, "simulate err"))
		return
	}
	writeJSON(w, http.StatusOK, simResponse{Seed: seed, Stats: rep, Est: est, UsedTime: used.Milliseconds()})
}

// SimByCfg POST /v1/simbycfg：以臨時桌台設定模擬，game_id 與 game_name 需對應目錄。
//
// cfg 為 JSON 物件；也可改用 cfg_yaml 傳 YAML 原文（與 demo_configs 同格式），兩者擇一。
func (sh *SimHandler) SimByCfg(w http.ResponseWriter, r *http.Request) {
	type simByCfgRequest struct {
		Hazards int             `json:"hazards"`
		Picks   int             `json:"picks"`
		Rounds  int             `json:"rounds"`
		Cfg     json.RawMessage `json:"cfg"`
		CfgYAML string          `json:"cfg_yaml"`
		Seed    *int64          `json:"seed,omitempty"`
	}
	req := new(simByCfgRequest)
	r.Body = http.MaxBytesReader(w, r.Body, 5<<20) // 5MB
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		httperr.Errs(w, errs.NewWarn("invalid json: "+err.Error()))
		return
	}
	if req.Rounds < 1 || req.Rounds > maxSimRounds {
		httperr.Errs(w, errs.NewWarn(fmt.Sprintf("rounds must be between 1 to %d", maxSimRounds)))
		return
	}
	seed, err := seedOf(req.Seed)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	var sim *minelab.Simulator
	switch {
	case req.CfgYAML != "" && len(req.Cfg) > 0:
		err = errs.NewKind(errs.Warn, errs.InvalidConfig, "cfg and cfg_yaml are mutually exclusive")
	case req.CfgYAML != "":
		sim, err = sh.lab.NewSimulatorByYAML([]byte(req.CfgYAML), seed)
	default:
		sim, err = sh.lab.NewSimulatorByJSON(req.Cfg, seed)
	}
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	rep, used, err := sim.Sim(minelab.Strategy{Hazards: req.Hazards, Picks: req.Picks}, req.Rounds, false)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	writeJSON(w, http.StatusOK, simResponse{Seed: seed, Stats: rep, UsedTime: used.Milliseconds()})
}

// Stat POST /v1/stat：把外部收集的每局倍數（0 代表爆雷）彙整成統計報表。
func (sh *SimHandler) Stat(w http.ResponseWriter, r *http.Request) {
	type statRequest struct {
		GameId  spec.GID  `json:"game_id"`
		Hazards int       `json:"hazards"`
		Picks   []int     `json:"picks"`
		Mults   []float64 `json:"mults"`
	}
	req := new(statRequest)
	if err := dto.DecodeJSON(r, req); err != nil {
		httperr.Errs(w, err)
		return
	}
	if len(req.Mults) < 1 {
		httperr.Errs(w, errs.NewWarn("mults must not be empty"))
		return
	}
	ts, err := sh.lab.Table(req.GameId)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	if err := mines.ValidateLayout(ts.Rows, ts.Columns, req.Hazards); err != nil {
		httperr.Errs(w, err)
		return
	}
	rec, err := recorder.NewRoundRecorder(recorder.Meta{
		GameName: ts.GameName,
		GameId:   ts.GameID,
		Rows:     ts.Rows,
		Columns:  ts.Columns,
		Hazards:  req.Hazards,
		Picks:    "mixed",
		RTP:      ts.RTP,
	}, 0)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	for i, m := range req.Mults {
		if m < 0 {
			httperr.Errs(w, errs.NewWarn(fmt.Sprintf("mults[%d] must be >= 0", i)))
			return
		}
		picks := 0
		if i < len(req.Picks) {
			picks = req.Picks[i]
		}
		rec.Record(recorder.RoundResult{Picks: picks, Mult: m})
	}
	writeJSON(w, http.StatusOK, rec.Done())
}

func seedOf(p *int64) (int64, error) {
	if p != nil {
		return *p, nil
	}
	seed, err := core.NewSeed()
	if err != nil {
		return 0, errs.NewWarn("seed generate failed")
	}
	return seed, nil
}

func workers(n int) int {
	if n < 1 {
		return 1
	}
	return min(n, runtime.NumCPU())
}
