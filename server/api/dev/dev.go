// Package dev 提供 Minelab 的內部 Dev Panel HTTP endpoints。
//
// 給數學與後端在開發期驗證：指定桌台、地雷數、打法與 Seed / Snap，逐局或大量模擬，
// 以及用公開的 seed 重建一局做公平性核對。
//
// 注意：
//   - 這不是 production API；只在 cmd/svr 帶 -dev 時掛載。
//   - 錯誤處理走 httperr.Errs（errs.Warn → 4xx，errs.Fatal → 5xx）。
//   - Snap 與 Seed 同時提供時以 Snap 為準。
package dev

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/zintix-labs/minelab"
	"github.com/zintix-labs/minelab/dto"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/sdk/core"
	"github.com/zintix-labs/minelab/server/httperr"
	"github.com/zintix-labs/minelab/server/logger"
	"github.com/zintix-labs/minelab/server/netsvr"
	"github.com/zintix-labs/minelab/spec"
)

// devRequest Dev Panel 的輸入 payload；只用在 API 邊界。
type devRequest struct {
	GID     spec.GID `json:"gid"`
	Game    string   `json:"game"`
	Hazards int      `json:"hazards"`
	Picks   int      `json:"picks"`
	MaxPick int      `json:"max_picks"`
	Weights []int    `json:"weights,omitempty"`
	Rounds  int      `json:"rounds"`
	Seed    string   `json:"seed"`
	Snap    string   `json:"snap"`
}

type auditRequest struct {
	GID     spec.GID `json:"gid"`
	Seed    string   `json:"seed"`
	Hazards int      `json:"hazards"`
	Picks   []int    `json:"picks"`
}

// Register 註冊 Dev Panel 的 routes：
//   - GET  /dev         ：Dev Panel HTML
//   - GET  /dev/meta    ：桌台摘要（前端下拉選單）
//   - POST /dev/rounds  ：逐局結果（含前後 PRNG 快照）
//   - POST /dev/sim     ：單線模擬統計
//   - POST /dev/audit   ：以 seed 重建盤面並重播翻格
//   - GET  /dev/metrics ：Runtime / Session 計數與丟棄的 log 筆數
func Register(svr netsvr.NetRouter, rt *minelab.Runtime, log *slog.Logger) {
	lab := rt.Lab()
	svr.Get("/dev", devPage)
	svr.Get("/dev/meta", devMeta(lab))
	svr.Post("/dev/rounds", devRounds(lab))
	svr.Post("/dev/sim", devSim(lab))
	svr.Post("/dev/audit", devAudit(lab))
	svr.Get("/dev/metrics", devMetrics(rt, log))
}

func devPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(devPageHTML))
}

func devMeta(lab *minelab.Minelab) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := lab.Summary()
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		writeJSON(w, sum)
	}
}

func devRounds(lab *minelab.Minelab) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, d, st, ok := prepare(w, r, lab)
		if !ok {
			return
		}
		var (
			rep minelab.DevRoundsReport
			err error
		)
		if req.Snap != "" {
			rep, err = d.RestoreRounds(req.Snap, st, req.Rounds)
		} else {
			rep, err = d.Rounds(st, req.Rounds)
		}
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		writeJSON(w, rep)
	}
}

func devSim(lab *minelab.Minelab) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, d, st, ok := prepare(w, r, lab)
		if !ok {
			return
		}
		var (
			rep minelab.DevSimReport
			err error
		)
		if req.Snap != "" {
			rep, err = d.RestoreSim(req.Snap, st, req.Rounds)
		} else {
			rep, err = d.Sim(st, req.Rounds)
		}
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		writeJSON(w, rep)
	}
}

func devAudit(lab *minelab.Minelab) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := new(auditRequest)
		if err := dto.DecodeJSON(r, req); err != nil {
			httperr.Errs(w, err)
			return
		}
		seed, err := strconv.ParseInt(strings.TrimSpace(req.Seed), 10, 64)
		if err != nil {
			httperr.Errs(w, errs.NewWarn("seed must be int64"))
			return
		}
		rep, err := lab.Audit(req.GID, seed, req.Hazards, req.Picks)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		writeJSON(w, rep)
	}
}

func devMetrics(rt *minelab.Runtime, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, struct {
			minelab.RuntimeMetrics
			LogDropped uint64 `json:"log_dropped"`
		}{rt.Metrics(r.URL.Query().Get("detail") != "false"), logger.Dropped(log)})
	}
}

// prepare 解析請求、決定桌台與 seed，建好 DevSimulator。失敗時已寫回錯誤。
func prepare(w http.ResponseWriter, r *http.Request, lab *minelab.Minelab) (*devRequest, *minelab.DevSimulator, minelab.Strategy, bool) {
	req := new(devRequest)
	if err := dto.DecodeJSON(r, req); err != nil {
		httperr.Errs(w, err)
		return nil, nil, minelab.Strategy{}, false
	}
	gid := req.GID
	if gid == 0 && req.Game != "" {
		ent, ok := lab.EntryByName(req.Game)
		if !ok {
			httperr.Errs(w, errs.NewKind(errs.Warn, errs.NotFound, "unknown game: "+req.Game))
			return nil, nil, minelab.Strategy{}, false
		}
		gid = ent.GID
	}
	var seed int64
	var err error
	if s := strings.TrimSpace(req.Seed); s != "" && req.Snap == "" {
		if seed, err = strconv.ParseInt(s, 10, 64); err != nil {
			httperr.Errs(w, errs.NewWarn("seed must be int64"))
			return nil, nil, minelab.Strategy{}, false
		}
	} else if seed, err = core.NewSeed(); err != nil {
		httperr.Errs(w, errs.NewFatal("seed generate failed"))
		return nil, nil, minelab.Strategy{}, false
	}
	d, err := lab.NewDevSimulator(gid, seed)
	if err != nil {
		httperr.Errs(w, err)
		return nil, nil, minelab.Strategy{}, false
	}
	return req, d, minelab.Strategy{Hazards: req.Hazards, Picks: req.Picks, MaxPicks: req.MaxPick, Weights: req.Weights}, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
