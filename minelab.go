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

// Package minelab 提供 Minelab 引擎的組裝入口（assembler）與運行入口（runtime entry）。
//
// Minelab 把兩個地基組裝在一起：
//  1. Catalog：桌台目錄，定義有哪些桌台、各自對應的設定檔（盤面尺寸、RTP、難度、押注上下限）。
//  2. CoreFactory：亂數核心工廠，同一個 seed 必定產生同一個地雷佈局，用於事後審計。
//
// 設定檔來源一律以 fs.FS 注入，Minelab 不綁定任何檔案路徑。
//
// 典型使用情境：
//   - 後端服務：BuildRuntime 取得 Runtime，每位玩家一個 Session（錢包 + 回合）。
//   - 模擬器：NewSimulator 以固定打法跑大量回合，輸出 RTP / 爆雷率 / 玩家體驗報表。
package minelab

import (
	"io/fs"
	"log/slog"
	"sync"

	"github.com/zintix-labs/minelab/catalog"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/mines"
	"github.com/zintix-labs/minelab/sdk/core"
	"github.com/zintix-labs/minelab/spec"
)

// Configs 用來把一或多個設定檔來源（fs.FS）打包成 New() 需要的參數。
//
// 可以是 go:embed 的內嵌設定，也可以是本機開發時的 os.DirFS。
func Configs(cfgs ...fs.FS) []fs.FS {
	return cfgs
}

// Minelab 是組裝器與運行入口。
//
// 使用流程分成兩階段：
//   - 註冊階段：建立 catalog、解析設定檔、檢查重複。
//   - 執行階段：Freeze 之後依桌台 ID 建立 Round / Simulator / Runtime。
//
// Catalog 的 ID 唯一性只保證在同一個 Minelab instance 內。
//
//	lab, _ := minelab.NewAuto(core.Default(), minelab.Configs(demo.Configs))
//	rt, _ := lab.BuildRuntime(minelab.RuntimeOptions{Ledger: ledger.Config{BaseURL: url}})
//	s, _ := rt.Session(ctx, principal)
//	view, _ := s.Start(ctx, 1, "easy", 0, 10)
type Minelab struct {
	cat     *catalog.Catalog
	cf      core.CoreFactory
	sumOnce sync.Once
	sum     []catalog.Summary
}

// New 建立一個 Minelab instance（註冊階段）。
//
// cf 不能為 nil，cfgs 至少一個。
func New(cf core.CoreFactory, cfgs []fs.FS) (*Minelab, error) {
	if cf == nil {
		return nil, errs.NewFatal("core factory required")
	}
	if len(cfgs) == 0 {
		return nil, errs.NewFatal("configs required")
	}
	cata, err := catalog.New(cfgs...)
	if err != nil {
		return nil, err
	}
	return &Minelab{cat: cata, cf: cf}, nil
}

// NewAuto 註冊全部設定檔並 Freeze，直接進入執行階段。
func NewAuto(cf core.CoreFactory, cfgs []fs.FS) (*Minelab, error) {
	lab, err := New(cf, cfgs)
	if err != nil {
		return nil, err
	}
	if err := lab.RegisterAll(); err != nil {
		return nil, err
	}
	lab.Freeze()
	return lab, nil
}

func (m *Minelab) Register(ents ...catalog.Entry) error {
	return m.cat.Register(ents...)
}

// RegisterAll 掃描所有設定檔來源並一次性註冊（fail-fast、原子、依檔名排序）。
func (m *Minelab) RegisterAll() error {
	return m.cat.RegisterAll()
}

func (m *Minelab) Freeze() {
	m.cat.Freeze()
}

func (m *Minelab) CoreFactory() core.CoreFactory {
	return m.cf
}

func (m *Minelab) EntryById(id spec.GID) (catalog.Entry, bool) {
	return m.cat.GetByID(id)
}

func (m *Minelab) EntryByName(name string) (catalog.Entry, bool) {
	return m.cat.GetByName(name)
}

func (m *Minelab) IDs() []spec.GID {
	return m.cat.IDs()
}

// Summary 回傳所有桌台摘要（快取）。
func (m *Minelab) Summary() ([]catalog.Summary, error) {
	if !m.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	m.sumOnce.Do(func() { m.sum = m.cat.Summaries() })
	return m.sum, nil
}

// Table 依桌台 ID 取得設定。
func (m *Minelab) Table(id spec.GID) (*spec.TableSetting, error) {
	if !m.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	return m.cat.Table(id)
}

// Odds 依桌台與難度（或明確地雷數）回傳每一步的存活機率與倍數，以及採用的地雷數。
func (m *Minelab) Odds(id spec.GID, level string, hazards int) ([]mines.Step, int, error) {
	ts, err := m.Table(id)
	if err != nil {
		return nil, 0, err
	}
	h, err := ts.Hazards(level, hazards)
	if err != nil {
		return nil, 0, err
	}
	return mines.OddsTable(ts.Total(), h, ts.RTP), h, nil
}

// NewRound 依桌台 ID 建立一個 Idle 的回合，錢包由呼叫端提供。
func (m *Minelab) NewRound(id spec.GID, wallet mines.Wallet, log *slog.Logger) (*mines.Round, error) {
	ts, err := m.Table(id)
	if err != nil {
		return nil, err
	}
	return mines.NewRound(roundConfig(ts, m.cf), wallet, log)
}

func roundConfig(ts *spec.TableSetting, cf core.CoreFactory) mines.Config {
	return mines.Config{
		Rows:        ts.Rows,
		Cols:        ts.Columns,
		RTP:         ts.RTP,
		CoreFactory: cf,
		Seeds:       core.NewSeed,
	}
}

func (m *Minelab) NewSimulator(id spec.GID) (*Simulator, error) {
	ts, err := m.Table(id)
	if err != nil {
		return nil, err
	}
	return newSimulator(ts, m.cf)
}

func (m *Minelab) NewSimulatorWithSeed(id spec.GID, seed int64) (*Simulator, error) {
	ts, err := m.Table(id)
	if err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(ts, m.cf, seed)
}

// NewSimulatorByJSON 以臨時設定（例如調整 RTP 或盤面）建立模擬器；game_id 與 game_name 必須對應目錄內的桌台。
func (m *Minelab) NewSimulatorByJSON(raw []byte, seed int64) (*Simulator, error) {
	if !m.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	ts, err := spec.GetTableSettingByJSON(raw)
	if err != nil {
		return nil, errs.WrapKind(err, errs.Warn, errs.InvalidConfig, "invalid table setting")
	}
	if err := m.validCfg(ts); err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(ts, m.cf, seed)
}

func (m *Minelab) NewSimulatorByYAML(raw []byte, seed int64) (*Simulator, error) {
	if !m.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	ts, err := spec.GetTableSettingByYAML(raw)
	if err != nil {
		return nil, errs.WrapKind(err, errs.Warn, errs.InvalidConfig, "invalid table setting")
	}
	if err := m.validCfg(ts); err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(ts, m.cf, seed)
}

func (m *Minelab) validCfg(ts *spec.TableSetting) error {
	ent, ok := m.cat.GetByID(ts.GameID)
	if !ok {
		return errs.NewKind(errs.Warn, errs.NotFound, "gid not exist")
	}
	ent2, ok := m.cat.GetByName(ts.GameName)
	if !ok {
		return errs.NewKind(errs.Warn, errs.NotFound, "game name not exist")
	}
	if ent.GID != ent2.GID {
		return errs.NewKind(errs.Warn, errs.InvalidConfig, "game id is not matched game name")
	}
	return nil
}
