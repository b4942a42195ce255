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

package demo

import (
	"log/slog"
	"time"

	"github.com/zintix-labs/minelab"
	"github.com/zintix-labs/minelab/demo/demo_configs"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/sdk/core"
	"github.com/zintix-labs/minelab/server/logger"
	"github.com/zintix-labs/minelab/server/svrcfg"
)

// DefaultLedgerURL 本機開發帳本（cmd/ledgerd）的預設位址。
const DefaultLedgerURL = "http://localhost:8083"

// NewServerConfig 示範桌台 + 本機帳本 + /dev 工具頁，呼叫端再依旗標覆寫。
//
// log 為 nil 時使用 dev 模式的非同步 logger。
func NewServerConfig(log *slog.Logger) (*svrcfg.SvrCfg, error) {
	lab, err := NewMinelab()
	if err != nil {
		return nil, errs.Wrap(err, "new demo minelab failed")
	}
	if log == nil {
		log = logger.NewDefaultAsyncLogger(logger.ModeDev)
	}
	return &svrcfg.SvrCfg{
		Log:     log,
		Minelab: lab,
		Ledger:  svrcfg.LedgerCfg{BaseURL: DefaultLedgerURL, Timeout: 10 * time.Second},
		Addr:    svrcfg.DefaultAddr,
		IdleTTL: 30 * time.Minute,
		Dev:     true,
	}, nil
}

// NewMinelab 內嵌示範桌台（bomb_or_claat 4x8、classic 5x5）組成的 Minelab。
func NewMinelab() (*minelab.Minelab, error) {
	return minelab.NewAuto(core.Default(), minelab.Configs(demo_configs.FS))
}
