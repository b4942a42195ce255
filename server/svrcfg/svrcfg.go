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

package svrcfg

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zintix-labs/minelab"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/ledger"
	"github.com/zintix-labs/minelab/server/logger"
)

const DefaultAddr = ":5808"

// LedgerCfg 遠端帳本位址與逾時。
type LedgerCfg struct {
	BaseURL string
	Timeout time.Duration
}

type SvrCfg struct {
	Log     *slog.Logger
	Minelab *minelab.Minelab
	Ledger  LedgerCfg
	Addr    string        // 監聽位址，空值為 :5808
	Secret  []byte        // bearer token HS256 金鑰；空值時只解析不驗章，需同時設 TrustGateway
	IdleTTL time.Duration // Session 閒置回收時間，0 代表 30 分鐘
	Dev     bool          // 掛載 /dev 工具頁

	// TrustGateway 前面有 gateway 驗章時才允許 Secret 為空；
	// 此時換 token 的請求會先由帳本確認才沿用既有 Session
	TrustGateway bool

	// Rigged 剪刀石頭布莊家作弊機率，0 用預設值，<0 為公平
	Rigged float64
	// ArcadeMaxWager 小遊戲押注上限，0 不限
	ArcadeMaxWager float64

	// WriteTimeout 單一回應的寫出上限，0 使用 netsvr 預設 15 秒，<0 不設上限
	WriteTimeout time.Duration

	// CheckOrigin 餘額推播 websocket 的來源檢查，nil 時只允許同源
	CheckOrigin func(r *http.Request) bool
}

func (sc *SvrCfg) Vaild() error {
	if sc.Log != nil {
		if ah, ok := sc.Log.Handler().(*logger.AsyncHandler); ok && !ah.Ready() {
			return errs.NewFatal("nil default log handler: async handler is nil")
		}
	} else {
		// 保持安靜、合法
		sc.Log, _ = logger.NewAsync(1024, logger.ModeDev)
	}
	if sc.Minelab == nil {
		return errs.NewFatal("minelab is required")
	}
	sc.Ledger.BaseURL = strings.TrimRight(strings.TrimSpace(sc.Ledger.BaseURL), "/")
	if sc.Ledger.BaseURL == "" {
		return errs.NewKind(errs.Fatal, errs.InvalidConfig, "ledger base url is required")
	}
	if sc.Ledger.Timeout < 0 {
		return errs.NewKind(errs.Fatal, errs.InvalidConfig, "ledger timeout must be >= 0")
	}
	if len(sc.Secret) == 0 && !sc.TrustGateway {
		return errs.NewKind(errs.Fatal, errs.InvalidConfig, "secret is required unless trust gateway is set")
	}
	if sc.Rigged > 1 {
		return errs.NewKind(errs.Fatal, errs.InvalidConfig, "rigged must be <= 1")
	}
	if sc.ArcadeMaxWager < 0 {
		return errs.NewKind(errs.Fatal, errs.InvalidConfig, "arcade max wager must be >= 0")
	}
	if sc.Addr == "" {
		sc.Addr = DefaultAddr
	}
	if !strings.Contains(sc.Addr, ":") {
		return errs.NewKind(errs.Fatal, errs.InvalidConfig, "addr must look like host:port or :port")
	}
	return nil
}

// RuntimeOptions 轉成執行期設定。
func (sc *SvrCfg) RuntimeOptions() minelab.RuntimeOptions {
	return minelab.RuntimeOptions{
		Ledger: ledger.Config{
			BaseURL: sc.Ledger.BaseURL,
			Timeout: sc.Ledger.Timeout,
		},
		IdleTTL:        sc.IdleTTL,
		Log:            sc.Log,
		Rigged:         sc.Rigged,
		ArcadeMaxWager: sc.ArcadeMaxWager,
	}
}
