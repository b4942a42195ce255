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

package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/zintix-labs/minelab/demo"
	"github.com/zintix-labs/minelab/server"
	"github.com/zintix-labs/minelab/server/logger"
	"github.com/zintix-labs/minelab/server/svrcfg"
)

// 旗標預設值可由環境變數（或工作目錄下的 .env）提供：
//
//	MINELAB_ADDR  MINELAB_LEDGER_URL  MINELAB_SECRET  MINELAB_LOG_MODE  MINELAB_DEV  MINELAB_IDLE  MINELAB_WRITE_TIMEOUT
func main() {
	cfg, err := loadConfigFromFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Drain(cfg.Log)
	if openDev && cfg.Dev {
		go openWhenReady(cfg.Addr)
	}
	server.Run(cfg)
}

var openDev bool

type config struct {
	Addr      string
	LedgerURL string
	Timeout   time.Duration
	Secret    string
	Trust     bool
	LogMode   string
	Dev       bool
	Idle      time.Duration
	Write     time.Duration
	Rigged    float64
	MaxWager  float64
}

func loadConfigFromFlags() (*svrcfg.SvrCfg, error) {
	// .env 不存在時照常以旗標/環境變數啟動
	_ = godotenv.Load()

	cfg := new(config)
	flag.StringVar(&cfg.Addr, "addr", env("MINELAB_ADDR", svrcfg.DefaultAddr), "listen address")
	flag.StringVar(&cfg.LedgerURL, "ledger", env("MINELAB_LEDGER_URL", demo.DefaultLedgerURL), "remote ledger base url")
	flag.DurationVar(&cfg.Timeout, "ledger-timeout", 10*time.Second, "ledger request timeout")
	flag.StringVar(&cfg.Secret, "secret", env("MINELAB_SECRET", ""), "HS256 secret for bearer tokens")
	flag.BoolVar(&cfg.Trust, "trust-gateway", envBool("MINELAB_TRUST_GATEWAY", false), "allow an empty -secret when a gateway already verified the token")
	flag.StringVar(&cfg.LogMode, "log-mode", env("MINELAB_LOG_MODE", "dev"), "log mode: dev|prod|silence")
	flag.BoolVar(&cfg.Dev, "dev", envBool("MINELAB_DEV", true), "mount /dev tools")
	flag.DurationVar(&cfg.Idle, "idle", envDuration("MINELAB_IDLE", 30*time.Minute), "evict sessions idle longer than this")
	flag.DurationVar(&cfg.Write, "write-timeout", envDuration("MINELAB_WRITE_TIMEOUT", time.Minute), "response write timeout; large /v1/sim runs need more than the 15s default")
	flag.Float64Var(&cfg.Rigged, "rps-rigged", envFloat("MINELAB_RPS_RIGGED", 0), "chance the rps dealer plays the counter; 0 keeps the default, <0 is fair")
	flag.Float64Var(&cfg.MaxWager, "arcade-max-wager", envFloat("MINELAB_ARCADE_MAX_WAGER", 0), "wager cap for blackjack, rps and reels; 0 is unlimited")
	flag.BoolVar(&openDev, "open", false, "open the /dev page in a browser once listening")
	flag.Parse()

	mode, err := logger.ParseMode(cfg.LogMode)
	if err != nil {
		return nil, err
	}
	log, _ := logger.NewAsync(4096, mode)

	scfg, err := demo.NewServerConfig(log)
	if err != nil {
		return nil, err
	}
	scfg.Ledger = svrcfg.LedgerCfg{BaseURL: cfg.LedgerURL, Timeout: cfg.Timeout}
	scfg.Addr = cfg.Addr
	scfg.Secret = []byte(cfg.Secret)
	scfg.TrustGateway = cfg.Trust
	scfg.IdleTTL = cfg.Idle
	scfg.Dev = cfg.Dev
	scfg.WriteTimeout = cfg.Write
	scfg.Rigged = cfg.Rigged
	scfg.ArcadeMaxWager = cfg.MaxWager
	return scfg, nil
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	b, err := strconv.ParseBool(env(key, ""))
	if err != nil {
		return def
	}
	return b
}

func envFloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(env(key, ""), 64)
	if err != nil {
		return def
	}
	return f
}

func envDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(env(key, ""))
	if err != nil {
		return def
	}
	return d
}
