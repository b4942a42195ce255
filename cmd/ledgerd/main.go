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

// ledgerd 本機開發帳本：sqlite 落地，實作 minelab 依賴的帳戶/交易 HTTP 合約。
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/zintix-labs/minelab/auth"
	"github.com/zintix-labs/minelab/ledger/ledgersvr"
	"github.com/zintix-labs/minelab/server/app"
	"github.com/zintix-labs/minelab/server/logger"
	"github.com/zintix-labs/minelab/server/netsvr"
)

type config struct {
	Addr    string
	DB      string
	Secret  string
	Initial int64
	Seed    string
	LogMode string
}

func main() {
	_ = godotenv.Load()

	cfg := new(config)
	flag.StringVar(&cfg.Addr, "addr", env("LEDGERD_ADDR", ":8083"), "listen address")
	flag.StringVar(&cfg.DB, "db", env("LEDGERD_DB", "ledger.db"), "sqlite file, :memory: for a throwaway ledger")
	flag.StringVar(&cfg.Secret, "secret", env("MINELAB_SECRET", ""), "HS256 secret; empty accepts any bearer token")
	flag.Int64Var(&cfg.Initial, "initial", 5000, "opening balance in cents for new accounts")
	flag.StringVar(&cfg.Seed, "seed", env("LEDGERD_SEED", "player@example.com,demo@example.com"), "comma separated demo accounts created on start")
	flag.StringVar(&cfg.LogMode, "log-mode", env("MINELAB_LOG_MODE", "dev"), "log mode: dev|prod|silence")
	flag.Parse()

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config) error {
	mode, err := logger.ParseMode(cfg.LogMode)
	if err != nil {
		return err
	}
	log, _ := logger.NewAsync(1024, mode)
	defer logger.Drain(log)

	store, err := ledgersvr.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, email := range strings.Split(cfg.Seed, ",") {
		if strings.TrimSpace(email) == "" {
			continue
		}
		a, err := store.EnsureUser(context.Background(), email, cfg.Initial)
		if err != nil {
			return err
		}
		log.Info("ledgerd.seed", slog.String("email", a.Email), slog.Int64("balance", a.Balance))
	}

	opt := ledgersvr.Options{InitialBalance: cfg.Initial, Log: log}
	if cfg.Secret != "" {
		opt.Verifier = auth.NewVerifier([]byte(cfg.Secret))
	}
	svr := netsvr.NewChiServer(cfg.Addr)
	svr.Mount("/", ledgersvr.NewHandler(store, opt).Routes())

	log.Info("[ledgerd] listening on http://localhost"+svr.Address(), slog.String("db", cfg.DB))
	return app.NewWith(svr).WithLogger(log).Run()
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
