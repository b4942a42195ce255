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

package api

import (
	"log/slog"

	"github.com/zintix-labs/minelab"
	"github.com/zintix-labs/minelab/auth"
	"github.com/zintix-labs/minelab/server/api/dev"
	v1 "github.com/zintix-labs/minelab/server/api/v1"
	"github.com/zintix-labs/minelab/server/netsvr"
	"github.com/zintix-labs/minelab/server/netsvr/middleware"
	"github.com/zintix-labs/minelab/server/svrcfg"
)

// RegisterRoutes 註冊
func RegisterRoutes(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg, rt *minelab.Runtime) error {
	registerMiddleware(svr, sCfg.Log) // 1. 註冊 middleware
	registerHealth(svr, rt)           // 2. 存活檢查
	if sCfg.Dev {
		dev.Register(svr, rt, sCfg.Log) // 3. 開發者工具頁
	}
	return registerV1API(svr, sCfg, rt) // 4. 註冊 v1 api
}

// 註冊 middleware
func registerMiddleware(svr netsvr.NetSvr, log *slog.Logger) {
	svr.Use(middleware.RequestID)
	svr.Use(middleware.AccessLog(log))
	svr.Use(middleware.Recover(log))
	svr.Use(middleware.Compression)
}

func registerHealth(svr netsvr.NetSvr, rt *minelab.Runtime) {
	svr.Get("/healthz", v1.Health(rt))
}

// 註冊 v1 api：桌台 / 賠率 / 模擬公開，其餘需 bearer token
func registerV1API(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg, rt *minelab.Runtime) error {
	games, err := v1.NewGamesHandler(rt.Lab())
	if err != nil {
		return err
	}
	sim, err := v1.NewSimHandler(rt.Lab())
	if err != nil {
		return err
	}
	play, err := v1.NewPlayHandler(rt, sCfg.Log)
	if err != nil {
		return err
	}
	wallet, err := v1.NewWalletHandler(rt, sCfg.Log, sCfg.CheckOrigin)
	if err != nil {
		return err
	}
	arcade, err := v1.NewArcadeHandler(rt, sCfg.Log)
	if err != nil {
		return err
	}
	guard := middleware.Bearer(auth.NewVerifier(sCfg.Secret))

	svr.Group("/v1", func(vOne netsvr.NetRouter) {
		vOne.Get("/games", games.Games)
		vOne.Get("/odds", games.Odds)

		vOne.Get("/sim", sim.Sim)
		vOne.Post("/sim", sim.Sim)
		vOne.Get("/simplayer", sim.SimPlayers)
		vOne.Post("/simplayer", sim.SimPlayers)
		vOne.Post("/simbycfg", sim.SimByCfg)
		vOne.Post("/stat", sim.Stat)
		vOne.Get("/arcade", arcade.Rules)

		me := vOne.With(guard)
		me.Get("/rounds", play.Current)
		me.Post("/rounds", play.Start)
		me.Post("/rounds/reveal", play.Reveal)
		me.Post("/rounds/cashout", play.CashOut)
		me.Post("/rounds/reset", play.Reset)

		me.Get("/blackjack", arcade.Hand)
		me.Post("/blackjack", arcade.Deal)
		me.Post("/blackjack/hit", arcade.Hit)
		me.Post("/blackjack/stand", arcade.Stand)
		me.Post("/blackjack/reset", arcade.Reset)
		me.Post("/rps", arcade.RPS)
		me.Post("/reels", arcade.Spin)

		me.Get("/balance", wallet.Balance)
		me.Get("/balance/stream", wallet.Stream)
		me.Get("/transactions", wallet.Transactions)
		me.Get("/transactions/{id}", wallet.Transaction)
		me.Post("/ledger/settle", wallet.Settle)
		me.Post("/logout", wallet.Logout)
	})
	return nil
}
