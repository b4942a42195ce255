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

package server

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/zintix-labs/minelab"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/server/api"
	"github.com/zintix-labs/minelab/server/app"
	"github.com/zintix-labs/minelab/server/netsvr"
	"github.com/zintix-labs/minelab/server/svrcfg"
)

// Run 以 sCfg.Addr 建立 chi server 並阻塞到收到終止信號。
func Run(sCfg *svrcfg.SvrCfg) {
	if err := sCfg.Vaild(); err != nil {
		// 防止外層傳入的logger不可用
		fmt.Fprintln(os.Stderr, err)
		return
	}
	var opts []netsvr.Option
	if sCfg.WriteTimeout != 0 {
		opts = append(opts, netsvr.WithWriteTimeout(sCfg.WriteTimeout))
	}
	RunWithSvr(sCfg, netsvr.NewChiServer(sCfg.Addr, opts...))
}

func RunWithSvr(sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) {
	if err := sCfg.Vaild(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if svr == nil {
		sCfg.Log.Error(errs.NewFatal("svr is required").Error())
		return
	}
	if s, ok := svr.(*netsvr.ChiAdapter); ok && !s.Ready() {
		sCfg.Log.Error(errs.NewFatal("default server is not ready").Error())
		return
	}

	rt, err := Build(sCfg, svr)
	if err != nil {
		sCfg.Log.Error("build failed", slog.Any("err", err))
		return
	}
	defer rt.Close()

	// 關閉時逆序：先停 HTTP 入口，再停 Session 回收
	a := app.NewWith(app.NewWorker(rt.Run), svr).WithLogger(sCfg.Log)
	addr := sCfg.Addr
	if s, ok := svr.(*netsvr.ChiAdapter); ok {
		addr = s.Address()
	}
	sCfg.Log.Info("[minelab] listening on http://localhost"+addr, slog.String("ledger", sCfg.Ledger.BaseURL))
	if err := a.Run(); err != nil {
		sCfg.Log.Error("app stopped:", slog.Any("err", err))
	}
}

// Build 建立 Runtime 並把路由掛到 svr 上；測試以 svr.Handler() 搭配 httptest 使用。
func Build(sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) (*minelab.Runtime, error) {
	if err := sCfg.Vaild(); err != nil {
		return nil, err
	}
	rt, err := sCfg.Minelab.BuildRuntime(sCfg.RuntimeOptions())
	if err != nil {
		return nil, err
	}
	if err := api.RegisterRoutes(svr, sCfg, rt); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}
