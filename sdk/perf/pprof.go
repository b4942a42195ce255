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

// Package perf 包住一次模擬執行並寫出 pprof 檔，給 cmd/sim 的 -p 旗標使用。
package perf

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"github.com/zintix-labs/minelab/errs"
)

// Dir pprof 檔案寫入路徑
var Dir = "build/profiling"

// RunPProf 依 mode 執行 exe：""、cpu、heap、allocs；未知 mode 直接執行不做 profiling。
//
// 產生的 cpu.pprof 也可拿來做 pgo：
//
//	go run ./cmd/sim -p cpu -rounds 5000000
func RunPProf(exe func(), mode string) {
	var err error
	switch mode {
	case "cpu":
		err = CPU(exe)
	case "heap":
		err = Snapshot(exe, "heap")
	case "allocs":
		err = Snapshot(exe, "allocs")
	default:
		exe()
	}
	if err != nil {
		log.Fatal(err)
	}
}

// CPU 在 exe 執行期間開啟 CPU profiling，輸出 Dir/cpu.pprof。
func CPU(exe func()) error {
	f, err := create("cpu")
	if err != nil {
		return err
	}
	defer f.Close()
	if err := pprof.StartCPUProfile(f); err != nil {
		return errs.Wrap(err, "start cpu profile")
	}
	defer pprof.StopCPUProfile()
	exe()
	return nil
}

// Snapshot 在 exe 結束後寫出具名 profile（heap: in-use 記憶體；allocs: 累積配置）。
//
// heap 寫出前先 GC 一次，讓 live objects 貼近最新狀態。
func Snapshot(exe func(), name string) error {
	exe()
	prof := pprof.Lookup(name)
	if prof == nil {
		return errs.NewWarn("unknown profile: " + name)
	}
	if name == "heap" {
		runtime.GC()
	}
	f, err := create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := prof.WriteTo(f, 0); err != nil {
		return errs.Wrap(err, "write "+name+" profile")
	}
	return nil
}

func create(name string) (*os.File, error) {
	if err := os.MkdirAll(Dir, 0o755); err != nil {
		return nil, errs.Wrap(err, "create profiling dir")
	}
	f, err := os.Create(filepath.Join(Dir, name+".pprof"))
	if err != nil {
		return nil, errs.Wrap(err, "create "+name+".pprof")
	}
	return f, nil
}
