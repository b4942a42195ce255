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
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// 這些套件持有共享狀態（Session map、錢包、websocket 推播），跑 race 最有價值
var racePkgs = []string{".", "./ledger/...", "./mines/...", "./server/..."}

func runTest(_ []string) error {
	banner("running tests")
	if err := cleanCache(); err != nil {
		red(err.Error()) // clean 失敗不中斷
	}
	return stream(exec.Command("go", "test", "./...", "-cover", "-count=1"), func(line string) {
		switch {
		case strings.HasPrefix(line, "ok"):
			green(line)
		case strings.HasPrefix(line, "FAIL"):
			red(line)
		case strings.Contains(line, "build failed"), strings.Contains(line, "setup failed"):
			// 不印出來的話編譯錯誤會整個被過濾掉
			red(line)
		}
	})
}

func runTestAll(_ []string) error {
	banner("running tests (all with coverage)")
	if err := cleanCache(); err != nil {
		return err
	}
	return attached(exec.Command("go", "test", "./...", "-cover"))
}

func runTestDetail(_ []string) error {
	banner("running tests (detail)")
	if err := cleanCache(); err != nil {
		return err
	}
	return stream(exec.Command("go", "test", "./...", "-v", "-count=1"), func(line string) {
		switch {
		case strings.Contains(line, "[no test files]"):
		case strings.HasPrefix(line, "ok"), strings.HasPrefix(line, "--- PASS"):
			green(line)
		case strings.HasPrefix(line, "FAIL"), strings.HasPrefix(line, "--- FAIL"):
			red(line)
		default:
			fmt.Println(line)
		}
	})
}

func runTestRace(_ []string) error {
	banner("running tests (race)")
	args := append([]string{"test", "-race", "-count=1"}, racePkgs...)
	return attached(exec.Command("go", args...))
}

// runRTP 逐一等級跑 cmd/sim，以表格輸出方便目視比對 Target RTP 與 95% CI。
func runRTP(args []string) error {
	game, rounds := "1", "1000000"
	if len(args) > 0 {
		game = args[0]
	}
	if len(args) > 1 {
		if _, err := strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("rounds must be an integer: %s", args[1])
		}
		rounds = args[1]
	}
	for _, lv := range []string{"easy", "medium", "hard", "expert"} {
		banner("rtp game=" + game + " level=" + lv)
		cmd := exec.Command("go", "run", "./cmd/sim", "-game", game, "-level", lv, "-picks", "1", "-rounds", rounds, "-seed", "1")
		if err := attached(cmd); err != nil {
			// 等級名稱依桌台而定，缺的等級直接略過
			yellow("skip level " + lv + ": " + err.Error())
		}
	}
	return nil
}

func cleanCache() error {
	cmd := exec.Command("go", "clean", "-testcache")
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go clean -testcache failed: %w", err)
	}
	return nil
}

func attached(cmd *exec.Cmd) error {
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s finished with errors: %w", strings.Join(cmd.Args, " "), err)
	}
	return nil
}

// stream 合併 stdout/stderr（等同 2>&1）並逐行交給 fn。
func stream(cmd *exec.Cmd, fn func(line string)) error {
	pr, pw := io.Pipe()
	cmd.Stdout, cmd.Stderr = pw, pw
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", cmd.Args[0], err)
	}
	go func() {
		pw.CloseWithError(cmd.Wait())
	}()
	sc := bufio.NewScanner(pr)
	for sc.Scan() {
		fn(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("tests finished with errors: %w", err)
	}
	return nil
}
