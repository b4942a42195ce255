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
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen).PrintlnFunc()
	red    = color.New(color.FgRed).PrintlnFunc()
	yellow = color.New(color.FgYellow).PrintlnFunc()
)

// task 一個 make 目標對應的動作
type task struct {
	desc string
	run  func(args []string) error
}

var tasks = map[string]task{
	"test":        {"go test ./... -cover, prints ok/FAIL lines only", runTest},
	"test-all":    {"go test ./... -cover with full output", runTestAll},
	"test-detail": {"go test ./... -v, hides packages without tests", runTestDetail},
	"test-race":   {"race detector over the session/runtime/server packages", runTestRace},
	"rtp":         {"single-thread RTP check for every level of a game: rtp [game] [rounds]", runRTP},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	t, ok := tasks[os.Args[1]]
	if !ok {
		yellow(fmt.Sprintf("Unknown task: %s", os.Args[1]))
		usage()
		os.Exit(1)
	}
	if err := t.run(os.Args[2:]); err != nil {
		red(err.Error())
		os.Exit(1) // 讓 Makefile 知道失敗
	}
}

func usage() {
	fmt.Println("Usage: go run ./scripts [task]")
	names := make([]string, 0, len(tasks))
	for n := range tasks {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Printf("  %-12s %s\n", n, tasks[n].desc)
	}
}

func banner(msg string) {
	green(strings.Repeat("=", 8) + " " + msg)
}
