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

// Package sampler 加權抽樣：模擬器用來抽每局的兌現目標格數。
//
// 權重總和小時用 LUT（一次 IntN），大時用 AliasTable（兩次 IntN，記憶體與總和無關）。
package sampler

import (
	"fmt"
	"math"

	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/sdk/core"
)

// lutThreshold 權重總和在此以下使用 LUT
const lutThreshold = 100_000

// Picker 依權重回傳索引，表為空時回傳 -1。
type Picker interface {
	Pick(c *core.Core) int
}

// New 依權重總和挑選實作。負權重、全零或溢位時回傳 InvalidConfig。
func New(weights []int) (Picker, error) {
	total, err := sum(weights)
	if err != nil {
		return nil, err
	}
	if total <= lutThreshold {
		return BuildLUT(weights)
	}
	return BuildAliasTable(weights)
}

func sum(weights []int) (int, error) {
	if len(weights) == 0 {
		return 0, errs.NewKind(errs.Warn, errs.InvalidConfig, "weights required")
	}
	total := 0
	for i, w := range weights {
		if w < 0 {
			return 0, errs.NewKind(errs.Warn, errs.InvalidConfig, fmt.Sprintf("negative weight at %d", i))
		}
		if total > math.MaxInt-w {
			return 0, errs.NewKind(errs.Warn, errs.InvalidConfig, "total weight overflows int")
		}
		total += w
	}
	if total == 0 {
		return 0, errs.NewKind(errs.Warn, errs.InvalidConfig, "all weights are zero")
	}
	return total, nil
}
