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

package sampler

import (
	"fmt"

	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/sdk/core"
)

const maxLUTCap = 10_000_000

// LUT 把權重展開成索引陣列：[3,5,0] -> [0,0,0,1,1,1,1,1]，抽樣只做一次 IntN。
type LUT []int

func BuildLUT(weights []int) (LUT, error) {
	total, err := sum(weights)
	if err != nil {
		return nil, err
	}
	if total > maxLUTCap {
		return nil, errs.NewKind(errs.Warn, errs.InvalidConfig, fmt.Sprintf("lut: total weight %d exceeds %d, use alias table", total, maxLUTCap))
	}
	lut := make(LUT, 0, total)
	for i, w := range weights {
		for range w {
			lut = append(lut, i)
		}
	}
	return lut, nil
}

func (l LUT) Pick(c *core.Core) int {
	return c.Pick(l)
}
