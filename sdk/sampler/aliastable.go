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
	"math"
	"math/bits"

	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/sdk/core"
)

// AliasTable Vose alias method 的整數版：prob 以 weight*n 放大，和 total 比較，不經過浮點。
//
// 建表 O(n)，抽樣 O(1)（固定兩次 IntN）。
type AliasTable struct {
	Prob    []int
	Aliases []int
	Size    int
	Total   int
}

// BuildAliasTable 建表；weights 不需正規化，可含零但不能全零。
func BuildAliasTable(weights []int) (*AliasTable, error) {
	total, err := sum(weights)
	if err != nil {
		return nil, err
	}
	n := len(weights)
	if hi, lo := bits.Mul64(uint64(total), uint64(n)); hi != 0 || lo > math.MaxInt64 {
		return nil, errs.NewKind(errs.Warn, errs.InvalidConfig, "weights too large for alias table")
	}

	prob := make([]int, n)
	aliases := make([]int, n)
	small := make([]int, 0, n)
	large := make([]int, 0, n)
	for i, w := range weights {
		prob[i] = w * n
		if prob[i] < total {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}
	// 每次把 s 不足的部分由 l 補上；sum(prob) = total*n 不變
	for len(small) > 0 && len(large) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		l := large[len(large)-1]
		large = large[:len(large)-1]

		aliases[s] = l
		prob[l] = prob[l] + prob[s] - total
		if prob[l] < total {
			small = append(small, l)
		} else {
			large = append(large, l)
		}
	}
	return &AliasTable{Prob: prob, Aliases: aliases, Size: n, Total: total}, nil
}

func (at *AliasTable) Pick(c *core.Core) int {
	if at.Size == 0 {
		return -1
	}
	idx := c.IntN(at.Size)
	if c.IntN(at.Total) < at.Prob[idx] {
		return idx
	}
	return at.Aliases[idx]
}
