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
	"testing"

	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/sdk/core"
)

// checkDistribution 驗證抽樣結果的分佈是否符合預期權重
func checkDistribution(t *testing.T, name string, weights []int, p Picker, trials int, tolerance float64) {
	t.Helper()
	c := core.New(core.Default().New(20251))
	totalW := 0
	for _, w := range weights {
		totalW += w
	}
	counts := make([]int, len(weights))
	for range trials {
		counts[p.Pick(c)]++
	}
	for i, w := range weights {
		if w == 0 {
			if counts[i] > 0 {
				t.Fatalf("[%s] index %d has weight 0 but was drawn %d times", name, i, counts[i])
			}
			continue
		}
		want := float64(w) / float64(totalW)
		got := float64(counts[i]) / float64(trials)
		if math.Abs(want-got) > tolerance {
			t.Fatalf("[%s] index %d: want %.3f got %.3f", name, i, want, got)
		}
	}
}

func TestAliasTableDistribution(t *testing.T) {
	weights := []int{10, 20, 0, 70}
	at, err := BuildAliasTable(weights)
	if err != nil {
		t.Fatal(err)
	}
	checkDistribution(t, "AliasTable", weights, at, 100000, 0.01)
}

func TestLUTDistribution(t *testing.T) {
	weights := []int{1, 2, 7}
	lut, err := BuildLUT(weights)
	if err != nil {
		t.Fatal(err)
	}
	if len(lut) != 10 {
		t.Fatalf("lut len got %d want 10", len(lut))
	}
	checkDistribution(t, "LUT", weights, lut, 20000, 0.015)
}

func TestNewChoosesByTotal(t *testing.T) {
	p, err := New([]int{3, 5})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(LUT); !ok {
		t.Fatalf("small totals must use LUT, got %T", p)
	}
	p, err = New([]int{lutThreshold, 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*AliasTable); !ok {
		t.Fatalf("large totals must use AliasTable, got %T", p)
	}
}

func TestRejects(t *testing.T) {
	for name, w := range map[string][]int{
		"empty":    nil,
		"zeros":    {0, 0},
		"negative": {10, -1},
		"overflow": {math.MaxInt, 1},
	} {
		if _, err := New(w); !errs.IsKind(err, errs.InvalidConfig) {
			t.Fatalf("%s: want InvalidConfig, got %v", name, err)
		}
	}
	if _, err := BuildLUT([]int{maxLUTCap + 1}); err == nil {
		t.Fatalf("lut above cap must fail")
	}
	if _, err := BuildAliasTable([]int{math.MaxInt / 2, math.MaxInt / 2}); err == nil {
		t.Fatalf("alias scaling overflow must fail")
	}
}
