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

package mines

import "math"

// DefaultRTP 預設返還率。
const DefaultRTP = 0.995

// Probability 回傳連續 k 次都翻到安全格的機率（超幾何分布，不放回）。
//
//	P(k) = Π_{i=0}^{k-1} (safe-i)/(total-i), safe = total-hazards
//
// P(0) = 1；k 超過安全格數時回傳 0。
func Probability(total, hazards, k int) float64 {
	safe := total - hazards
	if k <= 0 {
		return 1
	}
	if k > safe || total <= 0 {
		return 0
	}
	p := 1.0
	for i := 0; i < k; i++ {
		p *= float64(safe-i) / float64(total-i)
	}
	return p
}

// Multiplier 回傳翻開 k 個安全格後的派彩倍數。
//
// 每次都從頭重算整個乘積，不做增量更新。
// k == 0 時固定為 1（尚未翻格，不加成）。
func Multiplier(total, hazards, k int, rtp float64) float64 {
	if k <= 0 {
		return 1
	}
	p := Probability(total, hazards, k)
	if p <= 0 {
		return 0
	}
	return rtp / p
}

// Round2 四捨五入到小數兩位，只給顯示用；不可回寫到派彩計算。
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Step 是賠率表中的一列。
type Step struct {
	Picks       int     `json:"picks"`
	Probability float64 `json:"probability"`
	Multiplier  float64 `json:"multiplier"`
}

// OddsTable 列出 k = 1..safe 的機率與倍數，給前端顯示與模擬器使用。
func OddsTable(total, hazards int, rtp float64) []Step {
	safe := total - hazards
	if safe <= 0 {
		return nil
	}
	out := make([]Step, 0, safe)
	for k := 1; k <= safe; k++ {
		out = append(out, Step{
			Picks:       k,
			Probability: Probability(total, hazards, k),
			Multiplier:  Multiplier(total, hazards, k, rtp),
		})
	}
	return out
}
