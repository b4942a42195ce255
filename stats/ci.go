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

package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const confidence = 0.95

func ratio(k, n int) PointStat {
	hat, ci := proportionCICP(k, n, confidence)
	return PointStat{Hat: hat, CI: ci}
}

// proportionCICP 二項比例 k/n 的 Clopper-Pearson 精確區間。
func proportionCICP(k, n int, level float64) (float64, CI) {
	if n == 0 {
		return 0, CI{Lo: 0, Hi: 1}
	}
	tail := (1 - level) / 2
	ci := CI{Lo: 0, Hi: 1}
	if k > 0 {
		ci.Lo = distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}.Quantile(tail)
	}
	if k < n {
		ci.Hi = distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}.Quantile(1 - tail)
	}
	return float64(k) / float64(n), ci
}

// quantileStat 經驗分位數與其 distribution-free 區間；sorted 必須已排序。
//
// 第 k 個順序統計量落在 q 分位以下的機率是二項分布，
// 用 Beta 反推 p 的上下界後換回樣本索引。
func quantileStat(sorted []float64, q float64) PointStat {
	n := len(sorted)
	switch n {
	case 0:
		return PointStat{}
	case 1:
		return PointStat{Hat: sorted[0], CI: CI{Lo: sorted[0], Hi: sorted[0]}}
	}
	k := min(max(int(q*float64(n)), 1), n-1)
	tail := (1 - confidence) / 2
	pLo := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}.Quantile(tail)
	pHi := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}.Quantile(1 - tail)

	lo := min(max(int(pLo*float64(n)), 0), n-1)
	hi := min(max(int(pHi*float64(n))-1, 0), n-1)
	return PointStat{
		Hat: stat.Quantile(q, stat.Empirical, sorted, nil),
		CI:  CI{Lo: sorted[lo], Hi: sorted[hi]},
	}
}

// nextUp 讓 BinarySearch 回傳 ≤ x 的個數
func nextUp(x float64) float64 {
	return math.Nextafter(x, math.Inf(1))
}
