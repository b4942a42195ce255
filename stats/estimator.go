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
	"fmt"
	"io"
	"slices"
	"strings"
)

// 玩家體驗的觀察點，可在啟動前調整。
var (
	// ExpQuantiles 以玩家分位數看 RTP：最差 10% 玩家的 RTP ...
	ExpQuantiles = []float64{0.10, 1.0 / 3.0, 2.0 / 3.0, 0.90}
	// RtpThresholds 以 RTP 門檻看玩家：有多少玩家的 RTP ≤ 門檻
	RtpThresholds = []float64{0.30, 0.50, 0.70, 1.00}
	// StreakBounds 最長連爆的分段邊界：[0,3) [3,6) [6,10) [10,+inf)
	StreakBounds = []int{3, 6, 10}
)

// EstimatorPlayers 多玩家模擬的體驗評估；所有比例都附 95% CI。
type EstimatorPlayers struct {
	Players int         `json:"Players"`
	Rtp     RtpStat     `json:"Rtp"`
	Streak  []Band      `json:"Streak"`  // 最長連爆落點
	Reach   []Band      `json:"Reach"`   // 至少落入該贏倍區間一次的玩家比例
	Session SessionStat `json:"Session"` // 離場原因
}

// PointStat 點估計與信賴區間
type PointStat struct {
	Hat float64 `json:"Hat"`
	CI  CI      `json:"CI"`
}

type RtpStat struct {
	Median    PointStat        `json:"Median"`
	Quantiles []QuantilePoint  `json:"Quantiles"`
	Below     []ThresholdPoint `json:"Below"`
}

type QuantilePoint struct {
	Q   float64   `json:"Q"`
	RTP PointStat `json:"RTP"`
}

type ThresholdPoint struct {
	RTP     float64   `json:"RTP"`
	Players PointStat `json:"Players"`
}

type Band struct {
	Label string    `json:"Label"`
	Share PointStat `json:"Share"`
}

type SessionStat struct {
	Bust    PointStat `json:"Bust"`    // 餘額不足下一注
	Cashout PointStat `json:"Cashout"` // 贏滿離場
	Alive   PointStat `json:"Alive"`   // 打完局數
}

// EstimatorPlayerExp 由每位玩家的 StatReport 彙整體驗評估。sts 不會被修改。
func EstimatorPlayerExp(sts []*StatReport) *EstimatorPlayers {
	n := len(sts)
	out := &EstimatorPlayers{Players: n}
	if n == 0 {
		return out
	}

	rtp := make([]float64, n)
	for i, s := range sts {
		rtp[i] = s.Rtp()
	}
	slices.Sort(rtp)
	out.Rtp.Median = quantileStat(rtp, 0.5)
	for _, q := range ExpQuantiles {
		out.Rtp.Quantiles = append(out.Rtp.Quantiles, QuantilePoint{Q: q, RTP: quantileStat(rtp, q)})
	}
	for _, x := range RtpThresholds {
		k, _ := slices.BinarySearch(rtp, nextUp(x))
		out.Rtp.Below = append(out.Rtp.Below, ThresholdPoint{RTP: x, Players: ratio(k, n)})
	}

	streak := make([]int, len(StreakBounds)+1)
	for _, s := range sts {
		streak[streakBand(s.Summary.MaxLossStreak)]++
	}
	for i, c := range streak {
		out.Streak = append(out.Streak, Band{Label: streakLabel(i), Share: ratio(c, n)})
	}

	labels := Buckets.WinBucketStr()
	reach := make([]int, len(labels))
	var bust, cash, alive int
	for _, s := range sts {
		if s.Dist != nil {
			for i, c := range s.Dist.WinCollect {
				if i < len(reach) && c > 0 {
					reach[i]++
				}
			}
		}
		if p := s.Player; p != nil {
			switch {
			case p.Bust:
				bust++
			case p.Cashout:
				cash++
			case p.Alive:
				alive++
			}
		}
	}
	for i, label := range labels {
		out.Reach = append(out.Reach, Band{Label: label, Share: ratio(reach[i], n)})
	}
	out.Session = SessionStat{Bust: ratio(bust, n), Cashout: ratio(cash, n), Alive: ratio(alive, n)}
	return out
}

// WriteTable 以文字表格輸出，與 StatReport 的表格同一格式。
func (est *EstimatorPlayers) WriteTable(w io.Writer) error {
	var sb strings.Builder

	keys, msg := []string{"Median"}, map[string]string{"Median": fmtPoint(est.Rtp.Median)}
	for _, q := range est.Rtp.Quantiles {
		k := fmt.Sprintf("P%.0f", 100*q.Q)
		keys = append(keys, k)
		msg[k] = fmtPoint(q.RTP)
	}
	for _, b := range est.Rtp.Below {
		k := fmt.Sprintf("players ≤ %.0f%%", 100*b.RTP)
		keys = append(keys, k)
		msg[k] = fmtPoint(b.Players)
	}
	sb.WriteString(fmtTable(fmt.Sprintf("Player RTP (%d players)", est.Players), keys, msg))
	sb.WriteString(bandTable("Longest Bust Streak", est.Streak))
	sb.WriteString(bandTable("Reached Multiplier", est.Reach))
	sb.WriteString(fmtTable("Session Outcome", []string{"Bust", "Cashout", "Alive"}, map[string]string{
		"Bust":    fmtPoint(est.Session.Bust),
		"Cashout": fmtPoint(est.Session.Cashout),
		"Alive":   fmtPoint(est.Session.Alive),
	}))
	_, err := io.WriteString(w, sb.String())
	return err
}

func bandTable(title string, bands []Band) string {
	keys := make([]string, 0, len(bands))
	msg := make(map[string]string, len(bands))
	for _, b := range bands {
		keys = append(keys, b.Label)
		msg[b.Label] = fmtPoint(b.Share)
	}
	return fmtTable(title, keys, msg)
}

func streakBand(k int) int {
	for i, b := range StreakBounds {
		if k < b {
			return i
		}
	}
	return len(StreakBounds)
}

func streakLabel(i int) string {
	switch {
	case i == 0:
		return fmt.Sprintf("< %d", StreakBounds[0])
	case i == len(StreakBounds):
		return fmt.Sprintf("%d+", StreakBounds[i-1])
	}
	return fmt.Sprintf("%d ~ %d", StreakBounds[i-1], StreakBounds[i]-1)
}

func fmtPoint(p PointStat) string {
	return fmt.Sprintf("%.2f%% [%.2f%%, %.2f%%]", 100*p.Hat, 100*p.CI.Lo, 100*p.CI.Hi)
}
