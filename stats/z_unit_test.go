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

package stats_test

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/zintix-labs/minelab/spec"
	"github.com/zintix-labs/minelab/stats"
)

// buildStatReport 以每局 1 單位押注、贏倍 mults 建立報表；0 代表爆雷。
func buildStatReport(mults []float64) *stats.StatReport {
	L := stats.Buckets.Len()
	collect := make([]int, L)

	var total, sq, maxMult float64
	wins, busts, streak, maxStreak := 0, 0, 0, 0
	for _, m := range mults {
		collect[stats.Buckets.Index(m)]++
		total += m
		sq += m * m
		maxMult = max(maxMult, m)
		if m > 0 {
			wins++
			streak = 0
		} else {
			busts++
			streak++
			maxStreak = max(maxStreak, streak)
		}
	}
	dist := make([]float64, L)
	for i, c := range collect {
		dist[i] = float64(c) / float64(len(mults))
	}
	report := &stats.StatReport{
		Summary: &stats.SummaryReport{
			GameName:      "TestGame",
			GameId:        spec.GID(0),
			Rows:          4,
			Columns:       8,
			Hazards:       3,
			Picks:         "1",
			TargetRTP:     0.995,
			Rounds:        len(mults),
			TotalBet:      float64(len(mults)),
			TotalWin:      total,
			Wins:          wins,
			Busts:         busts,
			MaxMult:       maxMult,
			MaxLossStreak: maxStreak,
		},
		Mult: &stats.MultReport{WinMult: total, WinMultSqSum: sq},
		Dist: &stats.DistReport{
			WinBucket:  stats.Buckets.WinBucketStr(),
			WinCollect: collect,
			WinDist:    dist,
		},
		Player: &stats.PlayerReport{},
	}
	report.Done()
	return report
}

func TestBucketIndex(t *testing.T) {
	cases := []struct {
		mult float64
		want string
	}{
		{0, "[0,0]"},
		{-1, "[0,0]"},
		{0.5, "(0,1)"},
		{1, "[1,2)"},
		{1.0979, "[1,2)"},
		{4.99, "[2,5)"},
		{5, "[5,10)"},
		{99.9, "[50,100)"},
		{100, "[100,1000)"},
		{1e6, "[1000,+inf)"},
	}
	labels := stats.Buckets.WinBucketStr()
	for _, c := range cases {
		if got := labels[stats.Buckets.Index(c.mult)]; got != c.want {
			t.Fatalf("Index(%v) got %s want %s", c.mult, got, c.want)
		}
	}
}

func TestStatReportCoreMetrics(t *testing.T) {
	rep := buildStatReport([]float64{1.5, 0, 2.5, 0})

	wantRTP := 4.0 / 4.0
	if got := rep.Rtp(); math.Abs(got-wantRTP) > 1e-12 {
		t.Fatalf("RTP got %.12f want %.12f", got, wantRTP)
	}
	sum, sq := 4.0, 1.5*1.5+2.5*2.5
	wantStd := math.Sqrt((sq - sum*sum/4) / 3)
	if got := rep.Std(); math.Abs(got-wantStd) > 1e-12 {
		t.Fatalf("Std got %.12f want %.12f", got, wantStd)
	}
	if got := rep.Cv(); math.Abs(got-wantStd/wantRTP) > 1e-12 {
		t.Fatalf("CV got %.12f", got)
	}
	if rep.Summary.HitRate != 0.5 || rep.Summary.BustRate != 0.5 {
		t.Fatalf("hit/bust rate got %v/%v", rep.Summary.HitRate, rep.Summary.BustRate)
	}
	if rep.Summary.BustCI.Lo >= 0.5 || rep.Summary.BustCI.Hi <= 0.5 {
		t.Fatalf("bust CI must cover the estimate: %+v", rep.Summary.BustCI)
	}
	if ci := rep.Summary.RtpCI; ci.Lo > wantRTP || ci.Hi < wantRTP {
		t.Fatalf("RTP CI must cover the estimate: %+v", ci)
	}

	total := 0
	for _, c := range rep.Dist.WinCollect {
		total += c
	}
	if total != rep.Summary.Rounds {
		t.Fatalf("distribution total %d != rounds %d", total, rep.Summary.Rounds)
	}

	rep.Done() // idempotent
	if rep.Rtp() != wantRTP {
		t.Fatalf("RTP changed after second Done")
	}
}

func TestRenders(t *testing.T) {
	rep := buildStatReport([]float64{1.0979, 0, 1.0979})
	for _, name := range []string{"table", "json", "yaml"} {
		r, ok := stats.RenderFor(name)
		if !ok {
			t.Fatalf("render %s missing", name)
		}
		var buf bytes.Buffer
		if err := rep.WriteWith(&buf, r); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !strings.Contains(buf.String(), "TestGame") {
			t.Fatalf("%s output missing game name:\n%s", name, buf.String())
		}
	}
	if _, ok := stats.RenderFor("xml"); ok {
		t.Fatalf("unknown render must be rejected")
	}

	var y bytes.Buffer
	_ = rep.WriteWith(&y, &stats.YAMLStatReportRender{})
	if !strings.Contains(y.String(), "wincollect: [") {
		t.Fatalf("flat numeric lists must use flow style:\n%s", y.String())
	}

	var buf bytes.Buffer
	_ = rep.WriteWith(&buf, &stats.JsonStatReportRender{})
	var back stats.StatReport
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil || back.Summary.Rounds != 3 {
		t.Fatalf("json round trip: %v", err)
	}
}

func TestEstimatorRtpAndSession(t *testing.T) {
	// 100 位玩家，RTP 由 0.00 到 0.99
	reports := make([]*stats.StatReport, 0, 100)
	for i := 0; i < 100; i++ {
		reports = append(reports, buildStatReport([]float64{float64(i) / 100}))
	}
	est := stats.EstimatorPlayerExp(reports)
	if math.Abs(est.Rtp.Median.Hat-0.5) > 0.05 {
		t.Fatalf("median RTP expected ~0.5, got %.3f", est.Rtp.Median.Hat)
	}
	if len(est.Rtp.Quantiles) != 4 || math.Abs(est.Rtp.Quantiles[3].RTP.Hat-0.9) > 0.05 {
		t.Fatalf("P90 RTP expected ~0.9, got %+v", est.Rtp.Quantiles)
	}
	if ci := est.Rtp.Median.CI; ci.Lo > est.Rtp.Median.Hat || ci.Hi < est.Rtp.Median.Hat {
		t.Fatalf("median CI %+v must cover %.3f", ci, est.Rtp.Median.Hat)
	}
	// RTP 0.00..0.30 共 31 位
	if est.Rtp.Below[0].Players.Hat != 0.31 || est.Rtp.Below[3].Players.Hat != 1 {
		t.Fatalf("threshold shares got %+v", est.Rtp.Below)
	}

	sessions := make([]*stats.StatReport, 10)
	for i := range sessions {
		var r *stats.StatReport
		switch {
		case i < 3:
			r = buildStatReport([]float64{0, 0, 0, 0})
			r.Player.Bust = true
			r.Player.Alive = false
		case i < 5:
			r = buildStatReport([]float64{2})
			r.Player.Cashout = true
			r.Player.Alive = false
		default:
			r = buildStatReport([]float64{1.1})
			r.Player.Alive = true
		}
		sessions[i] = r
	}
	est2 := stats.EstimatorPlayerExp(sessions)
	if est2.Session.Bust.Hat != 0.3 {
		t.Fatalf("Bust rate got %.2f want 0.30", est2.Session.Bust.Hat)
	}
	if est2.Session.Cashout.Hat != 0.2 {
		t.Fatalf("Cashout rate got %.2f want 0.20", est2.Session.Cashout.Hat)
	}
	if est2.Session.Alive.Hat != 0.5 {
		t.Fatalf("Alive rate got %.2f want 0.50", est2.Session.Alive.Hat)
	}
	if len(est2.Streak) != 4 || est2.Streak[1].Label != "3 ~ 5" || est2.Streak[1].Share.Hat != 0.3 || est2.Streak[0].Share.Hat != 0.7 {
		t.Fatalf("loss streak bands got %+v", est2.Streak)
	}
	// [0,0] 爆雷 3 位，[1,2) 5 位，[2,5) 2 位
	if est2.Reach[0].Share.Hat != 0.3 || est2.Reach[2].Share.Hat != 0.5 || est2.Reach[3].Share.Hat != 0.2 {
		t.Fatalf("reach shares got %+v", est2.Reach)
	}

	var buf bytes.Buffer
	if err := est2.WriteTable(&buf); err != nil || !strings.Contains(buf.String(), "Session Outcome") {
		t.Fatalf("table output: %v %q", err, buf.String())
	}
}

func TestEstimatorEmpty(t *testing.T) {
	est := stats.EstimatorPlayerExp(nil)
	if est == nil || est.Players != 0 || est.Rtp.Median.Hat != 0 {
		t.Fatalf("empty input must give a zero estimator")
	}
}
