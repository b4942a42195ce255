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

package recorder

import (
	"fmt"

	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/spec"
	"github.com/zintix-labs/minelab/stats"
)

// leaveMult 玩家餘額到達初始籌碼的幾倍時贏滿離場。
const leaveMult = 3

// Meta 一次模擬的固定條件。
type Meta struct {
	GameName string
	GameId   spec.GID
	Rows     int
	Columns  int
	Hazards  int
	Picks    string
	RTP      float64
}

// RoundResult 一局的結果：Mult 為兌現倍數，爆雷時為 0。
type RoundResult struct {
	Picks int
	Mult  float64
}

// Busted 回報這局是否踩雷。
func (r RoundResult) Busted() bool {
	return r.Mult <= 0
}

// RoundRecorder 回合紀錄員
//
// 每局固定押 1 單位，紀錄結果並透過 Done 輸出統計報表。
type RoundRecorder struct {
	Meta     Meta
	InitBets int
	Basic    *BasicRecord
	Dist     *DistRecord
	Player   *PlayerRecord
}

// BasicRecord 基本紀錄
type BasicRecord struct {
	TotalBet      float64
	TotalWin      float64
	WinSqSum      float64 // 平方和
	Wins          int
	Busts         int
	MaxMult       float64
	lossStreak    int
	MaxLossStreak int
	Rounds        int
}

// DistRecord 贏倍區間落點
type DistRecord struct {
	WinCollect []int
}

// PlayerRecord 玩家紀錄（以押注單位計）
type PlayerRecord struct {
	leaveLine   float64
	InitBalance float64
	Balance     float64
	MaxBalance  float64
	MinBalance  float64
	Bust        bool
	Cashout     bool
}

func NewRoundRecorder(meta Meta, initBets int) (*RoundRecorder, error) {
	if meta.Hazards <= 0 || meta.Rows*meta.Columns <= meta.Hazards {
		return nil, errs.NewFatal(fmt.Sprintf("invalid board %dx%d with %d hazards", meta.Rows, meta.Columns, meta.Hazards))
	}
	if initBets < 0 {
		return nil, errs.NewFatal(fmt.Sprintf("init bets must not negative integer, got: %d", initBets))
	}
	return &RoundRecorder{
		Meta:     meta,
		InitBets: initBets,
		Basic:    new(BasicRecord),
		Dist:     &DistRecord{WinCollect: make([]int, stats.Buckets.Len())},
		Player:   newPlayerRecord(initBets),
	}, nil
}

// MergeRoundRecorder 合併多個 worker 的紀錄（玩家紀錄不合併）。
func MergeRoundRecorder(r []*RoundRecorder) (*RoundRecorder, error) {
	if len(r) == 0 {
		return nil, errs.NewFatal("merge round record err : empty input")
	}
	r0 := r[0]
	s, err := NewRoundRecorder(r0.Meta, r0.InitBets)
	if err != nil {
		return nil, err
	}
	for _, v := range r {
		if v.Meta != r0.Meta {
			return nil, errs.NewFatal("merge round record err : different table or strategy")
		}
		if v.InitBets != r0.InitBets {
			return nil, errs.NewFatal("merge round record err : different init bets")
		}
		b := v.Basic
		s.Basic.TotalBet += b.TotalBet
		s.Basic.TotalWin += b.TotalWin
		s.Basic.WinSqSum += b.WinSqSum
		s.Basic.Wins += b.Wins
		s.Basic.Busts += b.Busts
		s.Basic.Rounds += b.Rounds
		s.Basic.MaxMult = max(s.Basic.MaxMult, b.MaxMult)
		s.Basic.MaxLossStreak = max(s.Basic.MaxLossStreak, b.MaxLossStreak)
		for i, c := range v.Dist.WinCollect {
			s.Dist.WinCollect[i] += c
		}
	}
	return s, nil
}

// Record 紀錄一局（不含玩家）。
func (s *RoundRecorder) Record(rr RoundResult) {
	s.recordBasic(rr)
	s.Dist.WinCollect[stats.Buckets.Index(rr.Mult)]++
}

// RecordWithPlayer 在 Record 的基礎上更新玩家餘額，回傳玩家是否離場。
//
// 餘額不足 1 單位時不再紀錄，直接回報離場。
func (s *RoundRecorder) RecordWithPlayer(rr RoundResult) bool {
	if s.Player.Balance < 1 {
		s.Player.Bust = true
		return true
	}
	s.Record(rr)
	return s.recordPlayer(rr)
}

func (s *RoundRecorder) Done() *stats.StatReport {
	n := s.Basic.Rounds
	dist := make([]float64, len(s.Dist.WinCollect))
	if n > 0 {
		for i, c := range s.Dist.WinCollect {
			dist[i] = float64(c) / float64(n)
		}
	}
	collect := make([]int, len(s.Dist.WinCollect))
	copy(collect, s.Dist.WinCollect)

	report := &stats.StatReport{
		Summary: &stats.SummaryReport{
			GameName:      s.Meta.GameName,
			GameId:        s.Meta.GameId,
			Rows:          s.Meta.Rows,
			Columns:       s.Meta.Columns,
			Hazards:       s.Meta.Hazards,
			Picks:         s.Meta.Picks,
			TargetRTP:     s.Meta.RTP,
			Rounds:        n,
			TotalBet:      s.Basic.TotalBet,
			TotalWin:      s.Basic.TotalWin,
			Wins:          s.Basic.Wins,
			Busts:         s.Basic.Busts,
			MaxMult:       s.Basic.MaxMult,
			MaxLossStreak: s.Basic.MaxLossStreak,
		},
		Mult: &stats.MultReport{
			WinMult:      s.Basic.TotalWin,
			WinMultSqSum: s.Basic.WinSqSum,
		},
		Dist: &stats.DistReport{
			WinBucket:  stats.Buckets.WinBucketStr(),
			WinCollect: collect,
			WinDist:    dist,
		},
	}
	if s.InitBets > 0 {
		p := s.Player
		report.Player = &stats.PlayerReport{
			InitBalance: p.InitBalance,
			Balance:     p.Balance,
			MaxBalance:  p.MaxBalance,
			MinBalance:  p.MinBalance,
			Bust:        p.Bust,
			Cashout:     p.Cashout,
		}
	}
	return report
}

func (s *RoundRecorder) recordBasic(rr RoundResult) {
	b := s.Basic
	b.TotalBet++
	b.Rounds++
	if rr.Busted() {
		b.Busts++
		b.lossStreak++
		b.MaxLossStreak = max(b.MaxLossStreak, b.lossStreak)
		return
	}
	b.lossStreak = 0
	b.Wins++
	b.TotalWin += rr.Mult
	b.WinSqSum += rr.Mult * rr.Mult
	b.MaxMult = max(b.MaxMult, rr.Mult)
}

func (s *RoundRecorder) recordPlayer(rr RoundResult) bool {
	p := s.Player
	p.Balance += rr.Mult - 1

	p.MaxBalance = max(p.MaxBalance, p.Balance)
	p.MinBalance = min(p.MinBalance, p.Balance)

	if p.Balance < 1 {
		p.Bust = true
		return true
	}
	if p.Balance >= p.leaveLine {
		p.Cashout = true
		return true
	}
	return false
}

func newPlayerRecord(initBets int) *PlayerRecord {
	b := float64(initBets)
	return &PlayerRecord{
		InitBalance: b,
		Balance:     b,
		MaxBalance:  b,
		MinBalance:  b,
		leaveLine:   leaveMult * b,
	}
}
