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

package minelab

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/mines"
	"github.com/zintix-labs/minelab/recorder"
	"github.com/zintix-labs/minelab/sdk/core"
	"github.com/zintix-labs/minelab/sdk/sampler"
	"github.com/zintix-labs/minelab/spec"
	"github.com/zintix-labs/minelab/stats"
)

const capPrepare int = 100

// Strategy 模擬玩家的打法：固定地雷數，翻開 Picks 格安全格後兌現。
//
// MaxPicks > Picks 時，每局在 [Picks, MaxPicks] 之間均勻抽一個目標格數。
// Weights 非空時改為加權抽：Weights[i] 是目標 Picks+i 格的權重（模擬一群停手點不同的玩家），不可與 MaxPicks 併用。
type Strategy struct {
	Hazards  int   `json:"hazards"`
	Picks    int   `json:"picks"`
	MaxPicks int   `json:"max_picks,omitempty"`
	Weights  []int `json:"weights,omitempty"`

	target sampler.Picker
}

func (st Strategy) label() string {
	if len(st.Weights) > 1 {
		return fmt.Sprintf("%d-%d weighted", st.Picks, st.Picks+len(st.Weights)-1)
	}
	if st.MaxPicks > st.Picks {
		return fmt.Sprintf("%d-%d", st.Picks, st.MaxPicks)
	}
	return fmt.Sprintf("%d", st.Picks)
}

// prepare 檢查參數並建好加權抽樣表；回傳的 Strategy 才能交給 worker。
func (st Strategy) prepare(ts *spec.TableSetting) (Strategy, error) {
	if err := mines.ValidateLayout(ts.Rows, ts.Columns, st.Hazards); err != nil {
		return st, err
	}
	safe := ts.Total() - st.Hazards
	if st.Picks < 1 || st.Picks > safe {
		return st, errs.NewWarn(fmt.Sprintf("picks must be in [1,%d], got %d", safe, st.Picks))
	}
	if st.MaxPicks != 0 && (st.MaxPicks < st.Picks || st.MaxPicks > safe) {
		return st, errs.NewWarn(fmt.Sprintf("max picks must be in [%d,%d], got %d", st.Picks, safe, st.MaxPicks))
	}
	st.target = nil
	if len(st.Weights) == 0 {
		return st, nil
	}
	if st.MaxPicks != 0 {
		return st, errs.NewWarn("weights and max picks are exclusive")
	}
	if top := st.Picks + len(st.Weights) - 1; top > safe {
		return st, errs.NewWarn(fmt.Sprintf("weighted picks reach %d, only %d safe cells", top, safe))
	}
	p, err := sampler.New(st.Weights)
	if err != nil {
		return st, err
	}
	st.target = p
	return st, nil
}

// Simulator 用於模擬大量回合，可建立多個 worker 平行紀錄統計。
type Simulator struct {
	GameName  string                    // 遊戲名稱
	GameId    spec.GID                  // 遊戲編號
	initBets  int                       // 玩家帶的錢(以押注單位計)
	ts        *spec.TableSetting        // 桌台設定
	cf        core.CoreFactory          // 亂數生成器
	initSeed  int64                     // 初始下的種子
	seedmaker *seedMaker                // 種子生成器
	wBuf      []*simWorker              // 併發執行的盤面
	rBuf      []*recorder.RoundRecorder // 併發紀錄員
	sBuf      []*stats.StatReport       // 玩家報表(僅Players需要)
}

func newSimulator(ts *spec.TableSetting, cf core.CoreFactory) (*Simulator, error) {
	seed, err := core.NewSeed()
	if err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(ts, cf, seed)
}

func newSimulatorWithSeed(ts *spec.TableSetting, cf core.CoreFactory, seed int64) (*Simulator, error) {
	if ts == nil || cf == nil {
		return nil, errs.NewFatal("table setting and core factory required")
	}
	s := &Simulator{
		GameName:  ts.GameName,
		GameId:    ts.GameID,
		ts:        ts,
		cf:        cf,
		initSeed:  seed,
		seedmaker: newSeedMaker(seed),
		wBuf:      make([]*simWorker, 1, capPrepare),
		rBuf:      make([]*recorder.RoundRecorder, 0, capPrepare),
		sBuf:      make([]*stats.StatReport, 0, capPrepare),
	}
	s.wBuf[0] = newSimWorker(ts, cf, s.initSeed)
	return s, nil
}

// Seed 回傳模擬器的初始種子（同 seed + 同參數的單線模擬可重現）。
func (s *Simulator) Seed() int64 {
	return s.initSeed
}

// Snapshot 匯出主 worker 的 PRNG 狀態，Restore 後單線 Sim 會從同一點重跑。
func (s *Simulator) Snapshot() ([]byte, error) {
	return s.wBuf[0].core.Snapshot()
}

func (s *Simulator) Restore(b []byte) error {
	if err := s.wBuf[0].core.Restore(b); err != nil {
		return errs.WrapKind(err, errs.Warn, errs.InvalidConfig, "restore simulator failed")
	}
	return nil
}

// Sim 單線模擬器：以一個 worker 連續跑指定 round 並回傳統計結果與用時
func (s *Simulator) Sim(st Strategy, rounds int, showpb bool) (*stats.StatReport, time.Duration, error) {
	defer s.reset()
	st, err := st.prepare(s.ts)
	if err != nil {
		return nil, 0, err
	}
	if rounds < 1 {
		return nil, 0, errs.NewWarn("round must > 0")
	}
	r, err := recorder.NewRoundRecorder(s.meta(st), 0)
	if err != nil {
		return nil, 0, err
	}
	w := s.wBuf[0]

	bar := newBar(rounds, showpb)
	for i := 0; i < rounds; i++ {
		r.Record(w.play(st))
		bar.Increment()
	}
	used := time.Since(bar.StartTime())
	bar.Finish()

	result := r.Done()
	result.Done()
	return result, used, nil
}

// SimMP 平行執行多個 worker，總計 rounds*mp 局，合併統計結果後回傳統計結果與用時
func (s *Simulator) SimMP(st Strategy, rounds int, mp int, showpb bool) (*stats.StatReport, time.Duration, error) {
	defer s.reset()
	if mp <= 0 {
		return nil, 0, errs.NewWarn("workers must > 0")
	}
	st, err := st.prepare(s.ts)
	if err != nil {
		return nil, 0, err
	}
	if rounds < 1 {
		return nil, 0, errs.NewWarn("round must > 0")
	}
	s.prepareWorkers(mp)
	for len(s.rBuf) < mp {
		r, err := recorder.NewRoundRecorder(s.meta(st), 0)
		if err != nil {
			return nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}

	wg := new(sync.WaitGroup)
	wg.Add(mp)
	bar := newBar(rounds*mp, showpb)
	for i := 0; i < mp; i++ {
		go func(w *simWorker, rec *recorder.RoundRecorder) {
			defer wg.Done()
			for range rounds {
				rec.Record(w.play(st))
				bar.Increment()
			}
		}(s.wBuf[i], s.rBuf[i])
	}
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()

	merged, err := recorder.MergeRoundRecorder(s.rBuf)
	if err != nil {
		return nil, 0, err
	}
	result := merged.Done()
	result.Done()
	return result, used, nil
}

// SimPlayers 模擬多個玩家各自帶入初始籌碼的遊戲歷程，並產出總報表與玩家體驗報表。
//
// 每位玩家最多玩 rounds 局，破產或餘額達初始籌碼 3 倍時提早離場。
func (s *Simulator) SimPlayers(st Strategy, mp int, players int, initBets int, rounds int, showpb bool) (*stats.StatReport, *stats.EstimatorPlayers, time.Duration, error) {
	defer s.reset()
	if players < 1 || initBets < 1 || rounds < 1 || mp < 1 {
		return nil, nil, 0, errs.NewWarn("invalid param")
	}
	st, err := st.prepare(s.ts)
	if err != nil {
		return nil, nil, 0, err
	}
	s.initBets = initBets

	s.prepareWorkers(mp)
	for len(s.rBuf) < players {
		r, err := recorder.NewRoundRecorder(s.meta(st), s.initBets)
		if err != nil {
			return nil, nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}
	// 作一個2048大小的緩衝channel 使player依序處理
	jobs := make(chan *recorder.RoundRecorder, 2048)

	wg := new(sync.WaitGroup)
	wg.Add(mp)
	bar := newBar(players, showpb)
	for w := 0; w < mp; w++ {
		go simPlayer(wg, s.wBuf[w], st, jobs, rounds, bar)
	}
	for _, j := range s.rBuf {
		jobs <- j
	}
	close(jobs)
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()

	merged, err := recorder.MergeRoundRecorder(s.rBuf)
	if err != nil {
		return nil, nil, 0, err
	}
	total := merged.Done()
	total.Done()

	s.sBuf = make([]*stats.StatReport, len(s.rBuf))
	for i, r := range s.rBuf {
		s.sBuf[i] = r.Done()
		s.sBuf[i].Done()
	}
	return total, stats.EstimatorPlayerExp(s.sBuf), used, nil
}

func simPlayer(wg *sync.WaitGroup, w *simWorker, st Strategy, jobs chan *recorder.RoundRecorder, rounds int, bar *pb.ProgressBar) {
	defer wg.Done()
	for j := range jobs {
		for range rounds {
			if j.RecordWithPlayer(w.play(st)) {
				break
			}
		}
		bar.Increment()
	}
}

func (s *Simulator) meta(st Strategy) recorder.Meta {
	return recorder.Meta{
		GameName: s.GameName,
		GameId:   s.GameId,
		Rows:     s.ts.Rows,
		Columns:  s.ts.Columns,
		Hazards:  st.Hazards,
		Picks:    st.label(),
		RTP:      s.ts.RTP,
	}
}

func (s *Simulator) prepareWorkers(mp int) {
	for len(s.wBuf) < mp {
		s.wBuf = append(s.wBuf, newSimWorker(s.ts, s.cf, s.seedmaker.next()))
	}
}

func (s *Simulator) reset() {
	s.rBuf = s.rBuf[:0]
	s.sBuf = s.sBuf[:0]
	s.initBets = 0
}

func newBar(total int, show bool) *pb.ProgressBar {
	bar := pb.StartNew(total)
	if !show {
		bar.SetWriter(io.Discard)
	}
	return bar
}

// simWorker 單一 goroutine 專用：一個亂數核心 + 一張 Board。
//
// 不經過錢包，每局押 1 單位。
type simWorker struct {
	core  *core.Core
	board *mines.Board
	rows  int
	cols  int
	order []int
}

func newSimWorker(ts *spec.TableSetting, cf core.CoreFactory, seed int64) *simWorker {
	order := make([]int, ts.Total())
	for i := range order {
		order[i] = i
	}
	return &simWorker{
		core:  core.New(cf.New(seed)),
		board: mines.NewBoard(ts.RTP),
		rows:  ts.Rows,
		cols:  ts.Columns,
		order: order,
	}
}

// play 跑完一局並回傳結果；st 必須已經過 prepare。
func (w *simWorker) play(st Strategy) recorder.RoundResult {
	picks := st.Picks
	switch {
	case st.target != nil:
		picks += st.target.Pick(w.core)
	case st.MaxPicks > st.Picks:
		picks += w.core.IntN(st.MaxPicks - st.Picks + 1)
	}
	if w.board.State().Terminal() {
		_ = w.board.Reset()
	}
	g, err := mines.NewGrid(w.core, w.rows, w.cols, st.Hazards)
	if err != nil {
		return recorder.RoundResult{Picks: picks}
	}
	_ = w.board.Deal(g, 1)

	// 部分 Fisher-Yates：前 picks 個即為這局翻格順序。每局從恆等排列開始，PRNG 快照即可重現一局
	n := len(w.order)
	for i := range w.order {
		w.order[i] = i
	}
	for i := 0; i < picks; i++ {
		j := i + w.core.IntN(n-i)
		w.order[i], w.order[j] = w.order[j], w.order[i]
		res := w.board.Reveal(w.order[i])
		switch res.State {
		case mines.Lost:
			return recorder.RoundResult{Picks: i + 1}
		case mines.Won:
			return recorder.RoundResult{Picks: i + 1, Mult: res.Payout}
		}
	}
	pay, _ := w.board.CashOut()
	return recorder.RoundResult{Picks: picks, Mult: pay}
}

const mask63 = uint64(1<<63) - 1

type seedMaker struct {
	state atomic.Uint64 // always in [0, 2^63)
}

func newSeedMaker(seed int64) *seedMaker {
	s := &seedMaker{}
	s.state.Store(uint64(seed) & mask63)
	return s
}

// next 走全週期 LCG（mod 2^63）再以可逆 mix63 打散，可被多 goroutine 同時呼叫。
func (s *seedMaker) next() int64 {
	for {
		old := s.state.Load()
		next := (old*6364136223846793005 + 1442695040888963407) & mask63
		if s.state.CompareAndSwap(old, next) {
			return int64(mix63(next))
		}
	}
}

func mix63(x uint64) uint64 {
	x &= mask63
	x ^= x >> 30
	x = (x * 0xBF58476D1CE4E5B9) & mask63
	x ^= x >> 27
	x = (x * 0x94D049BB133111EB) & mask63
	x ^= x >> 31
	return x & mask63
}
