package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/zintix-labs/minelab"
	"github.com/zintix-labs/minelab/corefmt"
	"github.com/zintix-labs/minelab/demo"
	"github.com/zintix-labs/minelab/dto"
	"github.com/zintix-labs/minelab/sdk/core"
	"github.com/zintix-labs/minelab/spec"
	"github.com/zintix-labs/minelab/stats"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const maxSnapBytes = 1 << 16

var cfg *config = new(config)

type config struct {
	name      string
	id        spec.GID
	level     string
	hazards   int
	picks     int
	maxPicks  int
	weights   string
	worker    int
	player    int
	bets      int
	rounds    int
	seed      int64
	render    string
	snapOut   string // 單線模擬結束後寫出 PRNG 狀態
	snapIn    string // 單線模擬前從檔案還原 PRNG 狀態
	pprofmode string
}

type gidFlag struct{ p *spec.GID }

func (f gidFlag) String() string {
	if f.p == nil {
		return "0"
	}
	return fmt.Sprint(uint(*f.p))
}
func (f gidFlag) Set(s string) error {
	u, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return err
	}
	*f.p = spec.GID(uint(u))
	return nil
}

func bindVar() {
	cfg.id = 1
	flag.Var(gidFlag{&cfg.id}, "game", "target game id")
	flag.StringVar(&cfg.level, "level", "", "level name (easy|medium|hard|expert), empty for table default")
	flag.IntVar(&cfg.hazards, "hazards", 0, "explicit hazard count, overrides -level")
	flag.IntVar(&cfg.picks, "picks", 1, "safe picks before cashing out")
	flag.IntVar(&cfg.maxPicks, "max-picks", 0, "when > picks, draw target picks uniformly from [picks,max-picks]")
	flag.StringVar(&cfg.weights, "weights", "", "weighted targets, e.g. 5,3,2 means picks,picks+1,picks+2 at 5:3:2")
	flag.IntVar(&cfg.worker, "worker", 1, "number of workers")
	flag.IntVar(&cfg.player, "player", 1, "number of players")
	flag.IntVar(&cfg.bets, "bets", 200, "initial bets per player")
	flag.IntVar(&cfg.rounds, "rounds", 1000000, "rounds per worker (or per player)")
	flag.Int64Var(&cfg.seed, "seed", -1, "int64 seed for random number generator")
	flag.StringVar(&cfg.render, "render", "table", "report format: table|json|yaml")
	flag.StringVar(&cfg.snapOut, "snap-out", "", "write PRNG snapshot after a single-worker run")
	flag.StringVar(&cfg.snapIn, "snap-in", "", "restore PRNG snapshot before a single-worker run")
	flag.StringVar(&cfg.pprofmode, "p", "", "pprof: '', cpu, heap, allocs")

	flag.Parse()

	// given seed illeagel -> default seed
	if cfg.seed < 1 {
		seed, err := core.NewSeed()
		if err != nil {
			log.Fatal(err)
		}
		cfg.seed = seed
	}
}

// 這裡解析並分支要執行的模擬器
func executeSimulator() {
	cfg.valid()

	lab, err := demo.NewMinelab()
	if err != nil {
		log.Fatal(err)
	}
	ts, err := lab.Table(cfg.id)
	if err != nil {
		log.Fatal(err)
	}
	hz, err := ts.Hazards(cfg.level, cfg.hazards)
	if err != nil {
		log.Fatal(err)
	}
	s, err := lab.NewSimulatorWithSeed(cfg.id, cfg.seed)
	if err != nil {
		log.Fatal(err)
	}
	rep, ok := stats.RenderFor(cfg.render)
	if !ok {
		log.Fatal("unknown render: " + cfg.render)
	}
	cfg.name = ts.GameName
	weights, err := dto.ParseInts(cfg.weights, "weights")
	if err != nil {
		log.Fatal(err)
	}
	st := minelab.Strategy{Hazards: hz, Picks: cfg.picks, MaxPicks: cfg.maxPicks, Weights: weights}

	// 至此確保可執行
	green := "\033[1;32m"
	reset := "\033[0m"
	p := message.NewPrinter(language.English)
	show := cfg.render == "table" // 非表格輸出時不印 banner 與進度條，避免污染 stdout

	if cfg.player == 1 { // 純桌台模擬
		if cfg.worker == 1 { // 單線程
			if cfg.snapIn != "" {
				restoreSnap(s, cfg.snapIn)
			}
			if show {
				p.Printf("%s[GAME:%s] [HAZARDS:%d] [PICKS:%s] [ROUNDS:%d] [SEED:%d]%s\n", green, cfg.name, hz, cfg.pickLabel(), cfg.rounds, cfg.seed, reset)
			}
			r, used, err := s.Sim(st, cfg.rounds, show)
			if err != nil {
				log.Fatal(err)
			}
			if cfg.snapOut != "" {
				saveSnap(s, cfg.snapOut)
			}
			output(r, used, rep, show)
		} else {
			if show {
				p.Printf("%s[WORKERS:%d] [GAME:%s] [HAZARDS:%d] [PICKS:%s] [ROUNDS:%d]%s\n", green, cfg.worker, cfg.name, hz, cfg.pickLabel(), cfg.worker*cfg.rounds, reset)
			}
			r, used, err := s.SimMP(st, cfg.rounds, cfg.worker, show) // 併發
			if err != nil {
				log.Fatal(err)
			}
			output(r, used, rep, show)
		}
		return
	}
	// 模擬多玩家體驗
	if show {
		p.Printf("%s[WORKERS:%d] [GAME:%s] [PLAYERS:%d BALANCE:%d HAZARDS:%d PICKS:%s ROUNDS:%d]%s\n", green, cfg.worker, cfg.name, cfg.player, cfg.bets, hz, cfg.pickLabel(), cfg.rounds, reset)
	}
	r, est, used, err := s.SimPlayers(st, cfg.worker, cfg.player, cfg.bets, cfg.rounds, show)
	if err != nil {
		log.Fatal(err)
	}
	output(r, used, rep, show)
	if show {
		if err := est.WriteTable(os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := stats.Encode(os.Stdout, cfg.render, est); err != nil {
		log.Fatal(err)
	}
}

func output(r *stats.StatReport, used time.Duration, rep stats.StatReportRender, show bool) {
	if show {
		fmt.Print(stats.FormatDuration(used, r.Summary.Rounds))
	}
	if err := r.WriteWith(os.Stdout, rep); err != nil {
		log.Fatal(err)
	}
}

func (cfg *config) pickLabel() string {
	if cfg.weights != "" {
		return fmt.Sprintf("%d+[%s]", cfg.picks, cfg.weights)
	}
	if cfg.maxPicks > cfg.picks {
		return fmt.Sprintf("%d-%d", cfg.picks, cfg.maxPicks)
	}
	return strconv.Itoa(cfg.picks)
}

func saveSnap(s *minelab.Simulator, path string) {
	b, err := s.Snapshot()
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := corefmt.WriteFrame(f, b); err != nil {
		log.Fatal(err)
	}
}

func restoreSnap(s *minelab.Simulator, path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	b, err := corefmt.ReadFrame(f, maxSnapBytes)
	if err != nil {
		log.Fatal(err)
	}
	if err := s.Restore(b); err != nil {
		log.Fatal(err)
	}
}

func (cfg *config) valid() {
	p := message.NewPrinter(language.English)

	// 工作協程檢查(併發數)
	if cfg.worker < 1 {
		log.Fatal("value err : workers must > 0")
	}
	if cfg.player < 1 {
		log.Fatal("value err : player must > 0")
	}
	// 玩家數量太多 resize
	if cfg.player > 100000 {
		p.Printf("too much players: %d resized to 100k players\n", cfg.player)
		cfg.player = 100000
	}
	if cfg.player > 1 && cfg.bets < 1 {
		log.Fatal("value err : balance must >= 1")
	}
	if cfg.rounds < 1 {
		log.Fatal("value err : rounds must > 0")
	}
	// 每位玩家最多 10 萬局；再長就是桌台長期表現，直接跑單玩家模擬
	if cfg.player > 1 && cfg.rounds > 100000 {
		p.Printf("too much rounds for each players : %d resized to 100k rounds for each player\n", cfg.rounds)
		cfg.rounds = 100000
	}
	if (cfg.snapIn != "" || cfg.snapOut != "") && (cfg.worker != 1 || cfg.player != 1) {
		log.Fatal("value err : snapshots only apply to a single worker, single player run")
	}
}
