package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/zintix-labs/minelab/spec"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var lang language.Tag = language.English

// 信賴區間
type CI struct {
	Lo float64 `json:"Lo"`
	Hi float64 `json:"Hi"`
}

// StatReport 模擬統計報告
type StatReport struct {
	Summary *SummaryReport `json:"Summary"`
	Mult    *MultReport    `json:"Mult"`
	Dist    *DistReport    `json:"Dist"`
	Player  *PlayerReport  `json:"Player,omitzero"`
	isDone  bool
}

// SummaryReport 以押注單位（每局 1 單位）計的總覽。
type SummaryReport struct {
	GameName      string   `json:"GameName"`
	GameId        spec.GID `json:"GameId"`
	Rows          int      `json:"Rows"`
	Columns       int      `json:"Columns"`
	Hazards       int      `json:"Hazards"`
	Picks         string   `json:"Picks"` // "3" 或 "2-5"
	TargetRTP     float64  `json:"TargetRTP"`
	Rounds        int      `json:"Rounds"`
	TotalBet      float64  `json:"TotalBet"`
	TotalWin      float64  `json:"TotalWin"`
	RTP           float64  `json:"RTP"`
	RtpCI         CI       `json:"RtpCI"`
	Std           float64  `json:"Std"`
	Cv            float64  `json:"Cv"`
	Wins          int      `json:"Wins"`
	HitRate       float64  `json:"HitRate"`
	Busts         int      `json:"Busts"`
	BustRate      float64  `json:"BustRate"`
	BustCI        CI       `json:"BustCI"`
	MaxMult       float64  `json:"MaxMult"`
	MaxLossStreak int      `json:"MaxLossStreak"`
}

// MultReport 贏倍累計（平方和用於標準差）
type MultReport struct {
	WinMult      float64 `json:"WinMult"`
	WinMultSqSum float64 `json:"WinMultSqSum"`
}

// DistReport 贏倍區間落點統計
type DistReport struct {
	WinBucket  []string  `json:"WinBucket"`
	WinCollect []int     `json:"WinCollect"`
	WinDist    []float64 `json:"WinDist"`
}

// PlayerReport 玩家統計
//
// 需使用 RecordWithPlayer 才會統計；餘額以押注單位計。
type PlayerReport struct {
	InitBalance float64 `json:"InitBalance"`
	Balance     float64 `json:"Balance"`
	MaxBalance  float64 `json:"MaxBalance"`
	MinBalance  float64 `json:"MinBalance"`
	Bust        bool    `json:"Bust"`
	Cashout     bool    `json:"Cashout"`
	Alive       bool    `json:"Alive"`
}

// ============================================================
// ** 公開方法 **
// ============================================================

// Done 將累積值轉換為最終統計結果並鎖定 isDone 標記，可重複呼叫。
func (s *StatReport) Done() {
	if s.isDone {
		return
	}
	s.Summary.RTP = s.Rtp()
	s.Summary.RtpCI = s.Ci()
	s.Summary.Std = s.Std()
	s.Summary.Cv = s.Cv()
	if s.Summary.Rounds > 0 {
		n := s.Summary.Rounds
		s.Summary.HitRate = float64(s.Summary.Wins) / float64(n)
		s.Summary.BustRate, s.Summary.BustCI = proportionCICP(s.Summary.Busts, n, confidence)
	}

	if s.Player != nil {
		s.Player.Alive = !(s.Player.Bust || s.Player.Cashout)
	}
	s.isDone = true
}

// Rtp 回傳整體 RTP（總贏分 / 總押注）
func (s *StatReport) Rtp() float64 {
	if s.Summary.Rounds == 0 || s.Summary.TotalBet == 0 {
		return 0
	}
	return s.Summary.TotalWin / s.Summary.TotalBet
}

// Std 回傳單局贏倍的樣本標準差
func (s *StatReport) Std() float64 {
	if s.Summary.Rounds < 2 {
		return 0
	}
	rounds := float64(s.Summary.Rounds)
	variance := (s.Mult.WinMultSqSum - s.Mult.WinMult*s.Mult.WinMult/rounds) / (rounds - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// Cv 回傳單局贏倍的變異係數
func (s *StatReport) Cv() float64 {
	rtp := s.Rtp()
	if rtp <= 0 {
		return 0
	}
	return s.Std() / rtp
}

// Ci 回傳(95% Rtp)信賴區間
func (s *StatReport) Ci() CI {
	rtp := s.Rtp()
	rtpSe := float64(0)
	if s.Summary.Rounds > 1 {
		rtpSe = s.Std() / math.Sqrt(float64(s.Summary.Rounds))
	}
	return CI{
		Lo: max(rtp-1.96*rtpSe, 0.0),
		Hi: rtp + 1.96*rtpSe,
	}
}

func (s *StatReport) WriteWith(w io.Writer, rep StatReportRender) error {
	s.Done()
	return rep.Write(w, s)
}

// StdOut 印出用時與總覽表。
func (s *StatReport) StdOut(ut time.Duration) {
	s.Done()
	fmt.Print(FormatDuration(ut, s.Summary.Rounds))
	sk, sm := s.fmtBasic()
	fmt.Println(fmtTable(s.Summary.GameName, sk, sm))
}

// Table 回傳總覽表字串（不含用時）。
func (s *StatReport) Table() string {
	s.Done()
	sk, sm := s.fmtBasic()
	return fmtTable(s.Summary.GameName, sk, sm)
}

// FormatDuration 用時與每秒局數。
func FormatDuration(d time.Duration, rounds int) string {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	rps := int(float64(rounds) / sec)
	if sec < 60.0 {
		return p.Sprintf("used: %.2f seconds\nrps : %d rounds/sec\n", sec, rps)
	}
	ss := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		return p.Sprintf("used: %dm %ds\nrps : %d rounds/sec\n", m, ss, rps)
	}
	return p.Sprintf("used: %dh:%dm:%ds\nrps : %d rounds/sec\n", h, m, ss, rps)
}

// ============================================================
// ** 內部方法 **
// ============================================================

func (s *StatReport) fmtBasic() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	sm := s.Summary
	basic := map[string]string{
		"Game Name":       p.Sprintf("%s", sm.GameName),
		"Game ID":         fmt.Sprintf("%d", sm.GameId),
		"Board":           p.Sprintf("%dx%d, %d hazards", sm.Rows, sm.Columns, sm.Hazards),
		"Picks":           sm.Picks,
		"Total Rounds":    p.Sprintf("%d", sm.Rounds),
		"Target RTP":      p.Sprintf("%.2f %%", 100.0*sm.TargetRTP),
		"Total RTP":       p.Sprintf("%.2f %%", 100.0*sm.RTP),
		"RTP 95% CI":      p.Sprintf("[%.2f%%,%.2f%%]", 100.0*sm.RtpCI.Lo, 100.0*sm.RtpCI.Hi),
		"Total Bet":       p.Sprintf("%.2f", sm.TotalBet),
		"Total Win":       p.Sprintf("%.2f", sm.TotalWin),
		"Hit Rate":        p.Sprintf("%.2f %%", 100.0*sm.HitRate),
		"Bust Rate":       p.Sprintf("%.2f %% [%.2f%%,%.2f%%]", 100.0*sm.BustRate, 100.0*sm.BustCI.Lo, 100.0*sm.BustCI.Hi),
		"Max Mult":        p.Sprintf("%.2fx", sm.MaxMult),
		"Max Loss Streak": p.Sprintf("%d", sm.MaxLossStreak),
		"STD":             p.Sprintf("%.3f", sm.Std),
		"CV":              p.Sprintf("%.3f", sm.Cv),
	}
	keys := []string{"Game Name", "Game ID", "Board", "Picks", "Total Rounds", "Target RTP", "Total RTP", "RTP 95% CI", "Total Bet", "Total Win", "Hit Rate", "Bust Rate", "Max Mult", "Max Loss Streak", "STD", "CV"}
	return keys, basic
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	p := message.NewPrinter(lang)
	maxKeyLen := 0
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)

	left := (totalInner - titleW) / 2
	right := totalInner - titleW - left

	var sb strings.Builder
	sb.WriteString(top)
	sb.WriteString(p.Sprintf("|%s%s%s|\n", blank(left), title, blank(right)))
	sb.WriteString(divider)
	for _, k := range keys {
		sb.WriteString(p.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k]))))
	}
	sb.WriteString(divider)
	return sb.String()
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
