package spec

import (
	"fmt"
	"strings"

	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/wager"
)

// GID 桌台（遊戲）編號，在同一個 Minelab instance 內唯一。
type GID uint

// LevelSetting 一個具名難度，對應固定地雷數。
type LevelSetting struct {
	Name    string `yaml:"name"     json:"name"`
	Hazards int    `yaml:"hazards"  json:"hazards"`
}

// TableSetting 包含開一張桌所需的全部設定。
//
// Fields:
//   - Rows / Columns: 盤面尺寸，總格數 = Rows * Columns
//   - RTP: 目標返還率，留空時為 0.995
//   - Levels: 具名難度列表（easy / medium / ...）
//   - DefaultLevel: 開局未指定難度時使用；留空時取 Levels[0]
//   - MinWager / MaxWager: 押注上下限，MaxWager 為 0 代表不設上限
type TableSetting struct {
	GameName     string         `yaml:"game_name"      json:"game_name"`
	GameID       GID            `yaml:"game_id"        json:"game_id"`
	Rows         int            `yaml:"rows"           json:"rows"`
	Columns      int            `yaml:"columns"        json:"columns"`
	RTP          float64        `yaml:"rtp"            json:"rtp"`
	Levels       []LevelSetting `yaml:"levels"         json:"levels"`
	DefaultLevel string         `yaml:"default_level"  json:"default_level"`
	MinWager     float64        `yaml:"min_wager"      json:"min_wager"`
	MaxWager     float64        `yaml:"max_wager"      json:"max_wager"`

	levelIdx map[string]int
}

const defaultRTP = 0.995

// Total 盤面總格數。
func (ts *TableSetting) Total() int {
	return ts.Rows * ts.Columns
}

// init
func (ts *TableSetting) init() error {
	ts.GameName = strings.TrimSpace(ts.GameName)
	if ts.RTP == 0 {
		ts.RTP = defaultRTP
	}
	ts.levelIdx = make(map[string]int, len(ts.Levels))
	for i := range ts.Levels {
		lv := &ts.Levels[i]
		lv.Name = strings.ToLower(strings.TrimSpace(lv.Name))
		if _, ok := ts.levelIdx[lv.Name]; ok {
			return errs.NewFatal(fmt.Sprintf("game_name: %s err:duplicate level %q", ts.GameName, lv.Name))
		}
		ts.levelIdx[lv.Name] = i
	}
	ts.DefaultLevel = strings.ToLower(strings.TrimSpace(ts.DefaultLevel))
	if ts.DefaultLevel == "" && len(ts.Levels) > 0 {
		ts.DefaultLevel = ts.Levels[0].Name
	}
	return ts.valid()
}

// valid 執行最基本的設定檔檢查。
func (ts *TableSetting) valid() error {
	if ts.GameName == "" {
		return errs.NewFatal("empty game_name")
	}
	if ts.Columns <= 0 || ts.Rows <= 0 || ts.Total() < 2 {
		return errs.NewFatal(fmt.Sprintf("game_name: %s err:invalid board dimensions: cols=%d rows=%d", ts.GameName, ts.Columns, ts.Rows))
	}
	if ts.RTP <= 0 || ts.RTP > 1 {
		return errs.NewFatal(fmt.Sprintf("game_name: %s err:rtp must be in (0,1], got %v", ts.GameName, ts.RTP))
	}

	// 難度不能為空，每個難度的地雷數都要合法
	if len(ts.Levels) == 0 {
		return errs.NewFatal(fmt.Sprintf("game_name: %s err:empty levels", ts.GameName))
	}
	for _, lv := range ts.Levels {
		if lv.Name == "" {
			return errs.NewFatal(fmt.Sprintf("game_name: %s err:level name required", ts.GameName))
		}
		if lv.Hazards <= 0 || lv.Hazards >= ts.Total() {
			return errs.NewFatal(fmt.Sprintf("game_name: %s err:level %s hazards must be in (0,%d)", ts.GameName, lv.Name, ts.Total()))
		}
	}
	if _, ok := ts.levelIdx[ts.DefaultLevel]; !ok {
		return errs.NewFatal(fmt.Sprintf("game_name: %s err:default_level %q not in levels", ts.GameName, ts.DefaultLevel))
	}

	if ts.MinWager < 0 || ts.MaxWager < 0 {
		return errs.NewFatal(fmt.Sprintf("game_name: %s err:negative wager limit", ts.GameName))
	}
	if ts.MaxWager > 0 && ts.MaxWager < ts.MinWager {
		return errs.NewFatal(fmt.Sprintf("game_name: %s err:max_wager < min_wager", ts.GameName))
	}
	return nil
}

// Level 依名稱取得難度，大小寫不敏感。
func (ts *TableSetting) Level(name string) (LevelSetting, bool) {
	i, ok := ts.levelIdx[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return LevelSetting{}, false
	}
	return ts.Levels[i], true
}

// Hazards 決定開局的地雷數。
//
// explicit > 0 時直接採用（需落在 (0,total)）；否則依 level 查表，level 為空時使用 DefaultLevel。
func (ts *TableSetting) Hazards(level string, explicit int) (int, error) {
	if explicit != 0 {
		if explicit < 0 || explicit >= ts.Total() {
			return 0, errs.NewKind(errs.Warn, errs.InvalidConfig, fmt.Sprintf("hazards must be in (0,%d), got %d", ts.Total(), explicit))
		}
		return explicit, nil
	}
	if strings.TrimSpace(level) == "" {
		level = ts.DefaultLevel
	}
	lv, ok := ts.Level(level)
	if !ok {
		return 0, errs.NewKind(errs.Warn, errs.InvalidConfig, fmt.Sprintf("unknown level: %q", level))
	}
	return lv.Hazards, nil
}

// CheckWager 檢查押注是否落在桌台上下限內，且是整數分（帳本以分記帳）。
func (ts *TableSetting) CheckWager(w float64) error {
	if w <= 0 {
		return errs.NewKind(errs.Warn, errs.InvalidConfig, "wager must be > 0")
	}
	if !wager.WholeCents(w) {
		return errs.NewKind(errs.Warn, errs.InvalidConfig, fmt.Sprintf("wager %v is not a whole number of cents", w))
	}
	if w < ts.MinWager {
		return errs.NewKind(errs.Warn, errs.InvalidConfig, fmt.Sprintf("wager below table minimum %v", ts.MinWager))
	}
	if ts.MaxWager > 0 && w > ts.MaxWager {
		return errs.NewKind(errs.Warn, errs.InvalidConfig, fmt.Sprintf("wager above table maximum %v", ts.MaxWager))
	}
	return nil
}
