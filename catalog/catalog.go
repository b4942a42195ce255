package catalog

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/spec"
)

var (
	ErrDupID   = errs.NewFatal("duplicate game id")
	ErrDupName = errs.NewFatal("duplicate game name")
)

// Entry 目錄中的一張桌台：編號、名稱與設定檔檔名。
type Entry struct {
	GID        spec.GID
	Name       string
	ConfigName string
}

// Summary 對外公開的桌台摘要（GET /v1/games）。
type Summary struct {
	GID      spec.GID            `json:"gid"`
	Name     string              `json:"name"`
	Rows     int                 `json:"rows"`
	Columns  int                 `json:"columns"`
	RTP      float64             `json:"rtp"`
	Levels   []spec.LevelSetting `json:"levels"`
	Default  string              `json:"default_level"`
	MinWager float64             `json:"min_wager"`
	MaxWager float64             `json:"max_wager,omitempty"`
}

// Catalog 桌台目錄：設定檔來源（fs.FS）與 GID / 名稱索引。
//
// 註冊階段結束後呼叫 Freeze，之後只讀。
type Catalog struct {
	byID   map[spec.GID]Entry
	byName map[string]Entry
	tables map[spec.GID]*spec.TableSetting
	ids    []spec.GID
	src    *multiFS
	frozen bool
}

func New(cfg ...fs.FS) (*Catalog, error) {
	m, err := newMultiFS(cfg...)
	if err != nil {
		return nil, errs.Wrap(err, "can not create catalog")
	}
	return &Catalog{
		byID:   map[spec.GID]Entry{},
		byName: map[string]Entry{},
		tables: map[spec.GID]*spec.TableSetting{},
		src:    m,
	}, nil
}

// RegisterAll 掃描所有來源，依檔名排序後逐一解析並註冊。
//
// 任一檔案失敗即整批不寫入。
func (c *Catalog) RegisterAll() error {
	names := c.src.Names()
	if len(names) == 0 {
		return errs.NewFatal("no config files found to register")
	}
	ents := make([]Entry, 0, len(names))
	for _, name := range names {
		ts, err := c.load(name)
		if err != nil {
			return errs.Wrap(err, fmt.Sprintf("parse table setting failed: %s", name))
		}
		ents = append(ents, Entry{GID: ts.GameID, Name: ts.GameName, ConfigName: name})
	}
	return c.Register(ents...)
}

// Register 以明確的 Entry 註冊；重複的 GID、名稱或設定檔名都會失敗。
func (c *Catalog) Register(ents ...Entry) error {
	if c.frozen {
		return errs.NewWarn("can not register when catalog already frozen")
	}
	seenID := map[spec.GID]struct{}{}
	seenName := map[string]struct{}{}
	parsed := make([]*spec.TableSetting, len(ents))
	for i := range ents {
		e := &ents[i]
		e.Name = normName(e.Name)
		if e.Name == "" {
			return errs.NewFatal("game name required")
		}
		if err := validFileName(e.ConfigName); err != nil {
			return err
		}
		if _, ok := c.byID[e.GID]; ok {
			return ErrDupID
		}
		if _, ok := seenID[e.GID]; ok {
			return ErrDupID
		}
		if _, ok := c.byName[e.Name]; ok {
			return ErrDupName
		}
		if _, ok := seenName[e.Name]; ok {
			return ErrDupName
		}
		ts, err := c.load(e.ConfigName)
		if err != nil {
			return err
		}
		if ts.GameID != e.GID {
			return errs.NewFatal(fmt.Sprintf("config %s declares game_id %d, entry has %d", e.ConfigName, ts.GameID, e.GID))
		}
		seenID[e.GID] = struct{}{}
		seenName[e.Name] = struct{}{}
		parsed[i] = ts
	}
	for i, e := range ents {
		c.byID[e.GID] = e
		c.byName[e.Name] = e
		c.tables[e.GID] = parsed[i]
		c.ids = append(c.ids, e.GID)
	}
	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
	return nil
}

func (c *Catalog) GetByID(id spec.GID) (Entry, bool) {
	e, ok := c.byID[id]
	return e, ok
}

func (c *Catalog) GetByName(name string) (Entry, bool) {
	e, ok := c.byName[normName(name)]
	return e, ok
}

func (c *Catalog) IDs() []spec.GID {
	if len(c.ids) == 0 {
		return nil
	}
	return append([]spec.GID(nil), c.ids...)
}

// Table 回傳已註冊桌台的設定。回傳值與目錄共用，呼叫端不可修改。
func (c *Catalog) Table(id spec.GID) (*spec.TableSetting, error) {
	ts, ok := c.tables[id]
	if !ok {
		return nil, errs.NewKind(errs.Warn, errs.NotFound, fmt.Sprintf("game id %d does not exist in catalog", id))
	}
	return ts, nil
}

// TableByName 依名稱取得設定。
func (c *Catalog) TableByName(name string) (*spec.TableSetting, error) {
	e, ok := c.GetByName(name)
	if !ok {
		return nil, errs.NewKind(errs.Warn, errs.NotFound, fmt.Sprintf("game %q does not exist in catalog", name))
	}
	return c.Table(e.GID)
}

// Summaries 依 GID 排序回傳所有桌台摘要。
func (c *Catalog) Summaries() []Summary {
	out := make([]Summary, 0, len(c.ids))
	for _, id := range c.ids {
		ts := c.tables[id]
		out = append(out, Summary{
			GID:      id,
			Name:     ts.GameName,
			Rows:     ts.Rows,
			Columns:  ts.Columns,
			RTP:      ts.RTP,
			Levels:   append([]spec.LevelSetting(nil), ts.Levels...),
			Default:  ts.DefaultLevel,
			MinWager: ts.MinWager,
			MaxWager: ts.MaxWager,
		})
	}
	return out
}

func (c *Catalog) Freeze() {
	c.frozen = true
}

func (c *Catalog) IsFrozen() bool {
	return c.frozen
}

func (c *Catalog) load(name string) (*spec.TableSetting, error) {
	src, ok := c.src.GetFS(name)
	if !ok {
		return nil, errs.NewFatal(fmt.Sprintf("config file not found: %s", name))
	}
	raw, err := fs.ReadFile(src, name)
	if err != nil {
		return nil, errs.Wrap(err, "catalog read file error")
	}
	return parseByExt(name, raw)
}

func normName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validFileName(file string) error {
	if file == "" {
		return errs.NewFatal("empty config filename")
	}
	if strings.ContainsAny(file, `/\:`) {
		return errs.NewFatal(fmt.Sprintf("invalid config filename: %q (must be a basename)", file))
	}
	if strings.HasPrefix(file, ".") {
		return errs.NewFatal(fmt.Sprintf("invalid config filename: %q (cannot start with '.')", file))
	}
	if !isConfigExt(file) {
		return errs.NewFatal(fmt.Sprintf("invalid config filename: %q (must end with .yaml, .yml, or .json)", file))
	}
	return nil
}

func isConfigExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func parseByExt(filename string, raw []byte) (*spec.TableSetting, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return spec.GetTableSettingByYAML(raw)
	case ".json":
		return spec.GetTableSettingByJSON(raw)
	default:
		return nil, errs.NewFatal(fmt.Sprintf("unsupported config format: %q", filename))
	}
}

// multiFS 合併多個平面（無子目錄）的設定來源；同名檔案跨來源重複時直接失敗。
type multiFS struct {
	src   []fs.FS
	index map[string]int
}

func newMultiFS(src ...fs.FS) (*multiFS, error) {
	if len(src) == 0 {
		return nil, errs.NewFatal("no fs provided")
	}
	m := &multiFS{src: src, index: make(map[string]int, 16)}
	for i, s := range src {
		if s == nil {
			return nil, errs.NewFatal(fmt.Sprintf("fs[%d] is nil", i))
		}
		err := fs.WalkDir(s, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path == "." {
					return nil
				}
				return errs.NewFatal(fmt.Sprintf("config FS must be flat (no subdirectories): %q", path))
			}
			if strings.HasPrefix(path, ".") || !isConfigExt(path) {
				return nil
			}
			if prev, ok := m.index[path]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate config %q in fs[%d] and fs[%d]", path, prev, i))
			}
			m.index[path] = i
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *multiFS) GetFS(name string) (fs.FS, bool) {
	if id, ok := m.index[name]; ok {
		return m.src[id], true
	}
	return nil, false
}

// Names 依檔名排序回傳所有設定檔。
func (m *multiFS) Names() []string {
	out := make([]string, 0, len(m.index))
	for n := range m.index {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
