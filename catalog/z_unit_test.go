package catalog

import (
	"testing"
	"testing/fstest"

	"github.com/zintix-labs/minelab/errs"
)

const classic = `
game_name: classic
game_id: 2
rows: 5
columns: 5
levels:
  - {name: low, hazards: 3}
  - {name: high, hazards: 10}
`

const bomb = `
game_name: Bomb Or Claat
game_id: 1
rows: 4
columns: 8
levels:
  - {name: easy, hazards: 3}
  - {name: expert, hazards: 12}
min_wager: 1
`

func TestRegisterAll(t *testing.T) {
	fsys := fstest.MapFS{
		"classic.yaml": {Data: []byte(classic)},
		"bomb.yml":     {Data: []byte(bomb)},
		"README.md":    {Data: []byte("ignored")},
	}
	c, err := New(fsys)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.RegisterAll(); err != nil {
		t.Fatal(err)
	}
	c.Freeze()
	ids := c.IDs()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("unexpected ids: %v", ids)
	}
	ts, err := c.TableByName("  BOMB or claat ")
	if err != nil || ts.Total() != 32 {
		t.Fatalf("name lookup failed: %v", err)
	}
	if _, err := c.Table(99); !errs.IsKind(err, errs.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	sum := c.Summaries()
	if len(sum) != 2 || sum[0].Name != "Bomb Or Claat" || sum[1].Rows != 5 {
		t.Fatalf("unexpected summaries: %+v", sum)
	}
	if err := c.Register(Entry{GID: 3, Name: "x", ConfigName: "classic.yaml"}); err == nil {
		t.Fatalf("register after freeze must fail")
	}
}

func TestRegisterRejects(t *testing.T) {
	dupID := fstest.MapFS{
		"a.yaml": {Data: []byte(classic)},
		"b.yaml": {Data: []byte("game_name: other\ngame_id: 2\nrows: 2\ncolumns: 2\nlevels: [{name: a, hazards: 1}]\n")},
	}
	c, err := New(dupID)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.RegisterAll(); err == nil {
		t.Fatalf("duplicate id must fail")
	}
	if len(c.IDs()) != 0 {
		t.Fatalf("failed batch must not register anything")
	}

	nested := fstest.MapFS{"sub/a.yaml": {Data: []byte(classic)}}
	if _, err := New(nested); err == nil {
		t.Fatalf("nested config fs must fail")
	}

	ok := fstest.MapFS{"a.yaml": {Data: []byte(classic)}}
	c, _ = New(ok)
	if err := c.Register(Entry{GID: 7, Name: "classic", ConfigName: "a.yaml"}); err == nil {
		t.Fatalf("mismatched game id must fail")
	}
	if err := c.Register(Entry{GID: 2, Name: "classic", ConfigName: "../a.yaml"}); err == nil {
		t.Fatalf("path in config name must fail")
	}
}
