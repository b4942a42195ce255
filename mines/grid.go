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

package mines

import (
	"fmt"

	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/sdk/core"
)

// Cell 盤面上的一格。
type Cell struct {
	Index    int  `json:"index"`
	Row      int  `json:"row"`
	Col      int  `json:"col"`
	Hazard   bool `json:"hazard"`
	Revealed bool `json:"revealed"`
}

// Grid 固定大小、依 Index 排列的格子集合，每局重新建立。
//
// 不變式：恰好 hazards 格為地雷，0 < hazards < total；Revealed 一旦為 true 不會回到 false。
type Grid struct {
	Rows    int
	Cols    int
	Cells   []Cell
	hazards int
}

// ValidateLayout 檢查盤面尺寸與地雷數。
func ValidateLayout(rows, cols, hazards int) error {
	if rows <= 0 || cols <= 0 {
		return errs.NewKind(errs.Warn, errs.InvalidConfig, fmt.Sprintf("invalid grid dimensions: rows=%d cols=%d", rows, cols))
	}
	total := rows * cols
	if hazards <= 0 || hazards >= total {
		return errs.NewKind(errs.Warn, errs.InvalidConfig, fmt.Sprintf("hazards must be in (0,%d), got %d", total, hazards))
	}
	return nil
}

// NewGrid 以 c 洗牌建立新盤面：前 hazards 個標記為地雷，再以 Fisher-Yates 打散。
func NewGrid(c *core.Core, rows, cols, hazards int) (*Grid, error) {
	if err := ValidateLayout(rows, cols, hazards); err != nil {
		return nil, err
	}
	total := rows * cols
	marks := make([]bool, total)
	for i := 0; i < hazards; i++ {
		marks[i] = true
	}
	core.Shuffle(c, marks)

	g := &Grid{Rows: rows, Cols: cols, Cells: make([]Cell, total), hazards: hazards}
	for i := range g.Cells {
		g.Cells[i] = Cell{Index: i, Row: i / cols, Col: i % cols, Hazard: marks[i]}
	}
	return g, nil
}

func (g *Grid) Total() int   { return len(g.Cells) }
func (g *Grid) Hazards() int { return g.hazards }
func (g *Grid) Safe() int    { return len(g.Cells) - g.hazards }

// InRange 回報 idx 是否為合法格子。
func (g *Grid) InRange(idx int) bool {
	return idx >= 0 && idx < len(g.Cells)
}

// Reveal 翻開 idx；回傳該格與是否真的發生改變（已翻開或越界時為 false）。
func (g *Grid) Reveal(idx int) (Cell, bool) {
	if !g.InRange(idx) {
		return Cell{}, false
	}
	c := &g.Cells[idx]
	if c.Revealed {
		return *c, false
	}
	c.Revealed = true
	return *c, true
}

// HazardPositions 回傳所有地雷的 Index（遞增）。
func (g *Grid) HazardPositions() []int {
	out := make([]int, 0, g.hazards)
	for _, c := range g.Cells {
		if c.Hazard {
			out = append(out, c.Index)
		}
	}
	return out
}

// RevealedCount 回傳已翻開的格數。
func (g *Grid) RevealedCount() int {
	n := 0
	for _, c := range g.Cells {
		if c.Revealed {
			n++
		}
	}
	return n
}
