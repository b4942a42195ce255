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
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"

	"github.com/zintix-labs/minelab/errs"
	"github.com/zintix-labs/minelab/sdk/core"
)

// Commitment 回傳 seed 的 sha256 承諾值（hex）。開局時公布，終局後公布 seed 本身。
func Commitment(seed int64) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(seed, 10)))
	return hex.EncodeToString(sum[:])
}

// Layout 以 seed 決定性地重建盤面。
func Layout(cf core.CoreFactory, seed int64, rows, cols, hazards int) (*Grid, error) {
	if cf == nil {
		return nil, errs.NewKind(errs.Fatal, errs.InvalidConfig, "core factory required")
	}
	return NewGrid(core.New(cf.New(seed)), rows, cols, hazards)
}

// Verify 檢查 seed 是否符合承諾值，且重建出的地雷位置與 positions 一致。
func Verify(cf core.CoreFactory, seed int64, commitment string, rows, cols, hazards int, positions []int) error {
	if Commitment(seed) != commitment {
		return errs.NewKind(errs.Warn, errs.InvalidConfig, "seed does not match commitment")
	}
	g, err := Layout(cf, seed, rows, cols, hazards)
	if err != nil {
		return err
	}
	want := slices.Clone(positions)
	slices.Sort(want)
	if !slices.Equal(g.HazardPositions(), want) {
		return errs.NewKind(errs.Warn, errs.InvalidConfig, "hazard layout does not match seed")
	}
	return nil
}
