package demo_configs

import (
	"embed"
)

// FS 內嵌的示範桌台設定（bomb_or_claat 4x8、classic 5x5）。
//
//go:embed *.yaml
var FS embed.FS
