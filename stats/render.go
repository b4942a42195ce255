package stats

import (
	"encoding/json"
	"io"
	"strings"

	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// StatReportRender 報表輸出格式
type StatReportRender interface {
	Write(w io.Writer, r *StatReport) error
}

// RenderFor table / json / yaml，未知名稱回傳 false。
func RenderFor(name string) (StatReportRender, bool) {
	switch f := format(name); f {
	case "table":
		return &TableStatReportRender{}, true
	case "json":
		return &JsonStatReportRender{}, true
	case "yaml":
		return &YAMLStatReportRender{}, true
	}
	return nil, false
}

func format(name string) string {
	switch f := strings.ToLower(strings.TrimSpace(name)); f {
	case "", "table", "text":
		return "table"
	case "yml":
		return "yaml"
	default:
		return f
	}
}

// Encode 以 json 或 yaml 輸出任意報表（StatReport、EstimatorPlayers）。
//
// yaml 只把純數值的一維陣列收成一行，其餘維持展開。
func Encode(w io.Writer, name string, v any) error {
	if format(name) != "yaml" {
		return json.NewEncoder(w).Encode(v)
	}
	var doc yaml.Node
	if err := doc.Encode(v); err != nil {
		return err
	}
	flowScalars(&doc)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(&doc)
}

func flowScalars(n *yaml.Node) {
	flat := n.Kind == yaml.SequenceNode
	for _, c := range n.Content {
		flowScalars(c)
		if c.Kind != yaml.ScalarNode {
			flat = false
		}
	}
	if flat {
		n.Style = yaml.FlowStyle
	}
}

// TableStatReportRender 總覽表加贏倍分布表。
type TableStatReportRender struct{}

func (TableStatReportRender) Write(w io.Writer, r *StatReport) error {
	var sb strings.Builder
	sb.WriteString(r.Table())
	if d := r.Dist; d != nil {
		p := message.NewPrinter(lang)
		n := min(len(d.WinBucket), len(d.WinCollect))
		keys, msg := make([]string, 0, n), make(map[string]string, n)
		for i := range n {
			pct := 0.0
			if i < len(d.WinDist) {
				pct = 100 * d.WinDist[i]
			}
			keys = append(keys, d.WinBucket[i])
			msg[d.WinBucket[i]] = p.Sprintf("%d (%.2f%%)", d.WinCollect[i], pct)
		}
		sb.WriteString(fmtTable("Multiplier Distribution", keys, msg))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

type JsonStatReportRender struct{}

func (JsonStatReportRender) Write(w io.Writer, r *StatReport) error { return Encode(w, "json", r) }

type YAMLStatReportRender struct{}

func (YAMLStatReportRender) Write(w io.Writer, r *StatReport) error { return Encode(w, "yaml", r) }
