package render

import (
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/markis/gh-transcript/internal/history"
)

const shortIDLen = 8

// HistoryTable formats stored turns as a table, one row per turn.
func HistoryTable(turns []history.Turn) string {
	if len(turns) == 0 {
		return "No stored turns."
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "Created", "Model", "Prompt"})
	for _, turn := range turns {
		tw.AppendRow(table.Row{
			shortID(turn.ID),
			turn.CreatedAt.Local().Format(time.DateTime),
			turn.Model,
			firstLine(turn.Prompt, 50),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// firstLine returns the first non-blank line of s, cut to at most limit runes.
func firstLine(s string, limit int) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if r := []rune(line); len(r) > limit {
			return string(r[:limit-1]) + "…"
		}
		return line
	}
	return ""
}
