package render

import (
	"strings"
	"testing"
	"time"

	"github.com/markis/gh-transcript/internal/history"
)

func TestHistoryTable(t *testing.T) {
	turns := []history.Turn{
		{
			ID:        "0f8fad5b-d9cb-469f-a165-70867728950e",
			Model:     "gpt-4.1",
			Prompt:    "\n  Explain the filter\nwith details",
			CreatedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		},
	}

	out := HistoryTable(turns)
	for _, want := range []string{"ID", "Model", "0f8fad5b", "gpt-4.1", "Explain the filter"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "d9cb") || strings.Contains(out, "with details") {
		t.Errorf("table not abbreviated:\n%s", out)
	}
}

func TestHistoryTableEmpty(t *testing.T) {
	if got := HistoryTable(nil); got != "No stored turns." {
		t.Errorf("HistoryTable(nil) = %q", got)
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine(strings.Repeat("é", 10), 5); got != "éééé…" {
		t.Errorf("firstLine() = %q", got)
	}
	if got := firstLine(" \n\t\n", 5); got != "" {
		t.Errorf("firstLine(blank) = %q", got)
	}
}
