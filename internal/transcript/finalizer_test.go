package transcript

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	taskStart     = "---COMPLETE_TASK_START---"
	taskEnd       = "---COMPLETE_TASK_END---"
	artifactStart = "---GENERATED_ARTIFACT_START---"
	artifactEnd   = "---GENERATED_ARTIFACT_END---"
	clarifyStart  = "---REQUEST_CLARIFICATION_START---"
	clarifyEnd    = "---REQUEST_CLARIFICATION_END---"
)

func task(body string) string     { return taskStart + body + taskEnd }
func artifact(body string) string { return artifactStart + body + artifactEnd }

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text is trimmed", "  hello world \n", "hello world"},
		{"blank line runs collapse", "a\n\n\n\nb\n\n\nc\n\nd", "a\n\nb\n\nc\n\nd"},
		{"blocks removed", "Intro.\n" + task(`{"summary":"s"}`) + "\n" + artifact("go\nfmt.Println()") + "\nOutro.", "Intro.\n\nOutro."},
		{"clarification removed", "Which file? " + clarifyStart + "need a path" + clarifyEnd, "Which file?"},
		{"unterminated block removed", "Working. " + artifactStart + "md\n# Draft", "Working."},
		{"spliced marker removed on a later pass", "---COMPLETE_TASK_ST" + artifact("x") + "ART---hidden" + taskEnd + "shown", "shown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"a - -",
		"rule\n---",
		"\n\n\nx\n\n\n\ny\n\n\n",
		"---COMPLETE_TASK_ST" + artifact("x") + "ART---!",
		"keep " + task("drop") + " keep" + artifactStart,
	}
	for _, in := range inputs {
		once := Sanitize(in)
		if twice := Sanitize(once); twice != once {
			t.Errorf("Sanitize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestExtractCompletionPayload(t *testing.T) {
	t.Run("last valid block wins", func(t *testing.T) {
		raw := "x" + task(`{"summary":"a"}`) + "y" + task(`{"summary":"b","success":true}`)
		p, ok := ExtractCompletionPayload(raw)
		if !ok {
			t.Fatal("no payload extracted")
		}
		if p.Summary == nil || *p.Summary != "b" {
			t.Errorf("Summary = %v, want b", p.Summary)
		}
		if p.Success == nil || !*p.Success {
			t.Errorf("Success = %v, want true", p.Success)
		}
		if p.Artifact != nil {
			t.Errorf("Artifact = %q, want absent", *p.Artifact)
		}
	})

	t.Run("invalid later block falls back", func(t *testing.T) {
		raw := task(`{"summary":"good"}`) + task(`{"summary": oops`) + task(`{"summary":"","artifact":"  "}`)
		p, ok := ExtractCompletionPayload(raw)
		if !ok || p.SummaryText() != "good" {
			t.Errorf("got %+v, %v, want summary good", p, ok)
		}
	})

	t.Run("fenced body", func(t *testing.T) {
		raw := task("\n```json\n{\"artifact\":\"# Report\"}\n```\n")
		p, ok := ExtractCompletionPayload(raw)
		if !ok || p.ArtifactText() != "# Report" {
			t.Errorf("got %+v, %v, want artifact", p, ok)
		}
	})

	t.Run("numeric success", func(t *testing.T) {
		p, ok := ExtractCompletionPayload(task(`{"success":0}`))
		if !ok || p.Success == nil || *p.Success {
			t.Errorf("got %+v, %v, want success=false", p, ok)
		}
		if _, ok := ExtractCompletionPayload(task(`{"success":7}`)); ok {
			t.Error("success=7 should not count as a field")
		}
	})

	t.Run("wrong field types ignored", func(t *testing.T) {
		p, ok := ExtractCompletionPayload(task(`{"summary":42,"artifact":"art"}`))
		if !ok || p.Summary != nil || p.ArtifactText() != "art" {
			t.Errorf("got %+v, %v", p, ok)
		}
	})

	t.Run("none", func(t *testing.T) {
		for _, raw := range []string{"", "no blocks", task(`[1,2]`), task(`null`), taskStart + `{"summary":"open"}`} {
			if p, ok := ExtractCompletionPayload(raw); ok {
				t.Errorf("ExtractCompletionPayload(%q) = %+v, want none", raw, p)
			}
		}
	})
}

func TestExtractCompletionPayloadRepair(t *testing.T) {
	raw := task(`{"summary": "fixed",}`)

	if _, ok := ExtractCompletionPayload(raw); ok {
		t.Fatal("strict parsing accepted malformed JSON")
	}

	f := Finalizer{RepairJSON: true}
	p, ok := f.ExtractCompletionPayload(raw)
	if !ok || p.SummaryText() != "fixed" {
		t.Errorf("repaired payload = %+v, %v", p, ok)
	}
}

func TestExtractCompletionPayloadLogsDiscards(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := Finalizer{Logger: zap.New(core)}

	f.ExtractCompletionPayload(task(`not json`) + task(`{"summary":"ok"}`))

	entries := logs.FilterMessage("discarding completion payload").All()
	if len(entries) != 1 {
		t.Fatalf("got %d discard entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["block"]; got != int64(0) {
		t.Errorf("block = %v, want 0", got)
	}
}

func TestExtractLatestArtifact(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"tag line dropped", artifact("swift\nprint(\"hi\")"), `print("hi")`, true},
		{"leading newline before tag", artifact("\nmain.go\npackage main\n"), "package main", true},
		{"last non-empty wins", artifact("a\nfirst") + artifact("b\nsecond") + artifact("c\n  "), "second", true},
		{"tag only", artifact("swift"), "", false},
		{"unterminated", artifactStart + "go\nx", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractLatestArtifact(tt.raw)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ExtractLatestArtifact() = %q, %v, want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFinalizedVisibleText(t *testing.T) {
	report := "## Report\n" + strings.Repeat("Findings go here. ", 20)

	tests := []struct {
		name     string
		raw      string
		rendered string
		want     string
	}{
		{
			name: "empty rendered promotes artifact",
			raw:  task(`{"artifact":"Done!"}`),
			want: "Done!",
		},
		{
			name:     "narration promotes artifact",
			raw:      "Let me check that. I'll look it up now." + task(`{"artifact":`+quote(report)+`}`),
			rendered: "Let me check that. I'll look it up now.",
			want:     strings.TrimSpace(report),
		},
		{
			name:     "short rendered answer loses to long artifact",
			raw:      task(`{"artifact":"` + strings.Repeat("x", 50) + `"}`),
			rendered: "Short answer",
			want:     strings.Repeat("x", 50),
		},
		{
			name:     "rendered with heading is kept",
			raw:      task(`{"artifact":"` + strings.Repeat("x", 50) + `"}`),
			rendered: "Title\n# Answer",
			want:     "Title\n# Answer",
		},
		{
			name:     "rendered kept without artifact",
			raw:      task(`{"summary":"did it"}`),
			rendered: "Here is the answer.",
			want:     "Here is the answer.",
		},
		{
			name: "generated artifact when nothing rendered",
			raw:  task(`{"summary":"did it"}`) + artifact("md\nbody"),
			want: "body",
		},
		{
			name: "summary as last resort",
			raw:  task(`{"summary":"did it","success":true}`),
			want: "did it",
		},
		{
			name:     "rendered is sanitized",
			raw:      "",
			rendered: "answer\n\n\n\n" + task("x"),
			want:     "answer",
		},
		{
			name: "nothing at all",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FinalizedVisibleText(tt.raw, tt.rendered); got != tt.want {
				t.Errorf("FinalizedVisibleText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatHistoryText(t *testing.T) {
	raw := "I'll gather the data. Let me start fetching.\n" + task(`{"summary":"s","artifact":"# Final\nbody"}`)

	if got := FormatHistoryText(raw); got != "# Final\nbody" {
		t.Errorf("FormatHistoryText() = %q", got)
	}
	if got := FormatHistoryText("Plain answer.\n" + artifact("txt\nignored")); got != "Plain answer." {
		t.Errorf("FormatHistoryText() = %q", got)
	}
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}
