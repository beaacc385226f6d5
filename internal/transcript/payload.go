package transcript

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"go.uber.org/zap"

	"github.com/markis/gh-transcript/internal/stream"
)

// CompletionPayload is the structured data a model reports in a complete-task
// block. Nil fields were absent from the block.
type CompletionPayload struct {
	Summary  *string
	Success  *bool
	Artifact *string
}

// SummaryText returns the trimmed summary, or "" when absent.
func (p CompletionPayload) SummaryText() string {
	if p.Summary == nil {
		return ""
	}
	return strings.TrimSpace(*p.Summary)
}

// ArtifactText returns the trimmed artifact, or "" when absent.
func (p CompletionPayload) ArtifactText() string {
	if p.Artifact == nil {
		return ""
	}
	return strings.TrimSpace(*p.Artifact)
}

func (p CompletionPayload) empty() bool {
	return p.SummaryText() == "" && p.ArtifactText() == "" && p.Success == nil
}

// blockBodies returns the body of every closed block of the given kind, in
// order of appearance. An unterminated block ends the scan.
func blockBodies(text string, kind stream.MarkerKind) []string {
	pair := stream.MarkerFor(kind)
	var bodies []string
	for {
		start := strings.Index(text, pair.Start)
		if start < 0 {
			return bodies
		}
		text = text[start+len(pair.Start):]
		end := strings.Index(text, pair.End)
		if end < 0 {
			return bodies
		}
		bodies = append(bodies, text[:end])
		text = text[end+len(pair.End):]
	}
}

// stripFence removes a ``` fence wrapped around body, if there is one.
func stripFence(body string) string {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "```") {
		return body
	}
	_, rest, found := strings.Cut(body, "\n")
	if !found {
		return ""
	}
	rest = strings.TrimRight(rest, " \t\r\n")
	if idx := strings.LastIndex(rest, "\n"); idx >= 0 && strings.TrimSpace(rest[idx+1:]) == "```" {
		rest = rest[:idx]
	} else if strings.TrimSpace(rest) == "```" {
		rest = ""
	}
	return strings.TrimSpace(rest)
}

// parsePayload decodes a block body into a payload. Fields of the wrong type
// are ignored rather than failing the whole block.
func (f Finalizer) parsePayload(body string) (CompletionPayload, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		if _, ok := err.(*json.SyntaxError); !ok || !f.RepairJSON {
			return CompletionPayload{}, false
		}
		fixed, rerr := jsonrepair.JSONRepair(body)
		if rerr != nil {
			return CompletionPayload{}, false
		}
		if err := json.Unmarshal([]byte(fixed), &fields); err != nil {
			return CompletionPayload{}, false
		}
	}
	if fields == nil {
		return CompletionPayload{}, false
	}

	var p CompletionPayload
	if raw, ok := fields["summary"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			p.Summary = &s
		}
	}
	if raw, ok := fields["artifact"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			p.Artifact = &s
		}
	}
	if raw, ok := fields["success"]; ok {
		p.Success = decodeSuccess(raw)
	}
	return p, true
}

// decodeSuccess accepts a JSON boolean or the numbers 0 and 1.
func decodeSuccess(raw json.RawMessage) *bool {
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return &b
	}
	var n float64
	if json.Unmarshal(raw, &n) != nil {
		return nil
	}
	switch n {
	case 0:
		b = false
	case 1:
		b = true
	default:
		return nil
	}
	return &b
}

// ExtractCompletionPayload returns the last well-formed, non-empty payload
// among the complete-task blocks of raw.
func (f Finalizer) ExtractCompletionPayload(raw string) (CompletionPayload, bool) {
	var (
		latest CompletionPayload
		found  bool
	)
	for i, body := range blockBodies(raw, stream.MarkerCompleteTask) {
		p, ok := f.parsePayload(stripFence(body))
		if !ok || p.empty() {
			f.logger().Debug("discarding completion payload", zap.Int("block", i), zap.Bool("parsed", ok))
			continue
		}
		latest, found = p, true
	}
	return latest, found
}

// ExtractLatestArtifact returns the last non-empty generated artifact in raw,
// without its leading language or filename line. Blank lines before that line
// are skipped.
func (f Finalizer) ExtractLatestArtifact(raw string) (string, bool) {
	var (
		latest string
		found  bool
	)
	for _, body := range blockBodies(raw, stream.MarkerGeneratedArtifact) {
		_, rest, _ := strings.Cut(strings.TrimLeft(body, " \t\r\n"), "\n")
		if artifact := strings.TrimSpace(rest); artifact != "" {
			latest, found = artifact, true
		}
	}
	return latest, found
}
