// Package transcript decides what text is kept for a finished model turn.
//
// The live stream shows whatever the model wrote outside its control blocks.
// Once the turn ends, the raw output is inspected for a completion payload and
// generated artifacts, and one of those may replace the streamed text when the
// streamed text was only progress narration.
package transcript

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/markis/gh-transcript/internal/stream"
)

var blankLineRun = regexp.MustCompile(`\n{3,}`)

// Finalizer holds the options used to finalize a turn. The zero value parses
// payloads strictly and does not log. A Finalizer is safe for concurrent use.
type Finalizer struct {
	// RepairJSON retries malformed completion payloads through jsonrepair.
	RepairJSON bool
	Logger     *zap.Logger
}

func (f Finalizer) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

// Sanitize strips control blocks from text, collapses runs of blank lines and
// trims surrounding whitespace. Passes repeat until the text stops changing,
// so Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(text string) string {
	for {
		next := sanitizeOnce(text)
		if next == text {
			return next
		}
		text = next
	}
}

func sanitizeOnce(text string) string {
	filter := stream.NewControlBlockFilter()
	visible := filter.Consume(text) + filter.Finalize()
	visible = blankLineRun.ReplaceAllString(visible, "\n\n")
	return strings.TrimSpace(visible)
}

// FinalizedVisibleText picks the transcript for a finished turn from the raw
// model output and the text rendered while streaming.
func (f Finalizer) FinalizedVisibleText(rawOutput, currentlyRendered string) string {
	rendered := Sanitize(currentlyRendered)

	var completionArtifact, completionSummary string
	if payload, ok := f.ExtractCompletionPayload(rawOutput); ok {
		completionArtifact = payload.ArtifactText()
		completionSummary = payload.SummaryText()
	}
	generatedArtifact, _ := f.ExtractLatestArtifact(rawOutput)

	if completionArtifact != "" && ShouldPromoteArtifact(completionArtifact, rendered) {
		f.logger().Debug("promoting completion artifact",
			zap.Int("artifact_len", len(completionArtifact)),
			zap.Int("rendered_len", len(rendered)),
		)
		return completionArtifact
	}
	if rendered != "" {
		return rendered
	}
	for _, candidate := range []string{completionArtifact, generatedArtifact, completionSummary} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// FormatHistoryText rebuilds the display text of a stored turn from its raw
// output alone.
func (f Finalizer) FormatHistoryText(raw string) string {
	return f.FinalizedVisibleText(raw, Sanitize(raw))
}

var std Finalizer

// ExtractCompletionPayload is Finalizer.ExtractCompletionPayload with default options.
func ExtractCompletionPayload(raw string) (CompletionPayload, bool) {
	return std.ExtractCompletionPayload(raw)
}

// ExtractLatestArtifact is Finalizer.ExtractLatestArtifact with default options.
func ExtractLatestArtifact(raw string) (string, bool) {
	return std.ExtractLatestArtifact(raw)
}

// FinalizedVisibleText is Finalizer.FinalizedVisibleText with default options.
func FinalizedVisibleText(rawOutput, currentlyRendered string) string {
	return std.FinalizedVisibleText(rawOutput, currentlyRendered)
}

// FormatHistoryText is Finalizer.FormatHistoryText with default options.
func FormatHistoryText(raw string) string {
	return std.FormatHistoryText(raw)
}
