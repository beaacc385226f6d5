package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/cli/go-gh/v2/pkg/markdown"

	"github.com/markis/gh-transcript/internal/stream"
)

type TerminalRenderer struct {
	out       io.Writer
	markdown  *glamour.TermRenderer
	plainText bool
	buffer    strings.Builder
	visible   strings.Builder
}

func NewTerminalRenderer(out io.Writer, usePlainText bool, wrap int) *TerminalRenderer {
	var md *glamour.TermRenderer
	if !usePlainText {
		md, _ = glamour.NewTermRenderer(
			markdown.WithWrap(wrap),
			glamour.WithAutoStyle(),
		)
	}

	return &TerminalRenderer{
		out:       out,
		markdown:  md,
		plainText: usePlainText || md == nil,
	}
}

// Render prints chunks as they arrive, flushing markdown at paragraph breaks.
// Whatever was still buffered is printed only if the stream ended cleanly.
func (t *TerminalRenderer) Render(chunks <-chan stream.Chunk) error {
	for chunk := range chunks {
		if chunk.Error != nil {
			return fmt.Errorf("stream error: %w", chunk.Error)
		}

		t.visible.WriteString(chunk.Content)
		t.buffer.WriteString(chunk.Content)
		content := t.buffer.String()

		if idx := findMarkdownBreakPoint(content); idx > 0 {
			if err := t.renderContent(content[:idx]); err != nil {
				return err
			}
			// Reset buffer with remaining content
			remaining := content[idx:]
			t.buffer.Reset()
			t.buffer.WriteString(remaining)
		}
	}

	// Render any remaining content
	if remaining := t.buffer.String(); remaining != "" {
		t.buffer.Reset()
		if err := t.renderContent(remaining); err != nil {
			return err
		}
	}

	fmt.Fprintln(t.out)
	return nil
}

// Text returns everything received by Render so far.
func (t *TerminalRenderer) Text() string {
	return t.visible.String()
}

// RenderFinal prints a transcript that replaced the streamed text.
func (t *TerminalRenderer) RenderFinal(text string) error {
	if text == "" {
		return nil
	}
	fmt.Fprintln(t.out, "---")
	return t.RenderText(text)
}

// RenderText prints a complete piece of text outside of a stream.
func (t *TerminalRenderer) RenderText(text string) error {
	if err := t.renderContent(text); err != nil {
		return err
	}
	fmt.Fprintln(t.out)
	return nil
}

func (t *TerminalRenderer) renderContent(content string) error {
	if t.plainText {
		fmt.Fprint(t.out, content)
		return nil
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if strings.HasPrefix(content, "#") {
		fmt.Fprintln(t.out)
	}

	mdContent, err := t.markdown.Render(content)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}

	fmt.Fprintln(t.out, strings.TrimSpace(mdContent))
	return nil
}

func findMarkdownBreakPoint(content string) int {
	const marker string = "\n\n"
	lastBreak := -1
	idx := strings.LastIndex(content, marker)
	if idx > lastBreak {
		lastBreak = idx + len(marker)
	}
	return lastBreak
}
