package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"go.uber.org/zap"
)

// ChatResponse represents the structure of the response from the chat API.
type ChatResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Process reads server-sent events from body and publishes the visible deltas
// on the Chunks channel, closing it when the body is exhausted. A clean end of
// stream is signalled with a Done chunk; cancellation and read failures with an
// Error chunk.
//
// Text that may be the start of a stop sequence split across events is held
// back until the next event or the end of the stream.
func (p *Parser) Process(body io.ReadCloser) {
	defer close(p.chunks)
	done := p.ctx.Done()

	reader := bufio.NewReaderSize(body, 4096)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(bufio.ScanLines)

	var last string
	stopped := false

	for {
		select {
		case <-done:
			p.send(Chunk{Error: p.ctx.Err()})
			return
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				p.send(Chunk{Error: err})
				return
			}
			if tail, ok := p.extractor.Flush(); ok && !p.send(Chunk{Content: tail}) {
				return
			}
			p.send(Chunk{Done: true})
			return
		}

		line := scanner.Text()
		if line == "" || line == "data: [DONE]" || !strings.HasPrefix(line, "data:") {
			continue
		}

		var chunk ChatResponse
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			p.logger.Debug("skipping malformed stream event", zap.Error(err))
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		content := chunk.Choices[0].Delta.Content
		if content == "" {
			content = chunk.Choices[0].Message.Content
		}
		if content == "" {
			continue
		}

		var (
			delta string
			ok    bool
		)
		switch {
		case !p.snapshots:
			delta, ok = p.extractor.Append(content)
		case strings.HasPrefix(content, last):
			delta, ok = p.extractor.Append(content[len(last):])
		default:
			delta, ok = p.extractor.Next(content)
		}
		last = content
		if !stopped && p.extractor.Stopped() {
			stopped = true
			p.logger.Debug("stop sequence reached", zap.Int("visible_bytes", len(p.extractor.Previous())))
		}
		if ok && !p.send(Chunk{Content: delta}) {
			return
		}
	}
}

// send delivers c unless the parser's context is cancelled first.
func (p *Parser) send(c Chunk) bool {
	select {
	case p.chunks <- c:
		return true
	case <-p.ctx.Done():
		return false
	}
}
