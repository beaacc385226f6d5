package stream

import (
	"context"

	"go.uber.org/zap"
)

// Chunk represents a processed piece of content from the stream
type Chunk struct {
	Content string
	Done    bool
	Error   error
}

// Parser handles the processing of raw stream data into chunks
type Parser struct {
	ctx       context.Context
	chunks    chan Chunk
	extractor *DeltaExtractor
	snapshots bool
	logger    *zap.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithStopSequences truncates the streamed text at the first stop sequence.
func WithStopSequences(stops []string) Option {
	return func(p *Parser) {
		p.extractor = NewDeltaExtractor(stops)
	}
}

// WithSnapshots treats every streamed content field as the cumulative text so
// far instead of an increment.
func WithSnapshots(enabled bool) Option {
	return func(p *Parser) {
		p.snapshots = enabled
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewParser(ctx context.Context, opts ...Option) *Parser {
	p := &Parser{
		ctx:       ctx,
		chunks:    make(chan Chunk),
		extractor: NewDeltaExtractor(nil),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parser) Chunks() <-chan Chunk {
	return p.chunks
}

// Raw returns the stop-truncated text received so far. It is only safe to
// call once the Chunks channel has been closed.
func (p *Parser) Raw() string {
	return p.extractor.Previous()
}
