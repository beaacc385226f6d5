package stream

import "context"

// Filter strips control blocks from a chunk stream. The returned channel is
// closed once in is closed or ctx is cancelled.
//
// Held-back text is flushed only when a Done chunk arrives; a stream that ends
// with an error or without Done never flushes its carry.
func Filter(ctx context.Context, in <-chan Chunk) <-chan Chunk {
	out := make(chan Chunk)
	go func() {
		defer close(out)
		filter := NewControlBlockFilter()

		send := func(c Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for c := range in {
			switch {
			case c.Error != nil:
				if !send(c) {
					return
				}
			case c.Done:
				if tail := filter.Finalize(); tail != "" {
					if !send(Chunk{Content: tail}) {
						return
					}
				}
				if !send(c) {
					return
				}
			default:
				if visible := filter.Consume(c.Content); visible != "" {
					if !send(Chunk{Content: visible}) {
						return
					}
				}
			}
		}
	}()
	return out
}
