package stream

import "strings"

// ControlBlockFilter removes control blocks from a live text stream.
//
// Text between a start marker and its end marker is never emitted, and neither
// are the markers. A trailing fragment that could still grow into a marker is
// held back until the next Consume call resolves it, so the held-back carry is
// never longer than the longest marker minus one byte.
//
// A filter serves one stream and must be driven by a single producer in
// arrival order. Call Finalize once when the stream ends cleanly; on
// cancellation simply drop the filter.
type ControlBlockFilter struct {
	inside bool
	end    string
	carry  string
}

func NewControlBlockFilter() *ControlBlockFilter {
	return &ControlBlockFilter{}
}

// Consume filters the next chunk and returns the text that is safe to show.
func (f *ControlBlockFilter) Consume(chunk string) string {
	remaining := f.carry + chunk
	f.carry = ""

	var out strings.Builder
	for remaining != "" {
		if f.inside {
			if idx := strings.Index(remaining, f.end); idx >= 0 {
				remaining = remaining[idx+len(f.end):]
				f.inside = false
				f.end = ""
				continue
			}
			n := longestPartialMarker(remaining, f.end)
			if n == 0 {
				n = min(len(remaining), len(f.end)-1)
			}
			f.carry = remaining[len(remaining)-n:]
			break
		}

		idx, pair, ok := earliestStart(remaining)
		if !ok {
			n := 0
			for _, m := range Markers {
				n = max(n, longestPartialMarker(remaining, m.Start))
			}
			out.WriteString(remaining[:len(remaining)-n])
			f.carry = remaining[len(remaining)-n:]
			break
		}
		out.WriteString(remaining[:idx])
		remaining = remaining[idx+len(pair.Start):]
		f.inside = true
		f.end = pair.End
	}
	return out.String()
}

// Finalize flushes the carry at the end of a stream. An unterminated block is
// dropped, and so is a trailing fragment of a start marker.
func (f *ControlBlockFilter) Finalize() string {
	carry := f.carry
	f.carry = ""
	if f.inside || isStartPrefix(carry) {
		return ""
	}
	return carry
}

// Reset prepares the filter for a new stream.
func (f *ControlBlockFilter) Reset() {
	f.inside = false
	f.end = ""
	f.carry = ""
}

// Inside reports whether the filter is currently discarding a control block.
func (f *ControlBlockFilter) Inside() bool {
	return f.inside
}

// Buffered returns the number of bytes held back as carry.
func (f *ControlBlockFilter) Buffered() int {
	return len(f.carry)
}

// earliestStart finds the start marker that begins at the lowest index of s.
// Ties go to the marker listed first.
func earliestStart(s string) (int, MarkerPair, bool) {
	best := -1
	var pair MarkerPair
	for _, m := range Markers {
		if idx := strings.Index(s, m.Start); idx >= 0 && (best < 0 || idx < best) {
			best = idx
			pair = m
		}
	}
	return best, pair, best >= 0
}

// longestPartialMarker returns the length of the longest suffix of s that is a
// proper, non-empty prefix of marker.
func longestPartialMarker(s, marker string) int {
	for n := min(len(s), len(marker)-1); n > 0; n-- {
		if strings.HasSuffix(s, marker[:n]) {
			return n
		}
	}
	return 0
}

func isStartPrefix(s string) bool {
	if s == "" {
		return false
	}
	for _, m := range Markers {
		if strings.HasPrefix(m.Start, s) {
			return true
		}
	}
	return false
}
