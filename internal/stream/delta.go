package stream

import (
	"iter"
	"strings"
)

// ComputeDelta returns the text newly visible in current compared to previous,
// along with the truncated snapshot to pass as previous on the next call.
//
// current is cut at the earliest occurrence of any stop sequence. When the
// truncated snapshot does not extend previous, the whole truncated snapshot is
// returned as the delta; callers may then see duplicated text.
func ComputeDelta(previous, current string, stops []string) (delta, next string) {
	next = truncateAtStop(current, stops)
	if strings.HasPrefix(next, previous) {
		return next[len(previous):], next
	}
	return next, next
}

// truncateAtStop cuts s at the lowest index where any stop sequence begins.
func truncateAtStop(s string, stops []string) string {
	if cut := stopIndex(s, stops); cut >= 0 {
		return s[:cut]
	}
	return s
}

// stopIndex returns the lowest index of any non-empty stop sequence in s, or -1.
func stopIndex(s string, stops []string) int {
	cut := -1
	for _, stop := range stops {
		if stop == "" {
			continue
		}
		if idx := strings.Index(s, stop); idx >= 0 && (cut < 0 || idx < cut) {
			cut = idx
		}
	}
	return cut
}

// partialStopLen returns the length of the longest suffix of s that could
// still grow into a stop sequence.
func partialStopLen(s string, stops []string) int {
	n := 0
	for _, stop := range stops {
		n = max(n, longestPartialMarker(s, stop))
	}
	return n
}

// DeltaExtractor turns cumulative snapshots of one stream into deltas.
// It must not be shared across streams.
//
// Snapshots may be fed whole with Next, or as appended pieces with Append.
// Append only scans the new piece plus a held-back tail shorter than the
// longest stop sequence, and never shows text that a later piece could turn
// into a stop sequence. Call Flush when the stream ends cleanly to release
// that tail.
type DeltaExtractor struct {
	stops    []string
	previous strings.Builder
	pending  string
	halted   bool
	stopped  bool
}

func NewDeltaExtractor(stops []string) *DeltaExtractor {
	return &DeltaExtractor{stops: stops}
}

// Next consumes one snapshot and reports the new delta, if any.
func (e *DeltaExtractor) Next(snapshot string) (string, bool) {
	delta, next := ComputeDelta(e.previous.String(), snapshot, e.stops)
	e.halted = len(next) < len(snapshot)
	if e.halted {
		e.stopped = true
	}
	e.previous.Reset()
	e.previous.WriteString(next)
	e.pending = ""
	return delta, delta != ""
}

// Append consumes text that extends the current snapshot and reports the new
// delta, if any.
func (e *DeltaExtractor) Append(piece string) (string, bool) {
	if e.halted {
		return "", false
	}
	buf := e.pending + piece
	e.pending = ""
	if cut := stopIndex(buf, e.stops); cut >= 0 {
		buf = buf[:cut]
		e.halted = true
		e.stopped = true
	} else if n := partialStopLen(buf, e.stops); n > 0 {
		e.pending = buf[len(buf)-n:]
		buf = buf[:len(buf)-n]
	}
	e.previous.WriteString(buf)
	return buf, buf != ""
}

// Flush releases the tail held back by Append.
func (e *DeltaExtractor) Flush() (string, bool) {
	tail := e.pending
	e.pending = ""
	if e.halted || tail == "" {
		return "", false
	}
	e.previous.WriteString(tail)
	return tail, true
}

// Previous returns the truncated text shown so far.
func (e *DeltaExtractor) Previous() string {
	return e.previous.String()
}

// Stopped reports whether any snapshot so far has been cut by a stop sequence.
func (e *DeltaExtractor) Stopped() bool {
	return e.stopped
}

// Deltas yields the non-empty deltas of a sequence of cumulative snapshots.
func Deltas(snapshots iter.Seq[string], stops []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		e := NewDeltaExtractor(stops)
		for snapshot := range snapshots {
			delta, ok := e.Next(snapshot)
			if !ok {
				continue
			}
			if !yield(delta) {
				return
			}
		}
	}
}
