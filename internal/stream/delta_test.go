package stream

import (
	"slices"
	"strings"
	"testing"
)

func TestComputeDelta(t *testing.T) {
	tests := []struct {
		name      string
		previous  string
		current   string
		stops     []string
		wantDelta string
		wantNext  string
	}{
		{"extends previous", "Hello", "Hello world", nil, " world", "Hello world"},
		{"first snapshot", "", "Hi", nil, "Hi", "Hi"},
		{"unchanged", "Hi", "Hi", nil, "", "Hi"},
		{"stop sequence", "Hello", "Hello STOPworld", []string{"STOP"}, " ", "Hello "},
		{"earliest stop wins", "", "xaby", []string{"b", "a"}, "x", "x"},
		{"empty stop ignored", "", "abc", []string{""}, "abc", "abc"},
		{"truncated to empty", "", "STOP now", []string{"STOP"}, "", ""},
		{"non-monotonic falls back to whole snapshot", "Hello there", "Goodbye", nil, "Goodbye", "Goodbye"},
		{"stop shrinks below previous", "Hello world", "Hello wSTOP", []string{"STOP"}, "Hello w", "Hello w"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, next := ComputeDelta(tt.previous, tt.current, tt.stops)
			if delta != tt.wantDelta {
				t.Errorf("delta = %q, want %q", delta, tt.wantDelta)
			}
			if next != tt.wantNext {
				t.Errorf("next = %q, want %q", next, tt.wantNext)
			}
		})
	}
}

func TestDeltaExtractorStopped(t *testing.T) {
	e := NewDeltaExtractor([]string{"STOP"})

	if d, ok := e.Next("Hello"); !ok || d != "Hello" {
		t.Fatalf("Next(Hello) = %q, %v", d, ok)
	}
	if e.Stopped() {
		t.Fatal("Stopped() = true before any stop sequence")
	}
	if d, ok := e.Next("Hello STOP and more"); !ok || d != " " {
		t.Fatalf("Next() = %q, %v, want %q", d, ok, " ")
	}
	if !e.Stopped() {
		t.Fatal("Stopped() = false after stop sequence")
	}
	if d, ok := e.Next("Hello STOP and even more"); ok {
		t.Fatalf("Next() after stop = %q, want no delta", d)
	}
	if got := e.Previous(); got != "Hello " {
		t.Errorf("Previous() = %q, want %q", got, "Hello ")
	}
}

func TestDeltas(t *testing.T) {
	snapshots := slices.Values([]string{"He", "Hello", "Hello", "Hello STOP world", "Hello STOP world!"})

	got := slices.Collect(Deltas(snapshots, []string{"STOP"}))
	want := []string{"He", "llo", " "}
	if !slices.Equal(got, want) {
		t.Errorf("Deltas() = %q, want %q", got, want)
	}
}

func TestDeltasEarlyBreak(t *testing.T) {
	snapshots := slices.Values([]string{"a", "ab", "abc"})

	var got []string
	for d := range Deltas(snapshots, nil) {
		got = append(got, d)
		if len(got) == 2 {
			break
		}
	}
	if want := []string{"a", "b"}; !slices.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDeltaExtractorAppendMatchesTruncation(t *testing.T) {
	stops := []string{"STOP", "</answer>", "S!"}
	inputs := []string{
		"no stop here",
		"Hello STOP world",
		"answer</answer>tail",
		"STARS and S! more",
		"almost </answ but not quite",
		"ends with </ans",
	}
	longest := 0
	for _, s := range stops {
		longest = max(longest, len(s))
	}

	for _, input := range inputs {
		want := truncateAtStop(input, stops)
		for i := 0; i <= len(input); i++ {
			for j := i; j <= len(input); j++ {
				e := NewDeltaExtractor(stops)
				var out strings.Builder
				for _, piece := range []string{input[:i], input[i:j], input[j:]} {
					d, _ := e.Append(piece)
					out.WriteString(d)
					if len(e.pending) >= longest {
						t.Fatalf("held back %q, limit %d", e.pending, longest-1)
					}
				}
				tail, _ := e.Flush()
				out.WriteString(tail)
				if got := out.String(); got != want {
					t.Errorf("splits %d,%d of %q: got %q, want %q", i, j, input, got, want)
				}
				if got := e.Previous(); got != want {
					t.Errorf("splits %d,%d of %q: Previous() = %q, want %q", i, j, input, got, want)
				}
			}
		}
	}
}

func TestDeltaExtractorAppendHoldsPartialStop(t *testing.T) {
	e := NewDeltaExtractor([]string{"STOP"})
	if d, ok := e.Append("Hello ST"); !ok || d != "Hello " {
		t.Fatalf("Append() = %q, %v, want %q", d, ok, "Hello ")
	}
	if d, ok := e.Append("OP world"); ok {
		t.Fatalf("Append() after stop = %q, want no delta", d)
	}
	if !e.Stopped() {
		t.Error("Stopped() = false after split stop sequence")
	}
	if d, ok := e.Flush(); ok {
		t.Errorf("Flush() after stop = %q, want nothing", d)
	}
	if d, ok := e.Append("more"); ok {
		t.Errorf("Append() after stop = %q, want no delta", d)
	}
}

func TestDeltaExtractorNextAfterAppend(t *testing.T) {
	e := NewDeltaExtractor([]string{"STOP"})
	e.Append("abc S")
	if d, ok := e.Next("xyz"); !ok || d != "xyz" {
		t.Fatalf("Next(non-monotonic) = %q, %v, want %q", d, ok, "xyz")
	}
	if d, ok := e.Flush(); ok {
		t.Errorf("Flush() = %q, want nothing after Next", d)
	}
}
