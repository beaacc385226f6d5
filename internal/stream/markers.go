package stream

// MarkerKind identifies one of the out-of-band control blocks a model may emit.
type MarkerKind int

const (
	MarkerClarification MarkerKind = iota
	MarkerCompleteTask
	MarkerGeneratedArtifact
)

// String returns the string representation of the MarkerKind
func (k MarkerKind) String() string {
	switch k {
	case MarkerClarification:
		return "clarification"
	case MarkerCompleteTask:
		return "complete_task"
	case MarkerGeneratedArtifact:
		return "generated_artifact"
	default:
		return "unknown"
	}
}

// MarkerPair is a literal start/end delimiter around a control block.
type MarkerPair struct {
	Kind  MarkerKind
	Start string
	End   string
}

// Markers lists the control block delimiters in match-priority order.
var Markers = [...]MarkerPair{
	{Kind: MarkerClarification, Start: "---REQUEST_CLARIFICATION_START---", End: "---REQUEST_CLARIFICATION_END---"},
	{Kind: MarkerCompleteTask, Start: "---COMPLETE_TASK_START---", End: "---COMPLETE_TASK_END---"},
	{Kind: MarkerGeneratedArtifact, Start: "---GENERATED_ARTIFACT_START---", End: "---GENERATED_ARTIFACT_END---"},
}

// MarkerFor returns the marker pair of the given kind.
func MarkerFor(kind MarkerKind) MarkerPair {
	for _, m := range Markers {
		if m.Kind == kind {
			return m
		}
	}
	return MarkerPair{}
}

// maxMarkerLen is the length of the longest start or end literal.
var maxMarkerLen = func() int {
	n := 0
	for _, m := range Markers {
		n = max(n, len(m.Start), len(m.End))
	}
	return n
}()
