package transcript

import (
	"strings"
	"unicode/utf8"
)

// Promotion thresholds. These are tuned by hand against real transcripts.
const (
	minNarrationSentences     = 2
	minNarrationPhraseMatches = 2
	promotionLengthRatio      = 2
)

var narrationPhrases = []string{
	"let me ",
	"i'll ",
	"i will ",
	"working on it",
	"good start",
	"i now have",
	"i've fetched",
	"compiling all this",
	"gathering",
	"fetching",
}

// ShouldPromoteArtifact reports whether a completion artifact should replace
// the rendered text as the turn's transcript.
func ShouldPromoteArtifact(artifact, rendered string) bool {
	if rendered == "" {
		return true
	}
	if looksLikeNarration(rendered) {
		return true
	}
	longer := utf8.RuneCountInString(artifact) > promotionLengthRatio*utf8.RuneCountInString(rendered)
	return longer && !hasMarkdownHeading(rendered)
}

// looksLikeNarration reports whether text reads like running commentary about
// work in progress rather than an answer.
func looksLikeNarration(text string) bool {
	sentences := 0
	for _, s := range strings.Split(text, ".") {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	if sentences < minNarrationSentences {
		return false
	}

	lower := strings.ToLower(text)
	matches := 0
	for _, phrase := range narrationPhrases {
		if strings.Contains(lower, phrase) {
			matches++
		}
	}
	return matches >= minNarrationPhraseMatches
}

func hasMarkdownHeading(text string) bool {
	return strings.Contains(text, "\n#") || strings.Contains(text, "##")
}
