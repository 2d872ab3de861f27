package narration

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxExtractedNames caps ExtractPlaceNames results.
const MaxExtractedNames = 5

// Runs of capitalized words, optionally joined by lowercase connectors
// ("Museum of Modern Art", "Rue de la Paix").
var properNoun = regexp.MustCompile(`\p{Lu}[\p{L}'’-]*(?:\s+(?:(?:of|the|de|del|della|la|le|du|des|von|van)\s+)*\p{Lu}[\p{L}'’-]*)*`)

// Words that start sentences or phrases but never name a place.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "this": true, "that": true, "these": true,
	"those": true, "it": true, "its": true, "it's": true, "there": true, "here": true,
	"you": true, "your": true, "you'll": true, "you're": true, "i": true, "we": true,
	"they": true, "if": true, "just": true, "also": true, "and": true, "but": true,
	"or": true, "so": true, "for": true, "from": true, "at": true, "in": true,
	"on": true, "near": true, "nearby": true, "around": true, "while": true,
	"when": true, "after": true, "before": true, "check": true, "visit": true,
	"try": true, "see": true, "head": true, "stop": true, "walk": true, "take": true,
	"don't": true, "be": true, "enjoy": true, "explore": true, "consider": true,
	"another": true, "both": true, "only": true, "plus": true, "then": true,
	"right": true, "great": true, "as": true, "with": true, "what": true,
}

// ExtractPlaceNames pulls likely place names out of narration text. It is a
// best-effort heuristic used only to seed "do not repeat" hints.
func ExtractPlaceNames(text string) []string {
	var names []string
	seen := make(map[string]bool)

	for _, loc := range properNoun.FindAllStringIndex(text, -1) {
		phrase := strings.TrimRight(text[loc[0]:loc[1]], "'’-")
		words := strings.Fields(phrase)

		stripped := false
		for len(words) > 0 && stopWords[strings.ToLower(words[0])] {
			words = words[1:]
			stripped = true
		}
		if len(words) == 0 {
			continue
		}
		// A lone capitalized word opening a sentence is usually just grammar.
		if len(words) == 1 && !stripped && sentenceStart(text, loc[0]) {
			continue
		}

		name := strings.Join(words, " ")
		if utf8.RuneCountInString(name) < 3 || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		names = append(names, name)
		if len(names) == MaxExtractedNames {
			break
		}
	}
	return names
}

// sentenceStart reports whether position i begins the text or follows
// sentence punctuation.
func sentenceStart(text string, i int) bool {
	prev := strings.TrimRight(text[:i], " \t\n\"“")
	if prev == "" {
		return true
	}
	switch prev[len(prev)-1] {
	case '.', '!', '?', ':', ';':
		return true
	}
	return false
}
