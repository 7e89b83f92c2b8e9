package project

import (
	"regexp"
	"strings"
	"unicode"
)

var featureSplitRe = regexp.MustCompile(`(?i)[,;.\n]|\band\b|\bwith\b|\bincluding\b|\bplus\b|&|\balso\b`)

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the for that this from into have has will would should could can our their your them they
		are was were been being its it's able also just like want need needs must some any all
		each every other more most very really build building create make app application apps
		system platform tool tools solution software project website web simple basic new using
		use used user users people customers based allow allows feature features support supports
		where which while about over under between through across who what when how`) {
		stopWords[w] = struct{}{}
	}
}

// feature is a requested capability and the tokens that identify it.
type feature struct {
	Phrase string
	Tokens []string
}

// extractFeatures splits free text into feature phrases. Phrases with no
// significant tokens are dropped and duplicates are collapsed.
func extractFeatures(texts ...string) []feature {
	var out []feature
	seen := make(map[string]struct{})
	for _, text := range texts {
		for _, part := range featureSplitRe.Split(text, -1) {
			phrase := strings.Join(strings.Fields(part), " ")
			tokens := significantTokens(phrase)
			if len(tokens) == 0 {
				continue
			}
			key := strings.Join(tokens, " ")
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, feature{Phrase: phrase, Tokens: tokens})
		}
	}
	return out
}

func significantTokens(s string) []string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

// vocabulary indexes the words of a plan for fuzzy token lookup.
type vocabulary map[string]struct{}

func newVocabulary(texts ...string) vocabulary {
	v := make(vocabulary)
	for _, t := range texts {
		for _, w := range significantTokens(t) {
			v[w] = struct{}{}
		}
	}
	return v
}

// covers reports whether any token of f appears in the vocabulary. Words
// sharing a five-letter stem match, so "integration" covers "integrate".
func (v vocabulary) covers(f feature) bool {
	for _, tok := range f.Tokens {
		if _, ok := v[tok]; ok {
			return true
		}
		stem := stemOf(tok)
		for w := range v {
			if stemOf(w) == stem {
				return true
			}
		}
	}
	return false
}

func stemOf(w string) string {
	const n = 5
	if len(w) <= n {
		return strings.TrimSuffix(w, "s")
	}
	return w[:n]
}
