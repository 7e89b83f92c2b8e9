package ba

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/metalagman/consultant/internal/model"
)

const amountPattern = `([\d,]*\d(?:\.\d+)?)(?:\s*([km])\b)?`

var (
	budgetRe = regexp.MustCompile(`(?i)\bbudget\b[^\d$]{0,20}\$?\s*` + amountPattern +
		`|\$\s*` + amountPattern +
		`|\b` + amountPattern + `\s*(?:usd|dollars)\b`)
	timelineRe = regexp.MustCompile(`(?i)\b(?:\d+(?:\s*-\s*\d+)?|one|two|three|four|five|six|seven|eight|nine|ten|twelve|a)\s+(?:days?|weeks?|sprints?|months?|quarters?|years?)\b`)
	nameRe     = regexp.MustCompile(`(?i)\b(?:called|named|name is)\s+["']?([a-z0-9][\w\- ]{0,40}?)["']?(?:[,.;!]|\s+(?:and|for|that|which|with)\b|$)`)
	integRe    = regexp.MustCompile(`(?i)\bintegrat\w*\s+(?:with\s+)?([a-z][\w ]{1,30}?)(?:[,.;]|\s+and\b|$)`)
	sentenceRe = regexp.MustCompile(`[.;!?\n]+`)
)

// Heuristic extracts fields with regular expressions. It is used when the
// structured extractor cannot produce conforming output. Text that carries no
// other field becomes the description, appended to any existing one.
func Heuristic(draft model.Requirement, text string) Extraction {
	text = strings.TrimSpace(text)
	var ext Extraction
	rest := text

	if m := budgetRe.FindStringSubmatchIndex(rest); m != nil {
		for g := 1; 2*g+1 < len(m); g += 2 {
			if m[2*g] >= 0 {
				var suffix string
				if m[2*g+2] >= 0 {
					suffix = rest[m[2*g+2]:m[2*g+3]]
				}
				ext.Budget = parseAmount(rest[m[2*g]:m[2*g+1]], suffix)
				break
			}
		}
		rest = rest[:m[0]] + " " + rest[m[1]:]
	}
	if loc := timelineRe.FindStringIndex(rest); loc != nil {
		ext.Timeline = strings.TrimSpace(rest[loc[0]:loc[1]])
		rest = rest[:loc[0]] + " " + rest[loc[1]:]
	}
	if sub := nameRe.FindStringSubmatch(text); sub != nil {
		ext.Name = strings.TrimSpace(sub[1])
	}
	if sub := integRe.FindStringSubmatch(text); sub != nil {
		ext.AdditionalInfo = strings.TrimRight(strings.TrimSpace(sub[0]), ",.; ")
	}

	var parts []string
	for _, s := range sentenceRe.Split(rest, -1) {
		s = strings.Trim(strings.Join(strings.Fields(s), " "), ",: ")
		if s == "" || isFieldOnly(s) {
			continue
		}
		parts = append(parts, s)
	}
	desc := strings.Join(parts, ". ")
	switch {
	case desc == "":
	case strings.TrimSpace(draft.Description) == "":
		ext.Description = desc
	case !strings.Contains(draft.Description, desc) && len([]rune(desc)) >= 10:
		ext.Description = draft.Description + ". " + desc
	}
	return ext
}

func parseAmount(num, suffix string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(suffix) {
	case "k":
		v *= 1_000
	case "m":
		v *= 1_000_000
	}
	return v
}

// isFieldOnly reports whether s is just connective words left over after the
// budget and timeline were cut out.
func isFieldOnly(s string) bool {
	for _, w := range strings.Fields(strings.ToLower(s)) {
		switch strings.Trim(w, ",.;:!?") {
		case "", "budget", "is", "of", "about", "around", "timeline", "in", "within", "and", "for",
			"the", "my", "our", "we", "have", "it", "should", "take", "usd", "roughly", "approximately",
			"need", "want", "to", "be", "done", "finished", "by", "over":
			continue
		}
		return false
	}
	return true
}
