package model

import (
	"regexp"
	"strconv"
	"strings"
)

var unitDays = map[string]float64{
	"day":     1,
	"week":    7,
	"sprint":  14,
	"month":   30,
	"quarter": 91,
	"year":    365,
}

var numberWords = map[string]float64{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"half": 0.5,
}

const numberPattern = `(\d+(?:\.\d+)?|an?|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|half)`

var durationRe = regexp.MustCompile(`(?i)\b` + numberPattern +
	`(?:\s*(?:-|–|to)\s*` + numberPattern + `)?\s*(day|week|sprint|month|quarter|year)s?\b`)

// ParseDays converts a human duration such as "2 weeks", "1-2 months" or
// "one quarter" into days. Ranges resolve to their upper bound.
func ParseDays(s string) (float64, bool) {
	m := durationRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	n, ok := parseNumber(m[1])
	if !ok {
		return 0, false
	}
	if m[2] != "" {
		upper, ok := parseNumber(m[2])
		if !ok {
			return 0, false
		}
		if upper > n {
			n = upper
		}
	}
	days := n * unitDays[strings.ToLower(m[3])]
	if days <= 0 {
		return 0, false
	}
	return days, true
}

func parseNumber(s string) (float64, bool) {
	if v, ok := numberWords[strings.ToLower(s)]; ok {
		return v, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
