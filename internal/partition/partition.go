// Package partition derives the date partition of an archived log file.
package partition

import (
	"regexp"
	"strings"
	"time"
)

// Layout is the partition date format.
const Layout = "2006-01-02"

var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// DefaultDate returns the fallback partition for a batch started at now: the
// previous calendar day.
func DefaultDate(now time.Time) string {
	return now.AddDate(0, 0, -1).Format(Layout)
}

// TokenDate looks for a date among the underscore (or dot) delimited tokens of
// filename. Only the first date-shaped token is considered.
func TokenDate(filename string) (string, bool) {
	tokens := strings.FieldsFunc(filename, func(r rune) bool {
		return r == '_' || r == '.'
	})
	for _, tok := range tokens {
		if len(tok) == len(Layout) && strings.Count(tok, "-") == 2 {
			return strictDate(tok)
		}
	}
	return "", false
}

// PatternDate finds the first YYYY-MM-DD substring of filename.
func PatternDate(filename string) (string, bool) {
	m := datePattern.FindString(filename)
	if m == "" {
		return "", false
	}
	return strictDate(m)
}

// FromTokens resolves the partition of a local log file, defaulting to fallback.
func FromTokens(filename, fallback string) string {
	if d, ok := TokenDate(filename); ok {
		return d
	}
	return fallback
}

// FromPattern resolves the partition of a remote log file, defaulting to fallback.
func FromPattern(filename, fallback string) string {
	if d, ok := PatternDate(filename); ok {
		return d
	}
	return fallback
}

func strictDate(s string) (string, bool) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return "", false
	}
	return t.Format(Layout), true
}
