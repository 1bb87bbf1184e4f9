package fleet

import (
	"regexp"
	"strings"
)

var scorePattern = regexp.MustCompile(`^\s*\d{1,3}(\.\d+)?\s*%?\s*$`)

// NormalizeScore returns s trimmed and ending with a single trailing "%".
// It is idempotent.
func NormalizeScore(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "%") {
		return s
	}
	return s + "%"
}

// ValidScore reports whether s looks like "78", "78%" or "78.5 %".
func ValidScore(s string) bool {
	return scorePattern.MatchString(s)
}

// ScoreValue parses the leading integer of a score. The trailing "%" and
// anything after the digits are ignored; a non-numeric score is 0.
func ScoreValue(s string) int {
	s = strings.TrimLeft(s, " \t\n\r")
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}

	n := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
		if n > 1_000_000 {
			break
		}
	}
	if neg {
		return -n
	}
	return n
}
