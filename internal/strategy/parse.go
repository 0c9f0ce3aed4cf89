package strategy

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	ratioPattern   = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
	percentPattern = regexp.MustCompile(`(\d+)\s*%`)
)

// parseRatio matches spec §4.3's "ratio parser": "8 / 10" -> (8, 10, true).
func parseRatio(text string) (open, total int, ok bool) {
	m := ratioPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	open, errO := strconv.Atoi(m[1])
	total, errT := strconv.Atoi(m[2])
	if errO != nil || errT != nil {
		return 0, 0, false
	}
	return open, total, true
}

// parsePercent matches spec §4.3's "percent parser": "62%" -> (62, true).
func parsePercent(text string) (percent int, ok bool) {
	m := percentPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	p, err := strconv.Atoi(m[1])
	if err != nil || p < 0 || p > 100 {
		return 0, false
	}
	return p, true
}

// deriveIsOpen implements spec §4.3 step 5: true iff the (lowercased) text
// contains "open" and does not contain "closed".
func deriveIsOpen(statusText string) bool {
	lower := strings.ToLower(statusText)
	if lower == "" {
		return false
	}
	if strings.Contains(lower, "closed") {
		return false
	}
	return strings.Contains(lower, "open")
}
