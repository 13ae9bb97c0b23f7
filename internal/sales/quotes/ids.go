package quotes

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`^QN(\d+)(?:/|$)`)

var keyReplacer = strings.NewReplacer(" - Rev ", "-Rev", "/", "-", " ", "")

// FormatID renders the human-visible quote id, e.g. "QN0001/2025 - Rev A".
func FormatID(number, year int, revision string) string {
	id := fmt.Sprintf("QN%04d/%04d", number, year)
	if rev := strings.TrimSpace(revision); rev != "" {
		id += " - Rev " + rev
	}
	return id
}

// StorageKey maps an id to the URL-safe document key, e.g. "QN0001-2025-RevA".
func StorageKey(id string) string {
	replaced := keyReplacer.Replace(strings.TrimSpace(id))
	var b strings.Builder
	b.Grow(len(replaced))
	for _, r := range replaced {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

// ParseNumber extracts the numeric part of an id. ok is false for ids that do
// not follow the QN format.
func ParseNumber(id string) (n int, ok bool) {
	m := numberPattern.FindStringSubmatch(strings.TrimSpace(id))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// NextNumber returns max+1 over the parsable ids, or seed when there are none.
func NextNumber(ids []string, seed int) int {
	highest := 0
	for _, id := range ids {
		if n, ok := ParseNumber(id); ok && n > highest {
			highest = n
		}
	}
	if highest == 0 {
		return max(seed, 1)
	}
	return highest + 1
}
