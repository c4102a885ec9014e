package learning

import (
	"regexp"
	"strings"

	"github.com/sells-group/brandmerge-cli/internal/model"
)

var yearToken = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// locationTokens are trailing tokens that mark a geographic variation
// rather than a different brand.
var locationTokens = map[string]bool{
	"KENTUCKY": true, "TENNESSEE": true, "TEXAS": true, "CALIFORNIA": true,
	"OREGON": true, "COLORADO": true, "NAPA": true, "SONOMA": true,
	"HIGHLAND": true, "ISLAY": true, "AMERICA": true, "AMERICAN": true,
}

// Match is one detected pattern between a name pair.
type Match struct {
	Type      model.PatternType
	Signature string
}

// DetectPatterns finds the name-variation pattern families that relate two
// brand names. Detection is symmetric: order of a and b does not matter.
func DetectPatterns(a, b string) []Match {
	a = strings.ToUpper(strings.TrimSpace(a))
	b = strings.ToUpper(strings.TrimSpace(b))
	if a == "" || b == "" || a == b {
		return nil
	}

	var matches []Match
	wa, wb := strings.Fields(a), strings.Fields(b)

	// Year variation: identical once year tokens are removed.
	strippedA := normalizeSpace(yearToken.ReplaceAllString(a, " "))
	strippedB := normalizeSpace(yearToken.ReplaceAllString(b, " "))
	if strippedA == strippedB && strippedA != "" && (a != strippedA || b != strippedB) {
		matches = append(matches, Match{Type: model.PatternYearVariation, Signature: strippedA})
	}

	// Suffix variation: one token list extends the other at the tail.
	if sig, ok := extensionOf(wa, wb); ok {
		if locationTokens[sig] {
			matches = append(matches, Match{Type: model.PatternLocationVariation, Signature: sig})
		} else {
			matches = append(matches, Match{Type: model.PatternSuffixVariation, Signature: sig})
		}
	}

	// Prefix variation: one token list extends the other at the head.
	if sig, ok := extensionOf(reverse(wa), reverse(wb)); ok && !locationTokens[sig] {
		matches = append(matches, Match{Type: model.PatternPrefixVariation, Signature: sig})
	}

	// Abbreviation: the shorter name is the initials of the longer.
	if sig, ok := abbreviationOf(a, b); ok {
		matches = append(matches, Match{Type: model.PatternAbbreviation, Signature: sig})
	}

	return matches
}

// DomainMatchPattern is the pattern recorded when a pair grouped on a
// shared verified domain.
func DomainMatchPattern(domain string) Match {
	return Match{Type: model.PatternDomainMatch, Signature: strings.ToLower(domain)}
}

// extensionOf reports whether one word list equals the other plus extra
// trailing words; the signature is the first extra word.
func extensionOf(a, b []string) (string, bool) {
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 || len(short) == len(long) {
		return "", false
	}
	for i := range short {
		if short[i] != long[i] {
			return "", false
		}
	}
	return long[len(short)], true
}

// abbreviationOf reports whether the shorter of a, b matches the initials
// of the longer (e.g. "BT" vs "BUFFALO TRACE").
func abbreviationOf(a, b string) (string, bool) {
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	words := strings.Fields(long)
	if len(words) < 2 {
		return "", false
	}
	var initials strings.Builder
	for _, w := range words {
		initials.WriteByte(w[0])
	}
	compact := strings.ReplaceAll(strings.ReplaceAll(short, ".", ""), " ", "")
	if compact == initials.String() {
		return initials.String(), true
	}
	return "", false
}

func reverse(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[len(words)-1-i] = w
	}
	return out
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
