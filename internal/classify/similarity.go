package classify

import (
	"regexp"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/sells-group/brandmerge-cli/internal/knowledge"
)

var nonAlnum = regexp.MustCompile(`[^A-Z0-9 ]+`)

// NormalizeName uppercases a brand name, strips punctuation, and removes
// trailing legal and facility suffixes. All name similarity runs on this
// form.
func NormalizeName(name string, kb *knowledge.Base) string {
	s := strings.ToUpper(strings.TrimSpace(name))
	s = nonAlnum.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")

	for changed := true; changed; {
		changed = false
		for _, suffix := range kb.LegalSuffixes {
			bare := nonAlnum.ReplaceAllString(suffix, " ")
			bare = strings.Join(strings.Fields(bare), " ")
			if bare == "" {
				continue
			}
			if trimmed := strings.TrimSuffix(s, " "+bare); trimmed != s {
				s = trimmed
				changed = true
			}
		}
		for _, suffix := range kb.FacilitySuffixes {
			if trimmed := strings.TrimSuffix(s, " "+suffix); trimmed != s {
				s = trimmed
				changed = true
			}
		}
	}
	return strings.TrimSpace(s)
}

// NameSimilarity computes normalized edit-distance similarity between two
// brand names in [0,1]. A containment relationship (one normalized name a
// substring of the other) floors the result at 0.8.
func NameSimilarity(a, b string, kb *knowledge.Base) float64 {
	na := NormalizeName(a, kb)
	nb := NormalizeName(b, kb)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	sim := levenshtein.Similarity(na, nb, nil)

	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		if sim < 0.8 {
			sim = 0.8
		}
	}
	return sim
}

// Jaccard computes set overlap between two string slices in [0,1].
// Two empty sets overlap not at all rather than perfectly; absent data is
// no evidence of sameness.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	intersection := 0
	union := len(a)
	for _, v := range b {
		if set[v] {
			intersection++
		} else {
			union++
		}
	}
	return float64(intersection) / float64(union)
}

// FirstSignificantWord returns the first word of a normalized name that is
// not an article, for cheap pre-filtering of the pairwise fan-out.
func FirstSignificantWord(name string, kb *knowledge.Base) string {
	words := strings.Fields(NormalizeName(name, kb))
	for _, w := range words {
		switch w {
		case "THE", "A", "AN", "OLD", "NEW":
			continue
		}
		return w
	}
	if len(words) > 0 {
		return words[0]
	}
	return ""
}
