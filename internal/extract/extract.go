// Package extract recovers the core brand name from a noisy registration
// string by stripping product and descriptor vocabulary.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/brandmerge-cli/internal/knowledge"
)

// rule is one entry in the ordered extraction rule table. Rules are data:
// each is independently testable and evaluated in priority order, first
// structural match wins before vocabulary stripping runs.
type rule struct {
	name  string
	apply func(s string) (string, bool)
}

// Extractor derives core brand names. Safe for concurrent use after
// construction.
type Extractor struct {
	kb    *knowledge.Base
	rules []rule

	agePattern   *regexp.Regexp
	proofPattern *regexp.Regexp
	sizePattern  *regexp.Regexp
}

var (
	possessivePattern = regexp.MustCompile(`^(.{2,}?)'S\s+\S.*$`)
	numberedPattern   = regexp.MustCompile(`^(.+?)\s+(?:NO\.?|NUMBER|#)\s*\d+$`)
	punctTrim         = regexp.MustCompile(`^[\s\-_.,:;&']+|[\s\-_.,:;&']+$`)
	multiSpace        = regexp.MustCompile(`\s{2,}`)
)

// leading articles stripped from extraction results.
var articles = map[string]bool{"THE": true, "A": true, "AN": true}

// New creates an Extractor over the given knowledge base.
func New(kb *knowledge.Base) *Extractor {
	e := &Extractor{
		kb:           kb,
		agePattern:   regexp.MustCompile(`\b\d{1,2}\s*(?:YEARS?|YRS?)(?:\s+OLD)?\b`),
		proofPattern: regexp.MustCompile(`\b\d{2,3}(?:\.\d+)?\s*PROOF\b`),
		sizePattern:  regexp.MustCompile(`\b\d+(?:\.\d+)?\s*(?:ML|L|OZ|LITERS?)\b`),
	}

	facilityAlt := strings.Join(escapeAll(kb.FacilitySuffixes), "|")
	facilityPattern := regexp.MustCompile(`^(.{2,}?)\s+(?:` + facilityAlt + `)$`)

	e.rules = []rule{
		{name: "possessive", apply: func(s string) (string, bool) {
			if m := possessivePattern.FindStringSubmatch(s); m != nil {
				return m[1], true
			}
			return s, false
		}},
		{name: "facility_suffix", apply: func(s string) (string, bool) {
			if m := facilityPattern.FindStringSubmatch(s); m != nil {
				return m[1], true
			}
			return s, false
		}},
		{name: "numbered_product", apply: func(s string) (string, bool) {
			if m := numberedPattern.FindStringSubmatch(s); m != nil {
				return m[1], true
			}
			return s, false
		}},
	}
	return e
}

// Core extracts the core brand name from a raw registration string.
// producer and classType are optional context. The result is idempotent:
// Core(Core(x)) == Core(x).
func (e *Extractor) Core(raw, producer, classType string) string {
	out := strings.ToUpper(strings.TrimSpace(raw))
	if out == "" {
		return out
	}

	// Iterate to a fixpoint so suffix stripping composes with vocabulary
	// removal without leaving a further-reducible result.
	for range [5]struct{}{} {
		next := e.pass(out, classType)
		if next == out {
			break
		}
		out = next
	}

	_ = producer // producer context is consumed by MatchesProducer callers
	return out
}

// pass runs one full extraction pass.
func (e *Extractor) pass(name, classType string) string {
	original := name

	// Structural rules first; first match wins.
	for _, r := range e.rules {
		if out, ok := r.apply(name); ok {
			name = out
			break
		}
	}

	// Category vocabulary, then the generic age/proof/size regexes.
	name = e.stripDescriptors(name, classType)
	name = e.agePattern.ReplaceAllString(name, " ")
	name = e.proofPattern.ReplaceAllString(name, " ")
	name = e.sizePattern.ReplaceAllString(name, " ")
	name = clean(name)

	// Leading article.
	words := strings.Fields(name)
	for len(words) > 1 && articles[words[0]] {
		words = words[1:]
	}
	name = strings.Join(words, " ")

	// Implausibly short result: fall back to the first words of the input.
	if len(name) < 2 {
		origWords := strings.Fields(original)
		n := len(origWords)
		if n > 3 {
			n = 3
		}
		return clean(strings.Join(origWords[:n], " "))
	}

	// Excessively long result: keep the first three words.
	if len(words) > 4 {
		name = strings.Join(words[:3], " ")
	}

	return name
}

// stripDescriptors removes class-keyed product vocabulary, longest terms
// first so multi-word phrases win over their components.
func (e *Extractor) stripDescriptors(name, classType string) string {
	terms := e.kb.DescriptorsFor(classType)
	for _, t := range sortByLengthDesc(terms) {
		name = removeWord(name, t)
	}
	for _, t := range e.kb.LegalSuffixes {
		name = removeTrailing(name, t)
	}
	return clean(name)
}

// MatchesProducer reports whether an extracted core shares a significant
// token with the producer name. Used as reconciliation evidence by the
// classifier; a non-match never alters the extraction itself.
func MatchesProducer(core, producer string) bool {
	if core == "" || producer == "" {
		return false
	}
	coreTokens := strings.Fields(strings.ToUpper(core))
	producerTokens := map[string]bool{}
	for _, t := range strings.Fields(strings.ToUpper(producer)) {
		producerTokens[strings.Trim(t, ".,&'")] = true
	}
	for _, t := range coreTokens {
		t = strings.Trim(t, ".,&'")
		if len(t) >= 3 && producerTokens[t] {
			return true
		}
	}
	return false
}

// removeWord deletes whole-word occurrences of term from name.
func removeWord(name, term string) string {
	if !strings.Contains(name, term) {
		return name
	}
	re, err := wordPattern(term)
	if err != nil {
		return name
	}
	return re.ReplaceAllString(name, " ")
}

// removeTrailing deletes term only when it ends the name.
func removeTrailing(name, term string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(name), term)
	if trimmed == name {
		return name
	}
	// Only treat as a suffix when preceded by a break.
	if trimmed == "" || strings.HasSuffix(trimmed, " ") || strings.HasSuffix(trimmed, ",") {
		return clean(trimmed)
	}
	return name
}

func wordPattern(term string) (*regexp.Regexp, error) {
	return regexp.Compile(`\b` + regexp.QuoteMeta(term) + `\b`)
}

func clean(s string) string {
	s = punctTrim.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func sortByLengthDesc(terms []string) []string {
	out := make([]string, len(terms))
	copy(out, terms)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// escapeAll regex-quotes every term for use in an alternation.
func escapeAll(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = regexp.QuoteMeta(t)
	}
	return out
}
