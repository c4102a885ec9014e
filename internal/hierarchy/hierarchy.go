// Package hierarchy classifies a group of brand records sharing a verified
// website domain as a SKU roll-up, a sibling portfolio, or a pure name
// variation, and selects the canonical member deterministically.
package hierarchy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
	"go.uber.org/zap"

	"github.com/sells-group/brandmerge-cli/internal/classify"
	"github.com/sells-group/brandmerge-cli/internal/knowledge"
	"github.com/sells-group/brandmerge-cli/internal/model"
)

// domainMatchThreshold marks a member as dominating the domain base name.
const domainMatchThreshold = 0.7

// Resolution is the outcome for one group.
type Resolution struct {
	Kind     model.RelationshipKind
	Evidence []string
}

// Resolver decides relationship kinds and canonical members.
type Resolver struct {
	kb          *knowledge.Base
	yearPattern *regexp.Regexp
}

// New creates a Resolver over the given knowledge base.
func New(kb *knowledge.Base) *Resolver {
	return &Resolver{
		kb: kb,
		// A year token reads as a vintage/product year unless it looks like
		// a founding year ("EST" or "SINCE" nearby).
		yearPattern: regexp.MustCompile(`\b(19|20)\d{2}\b`),
	}
}

// ResolveDomainGroup classifies records sharing one verified domain.
// The records slice must have at least two members.
func (r *Resolver) ResolveDomainGroup(records []*model.BrandRecord, domain string) Resolution {
	base := DomainBase(domain, r.kb)

	type memberScore struct {
		rec   *model.BrandRecord
		score float64
	}
	scores := make([]memberScore, 0, len(records))
	for _, rec := range records {
		scores = append(scores, memberScore{rec: rec, score: r.domainNameMatch(rec.Name, base)})
	}
	// Deterministic: score descending, then name ascending.
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].rec.Name < scores[j].rec.Name
	})

	best := scores[0]
	dominated := best.score > domainMatchThreshold

	if dominated {
		// One member matches the domain base: parent brand, rest are SKUs.
		var skus []string
		var evidence []string
		for _, ms := range scores[1:] {
			skus = append(skus, ms.rec.Name)
			if ms.rec.Enrichment != nil {
				evidence = append(evidence, fmt.Sprintf(
					"%s shares domain %s (enrichment confidence %.2f)",
					ms.rec.Name, domain, ms.rec.Enrichment.Confidence))
			}
		}
		sort.Strings(skus)
		evidence = append(evidence, fmt.Sprintf(
			"%s matches domain base %q (score %.2f)", best.rec.Name, base, best.score))

		zap.L().Debug("hierarchy: sku roll-up",
			zap.String("domain", domain),
			zap.String("parent", best.rec.Name),
			zap.Int("skus", len(skus)),
		)
		return Resolution{Kind: model.NewSKUToBrand(best.rec.Name, skus), Evidence: evidence}
	}

	// No member dominates the domain: sibling brands of one portfolio.
	canonical := r.selectByCompleteness(records)
	var siblings []string
	for _, rec := range records {
		if rec.Name != canonical {
			siblings = append(siblings, rec.Name)
		}
	}
	sort.Strings(siblings)

	evidence := []string{fmt.Sprintf(
		"%d distinct brands share verified domain %s with no dominant name match",
		len(records), domain)}

	return Resolution{Kind: model.NewPortfolioBrands(canonical, siblings), Evidence: evidence}
}

// ResolveSimilarNames classifies a similarity-only group (no shared
// domain): canonical prefers non-product-looking names, then higher data
// completeness, then shortest name, then lexicographic order.
func (r *Resolver) ResolveSimilarNames(records []*model.BrandRecord) Resolution {
	sorted := make([]*model.BrandRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		pi, pj := r.IsLikelyProductName(sorted[i]), r.IsLikelyProductName(sorted[j])
		if pi != pj {
			return !pi
		}
		ci, cj := completeness(sorted[i]), completeness(sorted[j])
		if ci != cj {
			return ci > cj
		}
		if len(sorted[i].Name) != len(sorted[j].Name) {
			return len(sorted[i].Name) < len(sorted[j].Name)
		}
		return sorted[i].Name < sorted[j].Name
	})

	canonical := sorted[0].Name
	var variants []string
	for _, rec := range sorted[1:] {
		variants = append(variants, rec.Name)
	}
	sort.Strings(variants)

	return Resolution{
		Kind: model.NewSimilarNames(canonical, variants),
		Evidence: []string{fmt.Sprintf(
			"%d name variations resolve to %s", len(records), canonical)},
	}
}

// domainNameMatch scores how closely a brand name matches the domain base
// name: exact > base contained in name > name starts with base > fuzzy.
func (r *Resolver) domainNameMatch(name, base string) float64 {
	if base == "" {
		return 0
	}
	n := squash(classify.NormalizeName(name, r.kb))
	b := squash(base)

	switch {
	case n == b:
		return 1.0
	case strings.Contains(n, b):
		return 0.85
	case strings.HasPrefix(b, n) && len(n) >= 4:
		return 0.75
	default:
		return levenshtein.Similarity(n, b, nil) * 0.7
	}
}

// IsLikelyProductName reports whether a record name reads as a SKU-level
// product rather than a company brand. At least two independent indicators
// are required, so short legitimate brand names do not false-positive.
func (r *Resolver) IsLikelyProductName(rec *model.BrandRecord) bool {
	upper := strings.ToUpper(rec.Name)
	words := strings.Fields(upper)
	indicators := 0

	// Size or volume token.
	for _, t := range r.kb.SizeTokens {
		if containsWord(words, t) {
			indicators++
			break
		}
	}

	// Product-style vocabulary for the record's own class types.
	styleHit := false
	for _, ct := range rec.ClassTypes {
		for _, term := range r.kb.DescriptorsFor(ct) {
			if strings.Contains(upper, term) {
				styleHit = true
				break
			}
		}
		if styleHit {
			break
		}
	}
	if !styleHit {
		// No class context: check all category vocabularies.
		for _, terms := range r.kb.Descriptors {
			for _, term := range terms {
				if len(term) >= 4 && strings.Contains(upper, term) {
					styleHit = true
					break
				}
			}
			if styleHit {
				break
			}
		}
	}
	if styleHit {
		indicators++
	}

	// Year token that is not a founding year.
	if r.yearPattern.MatchString(upper) &&
		!strings.Contains(upper, "EST") && !strings.Contains(upper, "SINCE") {
		indicators++
	}

	// Short single-word name.
	if len(words) == 1 && len(upper) <= 8 {
		indicators++
	}

	return indicators >= 2
}

// DomainBase strips the TLD and production-facility suffixes from a domain
// to recover the likely brand root.
func DomainBase(domain string, kb *knowledge.Base) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "www.")
	if i := strings.Index(d, "."); i > 0 {
		d = d[:i]
	}
	upper := strings.ToUpper(d)
	for changed := true; changed; {
		changed = false
		for _, suffix := range kb.FacilitySuffixes {
			bare := strings.ToUpper(strings.ReplaceAll(suffix, " ", ""))
			if len(upper) > len(bare) && strings.HasSuffix(upper, bare) {
				upper = strings.TrimSuffix(upper, bare)
				upper = strings.Trim(upper, "-_")
				changed = true
			}
		}
	}
	return strings.Trim(upper, "-_")
}

// selectByCompleteness ranks portfolio candidates by enrichment confidence
// then data completeness, tie-broken lexicographically.
func (r *Resolver) selectByCompleteness(records []*model.BrandRecord) string {
	best := records[0]
	for _, rec := range records[1:] {
		be, re := enrichmentConfidence(best), enrichmentConfidence(rec)
		switch {
		case re > be:
			best = rec
		case re == be:
			bc, rc := completeness(best), completeness(rec)
			if rc > bc || (rc == bc && rec.Name < best.Name) {
				best = rec
			}
		}
	}
	return best.Name
}

// completeness is a weighted presence score of the record's attributes.
func completeness(rec *model.BrandRecord) float64 {
	score := 0.0
	if len(rec.Countries) > 0 {
		score += 0.2
	}
	if len(rec.ClassTypes) > 0 {
		score += 0.2
	}
	if len(rec.PermitNumbers) > 0 {
		score += 0.2
	}
	if len(rec.Producers) > 0 {
		score += 0.2
	}
	if rec.Enrichment != nil {
		score += 0.2
	}
	return score
}

func enrichmentConfidence(rec *model.BrandRecord) float64 {
	if rec.Enrichment == nil {
		return 0
	}
	return rec.Enrichment.Confidence
}

func containsWord(words []string, w string) bool {
	for _, v := range words {
		if v == w {
			return true
		}
	}
	return false
}

// squash removes spaces and hyphens so "1220 SPIRITS" compares against
// the domain base "1220SPIRITS".
func squash(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '_' {
			return -1
		}
		return r
	}, strings.ToUpper(s))
}
