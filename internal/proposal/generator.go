// Package proposal turns resolved candidate groups into explainable
// consolidation proposals with a factor-by-factor confidence breakdown.
package proposal

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/brandmerge-cli/internal/classify"
	"github.com/sells-group/brandmerge-cli/internal/knowledge"
	"github.com/sells-group/brandmerge-cli/internal/model"
)

// Factor bonuses. Summed, then clamped to [0,1].
const (
	baseConfidence       = 0.30
	sameCoreBonus        = 0.25
	domainMatchBonus     = 0.40
	producerOverlapBonus = 0.20
	classOverlapBonus    = 0.10
	countryOverlapBonus  = 0.05
	nameSimilarityWeight = 0.20
	whiteLabelMixPenalty = 0.40
	maxClassTypesLowRisk = 3
	maxProducersLowRisk  = 2
)

// Config tunes the generator.
type Config struct {
	// AutoApproveConfidence is the bar for an auto_approve recommendation.
	// Defaults conservative (0.95).
	AutoApproveConfidence float64
}

// Booster adjusts confidence with learned pattern state; nil disables it.
type Booster interface {
	EnhancedConfidence(nameA, nameB string, base float64) float64
}

// Generator builds consolidation proposals.
type Generator struct {
	kb      *knowledge.Base
	booster Booster
	cfg     Config
}

// New creates a Generator. booster may be nil.
func New(kb *knowledge.Base, booster Booster, cfg Config) *Generator {
	if cfg.AutoApproveConfidence <= 0 {
		cfg.AutoApproveConfidence = 0.95
	}
	return &Generator{kb: kb, booster: booster, cfg: cfg}
}

// Build produces the proposal for a resolved group. records must contain
// the canonical member named by kind plus every non-canonical member.
func (g *Generator) Build(records []*model.BrandRecord, kind model.RelationshipKind, groupEvidence []string) *model.ConsolidationProposal {
	canonical := kind.Canonical()
	members := make([]string, 0, len(records)-1)
	for _, rec := range records {
		if rec.Name != canonical {
			members = append(members, rec.Name)
		}
	}
	sort.Strings(members)

	confidence, evidence := g.scoreGroup(records)
	evidence = append(evidence, groupEvidence...)

	if g.booster != nil && len(records) >= 2 {
		boosted := g.booster.EnhancedConfidence(records[0].Name, records[1].Name, confidence)
		if boosted != confidence {
			evidence = append(evidence, fmt.Sprintf(
				"learned pattern adjustment: %.2f -> %.2f", confidence, boosted))
			confidence = boosted
		}
	}
	confidence = round2(clip(confidence))

	risk, riskEvidence := g.assessRisk(records)
	evidence = append(evidence, riskEvidence...)

	recommendation := model.RecommendManualReview
	if confidence >= g.cfg.AutoApproveConfidence && risk == model.RiskLow {
		recommendation = model.RecommendAutoApprove
	}

	p := &model.ConsolidationProposal{
		ID:             model.ProposalID(canonical, members, kind.Type),
		CanonicalName:  canonical,
		Members:        members,
		Kind:           kind,
		Confidence:     confidence,
		Evidence:       evidence,
		RiskLevel:      risk,
		Benefits:       g.benefits(records, canonical),
		Recommendation: recommendation,
		Status:         model.ProposalPending,
		GeneratedAt:    time.Now().UTC(),
	}

	zap.L().Debug("proposal: built",
		zap.String("id", p.ID),
		zap.String("canonical", canonical),
		zap.Float64("confidence", confidence),
		zap.String("risk", string(risk)),
	)
	return p
}

// scoreGroup computes the additive factor breakdown for a group.
func (g *Generator) scoreGroup(records []*model.BrandRecord) (float64, []string) {
	confidence := baseConfidence
	var evidence []string

	// Same core brand across all members.
	if core := sharedCore(records); core != "" {
		confidence += sameCoreBonus
		evidence = append(evidence, fmt.Sprintf("all members share core brand %q", core))
	}

	// A verified domain common to every member outweighs name divergence:
	// the regulator filed the SKUs under different labels, but the website
	// ties them to one brand.
	if domain := sharedVerifiedDomain(records); domain != "" {
		confidence += domainMatchBonus
		evidence = append(evidence, fmt.Sprintf("all members share verified domain %q", domain))
	}

	// Producer overlap.
	if owner := sharedProducer(records); owner != "" {
		confidence += producerOverlapBonus
		evidence = append(evidence, fmt.Sprintf("all members attribute producer %q", owner))
	}

	// Category overlap.
	if sim := pairwiseMeanJaccard(records, func(r *model.BrandRecord) []string { return r.ClassTypes }); sim > 0.5 {
		confidence += classOverlapBonus * sim
		evidence = append(evidence, fmt.Sprintf("class types overlap %.0f%%", sim*100))
	}

	// Country overlap.
	if sim := pairwiseMeanJaccard(records, func(r *model.BrandRecord) []string { return r.Countries }); sim > 0.5 {
		confidence += countryOverlapBonus * sim
		evidence = append(evidence, fmt.Sprintf("countries overlap %.0f%%", sim*100))
	}

	// Average pairwise name similarity.
	nameSim := g.meanNameSimilarity(records)
	confidence += nameSimilarityWeight * nameSim
	evidence = append(evidence, fmt.Sprintf("mean pairwise name similarity %.2f", nameSim))

	// White-label mismatch penalty. Earlier filters should have vetoed
	// mixed groups already; this re-check is the last line of defense.
	if g.mixedWhiteLabel(records) {
		confidence -= whiteLabelMixPenalty
		evidence = append(evidence, "penalty: group mixes store-brand and non-store-brand names")
	}

	return confidence, evidence
}

// assessRisk escalates risk on mixed white-label signals, category spread,
// or conflicting producer attributions.
func (g *Generator) assessRisk(records []*model.BrandRecord) (model.RiskLevel, []string) {
	var reasons []string
	risk := model.RiskLow

	if g.mixedWhiteLabel(records) {
		risk = model.RiskHigh
		reasons = append(reasons, "risk: mixed white-label signals present")
	}

	classes := map[string]bool{}
	for _, rec := range records {
		for _, ct := range rec.ClassTypes {
			classes[ct] = true
		}
	}
	if len(classes) > maxClassTypesLowRisk {
		if risk == model.RiskLow {
			risk = model.RiskMedium
		}
		reasons = append(reasons, fmt.Sprintf("risk: %d distinct product categories in group", len(classes)))
	}

	producers := map[string]bool{}
	for _, rec := range records {
		if p := rec.PrimaryProducer(); p != "" {
			producers[p] = true
		}
	}
	if len(producers) > maxProducersLowRisk {
		if risk == model.RiskLow {
			risk = model.RiskMedium
		}
		reasons = append(reasons, fmt.Sprintf("risk: %d distinct primary producers in group", len(producers)))
	}

	return risk, reasons
}

// benefits summarizes what the merge consolidates.
func (g *Generator) benefits(records []*model.BrandRecord, canonical string) []string {
	totalSKUs := 0
	for _, rec := range records {
		totalSKUs += rec.SKUCount
	}

	benefits := []string{
		fmt.Sprintf("consolidates %d registrations under %s", len(records), canonical),
	}
	if totalSKUs > 0 {
		benefits = append(benefits, fmt.Sprintf("%d SKUs roll up to a single brand record", totalSKUs))
	}
	if owner := sharedProducer(records); owner != "" {
		benefits = append(benefits, fmt.Sprintf("producer attribution unified under %q", owner))
	}
	return benefits
}

func (g *Generator) meanNameSimilarity(records []*model.BrandRecord) float64 {
	if len(records) < 2 {
		return 0
	}
	sum, n := 0.0, 0
	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			sum += classify.NameSimilarity(records[i].Name, records[j].Name, g.kb)
			n++
		}
	}
	return sum / float64(n)
}

func (g *Generator) mixedWhiteLabel(records []*model.BrandRecord) bool {
	white, plain := false, false
	for _, rec := range records {
		if g.kb.IsWhiteLabel(rec.Name) {
			white = true
		} else {
			plain = true
		}
	}
	return white && plain
}

// sharedCore returns the common core name when all members agree, else "".
func sharedCore(records []*model.BrandRecord) string {
	core := ""
	for _, rec := range records {
		c := rec.CoreName
		if c == "" {
			c = rec.Name
		}
		if core == "" {
			core = c
		} else if !strings.EqualFold(core, c) {
			return ""
		}
	}
	return core
}

// sharedVerifiedDomain returns the domain when every member carries the same
// verified enrichment domain, else "".
func sharedVerifiedDomain(records []*model.BrandRecord) string {
	domain := ""
	for _, rec := range records {
		if !rec.Enrichment.Verified() {
			return ""
		}
		if domain == "" {
			domain = rec.Enrichment.Domain
		} else if domain != rec.Enrichment.Domain {
			return ""
		}
	}
	return domain
}

// sharedProducer returns the common primary producer when all members with
// producer data agree, else "".
func sharedProducer(records []*model.BrandRecord) string {
	owner := ""
	for _, rec := range records {
		p := rec.PrimaryProducer()
		if p == "" {
			continue
		}
		if owner == "" {
			owner = p
		} else if !strings.EqualFold(owner, p) {
			return ""
		}
	}
	return owner
}

func pairwiseMeanJaccard(records []*model.BrandRecord, get func(*model.BrandRecord) []string) float64 {
	if len(records) < 2 {
		return 0
	}
	sum, n := 0.0, 0
	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			sum += classify.Jaccard(get(records[i]), get(records[j]))
			n++
		}
	}
	return sum / float64(n)
}

func clip(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
