// Package classify scores brand-record pairs and assembles candidate
// consolidation groups.
package classify

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/brandmerge-cli/internal/knowledge"
	"github.com/sells-group/brandmerge-cli/internal/model"
)

// Reason codes attached to pair scores.
const (
	ReasonWhiteLabelVeto   = "white_label_mismatch"
	ReasonWhiteLabelOwners = "white_label_different_owners"
	ReasonSharedProducer   = "shared_producer_core_match"
	ReasonExactCore        = "exact_core_name"
	ReasonDomainMatch      = "verified_domain_match"
	ReasonBlendedScore     = "blended_similarity"
	ReasonBelowThreshold   = "below_threshold"
)

// Confidence bands for the high-priority rules.
const (
	vetoConfidence     = 0.1
	producerConfidence = 0.95
	exactCoreScore     = 0.90
	domainConfidence   = 0.92
)

// Booster adjusts a base confidence with learned pattern boosts. Implemented
// by the learning store; a nil Booster leaves scores unchanged.
type Booster interface {
	EnhancedConfidence(nameA, nameB string, base float64) float64
}

// Weights for the fallback blended score.
type Weights struct {
	Name    float64
	Class   float64
	Country float64
}

// DefaultWeights is the reference blend.
var DefaultWeights = Weights{Name: 0.6, Class: 0.25, Country: 0.15}

// PairScore is the classifier verdict for one record pair.
type PairScore struct {
	Confidence float64
	Reason     string
	// Veto marks an absolute exclusion: the pair must never share a group,
	// even transitively.
	Veto bool
}

// Classifier scores record pairs using a priority-ordered rule chain.
type Classifier struct {
	kb        *knowledge.Base
	booster   Booster
	weights   Weights
	threshold float64
}

// New creates a Classifier. threshold is the acceptance bar for the
// fallback blended score; booster may be nil.
func New(kb *knowledge.Base, booster Booster, weights Weights, threshold float64) *Classifier {
	if weights == (Weights{}) {
		weights = DefaultWeights
	}
	if threshold <= 0 {
		threshold = 0.65
	}
	return &Classifier{kb: kb, booster: booster, weights: weights, threshold: threshold}
}

// Score computes the confidence that two records denote the same entity.
// Rules run in priority order; the first matching high-confidence rule
// wins, otherwise the weighted blend decides.
func (c *Classifier) Score(a, b *model.BrandRecord) PairScore {
	// Rule 1: white-label guard, a hard veto.
	aWhite := c.kb.IsWhiteLabel(a.Name)
	bWhite := c.kb.IsWhiteLabel(b.Name)
	if aWhite != bWhite {
		return PairScore{Confidence: vetoConfidence, Reason: ReasonWhiteLabelVeto, Veto: true}
	}
	if aWhite && bWhite {
		ownerA := c.kb.WhiteLabelOwner(a.Name, a.PrimaryProducer())
		ownerB := c.kb.WhiteLabelOwner(b.Name, b.PrimaryProducer())
		if ownerA == "" || ownerA != ownerB {
			return PairScore{Confidence: vetoConfidence, Reason: ReasonWhiteLabelOwners, Veto: true}
		}
	}

	coreSim := NameSimilarity(coreOf(a), coreOf(b), c.kb)

	// Rule 2: same primary producer with similar cores.
	if sameProducer(a, b) && coreSim >= 0.6 {
		return PairScore{Confidence: producerConfidence, Reason: ReasonSharedProducer}
	}

	// Rule 3: exact core-name match.
	if strings.EqualFold(coreOf(a), coreOf(b)) && coreOf(a) != "" {
		return PairScore{Confidence: exactCoreScore, Reason: ReasonExactCore}
	}

	// Rule 4: equal verified domains are near-authoritative regardless of
	// name similarity.
	if a.Enrichment.Verified() && b.Enrichment.Verified() &&
		a.Enrichment.Domain == b.Enrichment.Domain {
		return PairScore{Confidence: domainConfidence, Reason: ReasonDomainMatch}
	}

	// Rule 5: weighted blend.
	nameSim := NameSimilarity(a.Name, b.Name, c.kb)
	classSim := Jaccard(a.ClassTypes, b.ClassTypes)
	countrySim := Jaccard(a.Countries, b.Countries)

	blended := c.weights.Name*nameSim + c.weights.Class*classSim + c.weights.Country*countrySim
	if c.booster != nil {
		blended = c.booster.EnhancedConfidence(a.Name, b.Name, blended)
	}
	blended = clip(blended)

	if blended < c.threshold {
		return PairScore{Confidence: blended, Reason: ReasonBelowThreshold}
	}

	zap.L().Debug("classify: blended match",
		zap.String("a", a.Name),
		zap.String("b", b.Name),
		zap.Float64("confidence", blended),
	)
	return PairScore{Confidence: blended, Reason: ReasonBlendedScore}
}

// Threshold returns the acceptance bar for blended scores.
func (c *Classifier) Threshold() float64 { return c.threshold }

// Accepts reports whether a score qualifies the pair as a candidate.
func (c *Classifier) Accepts(s PairScore) bool {
	return !s.Veto && s.Confidence >= c.threshold
}

func coreOf(r *model.BrandRecord) string {
	if r.CoreName != "" {
		return r.CoreName
	}
	return r.Name
}

// sameProducer reports a shared primary producer attribution, by permit
// number or owner name.
func sameProducer(a, b *model.BrandRecord) bool {
	if len(a.Producers) == 0 || len(b.Producers) == 0 {
		return false
	}
	pa, pb := a.Producers[0], b.Producers[0]
	if pa.PermitNumber != "" && pa.PermitNumber == pb.PermitNumber {
		return true
	}
	return pa.OwnerName != "" && strings.EqualFold(pa.OwnerName, pb.OwnerName)
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
