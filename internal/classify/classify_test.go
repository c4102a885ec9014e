package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/brandmerge-cli/internal/knowledge"
	"github.com/sells-group/brandmerge-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	kb, err := knowledge.Default()
	require.NoError(t, err)
	return New(kb, nil, DefaultWeights, 0.65)
}

func rec(name, core string) *model.BrandRecord {
	return &model.BrandRecord{Name: name, CoreName: core}
}

func TestScore_WhiteLabelVeto(t *testing.T) {
	c := newTestClassifier(t)

	white := rec("KIRKLAND SIGNATURE BOURBON", "KIRKLAND SIGNATURE")
	regular := rec("BUFFALO TRACE BOURBON", "BUFFALO TRACE")
	regular.Producers = []model.ProducerRef{{OwnerName: "BUFFALO TRACE DISTILLERY"}}
	// Identical producer attribution must not override the veto.
	white.Producers = regular.Producers

	s := c.Score(white, regular)
	assert.True(t, s.Veto)
	assert.Equal(t, ReasonWhiteLabelVeto, s.Reason)
	assert.InDelta(t, 0.1, s.Confidence, 0.001)
	assert.False(t, c.Accepts(s))
}

func TestScore_WhiteLabelSameOwnerAllowed(t *testing.T) {
	c := newTestClassifier(t)

	a := rec("KIRKLAND SIGNATURE VODKA", "KIRKLAND SIGNATURE")
	b := rec("KIRKLAND SIGNATURE BOURBON", "KIRKLAND SIGNATURE")
	a.Producers = []model.ProducerRef{{OwnerName: "COSTCO WHOLESALE"}}
	b.Producers = []model.ProducerRef{{OwnerName: "COSTCO WHOLESALE"}}

	s := c.Score(a, b)
	assert.False(t, s.Veto)
}

func TestScore_WhiteLabelDifferentOwnersVetoed(t *testing.T) {
	c := newTestClassifier(t)

	a := rec("KIRKLAND SIGNATURE VODKA", "")
	b := rec("GREAT VALUE VODKA", "")
	a.Producers = []model.ProducerRef{{OwnerName: "COSTCO WHOLESALE"}}
	b.Producers = []model.ProducerRef{{OwnerName: "WALMART INC"}}

	s := c.Score(a, b)
	assert.True(t, s.Veto)
	assert.Equal(t, ReasonWhiteLabelOwners, s.Reason)
}

func TestScore_SharedProducer(t *testing.T) {
	c := newTestClassifier(t)

	a := rec("BUFFALO TRACE BOURBON", "BUFFALO TRACE")
	b := rec("BUFFALO TRACE KENTUCKY", "BUFFALO TRACE")
	a.Producers = []model.ProducerRef{{PermitNumber: "KY-123", OwnerName: "SAZERAC"}}
	b.Producers = []model.ProducerRef{{PermitNumber: "KY-123", OwnerName: "SAZERAC"}}

	s := c.Score(a, b)
	assert.Equal(t, ReasonSharedProducer, s.Reason)
	assert.InDelta(t, 0.95, s.Confidence, 0.001)
	assert.True(t, c.Accepts(s))
}

func TestScore_SharedProducerRequiresCoreSimilarity(t *testing.T) {
	c := newTestClassifier(t)

	// Same producer, unrelated cores: the producer rule must not fire.
	a := rec("EAGLE RARE", "EAGLE RARE")
	b := rec("WELLER", "WELLER")
	a.Producers = []model.ProducerRef{{PermitNumber: "KY-123"}}
	b.Producers = []model.ProducerRef{{PermitNumber: "KY-123"}}

	s := c.Score(a, b)
	assert.NotEqual(t, ReasonSharedProducer, s.Reason)
}

func TestScore_ExactCore(t *testing.T) {
	c := newTestClassifier(t)

	a := rec("ELIJAH CRAIG SMALL BATCH", "ELIJAH CRAIG")
	b := rec("ELIJAH CRAIG BARREL PROOF", "ELIJAH CRAIG")

	s := c.Score(a, b)
	assert.Equal(t, ReasonExactCore, s.Reason)
	assert.InDelta(t, 0.90, s.Confidence, 0.001)
}

func TestScore_VerifiedDomainMatch(t *testing.T) {
	c := newTestClassifier(t)

	a := rec("HIGH WEST", "HIGH WEST")
	b := rec("RENDEZVOUS RYE", "RENDEZVOUS")
	a.Enrichment = &model.WebsiteInfo{Domain: "highwest.com", VerificationStatus: model.VerificationVerified}
	b.Enrichment = &model.WebsiteInfo{Domain: "highwest.com", VerificationStatus: model.VerificationVerified}

	s := c.Score(a, b)
	assert.Equal(t, ReasonDomainMatch, s.Reason)
	assert.InDelta(t, 0.92, s.Confidence, 0.001)
}

func TestScore_UnverifiedDomainIgnored(t *testing.T) {
	c := newTestClassifier(t)

	a := rec("HIGH WEST", "HIGH WEST")
	b := rec("RENDEZVOUS RYE", "RENDEZVOUS")
	a.Enrichment = &model.WebsiteInfo{Domain: "highwest.com", VerificationStatus: model.VerificationUnverified}
	b.Enrichment = &model.WebsiteInfo{Domain: "highwest.com", VerificationStatus: model.VerificationVerified}

	s := c.Score(a, b)
	assert.NotEqual(t, ReasonDomainMatch, s.Reason)
}

func TestScore_BlendedBelowThreshold(t *testing.T) {
	c := newTestClassifier(t)

	a := rec("BUFFALO TRACE", "BUFFALO TRACE")
	b := rec("HEAVEN HILL", "HEAVEN HILL")

	s := c.Score(a, b)
	assert.Equal(t, ReasonBelowThreshold, s.Reason)
	assert.False(t, c.Accepts(s))
}

func TestScore_BlendedAboveThreshold(t *testing.T) {
	c := newTestClassifier(t)

	a := rec("WOODFORD RESERVES", "")
	b := rec("WOODFORD RESERVED", "")
	a.ClassTypes = []string{"WHISKY"}
	b.ClassTypes = []string{"WHISKY"}
	a.Countries = []string{"US"}
	b.Countries = []string{"US"}

	s := c.Score(a, b)
	assert.Equal(t, ReasonBlendedScore, s.Reason)
	assert.True(t, c.Accepts(s))
	assert.GreaterOrEqual(t, s.Confidence, 0.65)
	assert.LessOrEqual(t, s.Confidence, 1.0)
}

type fixedBooster struct{ delta float64 }

func (f fixedBooster) EnhancedConfidence(_, _ string, base float64) float64 {
	return base + f.delta
}

func TestScore_BoosterOnlyAffectsBlended(t *testing.T) {
	kb, err := knowledge.Default()
	require.NoError(t, err)
	c := New(kb, fixedBooster{delta: 0.2}, DefaultWeights, 0.65)

	// High-priority rule outcome is not boosted.
	a := rec("ELIJAH CRAIG SMALL BATCH", "ELIJAH CRAIG")
	b := rec("ELIJAH CRAIG BARREL PROOF", "ELIJAH CRAIG")
	s := c.Score(a, b)
	assert.InDelta(t, 0.90, s.Confidence, 0.001)

	// Blended outcome is.
	x := rec("BUFFALO TRACE", "BUFFALO TRACE")
	y := rec("HEAVEN HILL", "HEAVEN HILL")
	plain := newTestClassifier(t).Score(x, y)
	boosted := c.Score(x, y)
	assert.InDelta(t, plain.Confidence+0.2, boosted.Confidence, 0.001)
}

func TestNameSimilarity_ContainmentFloor(t *testing.T) {
	kb, err := knowledge.Default()
	require.NoError(t, err)

	sim := NameSimilarity("BUFFALO TRACE", "BUFFALO TRACE ANTIQUE COLLECTION EDITION", kb)
	assert.GreaterOrEqual(t, sim, 0.8)
}

func TestNameSimilarity_SuffixInsensitive(t *testing.T) {
	kb, err := knowledge.Default()
	require.NoError(t, err)

	assert.InDelta(t, 1.0, NameSimilarity("STONE BREWING CO", "STONE BREWING", kb), 0.001)
	assert.InDelta(t, 1.0, NameSimilarity("Buffalo Trace, LLC", "BUFFALO TRACE", kb), 0.001)
}

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 1.0, Jaccard([]string{"A", "B"}, []string{"A", "B"}), 0.001)
	assert.InDelta(t, 1.0/3.0, Jaccard([]string{"A", "B"}, []string{"B", "C"}), 0.001)
	assert.Zero(t, Jaccard(nil, []string{"A"}))
	assert.Zero(t, Jaccard(nil, nil))
}

func TestFirstSignificantWord(t *testing.T) {
	kb, err := knowledge.Default()
	require.NoError(t, err)

	assert.Equal(t, "MACALLAN", FirstSignificantWord("The Macallan", kb))
	assert.Equal(t, "FORESTER", FirstSignificantWord("OLD FORESTER", kb))
	assert.Equal(t, "BUFFALO", FirstSignificantWord("BUFFALO TRACE", kb))
}
