package model

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// ProposalStatus tracks the lifecycle of a proposal within one pass.
type ProposalStatus string

// Proposal statuses.
const (
	ProposalPending  ProposalStatus = "pending"
	ProposalApproved ProposalStatus = "approved"
	ProposalRejected ProposalStatus = "rejected"
)

// RiskLevel grades the downside of applying a proposal.
type RiskLevel string

// Risk levels.
const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Recommendation is the generator's disposition for a proposal.
type Recommendation string

// Recommendations.
const (
	RecommendAutoApprove  Recommendation = "auto_approve"
	RecommendManualReview Recommendation = "manual_review"
)

// ConsolidationProposal is the explainable recommendation to merge a group
// of brand records into one canonical record. Proposals are regenerated
// each analysis pass; only their learning effects persist.
type ConsolidationProposal struct {
	ID             string           `json:"proposal_id"`
	CanonicalName  string           `json:"canonical_name"`
	Members        []string         `json:"members"`
	Kind           RelationshipKind `json:"relationship_kind"`
	Confidence     float64          `json:"confidence"`
	Evidence       []string         `json:"evidence"`
	RiskLevel      RiskLevel        `json:"risk_level"`
	Benefits       []string         `json:"benefits,omitempty"`
	Recommendation Recommendation   `json:"recommendation"`
	Status         ProposalStatus   `json:"status"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// ProposalID derives the stable content hash for a proposal: identical
// (canonical, members, kind) inputs produce the same ID within a pass, so
// a caller can re-fetch a specific proposal before approving it.
func ProposalID(canonical string, members []string, relType RelationshipType) string {
	sorted := make([]string, len(members))
	copy(sorted, members)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(canonical))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.Join(sorted, "|")))
	h.Write([]byte{'|'})
	h.Write([]byte(relType))
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// MergeResult reports the outcome of an executed merge intent.
type MergeResult struct {
	Success         bool     `json:"success"`
	CanonicalName   string   `json:"canonical_name,omitempty"`
	MembersMerged   []string `json:"members_merged,omitempty"`
	CountriesCount  int      `json:"countries_count,omitempty"`
	ClassTypesCount int      `json:"class_types_count,omitempty"`
	PermitsCount    int      `json:"permits_count,omitempty"`
	Error           string   `json:"error,omitempty"`
}
