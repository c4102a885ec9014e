package model

import "time"

// PatternType identifies a learned name-variation pattern family.
type PatternType string

// Pattern types.
const (
	PatternSuffixVariation   PatternType = "suffix_variation"
	PatternPrefixVariation   PatternType = "prefix_variation"
	PatternYearVariation     PatternType = "year_variation"
	PatternAbbreviation      PatternType = "abbreviation"
	PatternLocationVariation PatternType = "location_variation"
	PatternDomainMatch       PatternType = "domain_match"
)

// ConsolidationPattern is a learned matching pattern with its feedback
// statistics. Patterns are never deleted; repeated failure only decays the
// boost toward its floor.
type ConsolidationPattern struct {
	Type            PatternType `json:"pattern_type" db:"pattern_type"`
	Signature       string      `json:"signature" db:"signature"`
	SuccessRate     float64     `json:"success_rate" db:"success_rate"`
	ConfidenceBoost float64     `json:"confidence_boost" db:"confidence_boost"`
	SampleCount     int         `json:"sample_count" db:"sample_count"`
	LastUpdated     time.Time   `json:"last_updated" db:"last_updated"`
}

// Key returns the unique identity of a pattern row.
func (p ConsolidationPattern) Key() string {
	return string(p.Type) + ":" + p.Signature
}

// FeedbackAction is the user's verdict on a proposal.
type FeedbackAction string

// Feedback actions.
const (
	FeedbackApproved FeedbackAction = "approved"
	FeedbackRejected FeedbackAction = "rejected"
	FeedbackModified FeedbackAction = "modified"
)

// FeedbackEvent is one append-only entry in the feedback log. The log is
// the sole input to pattern recalibration: replaying it from an empty
// state reproduces the same pattern table.
type FeedbackEvent struct {
	ID                  string         `json:"id" db:"id"`
	Timestamp           time.Time      `json:"timestamp" db:"timestamp"`
	Members             []string       `json:"members" db:"members"`
	Canonical           string         `json:"canonical" db:"canonical"`
	Action              FeedbackAction `json:"user_action" db:"user_action"`
	PredictedConfidence float64        `json:"predicted_confidence" db:"predicted_confidence"`
	// Domain is the verified website domain the group shared, when domain
	// evidence drove the grouping.
	Domain string `json:"domain,omitempty" db:"domain"`
	Reason string `json:"reason,omitempty" db:"reason"`
}
