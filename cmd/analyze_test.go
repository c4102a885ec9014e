//go:build !integration

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/brandmerge-cli/internal/engine"
	"github.com/sells-group/brandmerge-cli/internal/model"
)

func TestFormatProposals_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatProposals(&buf, &engine.AnalysisResult{Version: 3, Records: 12})

	output := buf.String()
	assert.Contains(t, output, "Analyzed 12 records (db version 3): 0 proposals")
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "CANONICAL")
}

func TestFormatProposals_Rows(t *testing.T) {
	result := &engine.AnalysisResult{
		Version: 7,
		Records: 40,
		Proposals: []*model.ConsolidationProposal{
			{
				ID:             "a1b2c3d4e5f6",
				CanonicalName:  "BUFFALO TRACE",
				Members:        []string{"BUFFALO TRACE BOURBON", "BUFFALO TRACE KY"},
				Kind:           model.NewSimilarNames("BUFFALO TRACE", []string{"BUFFALO TRACE BOURBON", "BUFFALO TRACE KY"}),
				Confidence:     0.97,
				RiskLevel:      model.RiskLow,
				Recommendation: model.RecommendAutoApprove,
			},
			{
				ID:             "0fedcba98765",
				CanonicalName:  "1220 SPIRITS",
				Members:        []string{"1220 ORIGIN GIN"},
				Kind:           model.NewSKUToBrand("1220 SPIRITS", []string{"1220 ORIGIN GIN"}),
				Confidence:     0.81,
				RiskLevel:      model.RiskMedium,
				Recommendation: model.RecommendManualReview,
			},
		},
	}

	var buf bytes.Buffer
	formatProposals(&buf, result)

	output := buf.String()
	assert.Contains(t, output, "Analyzed 40 records (db version 7): 2 proposals")
	assert.Contains(t, output, "a1b2c3d4e5f6")
	assert.Contains(t, output, "similar_names")
	assert.Contains(t, output, "0.97")
	assert.Contains(t, output, "auto_approve")
	assert.Contains(t, output, "BUFFALO TRACE BOURBON, BUFFALO TRACE KY")
	assert.Contains(t, output, "sku_to_brand")
	assert.Contains(t, output, "manual_review")
	assert.Contains(t, output, "1220 SPIRITS")
}

func TestFormatBatchResult_DryRun(t *testing.T) {
	result := &engine.BatchResult{
		WouldProcess: 2,
		Proposals: []engine.BatchItem{
			{ProposalID: "a1b2c3d4e5f6", CanonicalName: "BUFFALO TRACE", Members: 2, Confidence: 0.97},
			{ProposalID: "0fedcba98765", CanonicalName: "EAGLE RARE", Members: 1, Confidence: 0.95},
		},
	}

	var buf bytes.Buffer
	formatBatchResult(&buf, result, true)

	output := buf.String()
	assert.Contains(t, output, "Dry run: 2 proposals would be processed")
	assert.Contains(t, output, "would merge")
	assert.NotContains(t, output, "failed")
}

func TestFormatBatchResult_MixedOutcome(t *testing.T) {
	result := &engine.BatchResult{
		WouldProcess: 2,
		Processed:    1,
		Failed:       1,
		Proposals: []engine.BatchItem{
			{ProposalID: "a1b2c3d4e5f6", CanonicalName: "BUFFALO TRACE", Members: 2, Confidence: 0.97, Merged: true},
			{ProposalID: "0fedcba98765", CanonicalName: "EAGLE RARE", Members: 1, Confidence: 0.95, Error: "merge conflict"},
		},
	}

	var buf bytes.Buffer
	formatBatchResult(&buf, result, false)

	output := buf.String()
	assert.Contains(t, output, "Processed 1 of 2 proposals (1 failed)")
	assert.Contains(t, output, "merged")
	assert.Contains(t, output, "failed: merge conflict")
}

func TestFormatBatchResult_NoProposals(t *testing.T) {
	var buf bytes.Buffer
	formatBatchResult(&buf, &engine.BatchResult{}, false)

	output := buf.String()
	assert.Contains(t, output, "Processed 0 of 0 proposals (0 failed)")
	assert.NotContains(t, output, "CANONICAL")
}
