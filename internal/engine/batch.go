package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/brandmerge-cli/internal/model"
)

// BatchResult summarizes one batch run.
type BatchResult struct {
	WouldProcess int         `json:"would_process"`
	Processed    int         `json:"processed"`
	Failed       int         `json:"failed"`
	Proposals    []BatchItem `json:"proposals"`
	Errors       []string    `json:"errors,omitempty"`
}

// BatchItem is one proposal's disposition within a batch run.
type BatchItem struct {
	ProposalID    string  `json:"proposal_id"`
	CanonicalName string  `json:"canonical_name"`
	Members       int     `json:"members"`
	Confidence    float64 `json:"confidence"`
	Merged        bool    `json:"merged"`
	Error         string  `json:"error,omitempty"`
}

// BatchProcess applies every pending low-risk proposal at or above
// minConfidence, up to maxBatch. The confidence bar is the caller's, not
// the auto-approve threshold: lowering it widens the batch to low-risk
// groups that would otherwise wait for manual review. High-risk proposals
// are never batched. Each merge is independent: a failed group is recorded
// and skipped while the rest continue. Merge execution is throttled so a
// large backlog does not saturate the store.
func (e *Engine) BatchProcess(ctx context.Context, minConfidence float64, maxBatch int, dryRun bool) (*BatchResult, error) {
	result, err := e.Analyze(ctx)
	if err != nil {
		return nil, err
	}

	var eligible []*model.ConsolidationProposal
	for _, p := range result.Proposals {
		if p.Status != model.ProposalPending {
			continue
		}
		if p.RiskLevel != model.RiskLow {
			continue
		}
		if p.Confidence < minConfidence {
			continue
		}
		eligible = append(eligible, p)
		if maxBatch > 0 && len(eligible) >= maxBatch {
			break
		}
	}

	out := &BatchResult{WouldProcess: len(eligible)}
	for _, p := range eligible {
		out.Proposals = append(out.Proposals, BatchItem{
			ProposalID:    p.ID,
			CanonicalName: p.CanonicalName,
			Members:       len(p.Members),
			Confidence:    p.Confidence,
		})
	}
	if dryRun {
		zap.L().Info("engine: batch dry run", zap.Int("would_process", out.WouldProcess))
		return out, nil
	}

	limit := rate.Limit(e.cfg.BatchRateLimit)
	if limit <= 0 {
		limit = rate.Inf
	}
	limiter := rate.NewLimiter(limit, 1)

	for i, p := range eligible {
		if err := limiter.Wait(ctx); err != nil {
			return out, eris.Wrap(err, "engine: batch throttle")
		}

		item := &out.Proposals[i]
		domain := e.groupDomain(ctx, p.CanonicalName, p.Members)
		merged, err := e.store.MergeBrandRecords(ctx, p.CanonicalName, p.Members)
		if err != nil || !merged.Success {
			msg := ""
			if err != nil {
				msg = err.Error()
			} else {
				msg = merged.Error
			}
			item.Error = msg
			out.Failed++
			out.Errors = append(out.Errors, p.ID+": "+msg)
			zap.L().Warn("engine: batch merge failed",
				zap.String("id", p.ID),
				zap.String("canonical", p.CanonicalName),
				zap.String("error", msg),
			)
			continue
		}

		p.Status = model.ProposalApproved
		item.Merged = true
		out.Processed++

		if err := e.learn.RecordFeedback(ctx, model.FeedbackEvent{
			Members:             p.Members,
			Canonical:           p.CanonicalName,
			Action:              model.FeedbackApproved,
			PredictedConfidence: p.Confidence,
			Domain:              domain,
		}); err != nil {
			zap.L().Warn("engine: learning feedback failed in batch", zap.Error(err))
		}
	}

	if out.Processed > 0 {
		e.actx.Invalidate()
	}

	zap.L().Info("engine: batch complete",
		zap.Int("would_process", out.WouldProcess),
		zap.Int("processed", out.Processed),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}
