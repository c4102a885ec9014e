// Package engine sequences extraction, classification, hierarchy
// resolution, and proposal generation over a brand-record snapshot, and
// exposes the approve/feedback/batch operations.
package engine

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/brandmerge-cli/internal/classify"
	"github.com/sells-group/brandmerge-cli/internal/config"
	"github.com/sells-group/brandmerge-cli/internal/extract"
	"github.com/sells-group/brandmerge-cli/internal/hierarchy"
	"github.com/sells-group/brandmerge-cli/internal/knowledge"
	"github.com/sells-group/brandmerge-cli/internal/learning"
	"github.com/sells-group/brandmerge-cli/internal/model"
	"github.com/sells-group/brandmerge-cli/internal/proposal"
	"github.com/sells-group/brandmerge-cli/internal/store"
)

// AnalysisResult is the outcome of one full pass.
type AnalysisResult struct {
	Version     int64                          `json:"db_version"`
	GeneratedAt time.Time                      `json:"generated_at"`
	Records     int                            `json:"records_analyzed"`
	Proposals   []*model.ConsolidationProposal `json:"proposals"`
	byID        map[string]*model.ConsolidationProposal
}

// Engine is the consolidation orchestrator.
type Engine struct {
	store     store.Store
	learn     *learning.Store
	kb        *knowledge.Base
	extractor *extract.Extractor
	class     *classify.Classifier
	resolver  *hierarchy.Resolver
	generator *proposal.Generator
	cfg       config.EngineConfig
	actx      *AnalysisContext
}

// New wires an Engine from its collaborators.
func New(st store.Store, learn *learning.Store, kb *knowledge.Base, cfg config.EngineConfig) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.CacheTTLSecs <= 0 {
		cfg.CacheTTLSecs = 300
	}
	return &Engine{
		store:     st,
		learn:     learn,
		kb:        kb,
		extractor: extract.New(kb),
		class:     classify.New(kb, learn, classify.DefaultWeights, cfg.AcceptThreshold),
		resolver:  hierarchy.New(kb),
		generator: proposal.New(kb, learn, proposal.Config{AutoApproveConfidence: cfg.AutoApproveConfidence}),
		cfg:       cfg,
		actx:      NewAnalysisContext(time.Duration(cfg.CacheTTLSecs) * time.Second),
	}
}

// Analyze runs a full consolidation pass over the current record
// snapshot, returning the cached result when the store version has not
// moved.
func (e *Engine) Analyze(ctx context.Context) (*AnalysisResult, error) {
	version, err := e.store.DBVersion(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "engine: read db version")
	}
	if cached := e.actx.Cached(version); cached != nil {
		zap.L().Debug("engine: returning cached analysis", zap.Int64("version", version))
		return cached, nil
	}

	snapshot, err := e.store.ListBrandRecords(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "engine: list brand records")
	}
	if max := e.cfg.MaxRecordsPerPass; max > 0 && len(snapshot) > max {
		zap.L().Warn("engine: snapshot capped for responsiveness",
			zap.Int("records", len(snapshot)),
			zap.Int("cap", max),
		)
		snapshot = snapshot[:max]
	}

	records := make([]*model.BrandRecord, len(snapshot))
	byName := make(map[string]*model.BrandRecord, len(snapshot))
	for i := range snapshot {
		rec := &snapshot[i]
		if rec.CoreName == "" {
			rec.CoreName = e.extractor.Core(rec.Name, rec.PrimaryProducer(), firstOf(rec.ClassTypes))
		}
		records[i] = rec
		byName[rec.Name] = rec
	}

	edges, vetoes, err := e.scorePairs(ctx, records)
	if err != nil {
		return nil, err
	}

	groups := classify.BuildGroups(edges, vetoes)

	result := &AnalysisResult{
		Version:     version,
		GeneratedAt: time.Now().UTC(),
		Records:     len(records),
		byID:        map[string]*model.ConsolidationProposal{},
	}

	for _, g := range groups {
		members := make([]*model.BrandRecord, 0, len(g.Members))
		for _, name := range g.Members {
			members = append(members, byName[name])
		}

		var res hierarchy.Resolution
		if domain := sharedVerifiedDomain(members); domain != "" {
			res = e.resolver.ResolveDomainGroup(members, domain)
		} else {
			res = e.resolver.ResolveSimilarNames(members)
		}

		p := e.generator.Build(members, res.Kind, append(res.Evidence, g.Reasons...))
		result.Proposals = append(result.Proposals, p)
		result.byID[p.ID] = p
	}

	sort.Slice(result.Proposals, func(i, j int) bool {
		if result.Proposals[i].Confidence != result.Proposals[j].Confidence {
			return result.Proposals[i].Confidence > result.Proposals[j].Confidence
		}
		return result.Proposals[i].CanonicalName < result.Proposals[j].CanonicalName
	})

	e.actx.Put(version, result)

	zap.L().Info("engine: analysis pass complete",
		zap.Int64("version", version),
		zap.Int("records", len(records)),
		zap.Int("groups", len(groups)),
		zap.Int("proposals", len(result.Proposals)),
	)
	return result, nil
}

// scorePairs fans pre-filtered pairwise comparisons out across workers.
// Workers share no mutable scoring state; edges are merged only after all
// complete, so the result is deterministic regardless of completion order.
func (e *Engine) scorePairs(ctx context.Context, records []*model.BrandRecord) ([]classify.Edge, []classify.VetoPair, error) {
	pairs := e.candidatePairs(records)
	if len(pairs) == 0 {
		return nil, nil, nil
	}

	workers := e.cfg.Workers
	if workers > len(pairs) {
		workers = len(pairs)
	}
	chunk := (len(pairs) + workers - 1) / workers

	type shard struct {
		edges  []classify.Edge
		vetoes []classify.VetoPair
	}
	shards := make([]shard, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(pairs) {
			hi = len(pairs)
		}
		g.Go(func() error {
			local := &shards[w]
			for _, pr := range pairs[lo:hi] {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				score := e.class.Score(pr[0], pr[1])
				switch {
				case score.Veto:
					local.vetoes = append(local.vetoes, classify.VetoPair{A: pr[0].Name, B: pr[1].Name})
				case e.class.Accepts(score):
					local.edges = append(local.edges, classify.Edge{
						A:          pr[0].Name,
						B:          pr[1].Name,
						Confidence: score.Confidence,
						Reason:     score.Reason,
					})
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, eris.Wrap(err, "engine: pairwise scoring")
	}

	var edges []classify.Edge
	var vetoes []classify.VetoPair
	for _, s := range shards {
		edges = append(edges, s.edges...)
		vetoes = append(vetoes, s.vetoes...)
	}
	return edges, vetoes, nil
}

// candidatePairs pre-filters the O(n²) fan-out: records only compare when
// they share a first significant word or a verified domain.
func (e *Engine) candidatePairs(records []*model.BrandRecord) [][2]*model.BrandRecord {
	byWord := map[string][]*model.BrandRecord{}
	byDomain := map[string][]*model.BrandRecord{}
	for _, rec := range records {
		if w := classify.FirstSignificantWord(rec.Name, e.kb); w != "" {
			byWord[w] = append(byWord[w], rec)
		}
		if rec.Enrichment.Verified() {
			byDomain[rec.Enrichment.Domain] = append(byDomain[rec.Enrichment.Domain], rec)
		}
	}

	seen := map[[2]string]bool{}
	var pairs [][2]*model.BrandRecord
	collect := func(bucket []*model.BrandRecord) {
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				a, b := bucket[i], bucket[j]
				key := [2]string{a.Name, b.Name}
				if a.Name > b.Name {
					key = [2]string{b.Name, a.Name}
				}
				if seen[key] {
					continue
				}
				seen[key] = true
				pairs = append(pairs, [2]*model.BrandRecord{a, b})
			}
		}
	}
	// Deterministic bucket order.
	for _, w := range sortedKeys(byWord) {
		collect(byWord[w])
	}
	for _, d := range sortedKeys(byDomain) {
		collect(byDomain[d])
	}
	return pairs
}

// Proposal fetches one proposal from the current pass by ID.
func (e *Engine) Proposal(ctx context.Context, id string) (*model.ConsolidationProposal, error) {
	result, err := e.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := result.byID[id]
	if !ok {
		return nil, eris.Errorf("engine: proposal not found: %s", id)
	}
	return p, nil
}

// Approve executes the merge intent for a proposal. The store's merge is
// atomic; on failure the engine's analysis state is left unchanged and
// the store's message is surfaced verbatim. force overrides the risk and
// recommendation guards.
func (e *Engine) Approve(ctx context.Context, id string, force bool) (*model.MergeResult, error) {
	p, err := e.Proposal(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.ProposalPending {
		return nil, eris.Errorf("engine: proposal %s already %s", id, p.Status)
	}
	if !force && p.RiskLevel == model.RiskHigh {
		return nil, eris.Errorf("engine: proposal %s is high risk; use force to override", id)
	}

	// Snapshot the domain signal before the merge deletes member rows.
	domain := e.groupDomain(ctx, p.CanonicalName, p.Members)

	merged, err := e.store.MergeBrandRecords(ctx, p.CanonicalName, p.Members)
	if err != nil {
		return &model.MergeResult{Success: false, Error: err.Error()}, nil
	}

	p.Status = model.ProposalApproved
	e.actx.Invalidate()

	if err := e.learn.RecordFeedback(ctx, model.FeedbackEvent{
		Members:             p.Members,
		Canonical:           p.CanonicalName,
		Action:              model.FeedbackApproved,
		PredictedConfidence: p.Confidence,
		Domain:              domain,
	}); err != nil {
		zap.L().Warn("engine: learning feedback failed after merge", zap.Error(err))
	}

	zap.L().Info("engine: proposal approved",
		zap.String("id", id),
		zap.String("canonical", p.CanonicalName),
		zap.Int("members", len(p.Members)),
	)
	return merged, nil
}

// Reject marks a proposal rejected and feeds the learning store.
func (e *Engine) Reject(ctx context.Context, id string, reason string) error {
	p, err := e.Proposal(ctx, id)
	if err != nil {
		return err
	}
	if p.Status != model.ProposalPending {
		return eris.Errorf("engine: proposal %s already %s", id, p.Status)
	}
	p.Status = model.ProposalRejected

	return e.learn.RecordFeedback(ctx, model.FeedbackEvent{
		Members:             p.Members,
		Canonical:           p.CanonicalName,
		Action:              model.FeedbackRejected,
		PredictedConfidence: p.Confidence,
		Domain:              e.groupDomain(ctx, p.CanonicalName, p.Members),
		Reason:              reason,
	})
}

// groupDomain looks up a proposal's records and returns the verified domain
// they all share, or "". Lookup failures degrade to no domain signal.
func (e *Engine) groupDomain(ctx context.Context, canonical string, members []string) string {
	records := make([]*model.BrandRecord, 0, len(members)+1)
	for _, name := range append([]string{canonical}, members...) {
		rec, err := e.store.GetBrandRecord(ctx, name)
		if err != nil || rec == nil {
			return ""
		}
		records = append(records, rec)
	}
	return sharedVerifiedDomain(records)
}

// RecordFeedback logs a manual consolidation outcome.
func (e *Engine) RecordFeedback(ctx context.Context, members []string, canonical string, action model.FeedbackAction, predicted float64, reason string) error {
	return e.learn.RecordFeedback(ctx, model.FeedbackEvent{
		Members:             members,
		Canonical:           canonical,
		Domain:              e.groupDomain(ctx, canonical, members),
		Action:              action,
		PredictedConfidence: predicted,
		Reason:              reason,
	})
}

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

func firstOf(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
