// Package learning persists consolidation patterns and the feedback log,
// and recalibrates confidence from accept/reject outcomes.
package learning

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brandmerge-cli/internal/model"
)

// Persistence is the durable backing for learning state: patterns are
// overwrite-on-save, the feedback log is append-only.
type Persistence interface {
	SavePatterns(ctx context.Context, patterns []model.ConsolidationPattern) error
	LoadPatterns(ctx context.Context) ([]model.ConsolidationPattern, error)
	AppendFeedback(ctx context.Context, event model.FeedbackEvent) error
	LoadFeedback(ctx context.Context) ([]model.FeedbackEvent, error)
}

// Config bounds the learning dynamics.
type Config struct {
	BoostStep          float64
	BoostMax           float64
	BoostMin           float64
	MinPatternSupport  int
	CalibrationSamples int
}

// DefaultConfig is the reference tuning.
var DefaultConfig = Config{
	BoostStep:          0.05,
	BoostMax:           0.30,
	BoostMin:           -0.20,
	MinPatternSupport:  3,
	CalibrationSamples: 5,
}

// calibrationBands is the number of 0.2-wide confidence bands.
const calibrationBands = 5

type bandStats struct {
	samples   int
	successes int
}

// Store is the agentic learning store. A single writer applies feedback;
// concurrent readers see either the pre- or post-update state, never a
// partial write.
type Store struct {
	mu       sync.RWMutex
	persist  Persistence
	cfg      Config
	patterns map[string]*model.ConsolidationPattern
	bands    [calibrationBands]bandStats
}

// New creates a learning store and loads persisted state in the required
// order: patterns first, then the feedback log (for calibration bands).
func New(ctx context.Context, persist Persistence, cfg Config) (*Store, error) {
	if cfg.BoostStep <= 0 {
		cfg = DefaultConfig
	}
	s := &Store{
		persist:  persist,
		cfg:      cfg,
		patterns: map[string]*model.ConsolidationPattern{},
	}

	patterns, err := persist.LoadPatterns(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "learning: load patterns")
	}
	for i := range patterns {
		p := patterns[i]
		s.patterns[p.Key()] = &p
	}

	events, err := persist.LoadFeedback(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "learning: load feedback")
	}
	for _, ev := range events {
		s.applyCalibration(ev)
	}

	zap.L().Info("learning: store loaded",
		zap.Int("patterns", len(s.patterns)),
		zap.Int("feedback_events", len(events)),
	)
	return s, nil
}

// RecordFeedback applies one feedback event: the event is appended to the
// durable log, every pattern matched between the group's members is
// updated, and the pattern table is saved. Updates are atomic per event.
func (s *Store) RecordFeedback(ctx context.Context, event model.FeedbackEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if err := s.persist.AppendFeedback(ctx, event); err != nil {
		return eris.Wrap(err, "learning: append feedback")
	}

	s.mu.Lock()
	s.applyEvent(event)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.persist.SavePatterns(ctx, snapshot); err != nil {
		return eris.Wrap(err, "learning: save patterns")
	}

	zap.L().Info("learning: feedback recorded",
		zap.String("canonical", event.Canonical),
		zap.String("action", string(event.Action)),
		zap.Float64("predicted", event.PredictedConfidence),
	)
	return nil
}

// EnhancedConfidence adjusts a base confidence with applicable learned
// pattern boosts and the band calibration factor, clipped to [0,1].
func (s *Store) EnhancedConfidence(nameA, nameB string, base float64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adjusted := base
	for _, m := range DetectPatterns(nameA, nameB) {
		p, ok := s.patterns[patternKey(m)]
		if !ok || p.SampleCount < s.cfg.MinPatternSupport {
			continue
		}
		adjusted += p.ConfidenceBoost
	}

	adjusted *= s.calibrationFactorLocked(base)
	return clip(adjusted)
}

// Patterns returns a snapshot of the learned pattern table.
func (s *Store) Patterns() []model.ConsolidationPattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Rebuild discards in-memory state and replays the full feedback log from
// empty. Replay is deterministic: the same log reproduces the same table.
func (s *Store) Rebuild(ctx context.Context) error {
	events, err := s.persist.LoadFeedback(ctx)
	if err != nil {
		return eris.Wrap(err, "learning: load feedback for rebuild")
	}

	s.mu.Lock()
	s.patterns = map[string]*model.ConsolidationPattern{}
	s.bands = [calibrationBands]bandStats{}
	for _, ev := range events {
		s.applyEvent(ev)
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.persist.SavePatterns(ctx, snapshot); err != nil {
		return eris.Wrap(err, "learning: save rebuilt patterns")
	}
	zap.L().Info("learning: rebuilt from feedback log", zap.Int("events", len(events)))
	return nil
}

// applyEvent updates patterns and calibration for one event. Caller holds
// the write lock (or is single-threaded during construction).
func (s *Store) applyEvent(event model.FeedbackEvent) {
	names := append([]string{event.Canonical}, event.Members...)
	seen := map[string]bool{}
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			for _, m := range DetectPatterns(names[i], names[j]) {
				key := patternKey(m)
				if seen[key] {
					continue
				}
				seen[key] = true
				s.updatePattern(m, event.Action)
			}
		}
	}
	if event.Domain != "" {
		s.updatePattern(DomainMatchPattern(event.Domain), event.Action)
	}
	s.applyCalibration(event)
}

// updatePattern applies one feedback outcome to one pattern row. Patterns
// are created on first observation and never deleted.
func (s *Store) updatePattern(m Match, action model.FeedbackAction) {
	key := patternKey(m)
	p, ok := s.patterns[key]
	if !ok {
		p = &model.ConsolidationPattern{Type: m.Type, Signature: m.Signature}
		s.patterns[key] = p
	}

	p.SampleCount++
	n := float64(p.SampleCount)

	switch action {
	case model.FeedbackApproved:
		p.SuccessRate = (p.SuccessRate*(n-1) + 1) / n
		p.ConfidenceBoost += s.cfg.BoostStep
		if p.ConfidenceBoost > s.cfg.BoostMax {
			p.ConfidenceBoost = s.cfg.BoostMax
		}
	case model.FeedbackRejected:
		p.SuccessRate = p.SuccessRate * (n - 1) / n
		p.ConfidenceBoost -= s.cfg.BoostStep
		if p.ConfidenceBoost < s.cfg.BoostMin {
			p.ConfidenceBoost = s.cfg.BoostMin
		}
	case model.FeedbackModified:
		// A modified group confirms the pattern matched something real but
		// not the exact grouping: count the sample, move the rate toward
		// the middle, leave the boost alone.
		p.SuccessRate = (p.SuccessRate*(n-1) + 0.5) / n
	}

	p.LastUpdated = time.Now().UTC()
}

// applyCalibration buckets one event into its confidence band.
func (s *Store) applyCalibration(event model.FeedbackEvent) {
	idx := bandIndex(event.PredictedConfidence)
	s.bands[idx].samples++
	if event.Action == model.FeedbackApproved {
		s.bands[idx].successes++
	}
}

// calibrationFactorLocked rescales a prediction by the band's historical
// actual-vs-expected success ratio, bounded to [0.5, 1.5]. Bands without
// sufficient samples contribute no adjustment.
func (s *Store) calibrationFactorLocked(confidence float64) float64 {
	idx := bandIndex(confidence)
	band := s.bands[idx]
	if band.samples < s.cfg.CalibrationSamples {
		return 1
	}

	actual := float64(band.successes) / float64(band.samples)
	midpoint := (float64(idx) + 0.5) / calibrationBands
	factor := actual / midpoint
	if factor < 0.5 {
		factor = 0.5
	}
	if factor > 1.5 {
		factor = 1.5
	}
	return factor
}

func (s *Store) snapshotLocked() []model.ConsolidationPattern {
	out := make([]model.ConsolidationPattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, *p)
	}
	return out
}

func bandIndex(confidence float64) int {
	idx := int(confidence * calibrationBands)
	if idx < 0 {
		idx = 0
	}
	if idx >= calibrationBands {
		idx = calibrationBands - 1
	}
	return idx
}

func patternKey(m Match) string {
	return string(m.Type) + ":" + m.Signature
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
