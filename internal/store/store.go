// Package store persists brand records, learned patterns, the feedback
// log, and knowledge-base terms behind a single interface with SQLite and
// Postgres drivers.
package store

import (
	"context"

	"github.com/sells-group/brandmerge-cli/internal/model"
)

// Store is the persistence interface for the consolidation engine. The
// engine reads brand records as a snapshot and mutates them only through
// MergeBrandRecords, which is atomic and bumps the database version.
type Store interface {
	// Brand records (the record-store collaborator contract)
	ListBrandRecords(ctx context.Context) ([]model.BrandRecord, error)
	GetBrandRecord(ctx context.Context, name string) (*model.BrandRecord, error)
	UpsertBrandRecord(ctx context.Context, rec *model.BrandRecord) error
	// MergeBrandRecords merges members into canonical atomically: set
	// unions, SKU sums, member deletion, and the version bump commit or
	// roll back together.
	MergeBrandRecords(ctx context.Context, canonical string, members []string) (*model.MergeResult, error)
	// DBVersion is the monotonic counter bumped by every record mutation;
	// analysis caches key on it.
	DBVersion(ctx context.Context) (int64, error)

	// Learning state
	SavePatterns(ctx context.Context, patterns []model.ConsolidationPattern) error
	LoadPatterns(ctx context.Context) ([]model.ConsolidationPattern, error)
	AppendFeedback(ctx context.Context, event model.FeedbackEvent) error
	LoadFeedback(ctx context.Context) ([]model.FeedbackEvent, error)

	// Knowledge base terms (loaded before patterns and feedback)
	SaveKnowledgeTerms(ctx context.Context, list string, terms []string) error
	LoadKnowledgeTerms(ctx context.Context) (map[string][]string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
