package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/brandmerge-cli/internal/db"
	"github.com/sells-group/brandmerge-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS brand_records (
	name           TEXT PRIMARY KEY,
	core_name      TEXT NOT NULL DEFAULT '',
	countries      JSONB NOT NULL DEFAULT '[]',
	class_types    JSONB NOT NULL DEFAULT '[]',
	producers      JSONB NOT NULL DEFAULT '[]',
	permit_numbers JSONB NOT NULL DEFAULT '[]',
	sku_count      INTEGER NOT NULL DEFAULT 0,
	enrichment     JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS consolidation_patterns (
	pattern_type     TEXT NOT NULL,
	signature        TEXT NOT NULL,
	success_rate     DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence_boost DOUBLE PRECISION NOT NULL DEFAULT 0,
	sample_count     INTEGER NOT NULL DEFAULT 0,
	last_updated     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pattern_type, signature)
);

CREATE TABLE IF NOT EXISTS consolidation_feedback (
	id                   TEXT PRIMARY KEY,
	timestamp            TIMESTAMPTZ NOT NULL,
	members              JSONB NOT NULL,
	canonical            TEXT NOT NULL,
	user_action          TEXT NOT NULL,
	predicted_confidence DOUBLE PRECISION NOT NULL,
	domain               TEXT NOT NULL DEFAULT '',
	reason               TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS knowledge_terms (
	list_name TEXT NOT NULL,
	term      TEXT NOT NULL,
	PRIMARY KEY (list_name, term)
);

CREATE TABLE IF NOT EXISTS db_meta (
	key   TEXT PRIMARY KEY,
	value BIGINT NOT NULL
);

INSERT INTO db_meta (key, value) VALUES ('version', 1) ON CONFLICT (key) DO NOTHING;

CREATE INDEX IF NOT EXISTS idx_feedback_timestamp ON consolidation_feedback(timestamp);
`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests with pgxmock).
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const selectBrandRecord = `SELECT name, core_name, countries, class_types, producers, permit_numbers,
       sku_count, enrichment, created_at, updated_at
FROM brand_records`

func (s *PostgresStore) ListBrandRecords(ctx context.Context) ([]model.BrandRecord, error) {
	rows, err := s.pool.Query(ctx, selectBrandRecord+` ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list brand records")
	}
	defer rows.Close()

	var records []model.BrandRecord
	for rows.Next() {
		rec, err := scanPgBrandRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list brand records iterate")
}

func (s *PostgresStore) GetBrandRecord(ctx context.Context, name string) (*model.BrandRecord, error) {
	row := s.pool.QueryRow(ctx, selectBrandRecord+` WHERE name = $1`, name)
	rec, err := scanPgBrandRecord(row)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	return rec, err
}

func (s *PostgresStore) UpsertBrandRecord(ctx context.Context, rec *model.BrandRecord) error {
	countries, classTypes, producers, permits, enrichment, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO brand_records
		   (name, core_name, countries, class_types, producers, permit_numbers, sku_count, enrichment, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (name) DO UPDATE SET
		   core_name = EXCLUDED.core_name,
		   countries = EXCLUDED.countries,
		   class_types = EXCLUDED.class_types,
		   producers = EXCLUDED.producers,
		   permit_numbers = EXCLUDED.permit_numbers,
		   sku_count = EXCLUDED.sku_count,
		   enrichment = EXCLUDED.enrichment,
		   updated_at = EXCLUDED.updated_at`,
		rec.Name, rec.CoreName, countries, classTypes, producers, permits,
		rec.SKUCount, enrichment, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert brand record %s", rec.Name)
	}

	_, err = s.pool.Exec(ctx, `UPDATE db_meta SET value = value + 1 WHERE key = 'version'`)
	return eris.Wrap(err, "postgres: bump version")
}

func (s *PostgresStore) MergeBrandRecords(ctx context.Context, canonical string, members []string) (*model.MergeResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin merge")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	merged, err := mergeInTx(ctx, pgQuerier{tx}, canonical, members)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE db_meta SET value = value + 1 WHERE key = 'version'`); err != nil {
		return nil, eris.Wrap(err, "postgres: bump version")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit merge")
	}
	return merged, nil
}

func (s *PostgresStore) DBVersion(ctx context.Context) (int64, error) {
	var v int64
	err := s.pool.QueryRow(ctx, `SELECT value FROM db_meta WHERE key = 'version'`).Scan(&v)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: db version")
	}
	return v, nil
}

func (s *PostgresStore) SavePatterns(ctx context.Context, patterns []model.ConsolidationPattern) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save patterns")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM consolidation_patterns`); err != nil {
		return eris.Wrap(err, "postgres: clear patterns")
	}
	for _, p := range patterns {
		if _, err := tx.Exec(ctx,
			`INSERT INTO consolidation_patterns
			   (pattern_type, signature, success_rate, confidence_boost, sample_count, last_updated)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			string(p.Type), p.Signature, p.SuccessRate, p.ConfidenceBoost, p.SampleCount, p.LastUpdated,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert pattern %s", p.Key())
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit patterns")
}

func (s *PostgresStore) LoadPatterns(ctx context.Context) ([]model.ConsolidationPattern, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT pattern_type, signature, success_rate, confidence_boost, sample_count, last_updated
		 FROM consolidation_patterns ORDER BY pattern_type, signature`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load patterns")
	}
	defer rows.Close()

	var patterns []model.ConsolidationPattern
	for rows.Next() {
		var p model.ConsolidationPattern
		var pt string
		if err := rows.Scan(&pt, &p.Signature, &p.SuccessRate, &p.ConfidenceBoost, &p.SampleCount, &p.LastUpdated); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pattern")
		}
		p.Type = model.PatternType(pt)
		patterns = append(patterns, p)
	}
	return patterns, eris.Wrap(rows.Err(), "postgres: load patterns iterate")
}

func (s *PostgresStore) AppendFeedback(ctx context.Context, event model.FeedbackEvent) error {
	members, err := json.Marshal(event.Members)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal feedback members")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO consolidation_feedback
		   (id, timestamp, members, canonical, user_action, predicted_confidence, domain, reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.Timestamp, string(members), event.Canonical,
		string(event.Action), event.PredictedConfidence, event.Domain, event.Reason,
	)
	return eris.Wrap(err, "postgres: append feedback")
}

func (s *PostgresStore) LoadFeedback(ctx context.Context) ([]model.FeedbackEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, timestamp, members, canonical, user_action, predicted_confidence, domain, reason
		 FROM consolidation_feedback ORDER BY timestamp, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load feedback")
	}
	defer rows.Close()

	var events []model.FeedbackEvent
	for rows.Next() {
		var ev model.FeedbackEvent
		var members []byte
		var action string
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &members, &ev.Canonical, &action, &ev.PredictedConfidence, &ev.Domain, &ev.Reason); err != nil {
			return nil, eris.Wrap(err, "postgres: scan feedback")
		}
		if err := json.Unmarshal(members, &ev.Members); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal feedback members")
		}
		ev.Action = model.FeedbackAction(action)
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "postgres: load feedback iterate")
}

func (s *PostgresStore) SaveKnowledgeTerms(ctx context.Context, list string, terms []string) error {
	for _, term := range terms {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO knowledge_terms (list_name, term) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			list, term,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert knowledge term %s", term)
		}
	}
	return nil
}

func (s *PostgresStore) LoadKnowledgeTerms(ctx context.Context) (map[string][]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT list_name, term FROM knowledge_terms ORDER BY list_name, term`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load knowledge terms")
	}
	defer rows.Close()

	terms := map[string][]string{}
	for rows.Next() {
		var list, term string
		if err := rows.Scan(&list, &term); err != nil {
			return nil, eris.Wrap(err, "postgres: scan knowledge term")
		}
		terms[list] = append(terms[list], term)
	}
	return terms, eris.Wrap(rows.Err(), "postgres: load knowledge terms iterate")
}

// pgQuerier adapts pgx.Tx to the shared merge helper.
type pgQuerier struct {
	tx pgx.Tx
}

func (q pgQuerier) getRecord(ctx context.Context, name string) (*model.BrandRecord, error) {
	row := q.tx.QueryRow(ctx, selectBrandRecord+` WHERE name = $1 FOR UPDATE`, name)
	return scanPgBrandRecord(row)
}

func (q pgQuerier) updateRecord(ctx context.Context, rec *model.BrandRecord) error {
	countries, classTypes, producers, permits, enrichment, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = q.tx.Exec(ctx,
		`UPDATE brand_records SET countries = $1, class_types = $2, producers = $3,
		   permit_numbers = $4, sku_count = $5, enrichment = $6, updated_at = $7
		 WHERE name = $8`,
		countries, classTypes, producers, permits, rec.SKUCount, enrichment,
		time.Now().UTC(), rec.Name,
	)
	return eris.Wrapf(err, "postgres: update record %s", rec.Name)
}

func (q pgQuerier) deleteRecord(ctx context.Context, name string) error {
	_, err := q.tx.Exec(ctx, `DELETE FROM brand_records WHERE name = $1`, name)
	return eris.Wrapf(err, "postgres: delete record %s", name)
}

// scanPgBrandRecord scans a record from a pgx row, tolerating JSONB
// returned as []byte.
func scanPgBrandRecord(row scannable) (*model.BrandRecord, error) {
	var rec model.BrandRecord
	var countries, classTypes, producers, permits []byte
	var enrichment []byte

	err := row.Scan(&rec.Name, &rec.CoreName, &countries, &classTypes, &producers,
		&permits, &rec.SKUCount, &enrichment, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan brand record")
	}

	for _, pair := range []struct {
		data []byte
		dst  any
	}{
		{countries, &rec.Countries},
		{classTypes, &rec.ClassTypes},
		{producers, &rec.Producers},
		{permits, &rec.PermitNumbers},
	} {
		if len(pair.data) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.data, pair.dst); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal brand record field")
		}
	}
	if len(enrichment) > 0 {
		rec.Enrichment = &model.WebsiteInfo{}
		if err := json.Unmarshal(enrichment, rec.Enrichment); err != nil {
			rec.Enrichment = nil
		}
	}
	return &rec, nil
}
