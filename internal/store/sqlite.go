package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/brandmerge-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS brand_records (
	name           TEXT PRIMARY KEY,
	core_name      TEXT NOT NULL DEFAULT '',
	countries      TEXT NOT NULL DEFAULT '[]',
	class_types    TEXT NOT NULL DEFAULT '[]',
	producers      TEXT NOT NULL DEFAULT '[]',
	permit_numbers TEXT NOT NULL DEFAULT '[]',
	sku_count      INTEGER NOT NULL DEFAULT 0,
	enrichment     TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS consolidation_patterns (
	pattern_type     TEXT NOT NULL,
	signature        TEXT NOT NULL,
	success_rate     REAL NOT NULL DEFAULT 0,
	confidence_boost REAL NOT NULL DEFAULT 0,
	sample_count     INTEGER NOT NULL DEFAULT 0,
	last_updated     DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (pattern_type, signature)
);

CREATE TABLE IF NOT EXISTS consolidation_feedback (
	id                   TEXT PRIMARY KEY,
	timestamp            DATETIME NOT NULL,
	members              TEXT NOT NULL,
	canonical            TEXT NOT NULL,
	user_action          TEXT NOT NULL,
	predicted_confidence REAL NOT NULL,
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
	value INTEGER NOT NULL
);

INSERT OR IGNORE INTO db_meta (key, value) VALUES ('version', 1);

CREATE INDEX IF NOT EXISTS idx_feedback_timestamp ON consolidation_feedback(timestamp);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListBrandRecords(ctx context.Context) ([]model.BrandRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, core_name, countries, class_types, producers, permit_numbers,
		        sku_count, enrichment, created_at, updated_at
		 FROM brand_records ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list brand records")
	}
	defer rows.Close()

	var records []model.BrandRecord
	for rows.Next() {
		rec, err := scanBrandRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list brand records iterate")
}

func (s *SQLiteStore) GetBrandRecord(ctx context.Context, name string) (*model.BrandRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, core_name, countries, class_types, producers, permit_numbers,
		        sku_count, enrichment, created_at, updated_at
		 FROM brand_records WHERE name = ?`,
		name,
	)
	rec, err := scanBrandRecord(row)
	if err == errNotFound {
		return nil, nil
	}
	return rec, err
}

func (s *SQLiteStore) UpsertBrandRecord(ctx context.Context, rec *model.BrandRecord) error {
	countries, classTypes, producers, permits, enrichment, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO brand_records
		   (name, core_name, countries, class_types, producers, permit_numbers, sku_count, enrichment, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   core_name = excluded.core_name,
		   countries = excluded.countries,
		   class_types = excluded.class_types,
		   producers = excluded.producers,
		   permit_numbers = excluded.permit_numbers,
		   sku_count = excluded.sku_count,
		   enrichment = excluded.enrichment,
		   updated_at = excluded.updated_at`,
		rec.Name, rec.CoreName, countries, classTypes, producers, permits,
		rec.SKUCount, enrichment, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert brand record %s", rec.Name)
	}
	return s.bumpVersion(ctx)
}

func (s *SQLiteStore) MergeBrandRecords(ctx context.Context, canonical string, members []string) (*model.MergeResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin merge")
	}
	defer tx.Rollback() //nolint:errcheck

	merged, err := mergeInTx(ctx, sqliteQuerier{tx}, canonical, members)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE db_meta SET value = value + 1 WHERE key = 'version'`); err != nil {
		return nil, eris.Wrap(err, "sqlite: bump version")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit merge")
	}
	return merged, nil
}

func (s *SQLiteStore) DBVersion(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM db_meta WHERE key = 'version'`).Scan(&v)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: db version")
	}
	return v, nil
}

func (s *SQLiteStore) SavePatterns(ctx context.Context, patterns []model.ConsolidationPattern) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save patterns")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM consolidation_patterns`); err != nil {
		return eris.Wrap(err, "sqlite: clear patterns")
	}
	for _, p := range patterns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO consolidation_patterns
			   (pattern_type, signature, success_rate, confidence_boost, sample_count, last_updated)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			string(p.Type), p.Signature, p.SuccessRate, p.ConfidenceBoost, p.SampleCount, p.LastUpdated,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert pattern %s", p.Key())
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit patterns")
}

func (s *SQLiteStore) LoadPatterns(ctx context.Context) ([]model.ConsolidationPattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pattern_type, signature, success_rate, confidence_boost, sample_count, last_updated
		 FROM consolidation_patterns ORDER BY pattern_type, signature`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load patterns")
	}
	defer rows.Close()

	var patterns []model.ConsolidationPattern
	for rows.Next() {
		var p model.ConsolidationPattern
		var pt string
		if err := rows.Scan(&pt, &p.Signature, &p.SuccessRate, &p.ConfidenceBoost, &p.SampleCount, &p.LastUpdated); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pattern")
		}
		p.Type = model.PatternType(pt)
		patterns = append(patterns, p)
	}
	return patterns, eris.Wrap(rows.Err(), "sqlite: load patterns iterate")
}

func (s *SQLiteStore) AppendFeedback(ctx context.Context, event model.FeedbackEvent) error {
	members, err := json.Marshal(event.Members)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal feedback members")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO consolidation_feedback
		   (id, timestamp, members, canonical, user_action, predicted_confidence, domain, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Timestamp, string(members), event.Canonical,
		string(event.Action), event.PredictedConfidence, event.Domain, event.Reason,
	)
	return eris.Wrap(err, "sqlite: append feedback")
}

func (s *SQLiteStore) LoadFeedback(ctx context.Context) ([]model.FeedbackEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, members, canonical, user_action, predicted_confidence, domain, reason
		 FROM consolidation_feedback ORDER BY timestamp, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load feedback")
	}
	defer rows.Close()

	var events []model.FeedbackEvent
	for rows.Next() {
		var ev model.FeedbackEvent
		var members, action string
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &members, &ev.Canonical, &action, &ev.PredictedConfidence, &ev.Domain, &ev.Reason); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan feedback")
		}
		if err := json.Unmarshal([]byte(members), &ev.Members); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal feedback members")
		}
		ev.Action = model.FeedbackAction(action)
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: load feedback iterate")
}

func (s *SQLiteStore) SaveKnowledgeTerms(ctx context.Context, list string, terms []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save knowledge")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, term := range terms {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO knowledge_terms (list_name, term) VALUES (?, ?)`,
			list, term,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert knowledge term %s", term)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit knowledge terms")
}

func (s *SQLiteStore) LoadKnowledgeTerms(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT list_name, term FROM knowledge_terms ORDER BY list_name, term`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load knowledge terms")
	}
	defer rows.Close()

	terms := map[string][]string{}
	for rows.Next() {
		var list, term string
		if err := rows.Scan(&list, &term); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan knowledge term")
		}
		terms[list] = append(terms[list], term)
	}
	return terms, eris.Wrap(rows.Err(), "sqlite: load knowledge terms iterate")
}

func (s *SQLiteStore) bumpVersion(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE db_meta SET value = value + 1 WHERE key = 'version'`)
	return eris.Wrap(err, "sqlite: bump version")
}

// sqliteQuerier adapts *sql.Tx to the shared merge helper.
type sqliteQuerier struct {
	tx *sql.Tx
}

func (q sqliteQuerier) getRecord(ctx context.Context, name string) (*model.BrandRecord, error) {
	row := q.tx.QueryRowContext(ctx,
		`SELECT name, core_name, countries, class_types, producers, permit_numbers,
		        sku_count, enrichment, created_at, updated_at
		 FROM brand_records WHERE name = ?`,
		name,
	)
	return scanBrandRecord(row)
}

func (q sqliteQuerier) updateRecord(ctx context.Context, rec *model.BrandRecord) error {
	countries, classTypes, producers, permits, enrichment, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = q.tx.ExecContext(ctx,
		`UPDATE brand_records SET countries = ?, class_types = ?, producers = ?,
		   permit_numbers = ?, sku_count = ?, enrichment = ?, updated_at = ?
		 WHERE name = ?`,
		countries, classTypes, producers, permits, rec.SKUCount, enrichment,
		time.Now().UTC(), rec.Name,
	)
	return eris.Wrapf(err, "sqlite: update record %s", rec.Name)
}

func (q sqliteQuerier) deleteRecord(ctx context.Context, name string) error {
	_, err := q.tx.ExecContext(ctx, `DELETE FROM brand_records WHERE name = ?`, name)
	return eris.Wrapf(err, "sqlite: delete record %s", name)
}

// helpers

var errNotFound = eris.New("record not found")

type scannable interface {
	Scan(dest ...any) error
}

func scanBrandRecord(row scannable) (*model.BrandRecord, error) {
	var rec model.BrandRecord
	var countries, classTypes, producers, permits string
	var enrichment sql.NullString

	err := row.Scan(&rec.Name, &rec.CoreName, &countries, &classTypes, &producers,
		&permits, &rec.SKUCount, &enrichment, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan brand record")
	}

	for _, pair := range []struct {
		data string
		dst  any
	}{
		{countries, &rec.Countries},
		{classTypes, &rec.ClassTypes},
		{producers, &rec.Producers},
		{permits, &rec.PermitNumbers},
	} {
		if err := json.Unmarshal([]byte(pair.data), pair.dst); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal brand record field")
		}
	}
	if enrichment.Valid && enrichment.String != "" {
		rec.Enrichment = &model.WebsiteInfo{}
		if err := json.Unmarshal([]byte(enrichment.String), rec.Enrichment); err != nil {
			// Malformed enrichment is no website evidence, not a failure.
			rec.Enrichment = nil
		}
	}
	return &rec, nil
}

func encodeRecord(rec *model.BrandRecord) (countries, classTypes, producers, permits string, enrichment any, err error) {
	c, err := json.Marshal(orEmpty(rec.Countries))
	if err != nil {
		return "", "", "", "", nil, eris.Wrap(err, "store: marshal countries")
	}
	ct, err := json.Marshal(orEmpty(rec.ClassTypes))
	if err != nil {
		return "", "", "", "", nil, eris.Wrap(err, "store: marshal class types")
	}
	p, err := json.Marshal(rec.Producers)
	if err != nil {
		return "", "", "", "", nil, eris.Wrap(err, "store: marshal producers")
	}
	pn, err := json.Marshal(orEmpty(rec.PermitNumbers))
	if err != nil {
		return "", "", "", "", nil, eris.Wrap(err, "store: marshal permits")
	}

	var enr any
	if rec.Enrichment != nil {
		e, err := json.Marshal(rec.Enrichment)
		if err != nil {
			return "", "", "", "", nil, eris.Wrap(err, "store: marshal enrichment")
		}
		enr = string(e)
	}
	return string(c), string(ct), string(p), string(pn), enr, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
