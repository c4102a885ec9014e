package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/brandmerge-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func recordRows(recs ...*model.BrandRecord) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"name", "core_name", "countries", "class_types", "producers",
		"permit_numbers", "sku_count", "enrichment", "created_at", "updated_at",
	})
	for _, rec := range recs {
		countries, _ := json.Marshal(rec.Countries)
		classTypes, _ := json.Marshal(rec.ClassTypes)
		producers, _ := json.Marshal(rec.Producers)
		permits, _ := json.Marshal(rec.PermitNumbers)
		var enrichment []byte
		if rec.Enrichment != nil {
			enrichment, _ = json.Marshal(rec.Enrichment)
		}
		rows.AddRow(rec.Name, rec.CoreName, countries, classTypes, producers,
			permits, rec.SKUCount, enrichment, rec.CreatedAt, rec.UpdatedAt)
	}
	return rows
}

func TestPostgresMigrate(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS brand_records").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetBrandRecord(t *testing.T) {
	st, mock := newMockStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	rec := &model.BrandRecord{
		Name:          "BUFFALO TRACE",
		CoreName:      "BUFFALO TRACE",
		Countries:     []string{"US"},
		ClassTypes:    []string{"BOURBON"},
		Producers:     []model.ProducerRef{{PermitNumber: "KY-123", OwnerName: "SAZERAC"}},
		PermitNumbers: []string{"KY-123"},
		SKUCount:      4,
		Enrichment: &model.WebsiteInfo{
			Domain:             "buffalotracedistillery.com",
			Confidence:         0.9,
			VerificationStatus: model.VerificationVerified,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectQuery("SELECT name, core_name, countries").
		WithArgs("BUFFALO TRACE").
		WillReturnRows(recordRows(rec))

	got, err := st.GetBrandRecord(context.Background(), "BUFFALO TRACE")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Name, got.Name)
	assert.Equal(t, rec.Countries, got.Countries)
	assert.Equal(t, rec.Producers, got.Producers)
	assert.Equal(t, rec.SKUCount, got.SKUCount)
	require.NotNil(t, got.Enrichment)
	assert.Equal(t, "buffalotracedistillery.com", got.Enrichment.Domain)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetBrandRecordMissing(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT name, core_name, countries").
		WithArgs("NOPE").
		WillReturnRows(recordRows())

	got, err := st.GetBrandRecord(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListBrandRecords(t *testing.T) {
	st, mock := newMockStore(t)

	now := time.Now().UTC()
	a := &model.BrandRecord{Name: "ALPHA", CoreName: "ALPHA", Countries: []string{"US"}, CreatedAt: now, UpdatedAt: now}
	b := &model.BrandRecord{Name: "BRAVO", CoreName: "BRAVO", Countries: []string{"CA"}, CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery("FROM brand_records ORDER BY name").
		WillReturnRows(recordRows(a, b))

	records, err := st.ListBrandRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ALPHA", records[0].Name)
	assert.Equal(t, "BRAVO", records[1].Name)
	assert.Nil(t, records[0].Enrichment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertBrandRecord(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO brand_records").
		WithArgs("EAGLE RARE", "EAGLE RARE", pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), 0, pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE db_meta SET value").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := st.UpsertBrandRecord(context.Background(), &model.BrandRecord{
		Name:      "EAGLE RARE",
		CoreName:  "EAGLE RARE",
		Countries: []string{"US"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertBrandRecordError(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO brand_records").
		WithArgs("EAGLE RARE", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))

	err := st.UpsertBrandRecord(context.Background(), &model.BrandRecord{Name: "EAGLE RARE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert brand record EAGLE RARE")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDBVersion(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT value FROM db_meta").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(int64(7)))

	v, err := st.DBVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMergeBrandRecords(t *testing.T) {
	st, mock := newMockStore(t)

	now := time.Now().UTC()
	canonical := &model.BrandRecord{
		Name:          "BUFFALO TRACE",
		CoreName:      "BUFFALO TRACE",
		Countries:     []string{"US"},
		ClassTypes:    []string{"BOURBON"},
		Producers:     []model.ProducerRef{{PermitNumber: "KY-123", OwnerName: "SAZERAC"}},
		PermitNumbers: []string{"KY-123"},
		SKUCount:      4,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	member := &model.BrandRecord{
		Name:          "BUFFALO TRACE BOURBON",
		CoreName:      "BUFFALO TRACE",
		Countries:     []string{"CA"},
		ClassTypes:    []string{"BOURBON"},
		Producers:     []model.ProducerRef{{PermitNumber: "KY-123", OwnerName: "SAZERAC"}},
		PermitNumbers: []string{"KY-123"},
		SKUCount:      2,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("FROM brand_records WHERE name = (.+) FOR UPDATE").
		WithArgs("BUFFALO TRACE").
		WillReturnRows(recordRows(canonical))
	mock.ExpectQuery("FROM brand_records WHERE name = (.+) FOR UPDATE").
		WithArgs("BUFFALO TRACE BOURBON").
		WillReturnRows(recordRows(member))
	mock.ExpectExec("UPDATE brand_records SET countries").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			6, pgxmock.AnyArg(), pgxmock.AnyArg(), "BUFFALO TRACE").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM brand_records").
		WithArgs("BUFFALO TRACE BOURBON").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("UPDATE db_meta SET value").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	result, err := st.MergeBrandRecords(context.Background(),
		"BUFFALO TRACE", []string{"BUFFALO TRACE", "BUFFALO TRACE BOURBON"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "BUFFALO TRACE", result.CanonicalName)
	assert.Equal(t, []string{"BUFFALO TRACE BOURBON"}, result.MembersMerged)
	assert.Equal(t, 2, result.CountriesCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMergeMissingMemberRollsBack(t *testing.T) {
	st, mock := newMockStore(t)

	now := time.Now().UTC()
	canonical := &model.BrandRecord{Name: "BUFFALO TRACE", CoreName: "BUFFALO TRACE", CreatedAt: now, UpdatedAt: now}

	mock.ExpectBegin()
	mock.ExpectQuery("FROM brand_records WHERE name = (.+) FOR UPDATE").
		WithArgs("BUFFALO TRACE").
		WillReturnRows(recordRows(canonical))
	mock.ExpectQuery("FROM brand_records WHERE name = (.+) FOR UPDATE").
		WithArgs("GHOST BRAND").
		WillReturnRows(recordRows())
	mock.ExpectRollback()

	result, err := st.MergeBrandRecords(context.Background(),
		"BUFFALO TRACE", []string{"GHOST BRAND"})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "member record not found: GHOST BRAND")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMergeBeginError(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("db error"))

	_, err := st.MergeBrandRecords(context.Background(), "A", []string{"B"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSavePatterns(t *testing.T) {
	st, mock := newMockStore(t)

	patterns := []model.ConsolidationPattern{
		{Type: model.PatternSuffixVariation, Signature: "BOURBON", SuccessRate: 0.8, ConfidenceBoost: 0.1, SampleCount: 5, LastUpdated: time.Now().UTC()},
		{Type: model.PatternYearVariation, Signature: "year", SuccessRate: 0.6, ConfidenceBoost: 0.05, SampleCount: 3, LastUpdated: time.Now().UTC()},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM consolidation_patterns").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	for _, p := range patterns {
		mock.ExpectExec("INSERT INTO consolidation_patterns").
			WithArgs(string(p.Type), p.Signature, p.SuccessRate, p.ConfidenceBoost,
				p.SampleCount, p.LastUpdated).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, st.SavePatterns(context.Background(), patterns))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadPatterns(t *testing.T) {
	st, mock := newMockStore(t)

	updated := time.Now().UTC()
	mock.ExpectQuery("FROM consolidation_patterns").
		WillReturnRows(pgxmock.NewRows([]string{
			"pattern_type", "signature", "success_rate", "confidence_boost", "sample_count", "last_updated",
		}).AddRow("suffix_variation", "BOURBON", 0.8, 0.1, 5, updated))

	patterns, err := st.LoadPatterns(context.Background())
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, model.PatternSuffixVariation, patterns[0].Type)
	assert.Equal(t, "BOURBON", patterns[0].Signature)
	assert.Equal(t, 5, patterns[0].SampleCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendAndLoadFeedback(t *testing.T) {
	st, mock := newMockStore(t)

	event := model.FeedbackEvent{
		ID:                  "ev-1",
		Timestamp:           time.Now().UTC().Truncate(time.Second),
		Members:             []string{"A", "B"},
		Canonical:           "A",
		Action:              model.FeedbackApproved,
		PredictedConfidence: 0.9,
		Domain:              "1220spirits.com",
		Reason:              "exact core",
	}
	members, err := json.Marshal(event.Members)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO consolidation_feedback").
		WithArgs(event.ID, event.Timestamp, string(members), event.Canonical,
			string(event.Action), event.PredictedConfidence, event.Domain, event.Reason).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.AppendFeedback(context.Background(), event))

	mock.ExpectQuery("FROM consolidation_feedback ORDER BY timestamp").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "timestamp", "members", "canonical", "user_action", "predicted_confidence", "domain", "reason",
		}).AddRow(event.ID, event.Timestamp, members, event.Canonical,
			string(event.Action), event.PredictedConfidence, event.Domain, event.Reason))

	events, err := st.LoadFeedback(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event, events[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresKnowledgeTerms(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO knowledge_terms").
		WithArgs("white_label_brands", "KIRKLAND").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO knowledge_terms").
		WithArgs("white_label_brands", "MEMBER'S MARK").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.SaveKnowledgeTerms(context.Background(), "white_label_brands",
		[]string{"KIRKLAND", "MEMBER'S MARK"})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT list_name, term FROM knowledge_terms").
		WillReturnRows(pgxmock.NewRows([]string{"list_name", "term"}).
			AddRow("white_label_brands", "KIRKLAND").
			AddRow("white_label_brands", "MEMBER'S MARK"))

	terms, err := st.LoadKnowledgeTerms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"KIRKLAND", "MEMBER'S MARK"}, terms["white_label_brands"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
