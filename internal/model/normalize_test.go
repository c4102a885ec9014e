package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestParseRecord_AliasKeys(t *testing.T) {
	// brand_name and origin_codes are accepted aliases.
	data := []byte(`{
		"brand_name": "buffalo trace",
		"origin_codes": ["us", "CA", "us"],
		"class_types": ["Whisky"],
		"sku_count": 4
	}`)

	rec, err := ParseRecord(data)
	require.NoError(t, err)
	assert.Equal(t, "BUFFALO TRACE", rec.Name)
	assert.Equal(t, []string{"CA", "US"}, rec.Countries)
	assert.Equal(t, []string{"WHISKY"}, rec.ClassTypes)
	assert.Equal(t, 4, rec.SKUCount)
}

func TestParseRecord_MissingName(t *testing.T) {
	_, err := ParseRecord([]byte(`{"sku_count": 1}`))
	assert.Error(t, err)

	_, err = ParseRecord([]byte(`{"name": "   "}`))
	assert.Error(t, err)
}

func TestParseRecord_MalformedEnrichmentDropped(t *testing.T) {
	data := []byte(`{
		"name": "HIGH WEST",
		"enrichment": {"confidence": "not-a-number"}
	}`)

	rec, err := ParseRecord(data)
	require.NoError(t, err)
	assert.Nil(t, rec.Enrichment)
}

func TestParseRecord_WebsiteAlias(t *testing.T) {
	data := []byte(`{
		"name": "HIGH WEST",
		"website": {"domain": "WWW.HighWest.com", "confidence": 1.7, "verification_status": "verified"}
	}`)

	rec, err := ParseRecord(data)
	require.NoError(t, err)
	require.NotNil(t, rec.Enrichment)
	assert.Equal(t, "highwest.com", rec.Enrichment.Domain)
	assert.InDelta(t, 1.0, rec.Enrichment.Confidence, 0.001)
	assert.True(t, rec.Enrichment.Verified())
}

func TestNormalizeRecord(t *testing.T) {
	rec := &BrandRecord{
		Name:          "  eagle rare  ",
		CoreName:      "eagle rare",
		Countries:     []string{"us", "US", ""},
		PermitNumbers: []string{"ky-2 ", "KY-1"},
		SKUCount:      -3,
		Producers:     []ProducerRef{{OwnerName: " sazerac ", FacilityType: "SPIRIT"}},
		Enrichment:    &WebsiteInfo{Domain: "", Confidence: 0.5},
	}

	NormalizeRecord(rec)

	assert.Equal(t, "EAGLE RARE", rec.Name)
	assert.Equal(t, "EAGLE RARE", rec.CoreName)
	assert.Equal(t, []string{"US"}, rec.Countries)
	assert.Equal(t, []string{"KY-1", "KY-2"}, rec.PermitNumbers)
	assert.Zero(t, rec.SKUCount)
	assert.Equal(t, "SAZERAC", rec.Producers[0].OwnerName)
	assert.Equal(t, "spirit", rec.Producers[0].FacilityType)
	// Enrichment without a domain is no evidence at all.
	assert.Nil(t, rec.Enrichment)
}

func TestNormalizeRecord_UnknownVerificationStatus(t *testing.T) {
	rec := &BrandRecord{
		Name:       "X BRAND",
		Enrichment: &WebsiteInfo{Domain: "x.com", VerificationStatus: "maybe"},
	}
	NormalizeRecord(rec)
	assert.Equal(t, VerificationUnverified, rec.Enrichment.VerificationStatus)
	assert.False(t, rec.Enrichment.Verified())
}

func TestWebsiteInfoVerified_NilSafe(t *testing.T) {
	var w *WebsiteInfo
	assert.False(t, w.Verified())
}
