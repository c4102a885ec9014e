package model

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// rawRecord tolerates the loose key naming seen in upstream exports.
// Everything downstream of NormalizeRecord works on the typed struct only.
type rawRecord struct {
	Name          string          `json:"name"`
	BrandName     string          `json:"brand_name"`
	CoreName      string          `json:"core_name"`
	Countries     []string        `json:"countries"`
	OriginCodes   []string        `json:"origin_codes"`
	ClassTypes    []string        `json:"class_types"`
	Producers     []ProducerRef   `json:"producers"`
	PermitNumbers []string        `json:"permit_numbers"`
	SKUCount      int             `json:"sku_count"`
	Enrichment    json.RawMessage `json:"enrichment"`
	Website       json.RawMessage `json:"website"`
}

// ParseRecord decodes one upstream record payload into a normalized
// BrandRecord. Malformed or missing enrichment is treated as no website
// evidence, never as a fatal error.
func ParseRecord(data []byte) (*BrandRecord, error) {
	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "model: parse record")
	}

	name := raw.Name
	if name == "" {
		name = raw.BrandName
	}
	if strings.TrimSpace(name) == "" {
		return nil, eris.New("model: record has no name")
	}

	countries := raw.Countries
	if len(countries) == 0 {
		countries = raw.OriginCodes
	}

	rec := &BrandRecord{
		Name:          name,
		CoreName:      raw.CoreName,
		Countries:     countries,
		ClassTypes:    raw.ClassTypes,
		Producers:     raw.Producers,
		PermitNumbers: raw.PermitNumbers,
		SKUCount:      raw.SKUCount,
		Enrichment:    parseEnrichment(name, raw.Enrichment, raw.Website),
	}
	NormalizeRecord(rec)
	return rec, nil
}

// parseEnrichment decodes whichever enrichment payload is present.
func parseEnrichment(name string, payloads ...json.RawMessage) *WebsiteInfo {
	for _, p := range payloads {
		if len(p) == 0 || string(p) == "null" {
			continue
		}
		var w WebsiteInfo
		if err := json.Unmarshal(p, &w); err != nil {
			zap.L().Debug("model: unparsable enrichment, treating as absent",
				zap.String("brand", name),
				zap.Error(err),
			)
			continue
		}
		if w.Domain == "" && w.URL == "" {
			continue
		}
		return &w
	}
	return nil
}

// NormalizeRecord canonicalizes a record in place: trimmed uppercase name,
// deduplicated sorted sets, enrichment confidence clipped to [0,1]. Every
// record entering the engine passes through here exactly once.
func NormalizeRecord(rec *BrandRecord) {
	rec.Name = strings.ToUpper(strings.TrimSpace(rec.Name))
	rec.CoreName = strings.ToUpper(strings.TrimSpace(rec.CoreName))
	rec.Countries = normalizeSet(rec.Countries)
	rec.ClassTypes = normalizeSet(rec.ClassTypes)
	rec.PermitNumbers = normalizeSet(rec.PermitNumbers)

	if rec.SKUCount < 0 {
		rec.SKUCount = 0
	}

	for i := range rec.Producers {
		p := &rec.Producers[i]
		p.OwnerName = strings.ToUpper(strings.TrimSpace(p.OwnerName))
		p.OperatingName = strings.ToUpper(strings.TrimSpace(p.OperatingName))
		p.PermitNumber = strings.ToUpper(strings.TrimSpace(p.PermitNumber))
		p.FacilityType = strings.ToLower(strings.TrimSpace(p.FacilityType))
	}

	if w := rec.Enrichment; w != nil {
		w.Domain = strings.ToLower(strings.TrimSpace(w.Domain))
		w.Domain = strings.TrimPrefix(w.Domain, "www.")
		if w.Confidence < 0 {
			w.Confidence = 0
		}
		if w.Confidence > 1 {
			w.Confidence = 1
		}
		switch w.VerificationStatus {
		case VerificationUnverified, VerificationVerified, VerificationFlagged:
		default:
			w.VerificationStatus = VerificationUnverified
		}
		if w.Domain == "" {
			rec.Enrichment = nil
		}
	}
}

// normalizeSet uppercases, trims, deduplicates, and sorts a value set.
func normalizeSet(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
