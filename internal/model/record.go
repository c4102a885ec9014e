// Package model defines the record, proposal, and learning types shared
// across the consolidation engine.
package model

import (
	"time"
)

// BrandRecord is a read-only snapshot of one registered brand as supplied
// by the record store. Name is the unique key; the engine never mutates a
// record, it only emits merge intents.
type BrandRecord struct {
	Name          string        `json:"name" db:"name"`
	CoreName      string        `json:"core_name,omitempty" db:"core_name"`
	Countries     []string      `json:"countries,omitempty" db:"countries"`
	ClassTypes    []string      `json:"class_types,omitempty" db:"class_types"`
	Producers     []ProducerRef `json:"producers,omitempty" db:"producers"`
	PermitNumbers []string      `json:"permit_numbers,omitempty" db:"permit_numbers"`
	SKUCount      int           `json:"sku_count" db:"sku_count"`
	Enrichment    *WebsiteInfo  `json:"enrichment,omitempty" db:"enrichment"`

	CreatedAt time.Time `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// ProducerRef links a brand to a permitted producer.
type ProducerRef struct {
	PermitNumber  string `json:"permit_number"`
	OwnerName     string `json:"owner_name"`
	OperatingName string `json:"operating_name,omitempty"`
	FacilityType  string `json:"facility_type,omitempty"`
}

// Facility types.
const (
	FacilitySpirit = "spirit"
	FacilityWine   = "wine"
)

// VerificationStatus is the upstream enrichment verdict on a website.
type VerificationStatus string

// Verification statuses.
const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationVerified   VerificationStatus = "verified"
	VerificationFlagged    VerificationStatus = "flagged"
)

// WebsiteInfo is web-presence evidence attached by the enrichment
// collaborator. The engine consumes it as-is and never re-checks it.
type WebsiteInfo struct {
	URL                string             `json:"url"`
	Domain             string             `json:"domain"`
	Confidence         float64            `json:"confidence"`
	VerificationStatus VerificationStatus `json:"verification_status"`
}

// Verified reports whether the enrichment carries a verified domain.
func (w *WebsiteInfo) Verified() bool {
	return w != nil && w.Domain != "" && w.VerificationStatus == VerificationVerified
}

// PrimaryProducer returns the first producer's owner name, or "".
func (r *BrandRecord) PrimaryProducer() string {
	if len(r.Producers) == 0 {
		return ""
	}
	return r.Producers[0].OwnerName
}

// HasCountry reports whether the record lists the given country.
func (r *BrandRecord) HasCountry(c string) bool {
	for _, v := range r.Countries {
		if v == c {
			return true
		}
	}
	return false
}
