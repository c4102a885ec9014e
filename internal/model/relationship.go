package model

// RelationshipType discriminates the closed set of group relationships.
type RelationshipType string

// Relationship types.
const (
	RelationSKUToBrand      RelationshipType = "sku_to_brand"
	RelationPortfolioBrands RelationshipType = "portfolio_brands"
	RelationSimilarNames    RelationshipType = "similar_names"
)

// RelationshipKind is a tagged variant: exactly one of SKUToBrand,
// PortfolioBrands, or SimilarNames is set, matching Type.
type RelationshipKind struct {
	Type            RelationshipType `json:"type"`
	SKUToBrand      *SKUToBrand      `json:"sku_to_brand,omitempty"`
	PortfolioBrands *PortfolioBrands `json:"portfolio_brands,omitempty"`
	SimilarNames    *SimilarNames    `json:"similar_names,omitempty"`
}

// SKUToBrand rolls SKU-level registrations up under a parent brand.
type SKUToBrand struct {
	Parent string   `json:"parent"`
	SKUs   []string `json:"skus"`
}

// PortfolioBrands marks genuinely distinct sibling brands of one owner.
type PortfolioBrands struct {
	Parent   string   `json:"parent"`
	Siblings []string `json:"siblings"`
}

// SimilarNames marks pure name variations of one brand.
type SimilarNames struct {
	Canonical string   `json:"canonical"`
	Variants  []string `json:"variants"`
}

// NewSKUToBrand builds a SKU roll-up kind.
func NewSKUToBrand(parent string, skus []string) RelationshipKind {
	return RelationshipKind{Type: RelationSKUToBrand, SKUToBrand: &SKUToBrand{Parent: parent, SKUs: skus}}
}

// NewPortfolioBrands builds a sibling-portfolio kind.
func NewPortfolioBrands(parent string, siblings []string) RelationshipKind {
	return RelationshipKind{Type: RelationPortfolioBrands, PortfolioBrands: &PortfolioBrands{Parent: parent, Siblings: siblings}}
}

// NewSimilarNames builds a name-variation kind.
func NewSimilarNames(canonical string, variants []string) RelationshipKind {
	return RelationshipKind{Type: RelationSimilarNames, SimilarNames: &SimilarNames{Canonical: canonical, Variants: variants}}
}

// Canonical returns the canonical member regardless of variant.
func (k RelationshipKind) Canonical() string {
	switch k.Type {
	case RelationSKUToBrand:
		if k.SKUToBrand != nil {
			return k.SKUToBrand.Parent
		}
	case RelationPortfolioBrands:
		if k.PortfolioBrands != nil {
			return k.PortfolioBrands.Parent
		}
	case RelationSimilarNames:
		if k.SimilarNames != nil {
			return k.SimilarNames.Canonical
		}
	}
	return ""
}

// Members returns the non-canonical member names regardless of variant.
func (k RelationshipKind) Members() []string {
	switch k.Type {
	case RelationSKUToBrand:
		if k.SKUToBrand != nil {
			return k.SKUToBrand.SKUs
		}
	case RelationPortfolioBrands:
		if k.PortfolioBrands != nil {
			return k.PortfolioBrands.Siblings
		}
	case RelationSimilarNames:
		if k.SimilarNames != nil {
			return k.SimilarNames.Variants
		}
	}
	return nil
}
