// Package knowledge holds the vocabulary lists that drive name extraction
// and white-label detection: legal and facility suffixes, per-category
// product descriptors, store-brand indicators, and size tokens. Defaults
// are embedded; a YAML override file and store-backed terms merge on top.
package knowledge

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Base is the vocabulary knowledge base consulted by the extractor,
// classifier, and hierarchy resolver. Lookups are case-insensitive; all
// terms are stored uppercase.
type Base struct {
	LegalSuffixes    []string            `yaml:"legal_suffixes"`
	FacilitySuffixes []string            `yaml:"facility_suffixes"`
	Descriptors      map[string][]string `yaml:"descriptors"`
	WhiteLabelBrands []string            `yaml:"white_label_brands"`
	WhiteLabelOwners []string            `yaml:"white_label_owners"`
	SizeTokens       []string            `yaml:"size_tokens"`
}

// Default returns the embedded knowledge base.
func Default() (*Base, error) {
	var b Base
	if err := yaml.Unmarshal(defaultsYAML, &b); err != nil {
		return nil, eris.Wrap(err, "knowledge: parse embedded defaults")
	}
	b.normalize()
	return &b, nil
}

// Load returns the embedded defaults merged with an optional override file.
// A missing path is not an error; a present but unreadable file is.
func Load(path string) (*Base, error) {
	base, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Debug("knowledge: override file absent, using defaults",
				zap.String("path", path))
			return base, nil
		}
		return nil, eris.Wrapf(err, "knowledge: read %s", path)
	}

	var override Base
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, eris.Wrapf(err, "knowledge: parse %s", path)
	}
	base.merge(&override)
	base.normalize()

	zap.L().Info("knowledge: loaded override vocabulary", zap.String("path", path))
	return base, nil
}

// AddTerms merges extra terms into a named list. Used to layer
// store-persisted vocabulary on top of the static base (load order:
// knowledge base, then patterns, then feedback log).
func (b *Base) AddTerms(list string, terms []string) {
	switch list {
	case "legal_suffixes":
		b.LegalSuffixes = appendUnique(b.LegalSuffixes, terms)
	case "facility_suffixes":
		b.FacilitySuffixes = appendUnique(b.FacilitySuffixes, terms)
	case "white_label_brands":
		b.WhiteLabelBrands = appendUnique(b.WhiteLabelBrands, terms)
	case "white_label_owners":
		b.WhiteLabelOwners = appendUnique(b.WhiteLabelOwners, terms)
	case "size_tokens":
		b.SizeTokens = appendUnique(b.SizeTokens, terms)
	default:
		if b.Descriptors == nil {
			b.Descriptors = map[string][]string{}
		}
		b.Descriptors[list] = appendUnique(b.Descriptors[list], terms)
	}
	b.normalize()
}

// DescriptorsFor returns the descriptor vocabulary for a class-type string,
// falling back to the generic list when no category matches.
func (b *Base) DescriptorsFor(classType string) []string {
	ct := strings.ToUpper(classType)
	category := "generic"
	switch {
	case containsAny(ct, "WHISK", "BOURBON", "VODKA", "GIN", "RUM", "TEQUILA", "SPIRIT", "LIQUEUR", "BRANDY"):
		category = "spirit"
	case containsAny(ct, "WINE", "CHAMPAGNE", "CIDER", "MEAD", "VERMOUTH"):
		category = "wine"
	case containsAny(ct, "BEER", "MALT", "ALE", "LAGER", "STOUT"):
		category = "beer"
	}

	// Copy before appending: the map-held slices share backing arrays with
	// normalize's in-place dedupe.
	terms := make([]string, 0, len(b.Descriptors[category])+len(b.Descriptors["generic"]))
	terms = append(terms, b.Descriptors[category]...)
	if category != "generic" {
		terms = append(terms, b.Descriptors["generic"]...)
	}
	return terms
}

// IsWhiteLabel reports whether a brand name carries a store-brand indicator.
func (b *Base) IsWhiteLabel(name string) bool {
	upper := strings.ToUpper(name)
	for _, indicator := range b.WhiteLabelBrands {
		if strings.Contains(upper, indicator) {
			return true
		}
	}
	return false
}

// WhiteLabelOwner resolves the retail owner token for a store-brand name,
// or "" when none applies. Two white-label records may only group when
// they resolve to the same owner.
func (b *Base) WhiteLabelOwner(name, producerOwner string) string {
	upper := strings.ToUpper(name + " " + producerOwner)
	for _, owner := range b.WhiteLabelOwners {
		if strings.Contains(upper, owner) {
			return owner
		}
	}
	// Fall back to the matched brand indicator itself.
	for _, indicator := range b.WhiteLabelBrands {
		if strings.Contains(strings.ToUpper(name), indicator) {
			return indicator
		}
	}
	return ""
}

func (b *Base) merge(o *Base) {
	b.LegalSuffixes = appendUnique(b.LegalSuffixes, o.LegalSuffixes)
	b.FacilitySuffixes = appendUnique(b.FacilitySuffixes, o.FacilitySuffixes)
	b.WhiteLabelBrands = appendUnique(b.WhiteLabelBrands, o.WhiteLabelBrands)
	b.WhiteLabelOwners = appendUnique(b.WhiteLabelOwners, o.WhiteLabelOwners)
	b.SizeTokens = appendUnique(b.SizeTokens, o.SizeTokens)
	for k, v := range o.Descriptors {
		if b.Descriptors == nil {
			b.Descriptors = map[string][]string{}
		}
		b.Descriptors[k] = appendUnique(b.Descriptors[k], v)
	}
}

func (b *Base) normalize() {
	b.LegalSuffixes = upperAll(b.LegalSuffixes)
	b.FacilitySuffixes = upperAll(b.FacilitySuffixes)
	b.WhiteLabelBrands = upperAll(b.WhiteLabelBrands)
	b.WhiteLabelOwners = upperAll(b.WhiteLabelOwners)
	b.SizeTokens = upperAll(b.SizeTokens)
	for k, v := range b.Descriptors {
		b.Descriptors[k] = upperAll(v)
	}
}

func upperAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func appendUnique(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, v := range dst {
		seen[strings.ToUpper(v)] = true
	}
	for _, v := range src {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		dst = append(dst, v)
	}
	return dst
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
