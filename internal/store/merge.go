package store

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brandmerge-cli/internal/model"
)

// mergeQuerier is the per-driver transaction surface the merge runs on.
type mergeQuerier interface {
	getRecord(ctx context.Context, name string) (*model.BrandRecord, error)
	updateRecord(ctx context.Context, rec *model.BrandRecord) error
	deleteRecord(ctx context.Context, name string) error
}

// mergeInTx executes the merge intent inside an already-open transaction:
// the canonical record absorbs the union of every member's countries,
// class types, permits, and producers, SKU counts sum, and the members are
// deleted. The caller commits (and bumps the version) or rolls back.
func mergeInTx(ctx context.Context, q mergeQuerier, canonical string, members []string) (*model.MergeResult, error) {
	target, err := q.getRecord(ctx, canonical)
	if err == errNotFound {
		return nil, eris.Errorf("store: canonical record not found: %s", canonical)
	}
	if err != nil {
		return nil, err
	}

	var absorbed []string
	for _, name := range members {
		if name == canonical {
			continue
		}
		member, err := q.getRecord(ctx, name)
		if err == errNotFound {
			return nil, eris.Errorf("store: member record not found: %s", name)
		}
		if err != nil {
			return nil, err
		}

		target.Countries = unionSet(target.Countries, member.Countries)
		target.ClassTypes = unionSet(target.ClassTypes, member.ClassTypes)
		target.PermitNumbers = unionSet(target.PermitNumbers, member.PermitNumbers)
		target.Producers = unionProducers(target.Producers, member.Producers)
		target.SKUCount += member.SKUCount
		if target.Enrichment == nil && member.Enrichment != nil {
			target.Enrichment = member.Enrichment
		}
		absorbed = append(absorbed, name)
	}

	if len(absorbed) == 0 {
		return nil, eris.New("store: merge has no members to absorb")
	}

	if err := q.updateRecord(ctx, target); err != nil {
		return nil, err
	}
	for _, name := range absorbed {
		if err := q.deleteRecord(ctx, name); err != nil {
			return nil, err
		}
	}

	zap.L().Info("store: merged brand records",
		zap.String("canonical", canonical),
		zap.Strings("members", absorbed),
	)

	return &model.MergeResult{
		Success:         true,
		CanonicalName:   canonical,
		MembersMerged:   absorbed,
		CountriesCount:  len(target.Countries),
		ClassTypesCount: len(target.ClassTypes),
		PermitsCount:    len(target.PermitNumbers),
	}, nil
}

func unionSet(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range append(append([]string{}, a...), b...) {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func unionProducers(a, b []model.ProducerRef) []model.ProducerRef {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]model.ProducerRef, 0, len(a)+len(b))
	for _, p := range append(append([]model.ProducerRef{}, a...), b...) {
		key := p.PermitNumber + "|" + p.OwnerName
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
