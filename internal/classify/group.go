package classify

import (
	"sort"
)

// Edge is one accepted pairwise match between two record names.
type Edge struct {
	A, B       string
	Confidence float64
	Reason     string
}

// VetoPair marks two names that must never share a group. Vetoes break
// transitivity: a vetoed pair stays separated even when connected through
// a third record.
type VetoPair struct {
	A, B string
}

// Group is a candidate consolidation group of at least two record names.
type Group struct {
	Members []string
	// MinConfidence is the weakest accepted edge inside the group.
	MinConfidence float64
	// MaxConfidence is the strongest accepted edge inside the group.
	MaxConfidence float64
	Reasons       []string
}

// BuildGroups merges accepted edges transitively into disjoint groups.
// Edges are processed in deterministic order (confidence descending, then
// name pair), so each record lands in its highest-confidence group
// regardless of input order, and a merge that would join a vetoed pair is
// skipped. Every name appears in at most one group.
func BuildGroups(edges []Edge, vetoes []VetoPair) []Group {
	sorted := make([]Edge, len(edges))
	copy(sorted, edges)
	for i := range sorted {
		if sorted[i].A > sorted[i].B {
			sorted[i].A, sorted[i].B = sorted[i].B, sorted[i].A
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		if sorted[i].A != sorted[j].A {
			return sorted[i].A < sorted[j].A
		}
		return sorted[i].B < sorted[j].B
	})

	vetoSet := make(map[[2]string]bool, len(vetoes))
	for _, v := range vetoes {
		a, b := v.A, v.B
		if a > b {
			a, b = b, a
		}
		vetoSet[[2]string{a, b}] = true
	}

	components := map[string][]string{} // root -> members
	parent := map[string]string{}

	var find func(string) string
	find = func(x string) string {
		p, ok := parent[x]
		if !ok {
			parent[x] = x
			components[x] = []string{x}
			return x
		}
		if p == x {
			return x
		}
		root := find(p)
		parent[x] = root
		return root
	}

	stats := map[string]*Group{}

	for _, e := range sorted {
		ra, rb := find(e.A), find(e.B)
		if ra == rb {
			continue
		}
		if blocked(components[ra], components[rb], vetoSet) {
			continue
		}

		// Union; keep deterministic root (lexicographically smaller).
		if ra > rb {
			ra, rb = rb, ra
		}
		parent[rb] = ra
		components[ra] = append(components[ra], components[rb]...)
		delete(components, rb)

		g := stats[ra]
		if g == nil {
			g = &Group{MinConfidence: e.Confidence, MaxConfidence: e.Confidence}
			stats[ra] = g
		}
		if other := stats[rb]; other != nil {
			if other.MinConfidence < g.MinConfidence {
				g.MinConfidence = other.MinConfidence
			}
			if other.MaxConfidence > g.MaxConfidence {
				g.MaxConfidence = other.MaxConfidence
			}
			g.Reasons = append(g.Reasons, other.Reasons...)
			delete(stats, rb)
		}
		if e.Confidence < g.MinConfidence {
			g.MinConfidence = e.Confidence
		}
		if e.Confidence > g.MaxConfidence {
			g.MaxConfidence = e.Confidence
		}
		g.Reasons = appendReason(g.Reasons, e.Reason)
	}

	var groups []Group
	for root, members := range components {
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)
		g := stats[find(root)]
		groups = append(groups, Group{
			Members:       members,
			MinConfidence: g.MinConfidence,
			MaxConfidence: g.MaxConfidence,
			Reasons:       g.Reasons,
		})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Members[0] < groups[j].Members[0]
	})
	return groups
}

// blocked reports whether joining two components would place a vetoed pair
// in the same group.
func blocked(a, b []string, vetoSet map[[2]string]bool) bool {
	if len(vetoSet) == 0 {
		return false
	}
	for _, x := range a {
		for _, y := range b {
			lo, hi := x, y
			if lo > hi {
				lo, hi = hi, lo
			}
			if vetoSet[[2]string{lo, hi}] {
				return true
			}
		}
	}
	return false
}

func appendReason(reasons []string, r string) []string {
	for _, existing := range reasons {
		if existing == r {
			return reasons
		}
	}
	return append(reasons, r)
}
