package federation

import "sort"

// Affinity maps a request type to the backend id preferred for it.
type Affinity map[string]string

// DefaultAffinity routes math and code to deepseek, legal work to anthropic
// and documents to openai.
func DefaultAffinity() Affinity {
	return Affinity{
		"math":     "deepseek",
		"code":     "deepseek",
		"legal":    "anthropic",
		"document": "openai",
	}
}

// Select orders the healthy members for requestType. Index 0 is the primary
// candidate, the rest form the fallback pool.
//
// The affinity backend for the type leads when present and healthy. Without
// an affinity entry, the highest-priority healthy backend tagged with the type
// leads instead. Everything else follows by descending priority, ties broken by
// ascending id.
func Select[A Prober](requestType string, members []*Member[A], affinity Affinity) ([]*Member[A], error) {
	healthy := make([]*Member[A], 0, len(members))
	for _, m := range members {
		if m.Healthy() {
			healthy = append(healthy, m)
		}
	}
	if len(healthy) == 0 {
		return nil, ErrNoHealthyBackend
	}

	SortByPriority(healthy, true)

	lead := -1
	if id, ok := affinity[requestType]; ok {
		for i, m := range healthy {
			if m.ID() == id {
				lead = i
				break
			}
		}
	} else if requestType != "" {
		for i, m := range healthy {
			if m.HasCapability(requestType) {
				lead = i
				break
			}
		}
	}

	if lead <= 0 {
		return healthy, nil
	}

	ordered := make([]*Member[A], 0, len(healthy))
	ordered = append(ordered, healthy[lead])
	ordered = append(ordered, healthy[:lead]...)
	ordered = append(ordered, healthy[lead+1:]...)
	return ordered, nil
}

// SortByPriority sorts members in place by priority, descending or
// ascending, with ties always broken by ascending id.
func SortByPriority[A Prober](members []*Member[A], descending bool) {
	sort.SliceStable(members, func(i, j int) bool {
		pi, pj := members[i].Priority(), members[j].Priority()
		if pi != pj {
			if descending {
				return pi > pj
			}
			return pi < pj
		}
		return members[i].ID() < members[j].ID()
	})
}
