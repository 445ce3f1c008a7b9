package taxonomy

import "slices"

// Relation returns the types related to origin among known. The result never
// contains origin itself.
type Relation func(origin WordType, known []WordType) []WordType

// SuffixRelation relates every type sharing origin's base.
func SuffixRelation(origin WordType, known []WordType) []WordType {
	base := origin.Base()
	var related []WordType
	for _, t := range known {
		if t != origin && t.Base() == base {
			related = append(related, t)
		}
	}
	return related
}

// GroupRelation relates types that share an explicitly curated group.
// Types outside every group fall back to SuffixRelation.
func GroupRelation(groups [][]WordType) Relation {
	membership := make(map[WordType][]int)
	for i, g := range groups {
		for _, t := range g {
			membership[t] = append(membership[t], i)
		}
	}
	return func(origin WordType, known []WordType) []WordType {
		idx, ok := membership[origin]
		if !ok {
			return SuffixRelation(origin, known)
		}
		var related []WordType
		for _, t := range known {
			if t == origin {
				continue
			}
			for _, i := range idx {
				if slices.Contains(groups[i], t) {
					related = append(related, t)
					break
				}
			}
		}
		return related
	}
}

// Targets narrows a related set to propagation targets.
//
// If related holds both the strict and the loose variant of origin's base the
// strength is ambiguous and propagation is aborted: targets is nil and
// ambiguous is true. Otherwise every suffixed type is dropped.
func Targets(origin WordType, related []WordType) (targets []WordType, ambiguous bool) {
	base := origin.Base()
	strict, loose := base+"+", base+"-"
	if slices.Contains(related, strict) && slices.Contains(related, loose) {
		return nil, true
	}
	for _, t := range related {
		if t == origin || t.Suffixed() {
			continue
		}
		targets = append(targets, t)
	}
	return targets, false
}
