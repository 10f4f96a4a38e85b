package schemagen

import (
	"fmt"
	"sort"
)

// MergeError reports two same-named fragments that cannot be unioned.
type MergeError struct {
	Name   string
	Field  string
	Reason string
}

func (e *MergeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema merge: %s: %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("schema merge: %s.%s: %s", e.Name, e.Field, e.Reason)
}

// Merge unions identically named fragments. Authoritative fragments fix the
// field order; placeholder fields not already present are appended. The
// result is sorted by kind and name, with the query type last.
func Merge(fragments []Definition) ([]Definition, error) {
	var order []string
	groups := make(map[string][]Definition)
	for _, frag := range fragments {
		existing, seen := groups[frag.Name]
		if !seen {
			order = append(order, frag.Name)
		} else if existing[0].Kind != frag.Kind {
			return nil, &MergeError{
				Name:   frag.Name,
				Reason: fmt.Sprintf("declared as both %s and %s", existing[0].Kind, frag.Kind),
			}
		}
		groups[frag.Name] = append(existing, frag)
	}

	merged := make([]Definition, 0, len(order))
	for _, name := range order {
		def, err := mergeGroup(groups[name])
		if err != nil {
			return nil, err
		}
		merged = append(merged, def)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		ri, rj := rank(merged[i]), rank(merged[j])
		if ri != rj {
			return ri < rj
		}
		return merged[i].Name < merged[j].Name
	})
	return merged, nil
}

func rank(d Definition) int {
	if d.Name == QueryTypeName {
		return int(KindObject) + 1
	}
	return int(d.Kind)
}

func mergeGroup(frags []Definition) (Definition, error) {
	ordered := make([]Definition, 0, len(frags))
	for _, f := range frags {
		if !f.Placeholder {
			ordered = append(ordered, f)
		}
	}
	for _, f := range frags {
		if f.Placeholder {
			ordered = append(ordered, f)
		}
	}

	out := Definition{Kind: ordered[0].Kind, Name: ordered[0].Name}
	fieldIdx := make(map[string]int)
	valueSeen := make(map[string]bool)
	for _, frag := range ordered {
		for _, f := range frag.Fields {
			if i, ok := fieldIdx[f.Name]; ok {
				if out.Fields[i].signature() != f.signature() {
					return Definition{}, &MergeError{
						Name:   out.Name,
						Field:  f.Name,
						Reason: fmt.Sprintf("conflicting signatures %q and %q", out.Fields[i].signature(), f.signature()),
					}
				}
				continue
			}
			fieldIdx[f.Name] = len(out.Fields)
			out.Fields = append(out.Fields, f)
		}
		for _, v := range frag.Values {
			if !valueSeen[v] {
				valueSeen[v] = true
				out.Values = append(out.Values, v)
			}
		}
	}
	return out, nil
}
