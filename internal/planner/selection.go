package planner

// Selection is one requested field with its arguments and sub-selections.
// It is independent of any GraphQL library so plans can be built from tests
// or other front ends.
type Selection struct {
	Name   string
	Alias  string
	Args   map[string]any
	Fields []*Selection
}

// ResponseKey is the key the field's value is returned under.
func (s *Selection) ResponseKey() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Name
}
