package catalog

import "fmt"

// CatalogError reports malformed or contradictory table metadata. It aborts
// the schema build for the affected connection only.
type CatalogError struct {
	Table  string
	Column string
	Reason string
}

func (e *CatalogError) Error() string {
	switch {
	case e.Table == "":
		return fmt.Sprintf("catalog: %s", e.Reason)
	case e.Column == "":
		return fmt.Sprintf("catalog: table %q: %s", e.Table, e.Reason)
	default:
		return fmt.Sprintf("catalog: table %q column %q: %s", e.Table, e.Column, e.Reason)
	}
}
