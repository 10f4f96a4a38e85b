package planner

import (
	"fmt"
	"strings"
)

// CompileError reports a query argument that does not match the catalog.
// It is raised before the driver is consulted and fails only the request.
type CompileError struct {
	Table    string
	Column   string
	Argument string
	Reason   string
}

func (e *CompileError) Error() string {
	parts := []string{"compile"}
	if e.Table != "" {
		parts = append(parts, fmt.Sprintf("table %q", e.Table))
	}
	if e.Argument != "" {
		parts = append(parts, fmt.Sprintf("argument %q", e.Argument))
	}
	if e.Column != "" {
		parts = append(parts, fmt.Sprintf("column %q", e.Column))
	}
	return strings.Join(parts, ": ") + ": " + e.Reason
}
