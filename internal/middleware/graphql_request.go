package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// ConnectionFunc names the connection a request targets.
type ConnectionFunc func(*http.Request) string

type graphQLRequest struct {
	Query         string `json:"query"`
	OperationName string `json:"operationName"`
}

// operationSummary describes the shape of the operation a request runs.
type operationSummary struct {
	Type      string
	Name      string
	Fields    int
	Depth     int
	Variables int
}

// readGraphQLRequest extracts the query without consuming the body.
func readGraphQLRequest(r *http.Request) graphQLRequest {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		return graphQLRequest{Query: q.Get("query"), OperationName: q.Get("operationName")}
	case http.MethodPost:
	default:
		return graphQLRequest{}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return graphQLRequest{}
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if strings.Contains(r.Header.Get("Content-Type"), "application/graphql") {
		return graphQLRequest{Query: string(body)}
	}
	var req graphQLRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return graphQLRequest{}
	}
	return req
}

// summarizeOperation parses the document and measures the selected
// operation. ok is false when the document does not parse or names no
// matching operation.
func summarizeOperation(req graphQLRequest) (operationSummary, bool) {
	if strings.TrimSpace(req.Query) == "" {
		return operationSummary{}, false
	}
	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{Body: []byte(req.Query), Name: "graphql"}),
	})
	if err != nil {
		return operationSummary{}, false
	}

	fragments := map[string]*ast.FragmentDefinition{}
	var op *ast.OperationDefinition
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.FragmentDefinition:
			fragments[d.Name.Value] = d
		case *ast.OperationDefinition:
			if req.OperationName == "" && op == nil {
				op = d
			}
			if req.OperationName != "" && d.Name != nil && d.Name.Value == req.OperationName {
				op = d
			}
		}
	}
	if op == nil {
		return operationSummary{}, false
	}

	summary := operationSummary{
		Type:      op.Operation,
		Variables: len(op.VariableDefinitions),
	}
	if op.Name != nil {
		summary.Name = op.Name.Value
	}
	m := measurer{fragments: fragments, expanding: map[string]bool{}}
	summary.Fields, summary.Depth = m.measure(op.SelectionSet, 1)
	return summary, true
}

type measurer struct {
	fragments map[string]*ast.FragmentDefinition
	expanding map[string]bool
}

// measure counts fields and returns the deepest field level reached.
// Fragments inline at the current level; a fragment already being expanded
// is skipped to break cycles.
func (m measurer) measure(set *ast.SelectionSet, level int) (fields, depth int) {
	if set == nil {
		return 0, level - 1
	}
	depth = level
	for _, selection := range set.Selections {
		var n, d int
		switch sel := selection.(type) {
		case *ast.Field:
			n, d = m.measure(sel.SelectionSet, level+1)
			n++
		case *ast.InlineFragment:
			n, d = m.measure(sel.SelectionSet, level)
		case *ast.FragmentSpread:
			frag, ok := m.fragments[sel.Name.Value]
			if !ok || m.expanding[sel.Name.Value] {
				continue
			}
			m.expanding[sel.Name.Value] = true
			n, d = m.measure(frag.SelectionSet, level)
			delete(m.expanding, sel.Name.Value)
		}
		fields += n
		depth = max(depth, d)
	}
	return fields, depth
}
