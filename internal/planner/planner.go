// Package planner compiles a requested field selection into a relational
// plan: one root table, the joins its nested fields need, and typed where,
// orderBy and groupBy arguments checked against the catalog.
package planner
