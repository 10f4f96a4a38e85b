// Package schemafilter applies allow/deny filters to discovered column
// metadata before a catalog is built from it.
package schemafilter

import (
	"path"
	"slices"
	"strings"

	"sqlgraph/internal/catalog"
)

// Config controls allow/deny filters for tables and columns. Patterns use
// path.Match syntax and match case-insensitively. Column maps are keyed by
// table name, with "*" applying to every table.
type Config struct {
	AllowTables  []string            `mapstructure:"allow_tables"`
	DenyTables   []string            `mapstructure:"deny_tables"`
	AllowColumns map[string][]string `mapstructure:"allow_columns"`
	DenyColumns  map[string][]string `mapstructure:"deny_columns"`
}

// Empty reports whether the config filters nothing.
func (c Config) Empty() bool {
	return len(c.AllowTables) == 0 && len(c.DenyTables) == 0 &&
		len(c.AllowColumns) == 0 && len(c.DenyColumns) == 0
}

// Apply returns the rows that survive the filters. Missing allow lists
// default to allow-all; deny rules always win. Primary key columns are kept
// whenever their table is. Foreign keys that point at a removed table or
// column are cleared so the column stays a plain scalar.
func Apply(rows []catalog.ColumnMetadata, cfg Config) []catalog.ColumnMetadata {
	if cfg.Empty() {
		return rows
	}

	kept := make([]catalog.ColumnMetadata, 0, len(rows))
	remaining := make(map[string]map[string]bool)
	for _, row := range rows {
		if !tableAllowed(row.TableName, cfg.AllowTables, cfg.DenyTables) {
			continue
		}
		if !row.IsPrimaryKey && !columnAllowed(row.TableName, row.ColumnNameDatabase, cfg.AllowColumns, cfg.DenyColumns) {
			continue
		}
		kept = append(kept, row)

		key := tableKey(row.SchemaName, row.TableName)
		if remaining[key] == nil {
			remaining[key] = make(map[string]bool)
		}
		remaining[key][strings.ToLower(row.ColumnNameDatabase)] = true
	}

	for i := range kept {
		row := &kept[i]
		if !row.IsForeignKey {
			continue
		}
		target := remaining[tableKey(row.SchemaName, row.ForeignKeyTableName)]
		if target == nil || !target[strings.ToLower(row.ForeignKeyColumnName)] {
			row.IsForeignKey = false
			row.ForeignKeyTableName = ""
			row.ForeignKeyColumnName = ""
		}
	}
	return kept
}

func tableKey(schema, table string) string {
	return strings.ToLower(schema) + "." + strings.ToLower(table)
}

func tableAllowed(table string, allow, deny []string) bool {
	if matchesAny(table, deny) {
		return false
	}
	if len(allow) == 0 {
		return true
	}
	return matchesAny(table, allow)
}

func columnAllowed(table, column string, allow, deny map[string][]string) bool {
	if matchesAny(column, mergePatterns(deny, table)) {
		return false
	}
	allowPatterns := mergePatterns(allow, table)
	if len(allowPatterns) == 0 {
		return true
	}
	return matchesAny(column, allowPatterns)
}

func mergePatterns(patterns map[string][]string, table string) []string {
	if patterns == nil {
		return nil
	}
	combined := append([]string{}, patterns["*"]...)
	for key, values := range patterns {
		if key != "*" && strings.EqualFold(key, table) {
			combined = append(combined, values...)
		}
	}
	slices.Sort(combined)
	return slices.Compact(combined)
}

func matchesAny(value string, patterns []string) bool {
	value = strings.ToLower(value)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		ok, err := path.Match(strings.ToLower(pattern), value)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}
