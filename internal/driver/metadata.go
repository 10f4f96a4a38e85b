package driver

import (
	"fmt"
	"strings"

	"sqlgraph/internal/sqlrender"
)

// Every columns query returns, in order: schema, table, column, native type,
// ordinal position, nullable, primary key, identity, foreign key flag,
// referenced table, referenced column. Each takes the schema name as its only
// argument.
type metadataQueries struct {
	columns       string
	procedures    string
	defaultSchema string
}

var metadataByDialect = map[string]metadataQueries{
	sqlrender.MySQL.Name: {
		columns: `SELECT c.TABLE_SCHEMA, c.TABLE_NAME, c.COLUMN_NAME, c.COLUMN_TYPE, c.ORDINAL_POSITION,
  CASE WHEN c.IS_NULLABLE = 'YES' THEN 1 ELSE 0 END,
  CASE WHEN c.COLUMN_KEY = 'PRI' THEN 1 ELSE 0 END,
  CASE WHEN c.EXTRA LIKE '%auto_increment%' THEN 1 ELSE 0 END,
  CASE WHEN k.REFERENCED_TABLE_NAME IS NULL THEN 0 ELSE 1 END,
  COALESCE(k.REFERENCED_TABLE_NAME, ''),
  COALESCE(k.REFERENCED_COLUMN_NAME, '')
FROM INFORMATION_SCHEMA.COLUMNS c
JOIN INFORMATION_SCHEMA.TABLES t
  ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME AND t.TABLE_TYPE = 'BASE TABLE'
LEFT JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE k
  ON k.TABLE_SCHEMA = c.TABLE_SCHEMA AND k.TABLE_NAME = c.TABLE_NAME
  AND k.COLUMN_NAME = c.COLUMN_NAME AND k.REFERENCED_TABLE_NAME IS NOT NULL
WHERE c.TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`,
		procedures: `SELECT r.ROUTINE_SCHEMA, r.ROUTINE_NAME,
  COALESCE(p.PARAMETER_NAME, ''), COALESCE(p.DATA_TYPE, ''), COALESCE(p.ORDINAL_POSITION, 0)
FROM INFORMATION_SCHEMA.ROUTINES r
LEFT JOIN INFORMATION_SCHEMA.PARAMETERS p
  ON p.SPECIFIC_SCHEMA = r.ROUTINE_SCHEMA AND p.SPECIFIC_NAME = r.SPECIFIC_NAME AND p.ORDINAL_POSITION > 0
WHERE r.ROUTINE_TYPE = 'PROCEDURE' AND r.ROUTINE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
ORDER BY r.ROUTINE_NAME, p.ORDINAL_POSITION`,
	},
	sqlrender.Postgres.Name: {
		defaultSchema: "public",
		columns: `SELECT c.table_schema, c.table_name, c.column_name, c.data_type, c.ordinal_position,
  c.is_nullable = 'YES',
  EXISTS (
    SELECT 1 FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage k
      ON k.constraint_name = tc.constraint_name AND k.constraint_schema = tc.constraint_schema
    WHERE tc.constraint_type = 'PRIMARY KEY' AND k.table_schema = c.table_schema
      AND k.table_name = c.table_name AND k.column_name = c.column_name
  ),
  (c.is_identity = 'YES' OR COALESCE(c.column_default, '') LIKE 'nextval(%'),
  fk.foreign_table IS NOT NULL,
  COALESCE(fk.foreign_table, ''),
  COALESCE(fk.foreign_column, '')
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name AND t.table_type = 'BASE TABLE'
LEFT JOIN LATERAL (
  SELECT ccu.table_name AS foreign_table, ccu.column_name AS foreign_column
  FROM information_schema.table_constraints tc
  JOIN information_schema.key_column_usage kcu
    ON kcu.constraint_name = tc.constraint_name AND kcu.constraint_schema = tc.constraint_schema
  JOIN information_schema.constraint_column_usage ccu
    ON ccu.constraint_name = tc.constraint_name AND ccu.constraint_schema = tc.constraint_schema
  WHERE tc.constraint_type = 'FOREIGN KEY' AND kcu.table_schema = c.table_schema
    AND kcu.table_name = c.table_name AND kcu.column_name = c.column_name
  LIMIT 1
) fk ON true
WHERE c.table_schema = $1
ORDER BY c.table_name, c.ordinal_position`,
		procedures: `SELECT r.routine_schema, r.routine_name,
  COALESCE(p.parameter_name, ''), COALESCE(p.data_type, ''), COALESCE(p.ordinal_position, 0)
FROM information_schema.routines r
LEFT JOIN information_schema.parameters p
  ON p.specific_schema = r.specific_schema AND p.specific_name = r.specific_name
WHERE r.routine_type = 'PROCEDURE' AND r.routine_schema = $1
ORDER BY r.routine_name, p.ordinal_position`,
	},
	sqlrender.SQLServer.Name: {
		defaultSchema: "dbo",
		columns: `SELECT s.name, t.name, c.name, ty.name, c.column_id,
  CAST(c.is_nullable AS int),
  CASE WHEN EXISTS (
    SELECT 1 FROM sys.indexes i
    JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
    WHERE i.is_primary_key = 1 AND ic.object_id = c.object_id AND ic.column_id = c.column_id
  ) THEN 1 ELSE 0 END,
  CAST(c.is_identity AS int),
  CASE WHEN fk.referenced_object_id IS NULL THEN 0 ELSE 1 END,
  COALESCE(OBJECT_NAME(fk.referenced_object_id), ''),
  COALESCE(COL_NAME(fk.referenced_object_id, fk.referenced_column_id), '')
FROM sys.columns c
JOIN sys.tables t ON t.object_id = c.object_id
JOIN sys.schemas s ON s.schema_id = t.schema_id
JOIN sys.types ty ON ty.user_type_id = c.user_type_id
OUTER APPLY (
  SELECT TOP 1 fkc.referenced_object_id, fkc.referenced_column_id
  FROM sys.foreign_key_columns fkc
  WHERE fkc.parent_object_id = c.object_id AND fkc.parent_column_id = c.column_id
) fk
WHERE s.name = @p1
ORDER BY t.name, c.column_id`,
		procedures: `SELECT s.name, pr.name,
  COALESCE(pa.name, ''), COALESCE(TYPE_NAME(pa.user_type_id), ''), COALESCE(pa.parameter_id, 0)
FROM sys.procedures pr
JOIN sys.schemas s ON s.schema_id = pr.schema_id
LEFT JOIN sys.parameters pa ON pa.object_id = pr.object_id
WHERE s.name = @p1
ORDER BY pr.name, pa.parameter_id`,
	},
	sqlrender.SQLite.Name: {
		defaultSchema: "main",
		columns: `SELECT 'main', m.name, p.name, p.type, p.cid + 1,
  CASE WHEN p."notnull" = 0 AND p.pk = 0 THEN 1 ELSE 0 END,
  CASE WHEN p.pk > 0 THEN 1 ELSE 0 END,
  CASE WHEN p.pk = 1 AND lower(p.type) = 'integer' THEN 1 ELSE 0 END,
  CASE WHEN f."table" IS NULL THEN 0 ELSE 1 END,
  COALESCE(f."table", ''),
  COALESCE(f."to", (SELECT t.name FROM pragma_table_info(f."table") t WHERE t.pk = 1), '')
FROM sqlite_master m
JOIN pragma_table_info(m.name) p
LEFT JOIN pragma_foreign_key_list(m.name) f ON f."from" = p.name
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND ? IN ('', 'main')
ORDER BY m.name, p.cid`,
	},
}

func metadataFor(dialect sqlrender.Dialect) (metadataQueries, error) {
	q, ok := metadataByDialect[dialect.Name]
	if !ok {
		return metadataQueries{}, fmt.Errorf("no metadata queries for dialect %q", dialect.Name)
	}
	return q, nil
}

// callStatement builds the statement invoking proc. Arguments are bound by
// parameter name; parameters without an argument receive NULL.
func callStatement(d sqlrender.Dialect, proc Procedure, args []ProcedureArg) (string, []any, error) {
	byName := make(map[string]any, len(args))
	for _, arg := range args {
		byName[strings.ToLower(arg.Name)] = arg.Value
	}
	known := make(map[string]bool, len(proc.Params))
	for _, p := range proc.Params {
		known[strings.ToLower(p.Name)] = true
	}
	for _, arg := range args {
		if !known[strings.ToLower(arg.Name)] {
			return "", nil, fmt.Errorf("procedure %s has no parameter %q", proc.Name, arg.Name)
		}
	}

	target := d.Quote(proc.Name)
	if proc.Schema != "" {
		target = d.Quote(proc.Schema) + "." + target
	}

	values := make([]any, 0, len(proc.Params))
	var query string
	switch d.Name {
	case sqlrender.SQLite.Name:
		return "", nil, fmt.Errorf("%s does not support stored procedures", d.Name)
	case sqlrender.SQLServer.Name:
		assignments := make([]string, 0, len(proc.Params))
		for _, p := range proc.Params {
			assignments = append(assignments, "@"+p.Name+" = ?")
			values = append(values, byName[strings.ToLower(p.Name)])
		}
		query = "EXEC " + target
		if len(assignments) > 0 {
			query += " " + strings.Join(assignments, ", ")
		}
	default:
		marks := make([]string, 0, len(proc.Params))
		for _, p := range proc.Params {
			marks = append(marks, "?")
			values = append(values, byName[strings.ToLower(p.Name)])
		}
		query = "CALL " + target + "(" + strings.Join(marks, ", ") + ")"
	}

	query, err := d.Placeholder.ReplacePlaceholders(query)
	if err != nil {
		return "", nil, err
	}
	return query, values, nil
}
