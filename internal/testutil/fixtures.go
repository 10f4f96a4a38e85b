// Package testutil provides catalog fixtures shared by package tests.
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"sqlgraph/internal/catalog"
)

// Col is a compact column literal for fixtures.
func Col(table, name, dbType string, pos int) catalog.ColumnMetadata {
	return catalog.ColumnMetadata{
		SchemaName:         "dbo",
		TableName:          table,
		ColumnNameDatabase: name,
		ColumnNameEntity:   name,
		TypeDatabase:       dbType,
		Position:           pos,
	}
}

// PK marks a fixture column as primary key.
func PK(c catalog.ColumnMetadata) catalog.ColumnMetadata {
	c.IsPrimaryKey = true
	c.IsIdentity = true
	return c
}

// FK marks a fixture column as a foreign key.
func FK(c catalog.ColumnMetadata, table, column string) catalog.ColumnMetadata {
	c.IsForeignKey = true
	c.ForeignKeyTableName = table
	c.ForeignKeyColumnName = column
	return c
}

// ShopColumns is customers(id, name) and orders(id, customer_id -> customers.id, total).
func ShopColumns() []catalog.ColumnMetadata {
	return []catalog.ColumnMetadata{
		PK(Col("customers", "id", "int", 1)),
		Col("customers", "name", "varchar(100)", 2),
		PK(Col("orders", "id", "int", 1)),
		FK(Col("orders", "customer_id", "int", 2), "customers", "id"),
		Col("orders", "total", "decimal(10,2)", 3),
	}
}

// EmployeeColumns is employee(id, name, manager_id -> employee.id).
func EmployeeColumns() []catalog.ColumnMetadata {
	return []catalog.ColumnMetadata{
		PK(Col("employee", "id", "int", 1)),
		Col("employee", "name", "varchar(100)", 2),
		FK(Col("employee", "manager_id", "int", 3), "employee", "id"),
	}
}

// MessagingColumns is users(id, email) and messages with two FKs into users.
func MessagingColumns() []catalog.ColumnMetadata {
	return []catalog.ColumnMetadata{
		PK(Col("users", "id", "int", 1)),
		Col("users", "email", "varchar(200)", 2),
		PK(Col("messages", "id", "int", 1)),
		FK(Col("messages", "sender_id", "int", 2), "users", "id"),
		FK(Col("messages", "recipient_id", "int", 3), "users", "id"),
		Col("messages", "body", "text", 4),
	}
}

// Catalog builds a catalog from fixture rows, failing the test on error.
func Catalog(t testing.TB, rows []catalog.ColumnMetadata) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(catalog.GroupColumns(rows), DiscardLogger())
	require.NoError(t, err)
	return cat
}

// DiscardLogger returns a logger that drops all records.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
