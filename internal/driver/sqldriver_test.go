package driver

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlgraph/internal/dbexec"
	"sqlgraph/internal/schemafilter"
	"sqlgraph/internal/sqlrender"
	"sqlgraph/internal/testutil"
)

var metadataColumns = []string{
	"schema", "table", "column", "type", "position", "nullable",
	"pk", "identity", "fk", "fk_table", "fk_column",
}

func newMockDriver(t *testing.T, dialect sqlrender.Dialect, opts Options) (*SQLDriver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	opts.Logger = testutil.DiscardLogger()
	drv, err := NewSQLDriver(dbexec.NewStandardExecutor(db), dialect, opts)
	require.NoError(t, err)
	return drv, mock
}

func TestGetSchema_ScansColumnMetadata(t *testing.T) {
	drv, mock := newMockDriver(t, sqlrender.Postgres, Options{})

	mock.ExpectQuery("information_schema.columns").
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows(metadataColumns).
			AddRow("public", "customers", "id", "integer", 1, false, true, true, false, "", "").
			AddRow("public", "orders", "id", "integer", 1, false, true, true, false, "", "").
			AddRow("public", "orders", "customer_id", "integer", 2, true, false, false, true, "customers", "id").
			AddRow("public", "orders", "customer_id", "integer", 2, true, false, false, true, "customers", "id"))

	schema, err := drv.GetSchema(context.Background())
	require.NoError(t, err)
	require.Len(t, schema.Columns, 3)

	fk := schema.Columns[2]
	assert.Equal(t, "orders", fk.TableName)
	assert.Equal(t, "customer_id", fk.ColumnNameDatabase)
	assert.Equal(t, 2, fk.Position)
	assert.True(t, fk.IsNullable)
	assert.True(t, fk.IsForeignKey)
	assert.Equal(t, "customers", fk.ForeignKeyTableName)
	assert.Equal(t, "id", fk.ForeignKeyColumnName)
	assert.Empty(t, schema.Procedures)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSchema_AppliesFilter(t *testing.T) {
	drv, mock := newMockDriver(t, sqlrender.Postgres, Options{
		Filter: schemafilter.Config{DenyTables: []string{"customers"}},
	})

	mock.ExpectQuery("information_schema.columns").
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows(metadataColumns).
			AddRow("public", "customers", "id", "integer", 1, false, true, true, false, "", "").
			AddRow("public", "orders", "id", "integer", 1, false, true, true, false, "", "").
			AddRow("public", "orders", "customer_id", "integer", 2, true, false, false, true, "customers", "id"))

	schema, err := drv.GetSchema(context.Background())
	require.NoError(t, err)
	require.Len(t, schema.Columns, 2)
	assert.Equal(t, "orders", schema.Columns[0].TableName)
	assert.False(t, schema.Columns[1].IsForeignKey)
}

func TestGetSchema_MySQLIntegerFlags(t *testing.T) {
	drv, mock := newMockDriver(t, sqlrender.MySQL, Options{Schema: "shop"})

	mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows(metadataColumns).
			AddRow("shop", "customers", "id", "int(11)", 1, 0, 1, 1, 0, "", ""))

	schema, err := drv.GetSchema(context.Background())
	require.NoError(t, err)
	require.Len(t, schema.Columns, 1)
	assert.True(t, schema.Columns[0].IsPrimaryKey)
	assert.True(t, schema.Columns[0].IsIdentity)
	assert.False(t, schema.Columns[0].IsNullable)
}

func TestGetSchema_Procedures(t *testing.T) {
	drv, mock := newMockDriver(t, sqlrender.SQLServer, Options{Procedures: true})

	mock.ExpectQuery("sys.columns").
		WithArgs("dbo").
		WillReturnRows(sqlmock.NewRows(metadataColumns))
	mock.ExpectQuery("sys.procedures").
		WithArgs("dbo").
		WillReturnRows(sqlmock.NewRows([]string{"schema", "name", "param", "type", "position"}).
			AddRow("dbo", "archive_orders", "@before", "datetime", 1).
			AddRow("dbo", "archive_orders", "@limit", "int", 2).
			AddRow("dbo", "refresh_stats", "", "", 0))

	schema, err := drv.GetSchema(context.Background())
	require.NoError(t, err)
	require.Len(t, schema.Procedures, 2)
	assert.Equal(t, "archive_orders", schema.Procedures[0].Name)
	assert.Equal(t, []ProcedureParam{
		{Name: "before", Type: "datetime", Position: 1},
		{Name: "limit", Type: "int", Position: 2},
	}, schema.Procedures[0].Params)
	assert.Empty(t, schema.Procedures[1].Params)
}

func TestGetSchema_QueryFailure(t *testing.T) {
	drv, mock := newMockDriver(t, sqlrender.SQLite, Options{})

	mock.ExpectQuery("sqlite_master").WithArgs("main").WillReturnError(errors.New("disk I/O error"))

	_, err := drv.GetSchema(context.Background())
	require.Error(t, err)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "schema discovery", execErr.Op)
	assert.Contains(t, err.Error(), "disk I/O error")
}

func TestExecuteQuery_KeysRowsByAlias(t *testing.T) {
	drv, mock := newMockDriver(t, sqlrender.MySQL, Options{})

	stmt := sqlrender.Statement{
		SQL:     "SELECT `t0`.`id` AS `t0_0`, `t0`.`total` AS `t0_1` FROM `orders` AS `t0` WHERE `t0`.`total` > ?",
		Args:    []any{10},
		Columns: []string{"t0_0", "t0_1"},
	}
	mock.ExpectQuery(regexp.QuoteMeta(stmt.SQL)).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"t0_0", "t0_1"}).
			AddRow(int64(1), []byte("12.50")).
			AddRow(int64(2), nil))

	rows, err := drv.ExecuteQuery(context.Background(), stmt)
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{"t0_0": int64(1), "t0_1": "12.50"},
		{"t0_0": int64(2), "t0_1": nil},
	}, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteQuery_WrapsFailure(t *testing.T) {
	drv, mock := newMockDriver(t, sqlrender.Postgres, Options{})

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("relation does not exist"))

	_, err := drv.ExecuteQuery(context.Background(), sqlrender.Statement{SQL: "SELECT 1"})
	require.Error(t, err)
	assert.True(t, IsExecutionError(err))
	assert.Contains(t, err.Error(), "statement: SELECT 1")
}

func TestExecuteStoredProcedure(t *testing.T) {
	proc := Procedure{
		Schema: "dbo",
		Name:   "archive_orders",
		Params: []ProcedureParam{{Name: "before", Position: 1}, {Name: "limit", Position: 2}},
	}

	t.Run("sqlserver uses named parameters", func(t *testing.T) {
		drv, mock := newMockDriver(t, sqlrender.SQLServer, Options{})
		mock.ExpectQuery(regexp.QuoteMeta("EXEC [dbo].[archive_orders] @before = @p1, @limit = @p2")).
			WithArgs("2024-01-01", 50).
			WillReturnRows(sqlmock.NewRows([]string{"archived"}).AddRow(int64(7)))

		rows, err := drv.ExecuteStoredProcedure(context.Background(), proc, []ProcedureArg{
			{Name: "limit", Value: 50},
			{Name: "before", Value: "2024-01-01"},
		})
		require.NoError(t, err)
		assert.Equal(t, []Row{{"archived": int64(7)}}, rows)
	})

	t.Run("postgres uses CALL with positional arguments", func(t *testing.T) {
		drv, mock := newMockDriver(t, sqlrender.Postgres, Options{})
		mock.ExpectQuery(regexp.QuoteMeta(`CALL "dbo"."archive_orders"($1, $2)`)).
			WithArgs("2024-01-01", nil).
			WillReturnRows(sqlmock.NewRows([]string{"archived"}))

		rows, err := drv.ExecuteStoredProcedure(context.Background(), proc, []ProcedureArg{
			{Name: "before", Value: "2024-01-01"},
		})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("unknown argument", func(t *testing.T) {
		drv, _ := newMockDriver(t, sqlrender.MySQL, Options{})
		_, err := drv.ExecuteStoredProcedure(context.Background(), proc, []ProcedureArg{{Name: "after", Value: 1}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `no parameter "after"`)
	})

	t.Run("sqlite has no procedures", func(t *testing.T) {
		drv, _ := newMockDriver(t, sqlrender.SQLite, Options{})
		_, err := drv.ExecuteStoredProcedure(context.Background(), proc, nil)
		require.Error(t, err)
		assert.True(t, IsExecutionError(err))
	})
}

func TestContextDriver(t *testing.T) {
	drv, _ := newMockDriver(t, sqlrender.MySQL, Options{})

	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	got, ok := FromContext(WithDriver(context.Background(), drv))
	require.True(t, ok)
	assert.Same(t, drv, got)
}
