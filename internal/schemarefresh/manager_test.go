package schemarefresh

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlgraph/internal/catalog"
	"sqlgraph/internal/driver"
	"sqlgraph/internal/logging"
	"sqlgraph/internal/sqlrender"
	"sqlgraph/internal/testutil"
)

type fakeDriver struct {
	mu        sync.Mutex
	columns   []catalog.ColumnMetadata
	schemaErr error
	rows      []driver.Row
	reads     int
}

func (d *fakeDriver) Dialect() sqlrender.Dialect { return sqlrender.Postgres }

func (d *fakeDriver) GetSchema(context.Context) (*driver.Schema, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if d.schemaErr != nil {
		return nil, d.schemaErr
	}
	return &driver.Schema{Columns: append([]catalog.ColumnMetadata(nil), d.columns...)}, nil
}

func (d *fakeDriver) ExecuteQuery(context.Context, sqlrender.Statement) ([]driver.Row, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rows, nil
}

func (d *fakeDriver) ExecuteStoredProcedure(context.Context, driver.Procedure, []driver.ProcedureArg) ([]driver.Row, error) {
	return nil, errors.New("not supported")
}

func (d *fakeDriver) set(columns []catalog.ColumnMetadata, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.columns = columns
	d.schemaErr = err
}

func newTestManager(t *testing.T, name string, drv driver.DatabaseDriver) *Manager {
	t.Helper()
	m, err := NewManager(Config{Connection: name, Driver: drv, Logger: logging.Discard()})
	require.NoError(t, err)
	return m
}

func TestNewManager_RequiresDriver(t *testing.T) {
	_, err := NewManager(Config{Connection: "main"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a database driver")
}

func TestManager_InitBuildsSnapshot(t *testing.T) {
	drv := &fakeDriver{columns: testutil.ShopColumns()}
	m := newTestManager(t, "shop", drv)

	assert.Nil(t, m.CurrentSnapshot())
	require.NoError(t, m.Init(context.Background()))

	snapshot := m.CurrentSnapshot()
	require.NotNil(t, snapshot)
	assert.Equal(t, "shop", snapshot.Connection)
	assert.NotEmpty(t, snapshot.Fingerprint)
	assert.NotNil(t, snapshot.Schema)
	assert.NotNil(t, snapshot.Handler)
	assert.Len(t, snapshot.Catalog.Tables(), 2)
}

func TestManager_RefreshUnchangedKeepsSnapshot(t *testing.T) {
	drv := &fakeDriver{columns: testutil.ShopColumns()}
	m := newTestManager(t, "shop", drv)
	require.NoError(t, m.Init(context.Background()))
	before := m.CurrentSnapshot()

	outcome, err := m.RefreshNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Same(t, before, m.CurrentSnapshot())
}

func TestManager_RefreshSwapsOnSchemaChange(t *testing.T) {
	drv := &fakeDriver{columns: testutil.ShopColumns()}
	m := newTestManager(t, "shop", drv)
	require.NoError(t, m.Init(context.Background()))
	before := m.CurrentSnapshot()

	drv.set(testutil.EmployeeColumns(), nil)
	outcome, err := m.RefreshNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSwapped, outcome)

	after := m.CurrentSnapshot()
	require.NotNil(t, after)
	assert.NotSame(t, before, after)
	assert.NotEqual(t, before.Fingerprint, after.Fingerprint)
	// The previous snapshot stays intact for requests already holding it.
	assert.Len(t, before.Catalog.Tables(), 2)
}

func TestManager_RefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	drv := &fakeDriver{columns: testutil.ShopColumns()}
	m := newTestManager(t, "shop", drv)
	require.NoError(t, m.Init(context.Background()))
	before := m.CurrentSnapshot()

	drv.set(nil, errors.New("connection reset"))
	outcome, err := m.RefreshNow(context.Background())
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Same(t, before, m.CurrentSnapshot())
}

func TestManager_HandlerBeforeInit(t *testing.T) {
	drv := &fakeDriver{schemaErr: errors.New("down")}
	m := newTestManager(t, "shop", drv)
	require.Error(t, m.Init(context.Background()))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql/shop", strings.NewReader(`{"query":"{ __typename }"}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "schema not ready")
}

func TestManager_HandlerExecutesQuery(t *testing.T) {
	drv := &fakeDriver{
		columns: testutil.ShopColumns(),
		rows:    []driver.Row{{"t0_0": int64(7)}},
	}
	m := newTestManager(t, "shop", drv)
	require.NoError(t, m.Init(context.Background()))

	req := httptest.NewRequest(http.MethodPost, "/graphql/shop", strings.NewReader(`{"query":"{ orders { id } }"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data   map[string]any `json:"data"`
		Errors []any          `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Errors)
	assert.Equal(t, []any{map[string]any{"id": float64(7)}}, body.Data["orders"])
}

func TestManager_PollingPicksUpChanges(t *testing.T) {
	drv := &fakeDriver{columns: testutil.ShopColumns()}
	m, err := NewManager(Config{
		Connection:  "shop",
		Driver:      drv,
		Logger:      logging.Discard(),
		MinInterval: 5 * time.Millisecond,
		MaxInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, m.Init(context.Background()))
	first := m.CurrentSnapshot().Fingerprint

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	drv.set(testutil.EmployeeColumns(), nil)

	require.Eventually(t, func() bool {
		return m.CurrentSnapshot().Fingerprint != first
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, m.Wait(waitCtx))
}

func TestManager_StartWithoutIntervalDoesNotPoll(t *testing.T) {
	drv := &fakeDriver{columns: testutil.ShopColumns()}
	m := newTestManager(t, "shop", drv)
	require.NoError(t, m.Init(context.Background()))

	m.Start(context.Background())
	require.NoError(t, m.Wait(context.Background()))

	drv.mu.Lock()
	defer drv.mu.Unlock()
	assert.Equal(t, 1, drv.reads)
}

func TestNextInterval(t *testing.T) {
	minInterval := time.Second
	maxInterval := 5 * time.Second

	assert.Equal(t, minInterval, nextInterval(0, minInterval, maxInterval))
	assert.Equal(t, 2*time.Second, nextInterval(time.Second, minInterval, maxInterval))
	assert.Equal(t, 4*time.Second, nextInterval(2*time.Second, minInterval, maxInterval))
	assert.Equal(t, maxInterval, nextInterval(4*time.Second, minInterval, maxInterval))
	assert.Equal(t, maxInterval, nextInterval(maxInterval, minInterval, maxInterval))
}
