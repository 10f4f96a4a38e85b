package schemarefresh

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlgraph/internal/logging"
	"sqlgraph/internal/testutil"
)

func TestRegistry_NamesAndGet(t *testing.T) {
	shop := newTestManager(t, "shop", &fakeDriver{columns: testutil.ShopColumns()})
	hr := newTestManager(t, "hr", &fakeDriver{columns: testutil.EmployeeColumns()})

	reg, err := NewRegistry(logging.Discard(), shop, hr)
	require.NoError(t, err)
	assert.Equal(t, []string{"hr", "shop"}, reg.Names())

	got, err := reg.Get("shop")
	require.NoError(t, err)
	assert.Same(t, shop, got)

	_, err = reg.Get("billing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConnection))
}

func TestRegistry_RejectsDuplicateNames(t *testing.T) {
	a := newTestManager(t, "shop", &fakeDriver{columns: testutil.ShopColumns()})
	b := newTestManager(t, "shop", &fakeDriver{columns: testutil.ShopColumns()})

	_, err := NewRegistry(logging.Discard(), a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate connection name")
}

func TestRegistry_InitToleratesPartialFailure(t *testing.T) {
	shop := newTestManager(t, "shop", &fakeDriver{columns: testutil.ShopColumns()})
	down := newTestManager(t, "down", &fakeDriver{schemaErr: errors.New("unreachable")})

	reg, err := NewRegistry(logging.Discard(), shop, down)
	require.NoError(t, err)
	require.NoError(t, reg.Init(context.Background()))

	assert.NotNil(t, shop.CurrentSnapshot())
	assert.Nil(t, down.CurrentSnapshot())
}

func TestRegistry_InitFailsWhenEveryConnectionFails(t *testing.T) {
	down := newTestManager(t, "down", &fakeDriver{schemaErr: errors.New("unreachable")})

	reg, err := NewRegistry(logging.Discard(), down)
	require.NoError(t, err)
	err = reg.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestRegistry_RefreshAllReportsOutcomes(t *testing.T) {
	hrDriver := &fakeDriver{columns: testutil.ShopColumns()}
	shop := newTestManager(t, "shop", &fakeDriver{columns: testutil.ShopColumns()})
	hr := newTestManager(t, "hr", hrDriver)

	reg, err := NewRegistry(logging.Discard(), shop, hr)
	require.NoError(t, err)
	require.NoError(t, reg.Init(context.Background()))

	hrDriver.set(testutil.EmployeeColumns(), nil)
	outcomes, err := reg.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"shop": OutcomeUnchanged, "hr": OutcomeSwapped}, outcomes)

	hrDriver.set(nil, errors.New("timeout"))
	outcomes, err = reg.RefreshAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcomes["hr"])
	assert.Equal(t, OutcomeUnchanged, outcomes["shop"])
}
