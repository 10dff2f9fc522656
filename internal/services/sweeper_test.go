package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lapak/internal/models"
	"lapak/internal/services"
)

func newSweeper(env *testEnv, ttl time.Duration) *services.ReservationSweeper {
	return services.NewReservationSweeper(env.db, env.orders, env.ledger, nil, ttl, time.Minute)
}

func backdateOrder(t *testing.T, env *testEnv, orderID string, age time.Duration) {
	t.Helper()
	require.NoError(t, env.db.Model(&models.Order{}).Where("id = ?", orderID).
		Update("created_at", time.Now().Add(-age)).Error)
}

// Abandoned checkouts: orders PENDING past the TTL are cancelled and their
// stock returned.
func TestReservationSweeper_ReleasesStaleOrders(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, 1000, intPtr(5))

	stale := checkoutOrder(t, env, product, 3)
	backdateOrder(t, env, stale.ID, time.Hour)

	released, err := newSweeper(env, 30*time.Minute).SweepOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	got := env.reloadOrder(t, stale.ID)
	assert.Equal(t, models.StatusCancelled, got.Status)

	gotProduct := env.reloadProduct(t, product.ID)
	assert.Equal(t, 5, *gotProduct.Inventory)
}

func TestReservationSweeper_LeavesFreshOrdersAlone(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, 1000, intPtr(5))

	fresh := checkoutOrder(t, env, product, 2)

	released, err := newSweeper(env, 30*time.Minute).SweepOnce()
	require.NoError(t, err)
	assert.Zero(t, released)

	got := env.reloadOrder(t, fresh.ID)
	assert.Equal(t, models.StatusPending, got.Status)

	gotProduct := env.reloadProduct(t, product.ID)
	assert.Equal(t, 3, *gotProduct.Inventory, "fresh reservation stays held")
}

func TestReservationSweeper_SkipsSettledOrders(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, 1000, intPtr(5))

	order := checkoutOrder(t, env, product, 2)
	backdateOrder(t, env, order.ID, time.Hour)
	require.NoError(t, env.db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("status", models.StatusProcessing).Error)

	released, err := newSweeper(env, 30*time.Minute).SweepOnce()
	require.NoError(t, err)
	assert.Zero(t, released)

	gotProduct := env.reloadProduct(t, product.ID)
	assert.Equal(t, 3, *gotProduct.Inventory, "paid order keeps its stock")
}
