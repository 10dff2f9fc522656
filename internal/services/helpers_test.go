package services_test

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"lapak/internal/models"
	"lapak/internal/repositories"
	"lapak/internal/services"
	"lapak/pkg/gateway"
)

// testEnv bundles a fresh in-memory database with real repositories, the
// way main wires them.
type testEnv struct {
	db        *gorm.DB
	orders    repositories.OrderRepository
	products  repositories.ProductRepository
	ledger    repositories.InventoryLedger
	addresses repositories.AddressRepository
	events    repositories.WebhookEventRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Address{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.WebhookEvent{},
	))
	return &testEnv{
		db:        db,
		orders:    repositories.NewGORMOrderRepository(db),
		products:  repositories.NewGORMProductRepository(db),
		ledger:    repositories.NewGORMInventoryLedger(db),
		addresses: repositories.NewGORMAddressRepository(db),
		events:    repositories.NewGORMWebhookEventRepository(db),
	}
}

func (e *testEnv) orderService() *services.OrderService {
	return services.NewOrderService(e.db, e.orders, e.products, e.ledger, e.addresses, nil, nil)
}

func (e *testEnv) paymentService(gw gateway.PaymentGateway) *services.PaymentService {
	return services.NewPaymentService(e.db, e.orders, e.ledger, e.events, gw, nil)
}

func (e *testEnv) seedProduct(t *testing.T, price int64, stock *int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:          uuid.New().String(),
		Name:        "Ergonomic Mouse",
		Price:       price,
		Inventory:   stock,
		Version:     1,
		Purchasable: true,
	}
	require.NoError(t, e.db.Create(product).Error)
	return product
}

func (e *testEnv) seedAddress(t *testing.T, userID string) *models.Address {
	t.Helper()
	address := &models.Address{
		ID:         uuid.New().String(),
		UserID:     userID,
		Line1:      "Jl. Kebon Jeruk 12",
		City:       "Jakarta",
		PostalCode: "11530",
	}
	require.NoError(t, e.db.Create(address).Error)
	return address
}

func (e *testEnv) reloadProduct(t *testing.T, id string) *models.Product {
	t.Helper()
	var product models.Product
	require.NoError(t, e.db.First(&product, "id = ?", id).Error)
	return &product
}

func (e *testEnv) reloadOrder(t *testing.T, id string) *models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, e.db.Preload("Items").First(&order, "id = ?", id).Error)
	return &order
}

func intPtr(v int) *int { return &v }

// MockGateway is a testify mock of gateway.PaymentGateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateIntent(orderID string, amount int64, currency string) (*gateway.Intent, error) {
	args := m.Called(orderID, amount, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Intent), args.Error(1)
}

func (m *MockGateway) VerifyCallback(payload []byte, signatureHeader string) (*gateway.PaymentEvent, error) {
	args := m.Called(payload, signatureHeader)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PaymentEvent), args.Error(1)
}

// MockLedger is a testify mock of repositories.InventoryLedger, used where a
// test needs to script version conflicts.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) WithTx(tx *gorm.DB) repositories.InventoryLedger {
	return m
}

func (m *MockLedger) Reserve(productID string, quantity, expectedVersion int) error {
	args := m.Called(productID, quantity, expectedVersion)
	return args.Error(0)
}

func (m *MockLedger) Release(productID string, quantity int) error {
	args := m.Called(productID, quantity)
	return args.Error(0)
}
