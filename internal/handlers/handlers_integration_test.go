package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"lapak/internal/handlers"
	"lapak/internal/middleware"
	"lapak/internal/models"
	"lapak/internal/repositories"
	"lapak/internal/services"
	"lapak/pkg/gateway"
)

const webhookSecret = "whsec_test"

// setupApp assembles the full HTTP surface against in-memory SQLite and a
// fake payment provider served by httptest.
func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
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

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"id":            "pi_test_1",
			"client_secret": "cs_test_1",
		})
	}))
	t.Cleanup(provider.Close)

	gw := gateway.NewHTTPGateway(gateway.Config{
		BaseURL:       provider.URL,
		SecretKey:     "sk_test",
		WebhookSecret: webhookSecret,
	})

	userRepo := repositories.NewGORMUserRepository(db)
	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	addressRepo := repositories.NewGORMAddressRepository(db)
	eventRepo := repositories.NewGORMWebhookEventRepository(db)
	ledger := repositories.NewGORMInventoryLedger(db)

	authService := services.NewAuthService(userRepo, "test_jwt_secret")
	productService := services.NewProductService(productRepo)
	orderService := services.NewOrderService(db, orderRepo, productRepo, ledger, addressRepo, nil, nil)
	paymentService := services.NewPaymentService(db, orderRepo, ledger, eventRepo, gw, nil)

	app := fiber.New()

	paymentHandler := handlers.NewPaymentHandler(paymentService)
	paymentHandler.RegisterWebhookRoute(app)

	apiV1 := app.Group("/api/v1")
	handlers.NewAuthHandler(authService).RegisterRoutes(apiV1)

	protected := apiV1.Group("", middleware.AuthRequired(authService))
	handlers.NewProductHandler(productService).RegisterRoutes(protected)
	handlers.NewOrderHandler(orderService).RegisterRoutes(protected)
	handlers.NewAddressHandler(addressRepo).RegisterRoutes(protected)
	paymentHandler.RegisterRoutes(protected)

	return app, db
}

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// registerAndLogin creates an account through the API and returns a token.
func registerAndLogin(t *testing.T, app *fiber.App, username string) string {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login struct {
		Token string `json:"token"`
	}
	decode(t, resp, &login)
	require.NotEmpty(t, login.Token)
	return login.Token
}

func seedCheckout(t *testing.T, app *fiber.App, token string, stock int) (productID, addressID string) {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/v1/products", token, map[string]interface{}{
		"name":      "Test Laptop",
		"price":     120000,
		"inventory": stock,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var product models.Product
	decode(t, resp, &product)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/addresses", token, map[string]string{
		"line1":       "Jl. Sudirman 1",
		"city":        "Jakarta",
		"postal_code": "10110",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var address models.Address
	decode(t, resp, &address)

	return product.ID, address.ID
}

func TestCheckoutFlow(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "buyer1")
	productID, addressID := seedCheckout(t, app, token, 5)

	// Create an order for 2 units.
	resp := doJSON(t, app, http.MethodPost, "/api/v1/orders/", token, map[string]interface{}{
		"lines":      []map[string]interface{}{{"product_id": productID, "quantity": 2}},
		"address_id": addressID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order models.Order
	decode(t, resp, &order)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, int64(240000), order.Total)

	// Stock is reserved immediately.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/products/"+productID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var product models.Product
	decode(t, resp, &product)
	require.NotNil(t, product.Inventory)
	assert.Equal(t, 3, *product.Inventory)

	// Start payment.
	resp = doJSON(t, app, http.MethodPost, "/api/v1/payments/intents", token, map[string]string{
		"order_id": order.ID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var intent struct {
		IntentID     string `json:"intent_id"`
		ClientSecret string `json:"client_secret"`
	}
	decode(t, resp, &intent)
	assert.Equal(t, "pi_test_1", intent.IntentID)
	assert.NotEmpty(t, intent.ClientSecret)

	// Gateway confirms asynchronously.
	resp = postWebhook(t, app, webhookSecret, "evt_1", intent.IntentID, "succeeded")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/v1/orders/"+order.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &order)
	assert.Equal(t, models.StatusProcessing, order.Status)

	// Redelivery of the same event is acknowledged without effect.
	resp = postWebhook(t, app, webhookSecret, "evt_1", intent.IntentID, "succeeded")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/v1/orders/"+order.ID, token, nil)
	decode(t, resp, &order)
	assert.Equal(t, models.StatusProcessing, order.Status)
}

func TestCheckout_InsufficientStock(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "buyer2")
	productID, addressID := seedCheckout(t, app, token, 1)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/orders/", token, map[string]interface{}{
		"lines":      []map[string]interface{}{{"product_id": productID, "quantity": 2}},
		"address_id": addressID,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestCheckout_ValidationErrors(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "buyer3")
	productID, addressID := seedCheckout(t, app, token, 5)

	// Empty lines.
	resp := doJSON(t, app, http.MethodPost, "/api/v1/orders/", token, map[string]interface{}{
		"lines":      []map[string]interface{}{},
		"address_id": addressID,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Zero quantity.
	resp = doJSON(t, app, http.MethodPost, "/api/v1/orders/", token, map[string]interface{}{
		"lines":      []map[string]interface{}{{"product_id": productID, "quantity": 0}},
		"address_id": addressID,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// No token.
	resp = doJSON(t, app, http.MethodPost, "/api/v1/orders/", "", map[string]interface{}{
		"lines":      []map[string]interface{}{{"product_id": productID, "quantity": 1}},
		"address_id": addressID,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestWebhook_PaymentFailedReleasesStock(t *testing.T) {
	app, db := setupApp(t)
	token := registerAndLogin(t, app, "buyer4")
	productID, addressID := seedCheckout(t, app, token, 3)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/orders/", token, map[string]interface{}{
		"lines":      []map[string]interface{}{{"product_id": productID, "quantity": 3}},
		"address_id": addressID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order models.Order
	decode(t, resp, &order)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/payments/intents", token, map[string]string{
		"order_id": order.ID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var intent struct {
		IntentID string `json:"intent_id"`
	}
	decode(t, resp, &intent)

	resp = postWebhook(t, app, webhookSecret, "evt_fail", intent.IntentID, "failed")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var got models.Order
	require.NoError(t, db.First(&got, "id = ?", order.ID).Error)
	assert.Equal(t, models.StatusCancelled, got.Status)

	var product models.Product
	require.NoError(t, db.First(&product, "id = ?", productID).Error)
	assert.Equal(t, 3, *product.Inventory)
}

func TestWebhook_BadSignatureRejected(t *testing.T) {
	app, _ := setupApp(t)

	resp := postWebhook(t, app, "whsec_wrong", "evt_x", "pi_whatever", "succeeded")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestOrderCancelEndpoint(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "buyer5")
	productID, addressID := seedCheckout(t, app, token, 2)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/orders/", token, map[string]interface{}{
		"lines":      []map[string]interface{}{{"product_id": productID, "quantity": 2}},
		"address_id": addressID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order models.Order
	decode(t, resp, &order)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &order)
	assert.Equal(t, models.StatusCancelled, order.Status)

	// Cancelling again conflicts: the order is already terminal.
	resp = doJSON(t, app, http.MethodPost, "/api/v1/orders/"+order.ID+"/cancel", token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/v1/products/"+productID, token, nil)
	var product models.Product
	decode(t, resp, &product)
	assert.Equal(t, 2, *product.Inventory)
}

// postWebhook delivers a signed gateway callback to the app.
func postWebhook(t *testing.T, app *fiber.App, secret, eventID, intentID, outcome string) *http.Response {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":        eventID,
		"intent_id": intentID,
		"outcome":   outcome,
		"created":   time.Now().Unix(),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handlers.SignatureHeader, gateway.SignPayload(secret, time.Now(), payload))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}
