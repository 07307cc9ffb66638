package reconciliation_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"seatflow/internal/orders"
	"seatflow/internal/payments"
	"seatflow/internal/reconciliation"
	"seatflow/internal/shared/authtoken"
	"seatflow/internal/shared/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var paymentConfig = config.PaymentConfig{
	SuccessURL:    "https://shop.example/checkout/success",
	CancelURL:     "https://shop.example/checkout/cancel",
	FailureURL:    "https://shop.example/checkout/failure",
	WebhookSecret: "whsec_test",
}

func newEngine(f *fixture, cfg config.PaymentConfig) *gin.Engine {
	engine := gin.New()
	controller := reconciliation.NewController(f.recon, cfg)
	reconciliation.SetupReconciliationRoutes(engine.Group("/api/v1"), controller, authtoken.NewIssuer("secret"))
	return engine
}

func redirectOf(t *testing.T, engine *gin.Engine, path string) *url.URL {
	t.Helper()
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	return loc
}

func TestPaymentReturnRedirectsByOutcome(t *testing.T) {
	f := newFixture(t)
	engine := newEngine(f, paymentConfig)

	paidID, paidRef := f.placeOrder(t, seat("A", "1"))
	f.authority.SetStatus(paidRef, payments.StatusPaid)
	loc := redirectOf(t, engine, "/api/v1/payments/return?order_id="+paidID.String())
	assert.Equal(t, "/checkout/success", loc.Path)
	assert.Equal(t, "paid", loc.Query().Get("status"))
	assert.Equal(t, paidID.String(), loc.Query().Get("order_id"))

	canceledID, canceledRef := f.placeOrder(t, seat("A", "2"))
	f.authority.SetStatus(canceledRef, payments.StatusCanceled)
	loc = redirectOf(t, engine, "/api/v1/payments/return?order_id="+canceledID.String())
	assert.Equal(t, "/checkout/cancel", loc.Path)
	assert.Equal(t, "canceled", loc.Query().Get("status"))

	pendingID, _ := f.placeOrder(t, seat("A", "3"))
	loc = redirectOf(t, engine, "/api/v1/payments/return?order_id="+pendingID.String())
	assert.Equal(t, "/checkout/success", loc.Path)
	assert.Equal(t, "pending", loc.Query().Get("status"))
}

func TestPaymentReturnFailures(t *testing.T) {
	f := newFixture(t)
	engine := newEngine(f, paymentConfig)

	loc := redirectOf(t, engine, "/api/v1/payments/return?order_id=garbage")
	assert.Equal(t, "/checkout/failure", loc.Path)
	assert.Equal(t, "invalid_order", loc.Query().Get("status"))

	loc = redirectOf(t, engine, "/api/v1/payments/return?order_id="+uuid.NewString())
	assert.Equal(t, "/checkout/failure", loc.Path)

	orderID, _ := f.placeOrder(t)
	f.authority.FailNext(payments.ErrUnavailable)
	loc = redirectOf(t, engine, "/api/v1/payments/return?order_id="+orderID.String())
	assert.Equal(t, "/checkout/failure", loc.Path)
}

func postWebhook(engine *gin.Engine, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(reconciliation.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestWebhookRequiresValidSignature(t *testing.T) {
	f := newFixture(t)
	engine := newEngine(f, paymentConfig)
	orderID, ref := f.placeOrder(t)
	f.authority.SetStatus(ref, payments.StatusPaid)

	body := `{"order_id":"` + orderID.String() + `","event":"checkout.session.completed"}`
	assert.Equal(t, http.StatusUnauthorized, postWebhook(engine, body, "").Code)
	assert.Equal(t, http.StatusUnauthorized, postWebhook(engine, body, reconciliation.Sign("wrong", []byte(body))).Code)
	assert.Zero(t, f.publisher.count(), "unsigned calls change nothing")

	w := postWebhook(engine, body, reconciliation.Sign(paymentConfig.WebhookSecret, []byte(body)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"PAID"`)
	assert.Equal(t, 1, f.publisher.count())
}

func TestWebhookByReference(t *testing.T) {
	f := newFixture(t)
	engine := newEngine(f, paymentConfig)
	orderID, ref := f.placeOrder(t)
	f.authority.SetStatus(ref, payments.StatusExpired)

	body := `{"client_reference_id":"` + ref + `"}`
	w := postWebhook(engine, body, reconciliation.Sign(paymentConfig.WebhookSecret, []byte(body)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	order, err := f.store.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCanceled, order.Status)
}

func TestWebhookRejectsBadPayloads(t *testing.T) {
	f := newFixture(t)
	engine := newEngine(f, paymentConfig)

	for _, body := range []string{`not json`, `{"order_id":"not-a-uuid"}`, `{"event":"ping"}`} {
		w := postWebhook(engine, body, reconciliation.Sign(paymentConfig.WebhookSecret, []byte(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestWebhookDisabledWithoutSecret(t *testing.T) {
	f := newFixture(t)
	cfg := paymentConfig
	cfg.WebhookSecret = ""
	engine := newEngine(f, cfg)

	body := `{"event":"ping"}`
	assert.Equal(t, http.StatusUnauthorized, postWebhook(engine, body, reconciliation.Sign("", []byte(body))).Code)
}

func TestReconcileEndpointNeedsBuyerToken(t *testing.T) {
	f := newFixture(t)
	engine := newEngine(f, paymentConfig)
	orderID, _ := f.placeOrder(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/reconcile", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
