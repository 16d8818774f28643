package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripeClientCreateCustomer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/customers", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "customer-U", r.Header.Get("Idempotency-Key"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "u@example.com", r.PostForm.Get("email"))
		assert.Equal(t, "U", r.PostForm.Get("metadata[user_id]"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cus_123","object":"customer"}`))
	}))
	defer srv.Close()

	c := NewStripeClient("sk_test", srv.URL, srv.Client())
	id, err := c.CreateCustomer(context.Background(), CustomerParams{UserID: "U", Email: "u@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "cus_123", id)
}

func TestStripeClientCreateCheckoutSessionAttachesUserMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "subscription", r.PostForm.Get("mode"))
		assert.Equal(t, "cus_1", r.PostForm.Get("customer"))
		assert.Equal(t, "price_monthly", r.PostForm.Get("line_items[0][price]"))
		assert.Equal(t, "U", r.PostForm.Get("subscription_data[metadata][user_id]"))
		assert.Equal(t, "monthly", r.PostForm.Get("subscription_data[metadata][plan_id]"))
		assert.Equal(t, "U", r.PostForm.Get("metadata[user_id]"))
		assert.Equal(t, "U", r.PostForm.Get("client_reference_id"))
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_1","object":"checkout.session","url":"https://checkout.example/cs_1"}`))
	}))
	defer srv.Close()

	plan, _ := testPlans().Lookup("monthly")
	c := NewStripeClient("sk_test", srv.URL, srv.Client())
	session, err := c.CreateCheckoutSession(context.Background(), CheckoutParams{
		UserID: "U", CustomerID: "cus_1", Plan: plan,
		SuccessURL: "https://blog.example/ok", CancelURL: "https://blog.example/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, &CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}, session)
}

func TestStripeClientErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such price"}}`))
	}))
	defer srv.Close()

	c := NewStripeClient("sk_test", srv.URL, srv.Client())
	_, err := c.CreateCustomer(context.Background(), CustomerParams{UserID: "U", Email: "u@example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderRequest)
	assert.Contains(t, err.Error(), "No such price")
	assert.Contains(t, err.Error(), "status=400")
}

func TestStripeClientRequiresSecretKey(t *testing.T) {
	c := NewStripeClient("", "", nil)
	_, err := c.CreateCustomer(context.Background(), CustomerParams{UserID: "U"})
	assert.EqualError(t, err, "STRIPE_SECRET_KEY is not configured")
	_, err = c.CreateCheckoutSession(context.Background(), CheckoutParams{UserID: "U"})
	assert.EqualError(t, err, "STRIPE_SECRET_KEY is not configured")
}
