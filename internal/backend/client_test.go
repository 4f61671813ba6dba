package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcafe/storefront/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL, Timeout: 2 * time.Second}, zerolog.Nop())
}

func TestMenu_CoercesPrices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/menu", r.URL.Path)
		w.Write([]byte(`[
			{"item_id":1,"name":"Latte","price":"45.50","img":"latte.png"},
			{"item_id":2,"name":"Mocha","price":45.5},
			{"item_id":3,"name":"Espresso","priceItem":"40"},
			{"item_id":4,"name":"Broken","price":"abc"},
			{"item_id":5,"name":"Missing"}
		]`))
	})

	items, err := client.Menu(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 5)

	want := decimal.RequireFromString("45.5")
	assert.True(t, items[0].Price.Equal(want), "string price")
	assert.True(t, items[1].Price.Equal(want), "number price")
	assert.True(t, items[2].Price.Equal(decimal.NewFromInt(40)), "priceItem fallback")
	assert.True(t, items[3].Price.IsZero(), "non-numeric price")
	assert.True(t, items[4].Price.IsZero(), "missing price")
	assert.Equal(t, "latte.png", items[0].Image)
	assert.Equal(t, "", items[1].Image)
}

func TestToppings_CoercesPrices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":2,"name":"Pearl","priceTopping":"10"},{"id":3,"name":"Cream","price":5}]`))
	})

	toppings, err := client.Toppings(context.Background())
	require.NoError(t, err)
	require.Len(t, toppings, 2)
	assert.True(t, toppings[0].Price.Equal(decimal.NewFromInt(10)))
	assert.True(t, toppings[1].Price.Equal(decimal.NewFromInt(5)))
}

func TestBearerToken_SkippedOnAuthRoutes(t *testing.T) {
	var mu sync.Mutex
	headers := map[string]string{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers[r.URL.Path] = r.Header.Get("Authorization")
		mu.Unlock()
		switch r.URL.Path {
		case "/authen":
			w.Write([]byte(`{"token":"abc"}`))
		case "/toppings":
			w.Write([]byte(`[]`))
		}
	})

	ctx := WithToken(context.Background(), "secret")
	_, err := client.Toppings(ctx)
	require.NoError(t, err)
	_, err = client.Authenticate(ctx, "a@b.co", "123456")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Bearer secret", headers["/toppings"])
	assert.Equal(t, "", headers["/authen"])
}

func TestCreateOrder_RequestShape(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/order", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		items := body["items"].([]any)
		require.Len(t, items, 2)
		first := items[0].(map[string]any)
		assert.EqualValues(t, 1, first["item_id"])
		assert.EqualValues(t, 3, first["qty"])
		assert.Equal(t, []any{float64(2), float64(3)}, first["toppings"])
		_, hasToppings := items[1].(map[string]any)["toppings"]
		assert.False(t, hasToppings)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"order_id":101}`))
	})

	id, err := client.CreateOrder(context.Background(), CreateOrderRequest{Items: []OrderItemRequest{
		{ItemID: 1, Qty: 3, Toppings: []int64{2, 3}},
		{ItemID: 4, Qty: 1},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(101), id)
}

func TestGetOrder_NormalizesBaseline(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order/101", r.URL.Path)
		w.Write([]byte(`{"status":"PENDING","items":[{"item_id":1,"qty":3}],"total_price":180,
			"created_at":"2025-09-01T10:00:00.000Z","completed_at":null}`))
	})

	order, err := client.GetOrder(context.Background(), 101)
	require.NoError(t, err)
	assert.Equal(t, int64(101), order.ID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.True(t, order.TotalPrice.Equal(decimal.NewFromInt(180)))
	assert.Nil(t, order.CompletedAt)
	assert.False(t, order.CreatedAt.IsZero())
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(1), order.Items[0].ItemID)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.Empty(t, order.Items[0].Toppings)
	assert.False(t, order.Items[0].Resolved)
	assert.False(t, order.Enriched)
}

func TestAllOrders_ResolvedLines(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orders":[{"order_id":7,"status":"ready","total_price":"120.00",
			"created_at":"2025-09-01T10:00:00Z","completed_at":"2025-09-01T10:05:00Z","user_id":3,
			"items":[{"qty":2,"total_price_item":120,"menu_name":"Latte","toppings":["Pearl"]},
			         {"qty":1,"total_price_item":0,"menu_name":null,"toppings":[]}]}]}`))
	})

	orders, err := client.AllOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	o := orders[0]
	assert.Equal(t, domain.OrderStatusReady, o.Status)
	require.NotNil(t, o.CompletedAt)
	require.NotNil(t, o.UserID)
	assert.Equal(t, int64(3), *o.UserID)
	assert.Equal(t, "Latte", o.Items[0].MenuName)
	assert.Equal(t, []string{"Pearl"}, o.Items[0].Toppings)
	assert.Equal(t, "", o.Items[1].MenuName)
	assert.True(t, o.Enriched)
}

func TestUpdateOrderStatus_SendsUpperCase(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/order/9/status", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "READY", body["status"])
		w.Write([]byte(`{"order_id":9,"status":"ready","completed_at":"2025-09-01T10:05:00Z"}`))
	})

	upd, err := client.UpdateOrderStatus(context.Background(), 9, domain.OrderStatusReady)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReady, upd.Status)
	require.NotNil(t, upd.CompletedAt)
}

func TestAuthenticate_FlatAndWrapped(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"flat", `{"token":"t1","expiresIn":"1h","user":{"id":4,"name":"Ann","email":"ann@cafe.io","role":"barista"}}`},
		{"wrapped", `{"data":{"token":"t1","expiresIn":"1h","user":{"id":4,"name":"Ann","email":"ann@cafe.io","role":"BARISTA"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			res, err := client.Authenticate(context.Background(), "ann@cafe.io", "secret1")
			require.NoError(t, err)
			assert.Equal(t, "t1", res.Token)
			assert.Equal(t, "1h", res.ExpiresIn)
			require.NotNil(t, res.User)
			assert.Equal(t, domain.RoleBarista, res.User.Role)
		})
	}
}

func TestAuthenticate_NumericExpiryAndNoUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"t2","expiresIn":3600}`))
	})
	res, err := client.Authenticate(context.Background(), "a@b.co", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "3600", res.ExpiresIn)
	assert.Nil(t, res.User)
}

func TestRegister_ReturnsMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "secret1", body["confirmPassword"])
		w.Write([]byte(`{"data":{"message":"registered"}}`))
	})
	msg, err := client.Register(context.Background(), RegisterRequest{
		Name: "Ann", Email: "ann@cafe.io", Password: "secret1", ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "registered", msg)
}

func TestAPIError_CarriesMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"order not found"}`))
	})

	_, err := client.GetOrder(context.Background(), 5)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "order not found", apiErr.Message)
	assert.Equal(t, "order not found", Message(err, "fallback"))
}

func TestBreaker_OpensAfterServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(Options{
		BaseURL:                 srv.URL,
		BreakerFailureThreshold: 2,
		BreakerTimeout:          time.Minute,
	}, zerolog.Nop())

	for i := 0; i < 2; i++ {
		_, err := client.Menu(context.Background())
		require.Error(t, err)
	}
	_, err := client.Menu(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBreaker_IgnoresClientErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	for i := 0; i < 10; i++ {
		_, err := client.AllOrders(context.Background())
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
	}
}
