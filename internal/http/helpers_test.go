package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/smartcafe/storefront/internal/backend"
	"github.com/smartcafe/storefront/internal/cache"
	"github.com/smartcafe/storefront/internal/catalog"
	"github.com/smartcafe/storefront/internal/order"
	"github.com/smartcafe/storefront/internal/session"
)

// --- fake café backend ---

type fakeOrder struct {
	Status      string
	Items       []map[string]any
	Total       string
	CreatedAt   string
	CompletedAt *string
}

type fakeCafe struct {
	mu sync.Mutex

	nextID      int64
	orders      map[int64]*fakeOrder
	created     []map[string]any
	patches     []string
	listCalls   int
	createFail  int
	listingFail bool
	authHeaders map[string]string
	tokens      map[string]string
}

func newFakeCafe() *fakeCafe {
	return &fakeCafe{
		nextID:      101,
		orders:      make(map[int64]*fakeOrder),
		authHeaders: make(map[string]string),
		tokens:      make(map[string]string),
	}
}

func (f *fakeCafe) addOrder(id int64, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[id] = &fakeOrder{
		Status:    status,
		Items:     []map[string]any{{"item_id": 1, "qty": 1}},
		Total:     "45",
		CreatedAt: "2025-09-01T10:00:00Z",
	}
}

func (f *fakeCafe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authHeaders[r.Method+" "+r.URL.Path] = r.Header.Get("Authorization")

	write := func(status int, body any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/menu":
		write(200, []map[string]any{
			{"item_id": 1, "name": "Latte", "price": "45", "img": "latte.png"},
			{"item_id": 2, "name": "Mocha", "price": 45.5},
		})
	case r.Method == http.MethodGet && r.URL.Path == "/toppings":
		write(200, []map[string]any{
			{"id": 2, "name": "Pearl", "price": "10"},
			{"id": 3, "name": "Cream", "priceTopping": 5},
		})
	case r.Method == http.MethodPost && r.URL.Path == "/order":
		if f.createFail != 0 {
			write(f.createFail, map[string]string{"message": "out of stock"})
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.created = append(f.created, body)
		id := f.nextID
		f.nextID++
		f.orders[id] = &fakeOrder{
			Status:    "PENDING",
			Items:     []map[string]any{{"item_id": 1, "qty": 3}},
			Total:     "180",
			CreatedAt: "2025-09-01T10:00:00Z",
		}
		write(201, map[string]any{"order_id": id})
	case r.Method == http.MethodGet && r.URL.Path == "/allorder":
		f.listCalls++
		if f.listingFail {
			write(500, map[string]string{"message": "listing down"})
			return
		}
		list := []map[string]any{}
		for id, o := range f.orders {
			list = append(list, map[string]any{
				"order_id":     id,
				"status":       strings.ToLower(o.Status),
				"total_price":  o.Total,
				"created_at":   o.CreatedAt,
				"completed_at": o.CompletedAt,
				"user_id":      9,
				"items": []map[string]any{
					{"qty": 3, "total_price_item": 180, "menu_name": "Latte", "toppings": []string{"Pearl", "Cream"}},
				},
			})
		}
		write(200, map[string]any{"orders": list})
	case len(parts) == 3 && parts[0] == "order" && parts[2] == "status" && r.Method == http.MethodPatch:
		id, _ := strconv.ParseInt(parts[1], 10, 64)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.patches = append(f.patches, parts[1]+":"+body["status"])
		o, ok := f.orders[id]
		if !ok {
			write(404, map[string]string{"message": "order not found"})
			return
		}
		done := "2025-09-01T10:05:00Z"
		o.Status = body["status"]
		o.CompletedAt = &done
		write(200, map[string]any{"order_id": id, "status": strings.ToLower(o.Status), "completed_at": done})
	case len(parts) == 2 && parts[0] == "order" && r.Method == http.MethodGet:
		id, _ := strconv.ParseInt(parts[1], 10, 64)
		o, ok := f.orders[id]
		if !ok {
			write(404, map[string]string{"message": "order not found"})
			return
		}
		write(200, map[string]any{
			"status":       strings.ToUpper(o.Status),
			"items":        o.Items,
			"total_price":  o.Total,
			"created_at":   o.CreatedAt,
			"completed_at": o.CompletedAt,
		})
	case r.Method == http.MethodPost && r.URL.Path == "/authen":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		token, ok := f.tokens[body["email"]]
		if !ok {
			write(401, map[string]string{"message": "invalid credentials"})
			return
		}
		write(200, map[string]any{"token": token, "expiresIn": "1h"})
	case r.Method == http.MethodPost && r.URL.Path == "/register":
		write(201, map[string]any{"message": "account created", "token": "ignored"})
	default:
		write(404, map[string]string{"message": "no route"})
	}
}

// --- storefront under test ---

type testApp struct {
	t      *testing.T
	cafe   *fakeCafe
	server *httptest.Server
	client *http.Client
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWithSessions(t, session.NewMemoryStorage())
}

func newTestAppWithSessions(t *testing.T, sessions session.Storage) *testApp {
	t.Helper()
	cafe := newFakeCafe()
	backendSrv := httptest.NewServer(cafe)
	t.Cleanup(backendSrv.Close)

	log := zerolog.Nop()
	client := backend.NewClient(backend.Options{BaseURL: backendSrv.URL, Timeout: 2 * time.Second}, log)
	handler, err := NewRouter(RouterConfig{
		CookieName:     "cafe_vid",
		CookieTTL:      time.Hour,
		RequestTimeout: 5 * time.Second,
	}, Deps{
		Log:      log,
		Catalog:  catalog.New(client, log),
		Carts:    cache.NewMemoryCache(),
		Orders:   order.NewService(client, log),
		Boards:   order.NewBoards(),
		Sessions: session.NewManager(sessions, client, log).WithExpirySkew(10 * time.Second),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testApp{t: t, cafe: cafe, server: srv, client: newBrowser(t)}
}

// stickySessions is a session storage whose deletes fail.
type stickySessions struct {
	*session.MemoryStorage
}

func (stickySessions) Delete(context.Context, string) error {
	return errors.New("redis down")
}

func newBrowser(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (a *testApp) get(path string) (*http.Response, string) {
	a.t.Helper()
	resp, err := a.client.Get(a.server.URL + path)
	require.NoError(a.t, err)
	return resp, readBody(a.t, resp)
}

func (a *testApp) post(path string, form url.Values) (*http.Response, string) {
	a.t.Helper()
	resp, err := a.client.PostForm(a.server.URL+path, form)
	require.NoError(a.t, err)
	return resp, readBody(a.t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func (a *testApp) issueToken(email string, claims jwt.MapClaims) {
	a.t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test"))
	require.NoError(a.t, err)
	a.cafe.mu.Lock()
	a.cafe.tokens[email] = token
	a.cafe.mu.Unlock()
}

func (a *testApp) signInAs(role string) {
	a.t.Helper()
	email := strings.ToLower(role) + "@cafe.io"
	a.issueToken(email, jwt.MapClaims{
		"id": 9, "email": email, "name": strings.ToLower(role), "role": role,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	resp, _ := a.post("/login", url.Values{"email": {email}, "password": {"secret1"}})
	require.Equal(a.t, http.StatusSeeOther, resp.StatusCode, "sign in as %s", role)
}

func location(resp *http.Response) string {
	return resp.Header.Get("Location")
}

func itemForm(itemID int, qty int, toppings ...int) url.Values {
	v := url.Values{"item_id": {fmt.Sprint(itemID)}, "qty": {fmt.Sprint(qty)}}
	for _, t := range toppings {
		v.Add("topping", fmt.Sprint(t))
	}
	return v
}
