package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/smartcafe/storefront/internal/domain"
)

const maxResponseBody = 4 << 20 // 4MB

type Options struct {
	BaseURL string
	Timeout time.Duration

	// Circuit breaker
	BreakerMaxRequests      uint32
	BreakerInterval         time.Duration
	BreakerTimeout          time.Duration
	BreakerFailureThreshold uint32
}

// Client talks to the café backend REST API. Every method is a single
// request; nothing is retried.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     zerolog.Logger
}

func NewClient(opts Options, log zerolog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BreakerFailureThreshold == 0 {
		opts.BreakerFailureThreshold = 5
	}
	threshold := opts.BreakerFailureThreshold

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log.With().Str("component", "backend").Logger(),
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "cafe-backend",
		MaxRequests: opts.BreakerMaxRequests,
		Interval:    opts.BreakerInterval,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
		// A 4xx is the backend answering, not the backend failing.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
	})
	return c
}

func (c *Client) Menu(ctx context.Context) ([]domain.MenuItem, error) {
	var raw []menuItemDTO
	if err := c.do(ctx, http.MethodGet, "/menu", nil, &raw); err != nil {
		return nil, err
	}
	items := make([]domain.MenuItem, 0, len(raw))
	for _, r := range raw {
		items = append(items, r.toDomain())
	}
	return items, nil
}

func (c *Client) Toppings(ctx context.Context) ([]domain.Topping, error) {
	var raw []toppingDTO
	if err := c.do(ctx, http.MethodGet, "/toppings", nil, &raw); err != nil {
		return nil, err
	}
	toppings := make([]domain.Topping, 0, len(raw))
	for _, r := range raw {
		toppings = append(toppings, r.toDomain())
	}
	return toppings, nil
}

// CreateOrder submits all lines in one request and returns the new order id.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (int64, error) {
	var resp createOrderResponse
	if err := c.do(ctx, http.MethodPost, "/order", req, &resp); err != nil {
		return 0, err
	}
	return resp.OrderID, nil
}

// GetOrder returns the per-order record. Item references are not resolved.
func (c *Client) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	var resp orderStatusDTO
	if err := c.do(ctx, http.MethodGet, "/order/"+strconv.FormatInt(id, 10), nil, &resp); err != nil {
		return domain.Order{}, err
	}
	return resp.toDomain(id), nil
}

// AllOrders returns the bulk listing with resolved names.
func (c *Client) AllOrders(ctx context.Context) ([]domain.Order, error) {
	var resp allOrdersDTO
	if err := c.do(ctx, http.MethodGet, "/allorder", nil, &resp); err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		orders = append(orders, o.toDomain())
	}
	return orders, nil
}

// UpdateOrderStatus sends the status in the upper-case form the backend enum expects.
func (c *Client) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (StatusUpdate, error) {
	var resp updateStatusDTO
	body := updateStatusRequest{Status: strings.ToUpper(string(status))}
	if err := c.do(ctx, http.MethodPatch, "/order/"+strconv.FormatInt(id, 10)+"/status", body, &resp); err != nil {
		return StatusUpdate{}, err
	}
	orderID := resp.OrderID
	if orderID == 0 {
		orderID = id
	}
	return StatusUpdate{
		OrderID:     orderID,
		Status:      domain.ParseStatus(resp.Status),
		CompletedAt: resp.CompletedAt.ptr(),
	}, nil
}

func (c *Client) Authenticate(ctx context.Context, email, password string) (AuthResult, error) {
	var env authEnvelope
	if err := c.do(ctx, http.MethodPost, "/authen", LoginRequest{Email: email, Password: password}, &env); err != nil {
		return AuthResult{}, err
	}
	p := env.payload()
	token := p.Token
	if token == "" {
		token = p.AccessToken
	}
	return AuthResult{
		Token:     token,
		ExpiresIn: string(p.ExpiresIn),
		User:      p.User.toDomain(),
	}, nil
}

// Register returns the backend's confirmation message. A token in the
// answer is deliberately ignored; signing in is a separate step.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	var env registerEnvelope
	if err := c.do(ctx, http.MethodPost, "/register", req, &env); err != nil {
		return "", err
	}
	if env.Message == "" && env.Data != nil {
		return env.Data.Message, nil
	}
	return env.Message, nil
}

func isAuthRoute(path string) bool {
	return strings.HasPrefix(path, "/authen") || strings.HasPrefix(path, "/register")
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", path, err)
		}
		payload = b
	}

	data, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build %s %s: %w", method, path, err)
		}
		req.Header.Set("Accept", "application/json")
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if !isAuthRoute(path) {
			if token := TokenFromContext(ctx); token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			req.Header.Set("X-Request-ID", requestID)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return nil, fmt.Errorf("read %s response: %w", path, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, newAPIError(resp.StatusCode, body)
		}
		return body, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Str("path", path).Msg("backend call failed")
		return err
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
