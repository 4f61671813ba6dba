package backend

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartcafe/storefront/internal/domain"
)

type menuItemDTO struct {
	ItemID    int64  `json:"item_id"`
	Name      string `json:"name"`
	Price     number `json:"price"`
	PriceItem number `json:"priceItem"`
	Img       string `json:"img"`
}

func (d menuItemDTO) toDomain() domain.MenuItem {
	return domain.MenuItem{
		ID:    d.ItemID,
		Name:  d.Name,
		Price: firstPrice(d.Price, d.PriceItem),
		Image: d.Img,
	}
}

type toppingDTO struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Price        number `json:"price"`
	PriceTopping number `json:"priceTopping"`
}

func (d toppingDTO) toDomain() domain.Topping {
	return domain.Topping{
		ID:    d.ID,
		Name:  d.Name,
		Price: firstPrice(d.Price, d.PriceTopping),
	}
}

// OrderItemRequest is one cart line as the backend expects it.
type OrderItemRequest struct {
	ItemID   int64   `json:"item_id"`
	Qty      int     `json:"qty"`
	Toppings []int64 `json:"toppings,omitempty"`
}

type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items"`
}

type createOrderResponse struct {
	OrderID int64 `json:"order_id"`
}

// orderStatusDTO is the per-order answer: item references are not resolved.
type orderStatusDTO struct {
	Status string `json:"status"`
	Items  []struct {
		ItemID int64 `json:"item_id"`
		Qty    int   `json:"qty"`
	} `json:"items"`
	TotalPrice  number    `json:"total_price"`
	CreatedAt   timestamp `json:"created_at"`
	CompletedAt timestamp `json:"completed_at"`
}

func (d orderStatusDTO) toDomain(id int64) domain.Order {
	lines := make([]domain.OrderLine, 0, len(d.Items))
	for _, it := range d.Items {
		lines = append(lines, domain.OrderLine{
			ItemID:    it.ItemID,
			Quantity:  it.Qty,
			Toppings:  []string{},
			LineTotal: decimal.Zero,
		})
	}
	return domain.Order{
		ID:          id,
		Status:      domain.ParseStatus(d.Status),
		Items:       lines,
		TotalPrice:  firstPrice(d.TotalPrice),
		CreatedAt:   d.CreatedAt.value(),
		CompletedAt: d.CompletedAt.ptr(),
	}
}

type listedOrderItemDTO struct {
	Qty            int      `json:"qty"`
	TotalPriceItem number   `json:"total_price_item"`
	MenuName       *string  `json:"menu_name"`
	Toppings       []string `json:"toppings"`
}

// listedOrderDTO is one entry of the bulk listing, with resolved names.
type listedOrderDTO struct {
	OrderID     int64                `json:"order_id"`
	Status      string               `json:"status"`
	TotalPrice  number               `json:"total_price"`
	CreatedAt   timestamp            `json:"created_at"`
	CompletedAt timestamp            `json:"completed_at"`
	UserID      *int64               `json:"user_id"`
	Items       []listedOrderItemDTO `json:"items"`
}

func (d listedOrderDTO) toDomain() domain.Order {
	lines := make([]domain.OrderLine, 0, len(d.Items))
	for _, it := range d.Items {
		name := ""
		if it.MenuName != nil {
			name = *it.MenuName
		}
		toppings := it.Toppings
		if toppings == nil {
			toppings = []string{}
		}
		lines = append(lines, domain.OrderLine{
			Quantity:  it.Qty,
			MenuName:  name,
			Toppings:  toppings,
			LineTotal: firstPrice(it.TotalPriceItem),
			Resolved:  true,
		})
	}
	return domain.Order{
		ID:          d.OrderID,
		Status:      domain.ParseStatus(d.Status),
		Items:       lines,
		TotalPrice:  firstPrice(d.TotalPrice),
		CreatedAt:   d.CreatedAt.value(),
		CompletedAt: d.CompletedAt.ptr(),
		UserID:      d.UserID,
		Enriched:    true,
	}
}

type allOrdersDTO struct {
	Orders []listedOrderDTO `json:"orders"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type updateStatusDTO struct {
	OrderID     int64     `json:"order_id"`
	Status      string    `json:"status"`
	CompletedAt timestamp `json:"completed_at"`
}

// StatusUpdate is the backend's answer to a status change.
type StatusUpdate struct {
	OrderID     int64
	Status      domain.OrderStatus
	CompletedAt *time.Time
}

type userDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (u *userDTO) toDomain() *domain.User {
	if u == nil {
		return nil
	}
	return &domain.User{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  domain.Role(strings.ToUpper(u.Role)),
	}
}

type authPayload struct {
	Token       string   `json:"token"`
	AccessToken string   `json:"accessToken"`
	ExpiresIn   text     `json:"expiresIn"`
	User        *userDTO `json:"user"`
}

// authEnvelope covers both the flat and the data-wrapped answer shapes.
type authEnvelope struct {
	authPayload
	Data *authPayload `json:"data"`
}

func (e authEnvelope) payload() authPayload {
	if e.Data != nil {
		return *e.Data
	}
	return e.authPayload
}

// AuthResult is a normalized login answer. User is nil when the backend
// did not send one.
type AuthResult struct {
	Token     string
	ExpiresIn string
	User      *domain.User
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
}

type registerEnvelope struct {
	Message string `json:"message"`
	Data    *struct {
		Message string `json:"message"`
	} `json:"data"`
}
