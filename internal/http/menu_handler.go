package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/smartcafe/storefront/internal/backend"
	"github.com/smartcafe/storefront/internal/cache"
	"github.com/smartcafe/storefront/internal/cart"
	"github.com/smartcafe/storefront/internal/catalog"
	"github.com/smartcafe/storefront/internal/domain"
)

type MenuHandler struct {
	catalog *catalog.Catalog
	carts   cache.CartCache
	render  *Renderer
	timeout time.Duration
	log     zerolog.Logger
}

func NewMenuHandler(cat *catalog.Catalog, carts cache.CartCache, render *Renderer, timeout time.Duration, log zerolog.Logger) *MenuHandler {
	return &MenuHandler{
		catalog: cat,
		carts:   carts,
		render:  render,
		timeout: timeout,
		log:     log,
	}
}

type homeView struct {
	Items        []domain.MenuItem
	Toppings     []domain.Topping
	CatalogError string
	Cart         cartView
}

type cartView struct {
	Lines []cartLineView
	Total decimal.Decimal
	Count int
}

type cartLineView struct {
	Key       string
	Name      string
	Image     string
	Qty       int
	Toppings  string
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// GET /
func (h *MenuHandler) Home(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view := homeView{}
	snap, err := h.catalog.Refresh(ctx)
	if err != nil {
		h.log.Warn().Err(err).Str("request_id", getRequestID(r.Context())).Msg("catalog refresh failed")
		view.CatalogError = backend.Message(err, "Could not load the menu")
	} else {
		view.Items = snap.Items
		view.Toppings = snap.Toppings
	}

	c, err := cache.Load(ctx, h.carts, getVisitorID(r.Context()))
	if err != nil {
		h.log.Error().Err(err).Msg("cart load failed")
		c = cart.New()
	}
	names, _ := h.catalog.Current()
	view.Cart = newCartView(c, names)

	h.render.Page(w, r, http.StatusOK, "home", view)
}

func newCartView(c *cart.Cart, snap catalog.Snapshot) cartView {
	lines := c.Lines()
	v := cartView{
		Lines: make([]cartLineView, 0, len(lines)),
		Total: c.Total(),
		Count: c.Quantity(),
	}
	for _, l := range lines {
		v.Lines = append(v.Lines, cartLineView{
			Key:       l.Key,
			Name:      l.Name,
			Image:     l.Image,
			Qty:       l.Quantity,
			Toppings:  toppingLabel(snap, l.ToppingIDs),
			UnitPrice: l.UnitPrice,
			LineTotal: l.Total(),
		})
	}
	return v
}

func toppingLabel(snap catalog.Snapshot, ids []int64) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(snap.ToppingNames(ids), ", ")
}
