package http

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/smartcafe/storefront/internal/domain"
)

//go:embed templates/*.html
var templateFiles embed.FS

var pageTitles = map[string]string{
	"home":      "Menu",
	"status":    "Order status",
	"login":     "Sign in",
	"register":  "Create account",
	"dashboard": "Orders",
	"loading":   "Loading",
	"notfound":  "Not found",
}

// Renderer executes one template set per page, each wrapped in the layout.
type Renderer struct {
	pages map[string]*template.Template
	log   zerolog.Logger
}

type navData struct {
	SignedIn   bool
	UserName   string
	ShowStaff  bool
	CurrentURL string
}

type pageData struct {
	Title string
	Nav   navData
	Flash *flash
	Data  any
}

func NewRenderer(log zerolog.Logger) (*Renderer, error) {
	funcs := template.FuncMap{
		"money":       formatMoney,
		"statusClass": statusClass,
		"statusLabel": func(s domain.OrderStatus) string { return strings.ToUpper(s.String()) },
		"reached":     func(s domain.OrderStatus, step string) bool { return s.Reached(domain.OrderStatus(step)) },
		"canReady":    func(s domain.OrderStatus) bool { return s.CanMarkReady() },
		"when":        formatTime,
		"join":        strings.Join,
	}

	r := &Renderer{pages: make(map[string]*template.Template), log: log}
	for name := range pageTitles {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFiles, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Page renders name inside the layout with navigation built from the
// request's session and any pending flash notice.
func (rd *Renderer) Page(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	t, ok := rd.pages[name]
	if !ok {
		rd.log.Error().Str("page", name).Msg("unknown page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	pd := pageData{
		Title: pageTitles[name],
		Nav:   buildNav(r),
		Flash: popFlash(w, r),
		Data:  data,
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", pd); err != nil {
		rd.log.Error().Err(err).Str("page", name).Msg("render failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func buildNav(r *http.Request) navData {
	nav := navData{CurrentURL: r.URL.Path}
	store := getSession(r.Context())
	if store == nil {
		return nav
	}
	state := store.State()
	if state.Token == "" {
		return nav
	}
	nav.SignedIn = true
	if state.User != nil {
		nav.UserName = state.User.Name
		nav.ShowStaff = state.User.Role == domain.RoleBarista
	}
	return nav
}

// formatMoney prints baht without decimals unless the amount is fractional.
func formatMoney(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return "฿" + d.StringFixed(0)
	}
	return "฿" + d.StringFixed(2)
}

func statusClass(s domain.OrderStatus) string {
	switch s {
	case domain.OrderStatusReady:
		return "badge badge-ready"
	case domain.OrderStatusCompleted:
		return "badge badge-completed"
	case domain.OrderStatusCanceled:
		return "badge badge-canceled"
	default:
		return "badge badge-pending"
	}
}

func formatTime(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format("02 Jan 2006 15:04")
	case *time.Time:
		if t == nil || t.IsZero() {
			return "-"
		}
		return t.Local().Format("02 Jan 2006 15:04")
	}
	return "-"
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
