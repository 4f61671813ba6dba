package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/smartcafe/storefront/internal/backend"
	"github.com/smartcafe/storefront/internal/order"
	"github.com/smartcafe/storefront/internal/validation"
)

type AuthHandler struct {
	boards  *order.Boards
	render  *Renderer
	timeout time.Duration
	log     zerolog.Logger
	sfg     singleflight.Group
}

func NewAuthHandler(boards *order.Boards, render *Renderer, timeout time.Duration, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		boards:  boards,
		render:  render,
		timeout: timeout,
		log:     log,
	}
}

type authView struct {
	Name   string
	Email  string
	Errors validation.Errors
	Error  string
}

// GET /login
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if signedIn(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render.Page(w, r, http.StatusOK, "login", authView{})
}

// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store := getSession(r.Context())
	if err := r.ParseForm(); err != nil || store == nil {
		h.render.Page(w, r, http.StatusBadRequest, "login", authView{Error: "Invalid form"})
		return
	}
	form := validation.LoginForm{
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Password: r.PostForm.Get("password"),
	}
	view := authView{Email: form.Email}
	if err := form.Validate(); err != nil {
		errors.As(err, &view.Errors)
		h.render.Page(w, r, http.StatusUnprocessableEntity, "login", view)
		return
	}

	_, err, _ := h.sfg.Do(store.VisitorID()+":login", func() (interface{}, error) {
		return store.Login(ctx, form.Email, form.Password)
	})
	if err != nil {
		h.log.Info().Err(err).Str("visitor", store.VisitorID()).Msg("sign in failed")
		view.Error = backend.Message(err, "Sign in failed")
		h.render.Page(w, r, failureStatus(err), "login", view)
		return
	}

	setFlash(w, flashSuccess, "Signed in")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GET /register
func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	if signedIn(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render.Page(w, r, http.StatusOK, "register", authView{})
}

// POST /register creates the account and sends the visitor to sign in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store := getSession(r.Context())
	if err := r.ParseForm(); err != nil || store == nil {
		h.render.Page(w, r, http.StatusBadRequest, "register", authView{Error: "Invalid form"})
		return
	}
	form := validation.RegisterForm{
		Name:            strings.TrimSpace(r.PostForm.Get("name")),
		Email:           strings.TrimSpace(r.PostForm.Get("email")),
		Password:        r.PostForm.Get("password"),
		ConfirmPassword: r.PostForm.Get("confirmPassword"),
	}
	view := authView{Name: form.Name, Email: form.Email}
	if err := form.Validate(); err != nil {
		errors.As(err, &view.Errors)
		h.render.Page(w, r, http.StatusUnprocessableEntity, "register", view)
		return
	}

	v, err, _ := h.sfg.Do(store.VisitorID()+":register", func() (interface{}, error) {
		return store.Register(ctx, backend.RegisterRequest{
			Name:            form.Name,
			Email:           form.Email,
			Password:        form.Password,
			ConfirmPassword: form.ConfirmPassword,
		})
	})
	if err != nil {
		view.Error = backend.Message(err, "Registration failed, please try again")
		h.render.Page(w, r, failureStatus(err), "register", view)
		return
	}

	msg, _ := v.(string)
	if msg == "" {
		msg = "Registration successful, please sign in"
	}
	setFlash(w, flashSuccess, msg)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	store := getSession(r.Context())
	if store != nil {
		if err := store.Logout(r.Context()); err != nil {
			h.log.Error().Err(err).Str("visitor", store.VisitorID()).Msg("logout failed")
			setFlash(w, flashError, "Could not sign you out, please try again")
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		h.boards.Drop(store.VisitorID())
	}
	setFlash(w, flashSuccess, "Signed out")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func signedIn(r *http.Request) bool {
	store := getSession(r.Context())
	return store != nil && store.State().Authenticated() && !store.Expired(time.Now())
}

// failureStatus passes backend 4xx answers through; anything else is a 502.
func failureStatus(err error) int {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
		return apiErr.StatusCode
	}
	return http.StatusBadGateway
}
