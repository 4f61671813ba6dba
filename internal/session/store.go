package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartcafe/storefront/internal/backend"
	"github.com/smartcafe/storefront/internal/domain"
)

var ErrNoToken = errors.New("login response carried no token")

// Authenticator is the part of the backend API a session needs.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (backend.AuthResult, error)
	Register(ctx context.Context, req backend.RegisterRequest) (string, error)
}

// Store is one visitor's session. It starts not ready and becomes ready
// once Rehydrate has run, whatever the outcome.
type Store struct {
	visitorID string
	storage   Storage
	auth      Authenticator
	log       zerolog.Logger
	now       func() time.Time
	skew      time.Duration

	mu    sync.RWMutex
	state State
	ready bool
}

func (s *Store) VisitorID() string {
	return s.visitorID
}

func (s *Store) Token() string {
	return s.State().Token
}

func (s *Store) User() *domain.User {
	return s.State().User
}

// Expired treats a token as expired skew before its actual expiry.
func (s *Store) Expired(now time.Time) bool {
	return s.State().Expired(now, s.skew)
}

// Rehydrate loads the persisted state. A missing or unreadable record
// leaves an empty session; nothing here is fatal.
func (s *Store) Rehydrate(ctx context.Context) {
	state, err := s.storage.Load(ctx, s.visitorID)
	switch {
	case errors.Is(err, ErrNotFound):
		state = State{}
	case err != nil:
		s.log.Warn().Err(err).Str("visitor", s.visitorID).Msg("session rehydrate failed")
		state = State{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.ready = true
}

func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Login authenticates and persists token, user and expiry. When the
// backend sends no user record the identity is read from the token.
// On any failure, including a failed save, the session is left as it was.
func (s *Store) Login(ctx context.Context, email, password string) (State, error) {
	res, err := s.auth.Authenticate(ctx, email, password)
	if err != nil {
		return s.State(), err
	}
	if res.Token == "" {
		return s.State(), ErrNoToken
	}

	user := res.User
	if user == nil {
		user = UserFromToken(res.Token)
	}
	next := State{
		User:      user,
		Token:     res.Token,
		ExpiresIn: res.ExpiresIn,
		IssuedAt:  s.now().UTC(),
	}
	if err := s.storage.Save(ctx, s.visitorID, next); err != nil {
		return s.State(), fmt.Errorf("persist session: %w", err)
	}

	s.mu.Lock()
	s.state = next
	s.ready = true
	s.mu.Unlock()

	s.log.Info().Str("visitor", s.visitorID).Bool("user", user != nil).Msg("signed in")
	return next, nil
}

// Register creates an account and returns the backend's message. The
// session is not touched; signing in is a separate step.
func (s *Store) Register(ctx context.Context, req backend.RegisterRequest) (string, error) {
	msg, err := s.auth.Register(ctx, req)
	if err != nil {
		return "", err
	}
	return msg, nil
}

// Logout deletes the persisted record first; if that fails the visitor
// stays signed in.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.storage.Delete(ctx, s.visitorID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	s.mu.Lock()
	s.state = State{}
	s.ready = true
	s.mu.Unlock()
	return nil
}

// Manager opens visitor stores over a shared Storage.
type Manager struct {
	storage Storage
	auth    Authenticator
	log     zerolog.Logger
	now     func() time.Time
	skew    time.Duration
}

func NewManager(storage Storage, auth Authenticator, log zerolog.Logger) *Manager {
	return &Manager{
		storage: storage,
		auth:    auth,
		log:     log.With().Str("component", "session").Logger(),
		now:     time.Now,
	}
}

// WithExpirySkew makes sessions count as expired d before the token does.
func (m *Manager) WithExpirySkew(d time.Duration) *Manager {
	m.skew = d
	return m
}

// New returns a store that has not been rehydrated yet.
func (m *Manager) New(visitorID string) *Store {
	return &Store{
		visitorID: visitorID,
		storage:   m.storage,
		auth:      m.auth,
		log:       m.log,
		now:       m.now,
		skew:      m.skew,
	}
}

// Open returns the visitor's store, rehydrated and ready.
func (m *Manager) Open(ctx context.Context, visitorID string) *Store {
	s := m.New(visitorID)
	s.Rehydrate(ctx)
	return s
}
