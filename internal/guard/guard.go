// Package guard decides whether a session may open a role-restricted page.
package guard

import (
	"time"

	"github.com/smartcafe/storefront/internal/domain"
)

type Decision int

const (
	// Wait means the session has not been restored yet.
	Wait Decision = iota
	RedirectLogin
	RedirectHome
	Allow
)

func (d Decision) String() string {
	switch d {
	case Wait:
		return "wait"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	case Allow:
		return "allow"
	default:
		return "unknown"
	}
}

// Session is what the guard reads from a visitor's session.
type Session interface {
	Ready() bool
	Token() string
	User() *domain.User
	Expired(now time.Time) bool
}

// Decide is evaluated on every navigation; nothing is cached.
func Decide(required domain.Role, s Session, now time.Time) Decision {
	if !s.Ready() {
		return Wait
	}
	user := s.User()
	if s.Token() == "" || user == nil || s.Expired(now) {
		return RedirectLogin
	}
	if user.Role != required {
		return RedirectHome
	}
	return Allow
}
