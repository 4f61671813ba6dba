package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/smartcafe/storefront/internal/domain"
)

// State is what one visitor's session persists.
type State struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresIn string       `json:"expiresIn,omitempty"`
	IssuedAt  time.Time    `json:"issuedAt,omitempty"`
}

func (s State) Authenticated() bool {
	return s.Token != "" && s.User != nil
}

func (s State) HasRole(role domain.Role) bool {
	return s.User != nil && s.User.Role == role
}

// Expired reports whether the token's exp claim, or else the expiresIn
// marker counted from IssuedAt, lies before now+skew. A token carrying
// neither counts as expired.
func (s State) Expired(now time.Time, skew time.Duration) bool {
	if s.Token == "" {
		return true
	}
	if exp, ok := tokenExpiry(s.Token); ok {
		return !now.Add(skew).Before(exp)
	}
	if d, ok := parseExpiresIn(s.ExpiresIn); ok && !s.IssuedAt.IsZero() {
		return !now.Add(skew).Before(s.IssuedAt.Add(d))
	}
	return true
}

// parseExpiresIn accepts "3600" (seconds), Go durations such as "1h30m",
// and the "7d" day form.
func parseExpiresIn(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	if days, ok := strings.CutSuffix(v, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil {
			return time.Duration(n) * 24 * time.Hour, true
		}
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	return 0, false
}

// UserFromToken reads identity claims without verifying the signature.
// It returns nil when the token cannot be decoded.
func UserFromToken(token string) *domain.User {
	claims, ok := decodeClaims(token)
	if !ok {
		return nil
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	if name == "" {
		name = email
	}
	role, _ := claims["role"].(string)
	return &domain.User{
		ID:    claimInt(claims["id"]),
		Name:  name,
		Email: email,
		Role:  domain.Role(strings.ToUpper(role)),
	}
}

func tokenExpiry(token string) (time.Time, bool) {
	claims, ok := decodeClaims(token)
	if !ok {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func decodeClaims(token string) (jwt.MapClaims, bool) {
	if token == "" {
		return nil, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

func claimInt(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		id, _ := strconv.ParseInt(n, 10, 64)
		return id
	case nil:
		return 0
	default:
		id, _ := strconv.ParseInt(fmt.Sprint(n), 10, 64)
		return id
	}
}
