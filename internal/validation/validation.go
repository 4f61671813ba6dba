package validation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	ErrInvalidOrderID  = errors.New("order id must be a positive number")
	ErrInvalidQuantity = errors.New("quantity must be a positive whole number")
	ErrInvalidItemID   = errors.New("item id must be a positive number")
)

// Errors maps a form field to its message.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e[f]))
	}
	return strings.Join(parts, "; ")
}

// orNil keeps a nil error interface when nothing failed.
func (e Errors) orNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

type LoginForm struct {
	Email    string
	Password string
}

func (f LoginForm) Validate() error {
	errs := Errors{}
	if !validEmail(f.Email) {
		errs["email"] = "Enter a valid email address"
	}
	if utf8.RuneCountInString(f.Password) < minPasswordLength {
		errs["password"] = "Password must be at least 6 characters"
	}
	return errs.orNil()
}

type RegisterForm struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

func (f RegisterForm) Validate() error {
	errs := Errors{}
	if strings.TrimSpace(f.Name) == "" {
		errs["name"] = "Enter your name"
	}
	if !validEmail(f.Email) {
		errs["email"] = "Enter a valid email address"
	}
	if utf8.RuneCountInString(f.Password) < minPasswordLength {
		errs["password"] = "Password must be at least 6 characters"
	}
	switch {
	case utf8.RuneCountInString(f.ConfirmPassword) < minPasswordLength:
		errs["confirmPassword"] = "Confirm your password with at least 6 characters"
	case f.Password != f.ConfirmPassword:
		errs["confirmPassword"] = "Passwords do not match"
	}
	return errs.orNil()
}

func validEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// ParseOrderID reads an order id typed into the tracking box.
func ParseOrderID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 1 {
		return 0, ErrInvalidOrderID
	}
	return id, nil
}

func ParseItemID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 1 {
		return 0, ErrInvalidItemID
	}
	return id, nil
}

// ParseQuantity defaults an empty field to one.
func ParseQuantity(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, ErrInvalidQuantity
	}
	return n, nil
}

// ParseToppingIDs skips values that are not positive integers.
func ParseToppingIDs(values []string) []int64 {
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || id < 1 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
