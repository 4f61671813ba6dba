package backend

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// number accepts a JSON number or a numeric string. A present value that
// cannot be read as a finite number decodes to zero.
type number struct {
	value decimal.Decimal
	set   bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	if bytes.Equal(raw, []byte("null")) {
		return nil
	}
	n.set = true
	s := string(raw)
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			n.value = decimal.Zero
			return nil
		}
		s = strings.TrimSpace(unquoted)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		n.value = decimal.Zero
		return nil
	}
	n.value = d
	return nil
}

// firstPrice returns the first field that was present, or zero.
func firstPrice(candidates ...number) decimal.Decimal {
	for _, c := range candidates {
		if c.set {
			return c.value
		}
	}
	return decimal.Zero
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// timestamp tolerates the formats the backend has been seen to emit.
type timestamp struct {
	t *time.Time
}

func (ts *timestamp) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" || raw == `""` {
		return nil
	}
	s, err := strconv.Unquote(raw)
	if err != nil {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			ts.t = &parsed
			return nil
		}
	}
	return nil
}

func (ts timestamp) value() time.Time {
	if ts.t == nil {
		return time.Time{}
	}
	return *ts.t
}

func (ts timestamp) ptr() *time.Time {
	return ts.t
}

// text accepts a JSON string or number and keeps its textual form.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}
	if s, err := strconv.Unquote(raw); err == nil {
		*t = text(s)
		return nil
	}
	*t = text(raw)
	return nil
}
