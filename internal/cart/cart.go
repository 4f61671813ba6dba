package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartcafe/storefront/internal/domain"
)

var ErrInvalidQuantity = errors.New("quantity must be a positive integer")

// ToppingPrices maps topping id to unit price.
type ToppingPrices map[int64]decimal.Decimal

type Line struct {
	Key        string          `json:"key"`
	ItemID     int64           `json:"item_id"`
	ToppingIDs []int64         `json:"topping_ids"`
	Name       string          `json:"name"`
	Image      string          `json:"img,omitempty"`
	Quantity   int             `json:"qty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	AddedAt    time.Time       `json:"added_at"`
}

func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is a visitor's order in progress. It is not safe for concurrent use.
type Cart struct {
	lines map[string]*Line
	order []string
}

func New() *Cart {
	return &Cart{lines: make(map[string]*Line)}
}

// Key identifies a line by item and topping set; topping order does not matter.
func Key(itemID int64, toppingIDs []int64) string {
	ids := normalizeToppings(toppingIDs)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("%d__%s", itemID, strings.Join(parts, "_"))
}

func normalizeToppings(ids []int64) []int64 {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}

// AddLine merges into an existing line with the same key or appends a new
// one. Unit price is fixed here; toppings missing from known add nothing.
// A merge that would overflow the line's quantity is rejected.
func (c *Cart) AddLine(item domain.MenuItem, quantity int, toppingIDs []int64, known ToppingPrices) (Line, error) {
	if quantity < 1 {
		return Line{}, ErrInvalidQuantity
	}
	key := Key(item.ID, toppingIDs)
	if existing, ok := c.lines[key]; ok {
		if !canAdd(existing.Quantity, quantity) {
			return Line{}, ErrInvalidQuantity
		}
		existing.Quantity += quantity
		return *existing, nil
	}

	toppings := normalizeToppings(toppingIDs)
	unit := item.Price
	for _, id := range toppings {
		if price, ok := known[id]; ok {
			unit = unit.Add(price)
		}
	}
	line := &Line{
		Key:        key,
		ItemID:     item.ID,
		ToppingIDs: toppings,
		Name:       item.Name,
		Image:      item.Image,
		Quantity:   quantity,
		UnitPrice:  unit,
		AddedAt:    time.Now().UTC(),
	}
	c.lines[key] = line
	c.order = append(c.order, key)
	return *line, nil
}

// Increment is a no-op returning false for an absent key or a line at the
// largest representable quantity.
func (c *Cart) Increment(key string) bool {
	line, ok := c.lines[key]
	if !ok || !canAdd(line.Quantity, 1) {
		return false
	}
	line.Quantity++
	return true
}

// Decrement removes the line when it drops below one.
func (c *Cart) Decrement(key string) bool {
	line, ok := c.lines[key]
	if !ok {
		return false
	}
	if line.Quantity <= 1 {
		c.remove(key)
		return true
	}
	line.Quantity--
	return true
}

func canAdd(have, more int) bool {
	return more <= math.MaxInt-have
}

func (c *Cart) remove(key string) {
	delete(c.lines, key)
	c.order = slices.DeleteFunc(c.order, func(k string) bool { return k == key })
}

func (c *Cart) Clear() {
	c.lines = make(map[string]*Line)
	c.order = nil
}

// Total is recomputed from the lines on every call.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, key := range c.order {
		total = total.Add(c.lines[key].Total())
	}
	return total
}

// Lines returns copies in the order they were first added.
func (c *Cart) Lines() []Line {
	out := make([]Line, 0, len(c.order))
	for _, key := range c.order {
		l := *c.lines[key]
		l.ToppingIDs = slices.Clone(l.ToppingIDs)
		out = append(out, l)
	}
	return out
}

func (c *Cart) Line(key string) (Line, bool) {
	l, ok := c.lines[key]
	if !ok {
		return Line{}, false
	}
	return *l, true
}

func (c *Cart) Len() int {
	return len(c.order)
}

func (c *Cart) IsEmpty() bool {
	return len(c.order) == 0
}

func (c *Cart) Quantity() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Lines []Line `json:"lines"`
	}{Lines: c.Lines()})
}

// UnmarshalJSON drops lines that would break the quantity invariant.
func (c *Cart) UnmarshalJSON(data []byte) error {
	var raw struct {
		Lines []Line `json:"lines"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Clear()
	for _, l := range raw.Lines {
		if l.Quantity < 1 {
			continue
		}
		l.ToppingIDs = normalizeToppings(l.ToppingIDs)
		l.Key = Key(l.ItemID, l.ToppingIDs)
		if existing, dup := c.lines[l.Key]; dup {
			if canAdd(existing.Quantity, l.Quantity) {
				existing.Quantity += l.Quantity
			}
			continue
		}
		line := l
		c.lines[l.Key] = &line
		c.order = append(c.order, l.Key)
	}
	return nil
}
