package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidItem     = errors.New("invalid cart item")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Item is a product as it is handed to the cart, before a quantity is attached.
type Item struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

// Validate checks the fields a line item cannot live without.
func (i Item) Validate() error {
	if i.ID <= 0 {
		return fmt.Errorf("%w: id must be positive, got %d", ErrInvalidItem, i.ID)
	}
	if i.Name == "" {
		return fmt.Errorf("%w: item %d has no name", ErrInvalidItem, i.ID)
	}
	if _, err := ParsePrice(i.Price); err != nil {
		return fmt.Errorf("%w: item %d: %w", ErrInvalidItem, i.ID, err)
	}
	return nil
}

// LineItem is one product entry in the cart. Price keeps the display string
// the catalog supplied; UnitPrice parses it.
type LineItem struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

func (l LineItem) UnitPrice() (decimal.Decimal, error) {
	return ParsePrice(l.Price)
}

// Amount is UnitPrice × Quantity.
func (l LineItem) Amount() (decimal.Decimal, error) {
	p, err := l.UnitPrice()
	if err != nil {
		return decimal.Zero, err
	}
	return p.Mul(decimal.NewFromInt(int64(l.Quantity))), nil
}

// Cart is an ordered list of line items with at most one line per ID and
// every quantity >= 1. Insertion order is kept for display.
type Cart struct {
	Items []LineItem `json:"items"`
}

func (c *Cart) index(id int64) int {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Add increments the line for item.ID by quantity, appending a new line when
// the cart does not hold the product yet. No business cap is enforced, but an
// add that would overflow int for the line or for TotalItems is rejected.
func (c *Cart) Add(item Item, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	if err := item.Validate(); err != nil {
		return err
	}
	if quantity > math.MaxInt-c.TotalItems() {
		return fmt.Errorf("%w: adding %d of item %d overflows the cart", ErrInvalidQuantity, quantity, item.ID)
	}

	if i := c.index(item.ID); i >= 0 {
		c.Items[i].Quantity += quantity
		return nil
	}
	c.Items = append(c.Items, LineItem{
		ID:       item.ID,
		Name:     item.Name,
		Price:    item.Price,
		Quantity: quantity,
	})
	return nil
}

// Remove deletes the line for id and reports whether one existed.
func (c *Cart) Remove(id int64) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

// SetQuantity overwrites the quantity for id. A quantity <= 0 removes the
// line. It reports whether the cart changed.
func (c *Cart) SetQuantity(id int64, quantity int) bool {
	if quantity <= 0 {
		return c.Remove(id)
	}
	i := c.index(id)
	if i < 0 || c.Items[i].Quantity == quantity {
		return false
	}
	c.Items[i].Quantity = quantity
	return true
}

// CheckQuantity reports ErrInvalidQuantity when setting the line for id to
// quantity would overflow TotalItems.
func (c Cart) CheckQuantity(id int64, quantity int) error {
	if quantity <= 0 {
		return nil
	}
	rest := c.TotalItems()
	if line, ok := c.Find(id); ok {
		rest -= line.Quantity
	}
	if quantity > math.MaxInt-rest {
		return fmt.Errorf("%w: %d of item %d overflows the cart", ErrInvalidQuantity, quantity, id)
	}
	return nil
}

func (c *Cart) Clear() {
	c.Items = nil
}

func (c Cart) Len() int {
	return len(c.Items)
}

func (c Cart) Find(id int64) (LineItem, bool) {
	if i := c.index(id); i >= 0 {
		return c.Items[i], true
	}
	return LineItem{}, false
}

func (c Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// TotalPrice sums UnitPrice × Quantity over all lines. Lines whose price does
// not parse contribute nothing; Add and the snapshot decoder never let such a
// line in.
func (c Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		amount, err := item.Amount()
		if err != nil {
			continue
		}
		total = total.Add(amount)
	}
	return total
}

// Clone returns a deep copy safe to hand to readers.
func (c Cart) Clone() Cart {
	if c.Items == nil {
		return Cart{}
	}
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}

// Equal compares two carts line by line, order included.
func (c Cart) Equal(other Cart) bool {
	if len(c.Items) != len(other.Items) {
		return false
	}
	for i := range c.Items {
		if c.Items[i] != other.Items[i] {
			return false
		}
	}
	return true
}
