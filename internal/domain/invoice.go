package domain

import "github.com/shopspring/decimal"

// DefaultTaxRate is the flat VAT rate applied to every invoice.
var DefaultTaxRate = decimal.RequireFromString("0.20")

type InvoiceLine struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
}

// Invoice is a presentation-only breakdown of the cart. It is never stored.
type Invoice struct {
	Lines    []InvoiceLine   `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	TaxRate  decimal.Decimal `json:"tax_rate"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// NewInvoice derives subtotal = Σ unit price × quantity, tax = subtotal × rate
// and total = subtotal + tax.
func NewInvoice(cart Cart, rate decimal.Decimal) Invoice {
	inv := Invoice{
		Lines:    make([]InvoiceLine, 0, len(cart.Items)),
		Subtotal: decimal.Zero,
		TaxRate:  rate,
	}

	for _, item := range cart.Items {
		unit, err := item.UnitPrice()
		if err != nil {
			continue
		}
		amount := unit.Mul(decimal.NewFromInt(int64(item.Quantity)))
		inv.Lines = append(inv.Lines, InvoiceLine{
			ID:        item.ID,
			Name:      item.Name,
			UnitPrice: unit,
			Quantity:  item.Quantity,
			Amount:    amount,
		})
		inv.Subtotal = inv.Subtotal.Add(amount)
	}

	inv.Tax = inv.Subtotal.Mul(rate)
	inv.Total = inv.Subtotal.Add(inv.Tax)
	return inv
}
