package domain

// Product is a catalog entry for a laboratory service.
type Product struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Item is the cart-facing view of the product.
func (p Product) Item() Item {
	return Item{ID: p.ID, Name: p.Name, Price: p.Price}
}
