package cartstore

import (
	"encoding/json"
	"fmt"

	"github.com/abdelhadiDevWeb/labocart/internal/domain"
)

// Encode writes the cart as the JSON array kept under the cart key:
// [{"id":1,"name":"...","price":"89€","quantity":2}]. An empty cart encodes
// as [] rather than null.
func Encode(cart domain.Cart) ([]byte, error) {
	items := cart.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode cart: %w", err)
	}
	return data, nil
}

// Decode parses a persisted cart. A value that is not a JSON array is an
// error. Inside a valid array, entries with a missing or bad field are
// dropped and counted, and entries repeating an id are merged into the first
// line by summing quantities.
func Decode(data []byte) (cart domain.Cart, dropped int, err error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Cart{}, 0, fmt.Errorf("decode cart: %w", err)
	}

	for _, entry := range raw {
		var line domain.LineItem
		if err := json.Unmarshal(entry, &line); err != nil {
			dropped++
			continue
		}
		item := domain.Item{ID: line.ID, Name: line.Name, Price: line.Price}
		if err := cart.Add(item, line.Quantity); err != nil {
			dropped++
		}
	}
	return cart, dropped, nil
}
