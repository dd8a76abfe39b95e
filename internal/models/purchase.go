package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PurchaseItem is one line of a purchase. On the wire it is either a plain
// string ("Widget ($10)") or an object {"name": "Widget", "price": 10}; the form
// it arrived in is the form it is written back in.
type PurchaseItem struct {
	Name  string   `json:"name" validate:"required,not-blank"`
	Price *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`

	structured bool
}

// TextItem builds a free-form line item.
func TextItem(description string) PurchaseItem {
	return PurchaseItem{Name: description}
}

// PricedItem builds a structured name+price line item.
func PricedItem(name string, price float64) PurchaseItem {
	return PurchaseItem{Name: name, Price: &price, structured: true}
}

// Structured reports whether the item is written as an object.
func (i PurchaseItem) Structured() bool {
	return i.structured || i.Price != nil
}

func (i PurchaseItem) MarshalJSON() ([]byte, error) {
	if !i.Structured() {
		return json.Marshal(i.Name)
	}
	type object struct {
		Name  string   `json:"name"`
		Price *float64 `json:"price,omitempty"`
	}
	return json.Marshal(object{Name: i.Name, Price: i.Price})
}

func (i *PurchaseItem) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty purchase item")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = PurchaseItem{Name: s}
		return nil
	case '{':
		var obj struct {
			Name  string   `json:"name"`
			Price *float64 `json:"price"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*i = PurchaseItem{Name: obj.Name, Price: obj.Price, structured: true}
		return nil
	default:
		return fmt.Errorf("purchase item must be a string or an object, got %s", data)
	}
}

// PurchaseRecord is one settled (or attempted) transaction in a customer's history.
type PurchaseRecord struct {
	TransactionID string         `json:"transactionId,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Items         []PurchaseItem `json:"items"`
	Amount        float64        `json:"amount"`
	Status        PurchaseStatus `json:"status"`
	Method        string         `json:"method"`
}

// PurchaseInput is what callers hand to the ledger. Timestamp is normally left nil
// and assigned by the ledger at append time.
type PurchaseInput struct {
	TransactionID string
	Items         []PurchaseItem
	Amount        float64
	Status        PurchaseStatus
	Method        string
	Timestamp     *time.Time
}

// ItemsFromStrings is a convenience for free-form line items.
func ItemsFromStrings(lines ...string) []PurchaseItem {
	items := make([]PurchaseItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, TextItem(l))
	}
	return items
}
