package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Order is the snapshot delivered by the order pipeline.
type Order struct {
	TenantID     int64       `json:"tenant_id"`
	RestaurantID int64       `json:"restaurant_id"`
	OrderID      int64       `json:"order_id"`
	Number       string      `json:"number,omitempty"`
	Table        string      `json:"table,omitempty"`
	Note         string      `json:"note,omitempty"`
	CreatedAt    time.Time   `json:"created_at,omitempty"`
	Items        []OrderItem `json:"items"`
}

type OrderItem struct {
	CategoryID  int64    `json:"category_id"`
	Name        string   `json:"name"`
	Qty         int      `json:"qty"`
	Price       float64  `json:"price"`
	Adjustments []string `json:"adjustments,omitempty"`
}

// Validate checks the fields dispatch relies on.
func (o *Order) Validate() error {
	if o.TenantID <= 0 {
		return errors.New("tenant_id is required")
	}
	if o.OrderID <= 0 {
		return errors.New("order_id is required")
	}
	for i, item := range o.Items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("items[%d]: name is required", i)
		}
		if item.Qty <= 0 {
			return fmt.Errorf("items[%d]: qty must be positive", i)
		}
	}
	return nil
}

// CategorySet returns the distinct category ids of the order's items.
func (o *Order) CategorySet() map[int64]struct{} {
	set := make(map[int64]struct{}, len(o.Items))
	for _, item := range o.Items {
		set[item.CategoryID] = struct{}{}
	}
	return set
}

// Total sums qty*price over all items.
func (o *Order) Total() float64 {
	var total float64
	for _, item := range o.Items {
		total += float64(item.Qty) * item.Price
	}
	return total
}

// DisplayNumber is the human order reference printed on tickets.
func (o *Order) DisplayNumber() string {
	if o.Number != "" {
		return o.Number
	}
	return fmt.Sprintf("%d", o.OrderID)
}
