package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SelectedOption is one chosen option on a cart item (e.g. "Size: Large").
// PriceDelta is already folded into the item's UnitPrice; it is kept for
// receipts and provenance.
type SelectedOption struct {
	Group      string          `json:"group"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

// OrderItem is one line of an order. CartItemID is stable across split and
// merge operations; OriginalOrderNumber traces which order the line was
// first placed on (0 when it has never left its original order).
type OrderItem struct {
	CartItemID          string           `json:"cart_item_id"`
	MenuItemID          string           `json:"menu_item_id"`
	Name                string           `json:"name"`
	Quantity            int              `json:"quantity"`
	UnitPrice           decimal.Decimal  `json:"unit_price"`
	Options             []SelectedOption `json:"options,omitempty"`
	Notes               string           `json:"notes,omitempty"`
	Takeaway            bool             `json:"takeaway,omitempty"`
	OriginalOrderNumber int              `json:"original_order_number,omitempty"`
}

// LineTotal returns unit price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Clone returns a deep copy of the item.
func (i OrderItem) Clone() OrderItem {
	out := i
	if i.Options != nil {
		out.Options = make([]SelectedOption, len(i.Options))
		copy(out.Options, i.Options)
	}
	return out
}

// ActiveOrder is an order that has not been paid or cancelled yet.
// ID is the creation timestamp in unix milliseconds (surrogate key);
// OrderNumber is the human-facing sequential number, unique within a
// branch across active, completed and cancelled orders.
type ActiveOrder struct {
	ID               string          `json:"id"`
	OrderNumber      int             `json:"order_number"`
	TableName        string          `json:"table_name"`
	Floor            string          `json:"floor"`
	CustomerName     string          `json:"customer_name,omitempty"`
	CustomerCount    int             `json:"customer_count,omitempty"`
	Items            []OrderItem     `json:"items"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Total            decimal.Decimal `json:"total"`
	Status           string          `json:"status"`
	OrderTime        time.Time       `json:"order_time"`
	CookingStartTime *time.Time      `json:"cooking_start_time,omitempty"`
	IsOverdue        bool            `json:"is_overdue,omitempty"`
	// ParentOrderID holds the orderNumber of the order this one was split
	// from, 0 for orders placed directly.
	ParentOrderID int `json:"parent_order_id,omitempty"`
}

// Clone returns a deep copy of the order.
func (o ActiveOrder) Clone() ActiveOrder {
	out := o
	out.Items = make([]OrderItem, len(o.Items))
	for i, it := range o.Items {
		out.Items[i] = it.Clone()
	}
	if o.CookingStartTime != nil {
		t := *o.CookingStartTime
		out.CookingStartTime = &t
	}
	return out
}

// Recalculate recomputes subtotal, tax and total from the current items at
// the order's tax rate. Called after any split or merge touches the items.
func (o *ActiveOrder) Recalculate() {
	subtotal := decimal.Zero
	for _, it := range o.Items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	o.Subtotal = subtotal
	o.TaxAmount = subtotal.Mul(o.TaxRate)
	o.Total = subtotal.Add(o.TaxAmount)
}

// Key returns the normalized table key the order occupies.
func (o ActiveOrder) Key() TableKey {
	return NewTableKey(o.TableName, o.Floor)
}

// PaymentDetails records how a completed order was settled.
type PaymentDetails struct {
	Method         string          `json:"method"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	ChangeAmount   decimal.Decimal `json:"change_amount"`
	Reference      string          `json:"reference,omitempty"`
}

// CompletedOrder is a paid order kept for history and reporting. The
// kitchen lifecycle fields (cooking start, overdue flag) are dropped.
type CompletedOrder struct {
	ID             string          `json:"id"`
	OrderNumber    int             `json:"order_number"`
	TableName      string          `json:"table_name"`
	Floor          string          `json:"floor"`
	CustomerName   string          `json:"customer_name,omitempty"`
	CustomerCount  int             `json:"customer_count,omitempty"`
	Items          []OrderItem     `json:"items"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Total          decimal.Decimal `json:"total"`
	OrderTime      time.Time       `json:"order_time"`
	CompletionTime time.Time       `json:"completion_time"`
	Payment        PaymentDetails  `json:"payment"`
}

// NewCompletedOrder builds the completed record for an active order.
func NewCompletedOrder(o ActiveOrder, completedAt time.Time, payment PaymentDetails) CompletedOrder {
	c := o.Clone()
	return CompletedOrder{
		ID:             c.ID,
		OrderNumber:    c.OrderNumber,
		TableName:      c.TableName,
		Floor:          c.Floor,
		CustomerName:   c.CustomerName,
		CustomerCount:  c.CustomerCount,
		Items:          c.Items,
		TaxRate:        c.TaxRate,
		TaxAmount:      c.TaxAmount,
		Subtotal:       c.Subtotal,
		Total:          c.Total,
		OrderTime:      c.OrderTime,
		CompletionTime: completedAt,
		Payment:        payment,
	}
}

// CancelledOrder is an order withdrawn before payment, kept for audit.
type CancelledOrder struct {
	ActiveOrder
	CancelledAt time.Time `json:"cancelled_at"`
	CancelledBy string    `json:"cancelled_by"`
	Reason      string    `json:"reason"`
	CancelNotes string    `json:"cancel_notes,omitempty"`
}
