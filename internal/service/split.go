package service

import (
	"context"
	"fmt"

	"github.com/tabletrack/api/internal/model"
)

// Split carves the selected quantities out of an order into a new sibling
// order on the same table. selections maps cartItemId to the quantity to
// move. Selecting the full order is rejected; that is a payment, not a
// split. For every selected item, quantity before the split equals the
// quantity remaining in the source plus the quantity in the sibling.
func (s *Service) Split(ctx context.Context, b *Branch, orderID string, selections map[string]int) (*model.ActiveOrder, error) {
	if len(selections) == 0 {
		return nil, ErrEmptySelection
	}

	var (
		sibling model.ActiveOrder
		opErr   error
	)
	err := b.Active.Update(ctx, func(orders []model.ActiveOrder) []model.ActiveOrder {
		out := cloneOrders(orders)

		src := -1
		for i := range out {
			if out[i].ID == orderID {
				src = i
				break
			}
		}
		if src < 0 {
			opErr = ErrOrderNotFound
			return orders
		}
		source := &out[src]

		items := make(map[string]*model.OrderItem, len(source.Items))
		for i := range source.Items {
			items[source.Items[i].CartItemID] = &source.Items[i]
		}

		for cartItemID, qty := range selections {
			item, ok := items[cartItemID]
			if !ok {
				opErr = fmt.Errorf("%w: %s", ErrSplitItemNotFound, cartItemID)
				return orders
			}
			if qty <= 0 {
				opErr = ErrInvalidQuantity
				return orders
			}
			if qty > item.Quantity {
				opErr = fmt.Errorf("%w: %s", ErrSplitQuantity, cartItemID)
				return orders
			}
		}
		if isFullSplit(source.Items, selections) {
			opErr = ErrFullSplit
			return orders
		}

		now := s.now()
		sibling = model.ActiveOrder{
			ID:            s.newOrderID(now),
			OrderNumber:   s.alloc.Next(b),
			TableName:     source.TableName,
			Floor:         source.Floor,
			CustomerName:  source.CustomerName,
			CustomerCount: source.CustomerCount,
			TaxRate:       source.TaxRate,
			Status:        source.Status,
			OrderTime:     now,
			ParentOrderID: source.OrderNumber,
		}

		for i := range source.Items {
			item := &source.Items[i]
			qty, selected := selections[item.CartItemID]
			if !selected {
				continue
			}
			moved := item.Clone()
			moved.Quantity = qty
			if moved.OriginalOrderNumber == 0 {
				moved.OriginalOrderNumber = source.OrderNumber
			}
			sibling.Items = append(sibling.Items, moved)
			item.Quantity -= qty
		}

		// drop lines whose quantity reached zero
		kept := source.Items[:0]
		for _, item := range source.Items {
			if item.Quantity > 0 {
				kept = append(kept, item)
			}
		}
		source.Items = kept

		source.Recalculate()
		sibling.Recalculate()
		return append(out, sibling)
	})
	if opErr != nil {
		return nil, opErr
	}
	if err != nil {
		s.warnRemoteLag(b, "split", err)
	}
	return &sibling, nil
}

// isFullSplit reports whether the selections cover every item at its full
// quantity, i.e. nothing would remain in the source order.
func isFullSplit(items []model.OrderItem, selections map[string]int) bool {
	for _, item := range items {
		if selections[item.CartItemID] != item.Quantity {
			return false
		}
	}
	return true
}
