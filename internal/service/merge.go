package service

import (
	"context"

	"github.com/tabletrack/api/internal/model"
)

// Merge absorbs the source orders into the target order and removes them
// from the active set. Absorbed items keep their cartItemId and are
// stamped with the source's orderNumber as provenance unless they already
// carry one from an earlier split or merge. Sources that no longer exist
// (paid or cancelled by another station) are skipped, not errors: merges
// are best-effort over a possibly-stale local view. Total item quantity
// across all involved orders is unchanged; only its distribution moves.
func (s *Service) Merge(ctx context.Context, b *Branch, targetID string, sourceIDs ...string) (*model.ActiveOrder, error) {
	var (
		merged model.ActiveOrder
		opErr  error
	)
	err := b.Active.Update(ctx, func(orders []model.ActiveOrder) []model.ActiveOrder {
		out := cloneOrders(orders)

		tgt := -1
		for i := range out {
			if out[i].ID == targetID {
				tgt = i
				break
			}
		}
		if tgt < 0 {
			opErr = ErrOrderNotFound
			return orders
		}
		target := out[tgt]

		absorbed := make(map[string]struct{}, len(sourceIDs))
		for _, sourceID := range sourceIDs {
			if sourceID == targetID {
				continue
			}
			for i := range out {
				if out[i].ID != sourceID {
					continue
				}
				absorbItems(&target, out[i])
				absorbed[sourceID] = struct{}{}
				break
			}
		}
		target.Recalculate()
		merged = target.Clone()

		kept := make([]model.ActiveOrder, 0, len(out))
		for i, o := range out {
			if i == tgt {
				kept = append(kept, target)
				continue
			}
			if _, gone := absorbed[o.ID]; !gone {
				kept = append(kept, o)
			}
		}
		return kept
	})
	if opErr != nil {
		return nil, opErr
	}
	if err != nil {
		s.warnRemoteLag(b, "merge", err)
	}
	return &merged, nil
}

// MoveOrder relocates a whole order's items into an order on a different
// table (guest moved). It is the intra-table merge applied after
// verifying the destination order exists.
func (s *Service) MoveOrder(ctx context.Context, b *Branch, orderID, destOrderID string) (*model.ActiveOrder, error) {
	if _, ok := findOrder(b.Active.Get(), destOrderID); !ok {
		return nil, ErrOrderNotFound
	}
	return s.Merge(ctx, b, destOrderID, orderID)
}

// absorbItems concatenates the source's items into the target. A line
// whose cartItemId already exists on the target (a sibling created by an
// earlier split) is folded back by adding quantities, keeping cartItemId
// unique within the target.
func absorbItems(target *model.ActiveOrder, source model.ActiveOrder) {
	index := make(map[string]int, len(target.Items))
	for i, item := range target.Items {
		index[item.CartItemID] = i
	}

	for _, item := range source.Items {
		moved := item.Clone()
		if moved.OriginalOrderNumber == 0 {
			moved.OriginalOrderNumber = source.OrderNumber
		}
		if i, exists := index[moved.CartItemID]; exists {
			target.Items[i].Quantity += moved.Quantity
			continue
		}
		index[moved.CartItemID] = len(target.Items)
		target.Items = append(target.Items, moved)
	}
}
