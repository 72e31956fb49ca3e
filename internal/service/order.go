package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tabletrack/api/internal/enum"
	"github.com/tabletrack/api/internal/model"
	"github.com/tabletrack/api/internal/remote"
)

// Errors returned by the order service. The validation errors block the
// operation with no side effects; ErrOrderNotFound is a visible error for
// payment/cancel but a silent skip for merge sources.
var (
	ErrNoTable           = errors.New("table is required")
	ErrEmptyItems        = errors.New("items are required")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptySelection    = errors.New("no items selected")
	ErrSplitItemNotFound = errors.New("selected item not found in order")
	ErrSplitQuantity     = errors.New("selected quantity exceeds item quantity")
	ErrFullSplit         = errors.New("cannot split the entire order, use payment instead")
)

// numberAllocator isolates fallback order numbering so it can later be
// swapped for a server-side atomic counter without touching calling code.
type numberAllocator interface {
	Next(b *Branch) int
}

// localMaxAllocator assigns max(existing active+completed numbers)+1.
// Two stations allocating inside the same propagation window can issue
// the same number; that is the documented risk of the fallback path.
type localMaxAllocator struct{}

func (localMaxAllocator) Next(b *Branch) int {
	max := 0
	for _, o := range b.Active.Get() {
		if o.OrderNumber > max {
			max = o.OrderNumber
		}
	}
	for _, o := range b.Completed.Get() {
		if o.OrderNumber > max {
			max = o.OrderNumber
		}
	}
	return max + 1
}

// Service owns the order lifecycle: place, kitchen transitions, payment,
// cancellation, and the split/merge bill operations.
type Service struct {
	backend remote.Backend
	printer remote.Printer
	log     *logrus.Entry

	alloc      numberAllocator
	now        func() time.Time
	newOrderID func(time.Time) string
}

func New(backend remote.Backend, printer remote.Printer, log *logrus.Entry) *Service {
	return &Service{
		backend:    backend,
		printer:    printer,
		log:        log,
		alloc:      localMaxAllocator{},
		now:        time.Now,
		newOrderID: func(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) },
	}
}

// PlaceRequest is the validated input for placing an order.
type PlaceRequest struct {
	TableName     string
	Floor         string
	CustomerName  string
	CustomerCount int
	Items         []model.OrderItem
	SendToKitchen bool
}

// PlaceResult reports what happened alongside the stored order.
// FallbackUsed means the remote authority was unreachable and the order
// number was computed locally; PrintWarning is a non-fatal kitchen print
// failure. Both are operator warnings, not errors.
type PlaceResult struct {
	Order        model.ActiveOrder
	FallbackUsed bool
	PrintWarning error
}

// Place validates the request, prices it against the branch's current tax
// configuration, and asks the remote authority for an order number. When
// the remote call fails in any way the order is numbered locally and
// written straight into the active collection.
func (s *Service) Place(ctx context.Context, b *Branch, req PlaceRequest) (*PlaceResult, error) {
	if strings.TrimSpace(req.TableName) == "" {
		return nil, ErrNoTable
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}

	settings := b.Settings.Get()
	now := s.now()

	order := model.ActiveOrder{
		ID:            s.newOrderID(now),
		TableName:     req.TableName,
		Floor:         req.Floor,
		CustomerName:  req.CustomerName,
		CustomerCount: req.CustomerCount,
		Items:         make([]model.OrderItem, len(req.Items)),
		TaxRate:       settings.TaxRate,
		OrderTime:     now,
	}
	for i, it := range req.Items {
		item := it.Clone()
		if item.CartItemID == "" {
			item.CartItemID = uuid.NewString()
		}
		order.Items[i] = item
	}
	order.Recalculate()

	if req.SendToKitchen {
		order.Status = enum.OrderStatusWaiting
	} else {
		order.Status = enum.OrderStatusServed
	}

	result := &PlaceResult{}
	number, err := s.backend.PlaceOrder(ctx, remote.PlaceOrderRequest{
		BranchID:      b.ID,
		Order:         order,
		SendToKitchen: req.SendToKitchen,
	})
	if err != nil {
		result.FallbackUsed = true
		number = s.alloc.Next(b)
		s.log.WithError(err).WithFields(logrus.Fields{
			"branch":       b.ID,
			"order_number": number,
		}).Warn("remote place failed, using local order number")
	}
	order.OrderNumber = number

	if err := b.Active.Update(ctx, func(orders []model.ActiveOrder) []model.ActiveOrder {
		return append(cloneOrders(orders), order)
	}); err != nil {
		s.warnRemoteLag(b, "place", err)
	}

	if req.SendToKitchen && settings.Printer != nil {
		if err := s.printer.PrintKitchenOrder(ctx, order, *settings.Printer); err != nil {
			result.PrintWarning = err
			s.log.WithError(err).WithField("branch", b.ID).Warn("kitchen print failed")
		}
	}

	result.Order = order
	return result, nil
}

// StartCooking moves a waiting order to cooking and stamps the cooking
// start time once. Unknown IDs and repeated calls are no-ops.
func (s *Service) StartCooking(ctx context.Context, b *Branch, orderID string) error {
	err := b.Active.Update(ctx, func(orders []model.ActiveOrder) []model.ActiveOrder {
		out := cloneOrders(orders)
		for i := range out {
			if out[i].ID != orderID || out[i].Status != enum.OrderStatusWaiting {
				continue
			}
			out[i].Status = enum.OrderStatusCooking
			if out[i].CookingStartTime == nil {
				t := s.now()
				out[i].CookingStartTime = &t
			}
		}
		return out
	})
	if err != nil {
		s.warnRemoteLag(b, "start cooking", err)
	}
	return nil
}

// CompleteServing moves a waiting or cooking order to served.
func (s *Service) CompleteServing(ctx context.Context, b *Branch, orderID string) error {
	err := b.Active.Update(ctx, func(orders []model.ActiveOrder) []model.ActiveOrder {
		out := cloneOrders(orders)
		for i := range out {
			if out[i].ID != orderID {
				continue
			}
			switch out[i].Status {
			case enum.OrderStatusWaiting, enum.OrderStatusCooking:
				out[i].Status = enum.OrderStatusServed
			}
		}
		return out
	})
	if err != nil {
		s.warnRemoteLag(b, "complete serving", err)
	}
	return nil
}

// PaymentResult is the terminal payment outcome.
type PaymentResult struct {
	Order        model.CompletedOrder
	FallbackUsed bool
}

// ConfirmPayment closes an active order. The remote authority is expected
// to move the order between stores atomically; when it is unreachable the
// same move is applied to the local mirrors. Either way the table's
// active PIN is cleared.
func (s *Service) ConfirmPayment(ctx context.Context, b *Branch, orderID string, payment model.PaymentDetails) (*PaymentResult, error) {
	order, ok := findOrder(b.Active.Get(), orderID)
	if !ok {
		return nil, ErrOrderNotFound
	}

	completed := model.NewCompletedOrder(order, s.now(), payment)
	result := &PaymentResult{Order: completed}

	err := s.backend.ConfirmPayment(ctx, remote.ConfirmPaymentRequest{
		BranchID: b.ID,
		OrderID:  orderID,
		Order:    completed,
	})
	if err != nil {
		result.FallbackUsed = true
		s.log.WithError(err).WithFields(logrus.Fields{
			"branch":       b.ID,
			"order_number": order.OrderNumber,
		}).Warn("remote payment confirmation failed, moving order locally")

		if err := b.Completed.Update(ctx, func(orders []model.CompletedOrder) []model.CompletedOrder {
			out := make([]model.CompletedOrder, len(orders), len(orders)+1)
			copy(out, orders)
			return append(out, completed)
		}); err != nil {
			s.warnRemoteLag(b, "confirm payment", err)
		}
		if err := b.Active.Update(ctx, func(orders []model.ActiveOrder) []model.ActiveOrder {
			return removeOrder(cloneOrders(orders), orderID)
		}); err != nil {
			s.warnRemoteLag(b, "confirm payment", err)
		}
	}

	s.clearTablePin(ctx, b, order.Key())
	return result, nil
}

// Cancel withdraws an active order into the cancelled collection. There
// is no remote call for cancellation; the move is always local and
// propagates through the synced collections.
func (s *Service) Cancel(ctx context.Context, b *Branch, orderID, reason, notes, actor string) (*model.CancelledOrder, error) {
	order, ok := findOrder(b.Active.Get(), orderID)
	if !ok {
		return nil, ErrOrderNotFound
	}

	cancelled := model.CancelledOrder{
		ActiveOrder: order.Clone(),
		CancelledAt: s.now(),
		CancelledBy: actor,
		Reason:      reason,
		CancelNotes: notes,
	}

	if err := b.Cancelled.Update(ctx, func(orders []model.CancelledOrder) []model.CancelledOrder {
		out := make([]model.CancelledOrder, len(orders), len(orders)+1)
		copy(out, orders)
		return append(out, cancelled)
	}); err != nil {
		s.warnRemoteLag(b, "cancel", err)
	}
	if err := b.Active.Update(ctx, func(orders []model.ActiveOrder) []model.ActiveOrder {
		return removeOrder(cloneOrders(orders), orderID)
	}); err != nil {
		s.warnRemoteLag(b, "cancel", err)
	}

	return &cancelled, nil
}

func (s *Service) clearTablePin(ctx context.Context, b *Branch, key model.TableKey) {
	err := b.Tables.Update(ctx, func(tables []model.Table) []model.Table {
		out := make([]model.Table, len(tables))
		copy(out, tables)
		for i := range out {
			if out[i].Key() == key {
				out[i].ActivePin = ""
			}
		}
		return out
	})
	if err != nil {
		s.warnRemoteLag(b, "clear table pin", err)
	}
}

// warnRemoteLag downgrades an optimistic-write failure: the local mirror
// already holds the mutation, the shared store just has not caught up.
func (s *Service) warnRemoteLag(b *Branch, op string, err error) {
	s.log.WithError(err).WithFields(logrus.Fields{
		"branch": b.ID,
		"op":     op,
	}).Warn("local mirror ahead of shared store")
}

func findOrder(orders []model.ActiveOrder, orderID string) (model.ActiveOrder, bool) {
	for _, o := range orders {
		if o.ID == orderID {
			return o, true
		}
	}
	return model.ActiveOrder{}, false
}

func removeOrder(orders []model.ActiveOrder, orderID string) []model.ActiveOrder {
	out := orders[:0]
	for _, o := range orders {
		if o.ID != orderID {
			out = append(out, o)
		}
	}
	return out
}

func cloneOrders(orders []model.ActiveOrder) []model.ActiveOrder {
	out := make([]model.ActiveOrder, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}
