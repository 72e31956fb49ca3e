package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tabletrack/api/internal/enum"
	"github.com/tabletrack/api/internal/model"
	"github.com/tabletrack/api/internal/remote"
	"github.com/tabletrack/api/internal/transport"
)

// --- test fixtures ---

type fakeBackend struct {
	placeFn   func(ctx context.Context, req remote.PlaceOrderRequest) (int, error)
	confirmFn func(ctx context.Context, req remote.ConfirmPaymentRequest) error
}

func (f *fakeBackend) PlaceOrder(ctx context.Context, req remote.PlaceOrderRequest) (int, error) {
	if f.placeFn != nil {
		return f.placeFn(ctx, req)
	}
	return 0, remote.ErrUnavailable
}

func (f *fakeBackend) ConfirmPayment(ctx context.Context, req remote.ConfirmPaymentRequest) error {
	if f.confirmFn != nil {
		return f.confirmFn(ctx, req)
	}
	return remote.ErrUnavailable
}

type fakePrinter struct {
	printFn func(ctx context.Context, order model.ActiveOrder, cfg model.PrinterConfig) error
	calls   int
}

func (f *fakePrinter) PrintKitchenOrder(ctx context.Context, order model.ActiveOrder, cfg model.PrinterConfig) error {
	f.calls++
	if f.printFn != nil {
		return f.printFn(ctx, order, cfg)
	}
	return nil
}

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func testBranch(t *testing.T) *Branch {
	t.Helper()
	b, err := OpenBranch(context.Background(), transport.NewMemory(), "b1", testLog())
	if err != nil {
		t.Fatalf("open branch: %v", err)
	}
	return b
}

func testService(backend remote.Backend, printer remote.Printer) *Service {
	s := New(backend, printer, testLog())
	return s
}

func placeRequest() PlaceRequest {
	return PlaceRequest{
		TableName: "T1",
		Floor:     "1",
		Items: []model.OrderItem{
			{CartItemID: "c1", MenuItemID: "m1", Name: "Nasi Goreng", Quantity: 2, UnitPrice: decimal.NewFromInt(25000)},
			{CartItemID: "c2", MenuItemID: "m2", Name: "Es Teh", Quantity: 1, UnitPrice: decimal.NewFromInt(5000)},
		},
		SendToKitchen: true,
	}
}

// --- placing ---

func TestPlaceUsesBackendNumber(t *testing.T) {
	b := testBranch(t)
	backend := &fakeBackend{
		placeFn: func(_ context.Context, req remote.PlaceOrderRequest) (int, error) {
			if req.BranchID != "b1" {
				t.Errorf("branch ID = %q, want b1", req.BranchID)
			}
			return 42, nil
		},
	}
	s := testService(backend, &fakePrinter{})

	result, err := s.Place(context.Background(), b, placeRequest())
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if result.FallbackUsed {
		t.Error("fallback used with healthy backend")
	}
	if result.Order.OrderNumber != 42 {
		t.Errorf("order number = %d, want 42", result.Order.OrderNumber)
	}
	if result.Order.Status != enum.OrderStatusWaiting {
		t.Errorf("status = %q, want %q", result.Order.Status, enum.OrderStatusWaiting)
	}

	active := b.Active.Get()
	if len(active) != 1 {
		t.Fatalf("active orders = %d, want 1", len(active))
	}
	// 2*25000 + 5000 = 55000, 10% default tax
	if !active[0].Subtotal.Equal(decimal.NewFromInt(55000)) {
		t.Errorf("subtotal = %s, want 55000", active[0].Subtotal)
	}
	if !active[0].Total.Equal(decimal.NewFromInt(60500)) {
		t.Errorf("total = %s, want 60500", active[0].Total)
	}
}

func TestPlaceFallsBackToLocalNumber(t *testing.T) {
	b := testBranch(t)
	s := testService(&fakeBackend{}, &fakePrinter{})

	// existing orders set the local high-water mark
	if err := b.Active.Set(context.Background(), []model.ActiveOrder{
		{ID: "o1", OrderNumber: 7, TableName: "T2", Status: enum.OrderStatusWaiting},
	}); err != nil {
		t.Fatalf("seed active: %v", err)
	}
	if err := b.Completed.Set(context.Background(), []model.CompletedOrder{
		{ID: "o0", OrderNumber: 11},
	}); err != nil {
		t.Fatalf("seed completed: %v", err)
	}

	result, err := s.Place(context.Background(), b, placeRequest())
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !result.FallbackUsed {
		t.Error("fallback not reported")
	}
	if result.Order.OrderNumber != 12 {
		t.Errorf("order number = %d, want max(7,11)+1 = 12", result.Order.OrderNumber)
	}
}

func TestPlaceDineInSkipsKitchen(t *testing.T) {
	b := testBranch(t)
	printer := &fakePrinter{}
	s := testService(&fakeBackend{placeFn: func(context.Context, remote.PlaceOrderRequest) (int, error) { return 1, nil }}, printer)

	req := placeRequest()
	req.SendToKitchen = false
	result, err := s.Place(context.Background(), b, req)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if result.Order.Status != enum.OrderStatusServed {
		t.Errorf("status = %q, want %q", result.Order.Status, enum.OrderStatusServed)
	}
	if printer.calls != 0 {
		t.Errorf("printer called %d times for non-kitchen order", printer.calls)
	}
}

func TestPlacePrintFailureIsAWarning(t *testing.T) {
	b := testBranch(t)
	if err := b.Settings.Set(context.Background(), model.BranchSettings{
		TaxRate: decimal.NewFromFloat(0.1),
		Printer: &model.PrinterConfig{Name: "kitchen", URL: "http://printer"},
	}); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	printErr := errors.New("printer offline")
	printer := &fakePrinter{printFn: func(context.Context, model.ActiveOrder, model.PrinterConfig) error { return printErr }}
	s := testService(&fakeBackend{placeFn: func(context.Context, remote.PlaceOrderRequest) (int, error) { return 1, nil }}, printer)

	result, err := s.Place(context.Background(), b, placeRequest())
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !errors.Is(result.PrintWarning, printErr) {
		t.Errorf("print warning = %v, want %v", result.PrintWarning, printErr)
	}
	if len(b.Active.Get()) != 1 {
		t.Error("order not stored despite print failure")
	}
}

func TestPlaceValidation(t *testing.T) {
	b := testBranch(t)
	s := testService(&fakeBackend{}, &fakePrinter{})

	tests := []struct {
		name string
		mod  func(*PlaceRequest)
		want error
	}{
		{"no table", func(r *PlaceRequest) { r.TableName = "  " }, ErrNoTable},
		{"no items", func(r *PlaceRequest) { r.Items = nil }, ErrEmptyItems},
		{"zero quantity", func(r *PlaceRequest) { r.Items[0].Quantity = 0 }, ErrInvalidQuantity},
		{"negative quantity", func(r *PlaceRequest) { r.Items[1].Quantity = -1 }, ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := placeRequest()
			tt.mod(&req)
			if _, err := s.Place(context.Background(), b, req); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if len(b.Active.Get()) != 0 {
				t.Error("rejected order was stored")
			}
		})
	}
}

// --- kitchen transitions ---

func TestStartCooking(t *testing.T) {
	b := testBranch(t)
	s := testService(&fakeBackend{}, &fakePrinter{})
	start := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return start }

	if err := b.Active.Set(context.Background(), []model.ActiveOrder{
		{ID: "o1", OrderNumber: 1, TableName: "T1", Status: enum.OrderStatusWaiting},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := s.StartCooking(context.Background(), b, "o1"); err != nil {
		t.Fatalf("start cooking: %v", err)
	}
	got := b.Active.Get()[0]
	if got.Status != enum.OrderStatusCooking {
		t.Errorf("status = %q, want %q", got.Status, enum.OrderStatusCooking)
	}
	if got.CookingStartTime == nil || !got.CookingStartTime.Equal(start) {
		t.Errorf("cooking start = %v, want %v", got.CookingStartTime, start)
	}

	// repeated call keeps the original stamp
	s.now = func() time.Time { return start.Add(time.Hour) }
	if err := s.StartCooking(context.Background(), b, "o1"); err != nil {
		t.Fatalf("second start cooking: %v", err)
	}
	got = b.Active.Get()[0]
	if !got.CookingStartTime.Equal(start) {
		t.Errorf("cooking start moved to %v", got.CookingStartTime)
	}
}

func TestStartCookingUnknownOrderIsNoop(t *testing.T) {
	b := testBranch(t)
	s := testService(&fakeBackend{}, &fakePrinter{})
	if err := s.StartCooking(context.Background(), b, "missing"); err != nil {
		t.Fatalf("start cooking: %v", err)
	}
}

func TestCompleteServing(t *testing.T) {
	b := testBranch(t)
	s := testService(&fakeBackend{}, &fakePrinter{})
	if err := b.Active.Set(context.Background(), []model.ActiveOrder{
		{ID: "o1", Status: enum.OrderStatusCooking},
		{ID: "o2", Status: enum.OrderStatusWaiting},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	for _, id := range []string{"o1", "o2"} {
		if err := s.CompleteServing(context.Background(), b, id); err != nil {
			t.Fatalf("complete serving %s: %v", id, err)
		}
	}
	for _, o := range b.Active.Get() {
		if o.Status != enum.OrderStatusServed {
			t.Errorf("order %s status = %q, want %q", o.ID, o.Status, enum.OrderStatusServed)
		}
	}
}

// --- payment ---

func TestConfirmPaymentRemoteSuccess(t *testing.T) {
	b := testBranch(t)
	confirmed := false
	backend := &fakeBackend{confirmFn: func(_ context.Context, req remote.ConfirmPaymentRequest) error {
		confirmed = true
		if req.OrderID != "o1" {
			t.Errorf("order ID = %q, want o1", req.OrderID)
		}
		return nil
	}}
	s := testService(backend, &fakePrinter{})

	if err := b.Active.Set(context.Background(), []model.ActiveOrder{
		{ID: "o1", OrderNumber: 3, TableName: "T1", Floor: "1", Status: enum.OrderStatusServed},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := b.Tables.Set(context.Background(), []model.Table{
		{ID: "t1", Name: "T1", Floor: "1", ActivePin: "1234"},
	}); err != nil {
		t.Fatalf("seed tables: %v", err)
	}

	result, err := s.ConfirmPayment(context.Background(), b, "o1", model.PaymentDetails{Method: enum.PaymentMethodCash})
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	if !confirmed {
		t.Error("backend not called")
	}
	if result.FallbackUsed {
		t.Error("fallback reported with healthy backend")
	}

	// remote path: local move is the backend's job, collections untouched
	if len(b.Completed.Get()) != 0 {
		t.Error("completed collection written on remote path")
	}
	// the PIN is cleared on both paths
	if pin := b.Tables.Get()[0].ActivePin; pin != "" {
		t.Errorf("active pin = %q, want cleared", pin)
	}
}

func TestConfirmPaymentFallbackMovesLocally(t *testing.T) {
	b := testBranch(t)
	s := testService(&fakeBackend{}, &fakePrinter{})

	if err := b.Active.Set(context.Background(), []model.ActiveOrder{
		{ID: "o1", OrderNumber: 3, TableName: "T1", Floor: "1", Status: enum.OrderStatusServed},
		{ID: "o2", OrderNumber: 4, TableName: "T2", Floor: "1", Status: enum.OrderStatusWaiting},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := b.Tables.Set(context.Background(), []model.Table{
		{ID: "t1", Name: "T1", Floor: "1", ActivePin: "9999"},
	}); err != nil {
		t.Fatalf("seed tables: %v", err)
	}

	result, err := s.ConfirmPayment(context.Background(), b, "o1", model.PaymentDetails{Method: enum.PaymentMethodCash})
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	if !result.FallbackUsed {
		t.Error("fallback not reported")
	}

	active := b.Active.Get()
	if len(active) != 1 || active[0].ID != "o2" {
		t.Errorf("active after payment = %+v, want only o2", active)
	}
	completed := b.Completed.Get()
	if len(completed) != 1 || completed[0].ID != "o1" {
		t.Fatalf("completed after payment = %+v, want o1", completed)
	}
	if completed[0].Payment.Method != enum.PaymentMethodCash {
		t.Errorf("payment method = %q", completed[0].Payment.Method)
	}
	if pin := b.Tables.Get()[0].ActivePin; pin != "" {
		t.Errorf("active pin = %q, want cleared", pin)
	}
}

func TestConfirmPaymentUnknownOrder(t *testing.T) {
	b := testBranch(t)
	s := testService(&fakeBackend{}, &fakePrinter{})
	if _, err := s.ConfirmPayment(context.Background(), b, "missing", model.PaymentDetails{}); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

// --- cancellation ---

func TestCancelMovesOrder(t *testing.T) {
	b := testBranch(t)
	s := testService(&fakeBackend{}, &fakePrinter{})
	if err := b.Active.Set(context.Background(), []model.ActiveOrder{
		{ID: "o1", OrderNumber: 5, TableName: "T1", Status: enum.OrderStatusWaiting},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cancelled, err := s.Cancel(context.Background(), b, "o1", "customer left", "no-show after 20 min", "u1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Reason != "customer left" || cancelled.CancelledBy != "u1" {
		t.Errorf("cancelled record = %+v", cancelled)
	}
	if len(b.Active.Get()) != 0 {
		t.Error("order still active after cancel")
	}
	got := b.Cancelled.Get()
	if len(got) != 1 || got[0].ID != "o1" {
		t.Errorf("cancelled collection = %+v", got)
	}
}

func TestCancelUnknownOrder(t *testing.T) {
	b := testBranch(t)
	s := testService(&fakeBackend{}, &fakePrinter{})
	if _, err := s.Cancel(context.Background(), b, "missing", "r", "", "u1"); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}
