package service

import (
	"context"
	"testing"
	"time"

	"github.com/tabletrack/api/internal/enum"
	"github.com/tabletrack/api/internal/model"
)

func TestOverdueSweepFlagsAndNotifiesOnce(t *testing.T) {
	b := testBranch(t)
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	cookingStart := base.Add(-20 * time.Minute)

	if err := b.Active.Set(context.Background(), []model.ActiveOrder{
		{ID: "late", OrderNumber: 1, TableName: "T1", Status: enum.OrderStatusCooking, OrderTime: base.Add(-30 * time.Minute), CookingStartTime: &cookingStart},
		{ID: "fresh", OrderNumber: 2, TableName: "T2", Status: enum.OrderStatusWaiting, OrderTime: base.Add(-5 * time.Minute)},
		{ID: "done", OrderNumber: 3, TableName: "T3", Status: enum.OrderStatusServed, OrderTime: base.Add(-2 * time.Hour)},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var events []OverdueEvent
	w := NewOverdueWatcher(b, 15*time.Minute, time.Minute, func(ev OverdueEvent) {
		events = append(events, ev)
	}, testLog())
	w.now = func() time.Time { return base }

	w.sweep(context.Background())

	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.OrderID != "late" || ev.OrderNumber != 1 {
		t.Errorf("event = %+v", ev)
	}
	if ev.Elapsed != 20*time.Minute {
		t.Errorf("elapsed = %v, want 20m", ev.Elapsed)
	}

	overdue := map[string]bool{}
	for _, o := range b.Active.Get() {
		overdue[o.ID] = o.IsOverdue
	}
	if !overdue["late"] {
		t.Error("late order not flagged")
	}
	if overdue["fresh"] || overdue["done"] {
		t.Error("non-candidate order flagged")
	}

	// second sweep: flag already set, notification already sent
	w.sweep(context.Background())
	if len(events) != 1 {
		t.Errorf("events after second sweep = %d, want still 1", len(events))
	}
}

func TestOverdueUsesOrderTimeBeforeCooking(t *testing.T) {
	b := testBranch(t)
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	if err := b.Active.Set(context.Background(), []model.ActiveOrder{
		{ID: "w1", OrderNumber: 1, TableName: "T1", Status: enum.OrderStatusWaiting, OrderTime: base.Add(-16 * time.Minute)},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var events []OverdueEvent
	w := NewOverdueWatcher(b, 15*time.Minute, time.Minute, func(ev OverdueEvent) { events = append(events, ev) }, testLog())
	w.now = func() time.Time { return base }

	w.sweep(context.Background())
	if len(events) != 1 {
		t.Fatalf("waiting order past threshold not notified")
	}
}

func TestOverdueExactThresholdNotFlagged(t *testing.T) {
	b := testBranch(t)
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	if err := b.Active.Set(context.Background(), []model.ActiveOrder{
		{ID: "w1", OrderNumber: 1, Status: enum.OrderStatusWaiting, OrderTime: base.Add(-15 * time.Minute)},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := NewOverdueWatcher(b, 15*time.Minute, time.Minute, func(OverdueEvent) {
		t.Error("notified at exactly the threshold")
	}, testLog())
	w.now = func() time.Time { return base }

	w.sweep(context.Background())
	if b.Active.Get()[0].IsOverdue {
		t.Error("flagged at exactly the threshold")
	}
}

func TestOverdueRunStopsOnCancel(t *testing.T) {
	b := testBranch(t)
	w := NewOverdueWatcher(b, 15*time.Minute, time.Millisecond, nil, testLog())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
