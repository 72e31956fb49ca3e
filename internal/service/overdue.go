package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tabletrack/api/internal/enum"
	"github.com/tabletrack/api/internal/model"
)

// OverdueEvent is emitted once per order id when its wait time crosses
// the threshold.
type OverdueEvent struct {
	BranchID    string
	OrderID     string
	OrderNumber int
	TableName   string
	Floor       string
	Elapsed     time.Duration
}

// OverdueWatcher periodically scans the active orders of one branch and
// flags the ones waiting too long. The already-notified id set is owned
// by the watcher, so a restart may re-notify; that is accepted.
type OverdueWatcher struct {
	branch    *Branch
	threshold time.Duration
	interval  time.Duration
	notify    func(OverdueEvent)
	log       *logrus.Entry

	now      func() time.Time
	notified map[string]struct{}
}

func NewOverdueWatcher(b *Branch, threshold, interval time.Duration, notify func(OverdueEvent), log *logrus.Entry) *OverdueWatcher {
	return &OverdueWatcher{
		branch:    b,
		threshold: threshold,
		interval:  interval,
		notify:    notify,
		log:       log.WithField("branch", b.ID),
		now:       time.Now,
		notified:  make(map[string]struct{}),
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (w *OverdueWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep flags every waiting or cooking order whose elapsed time (since
// cooking start when set, order time otherwise) exceeds the threshold.
// The overdue flag is persisted; the notification fires once per order.
func (w *OverdueWatcher) sweep(ctx context.Context) {
	now := w.now()
	var events []OverdueEvent
	flag := make(map[string]struct{})

	for _, o := range w.branch.Active.Get() {
		if o.Status != enum.OrderStatusWaiting && o.Status != enum.OrderStatusCooking {
			continue
		}
		since := o.OrderTime
		if o.CookingStartTime != nil {
			since = *o.CookingStartTime
		}
		elapsed := now.Sub(since)
		if elapsed <= w.threshold {
			continue
		}
		if !o.IsOverdue {
			flag[o.ID] = struct{}{}
		}
		if _, seen := w.notified[o.ID]; !seen {
			events = append(events, OverdueEvent{
				BranchID:    w.branch.ID,
				OrderID:     o.ID,
				OrderNumber: o.OrderNumber,
				TableName:   o.TableName,
				Floor:       o.Floor,
				Elapsed:     elapsed,
			})
		}
	}

	if len(flag) > 0 {
		err := w.branch.Active.Update(ctx, func(orders []model.ActiveOrder) []model.ActiveOrder {
			out := cloneOrders(orders)
			for i := range out {
				if _, ok := flag[out[i].ID]; ok {
					out[i].IsOverdue = true
				}
			}
			return out
		})
		if err != nil {
			w.log.WithError(err).Warn("persist overdue flags")
		}
	}

	for _, ev := range events {
		w.notified[ev.OrderID] = struct{}{}
		w.log.WithFields(logrus.Fields{
			"order_number": ev.OrderNumber,
			"elapsed":      ev.Elapsed.Round(time.Second),
		}).Info("order overdue")
		if w.notify != nil {
			w.notify(ev)
		}
	}
}
