package ws

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
	"github.com/tabletrack/api/internal/collection"
	"github.com/tabletrack/api/internal/enum"
	"github.com/tabletrack/api/internal/service"
)

// The bridge is the thin event-subscriber layer between the pure sync
// core and the stations: every mirror replacement becomes one
// "collection.updated" event carrying the full snapshot, and overdue
// flags become "order.overdue" notifications. Stations decide how to
// alert; the core never does.

const (
	EventCollectionUpdated = "collection.updated"
	EventOrderOverdue      = "order.overdue"
)

type collectionPayload struct {
	Collection string      `json:"collection"`
	Value      interface{} `json:"value"`
}

// BindBranch republishes every collection of the branch to its room.
// The returned function detaches all watchers.
func BindBranch(hub *Hub, b *service.Branch, log *logrus.Entry) func() {
	removes := []func(){
		bindCollection(hub, b.ID, enum.CollectionActiveOrders, b.Active, log),
		bindCollection(hub, b.ID, enum.CollectionCompletedOrders, b.Completed, log),
		bindCollection(hub, b.ID, enum.CollectionCancelledOrders, b.Cancelled, log),
		bindCollection(hub, b.ID, enum.CollectionTables, b.Tables, log),
		bindCollection(hub, b.ID, enum.CollectionSettings, b.Settings, log),
	}
	return func() {
		for _, remove := range removes {
			remove()
		}
	}
}

func bindCollection[T any](hub *Hub, branchID, key string, c *collection.Synced[T], log *logrus.Entry) func() {
	return c.Watch(func(v T) {
		payload, err := json.Marshal(collectionPayload{Collection: key, Value: v})
		if err != nil {
			log.WithError(err).WithField("collection", key).Warn("encode snapshot event")
			return
		}
		hub.BroadcastToBranch(branchID, Event{Type: EventCollectionUpdated, Payload: payload})
	})
}

// NotifyOverdue adapts the hub to the overdue watcher's notify callback.
func NotifyOverdue(hub *Hub, log *logrus.Entry) func(service.OverdueEvent) {
	return func(ev service.OverdueEvent) {
		payload, err := json.Marshal(map[string]interface{}{
			"order_id":     ev.OrderID,
			"order_number": ev.OrderNumber,
			"table_name":   ev.TableName,
			"floor":        ev.Floor,
			"elapsed_sec":  int(ev.Elapsed.Seconds()),
		})
		if err != nil {
			log.WithError(err).Warn("encode overdue event")
			return
		}
		hub.BroadcastToBranch(ev.BranchID, Event{Type: EventOrderOverdue, Payload: payload})
	}
}
