package ws

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestClient(hub *Hub, branchID string) *Client {
	return &Client{
		hub:      hub,
		branchID: branchID,
		send:     make(chan []byte, 8),
		log:      testLog(),
	}
}

func recvEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case raw := <-c.send:
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestBroadcastReachesOnlyBranchRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	a1 := newTestClient(hub, "b1")
	a2 := newTestClient(hub, "b1")
	other := newTestClient(hub, "b2")
	for _, c := range []*Client{a1, a2, other} {
		hub.register <- c
	}

	hub.BroadcastToBranch("b1", Event{Type: EventCollectionUpdated, Payload: json.RawMessage(`{"collection":"tables"}`)})

	for _, c := range []*Client{a1, a2} {
		ev := recvEvent(t, c)
		if ev.Type != EventCollectionUpdated {
			t.Errorf("event type = %q", ev.Type)
		}
	}
	select {
	case raw := <-other.send:
		t.Errorf("other branch received %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c := newTestClient(hub, "b1")
	hub.register <- c
	hub.unregister <- c

	// the hub closes the send channel on unregister
	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("unexpected message before close")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := &Client{hub: hub, branchID: "b1", send: make(chan []byte), log: testLog()}
	hub.register <- slow

	// an undrained client cannot block the hub
	hub.BroadcastToBranch("b1", Event{Type: EventOrderOverdue})

	select {
	case _, ok := <-slow.send:
		if ok {
			t.Error("unexpected delivery to slow client")
		}
	case <-time.After(time.Second):
		t.Fatal("slow client not dropped")
	}
}
