package ws

import (
	"encoding/json"
	"testing"
	"time"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, table string) *Client {
	return &Client{
		hub:   hub,
		table: table,
		send:  make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, "T1")
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms["T1"] == nil {
		t.Fatal("table room not created")
	}
	if !hub.rooms["T1"][client] {
		t.Fatal("client not registered in table room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, "T1")
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms["T1"] != nil {
		t.Fatal("table room not cleaned up after last client unregistered")
	}
}

func TestBroadcastReachesOnlyItsTable(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	watcher := mockClient(hub, "T1")
	other := mockClient(hub, "T2")
	hub.register <- watcher
	hub.register <- other
	time.Sleep(10 * time.Millisecond)

	payload := json.RawMessage(`{"order_id":"O1","table_name":"T1"}`)
	hub.BroadcastToTable("T1", Event{Type: EventOrderSaved, Payload: payload})

	select {
	case msg := <-watcher.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != EventOrderSaved {
			t.Errorf("expected type %q, got %q", EventOrderSaved, received.Type)
		}
		if string(received.Payload) != string(payload) {
			t.Errorf("expected payload %s, got %s", payload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("watcher did not receive message")
	}

	select {
	case <-other.send:
		t.Fatal("client on another table should not receive the event")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastFansOutWithinTable(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	clients := []*Client{
		mockClient(hub, "T5"),
		mockClient(hub, "T5"),
		mockClient(hub, "T5"),
	}
	for _, c := range clients {
		hub.register <- c
	}
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToTable("T5", Event{
		Type:    EventOrderSaved,
		Payload: json.RawMessage(`{"order_id":"O9"}`),
	})

	for i, c := range clients {
		select {
		case msg := <-c.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != EventOrderSaved {
				t.Errorf("client%d: expected type %q, got %q", i+1, EventOrderSaved, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestBroadcastToEmptyTable(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	bystander := mockClient(hub, "T1")
	hub.register <- bystander
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToTable("T2", Event{
		Type:    EventOrderSaved,
		Payload: json.RawMessage(`{"order_id":"O1"}`),
	})

	select {
	case <-bystander.send:
		t.Fatal("client should not receive message for another table")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message
	}
}

func TestHubCleanupPartialRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client1 := mockClient(hub, "T3")
	client2 := mockClient(hub, "T3")
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms["T3"]) != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", len(hub.rooms["T3"]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.rooms["T3"] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}
