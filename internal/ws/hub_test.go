package ws

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestBroadcastIsLossyNotBlocking(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	sub := &subscriber{send: make(chan []byte, 2)}
	h.register("net1", sub)

	// Three messages into a buffer of two: the third is dropped, the
	// broadcast never blocks.
	for i := 0; i < 3; i++ {
		h.Broadcast("net1", Message{Type: TypeLog, Data: i})
	}
	if len(sub.send) != 2 {
		t.Errorf("buffered = %d, want 2", len(sub.send))
	}
	if sub.dropped != 1 {
		t.Errorf("dropped = %d, want 1", sub.dropped)
	}

	var msg Message
	if err := json.Unmarshal(<-sub.send, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != TypeLog {
		t.Errorf("type = %q", msg.Type)
	}
}

func TestBroadcastScopedToNetwork(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	a := &subscriber{send: make(chan []byte, 4)}
	b := &subscriber{send: make(chan []byte, 4)}
	h.register("net-a", a)
	h.register("net-b", b)

	h.Broadcast("net-a", Message{Type: TypeStatus, Data: "running"})

	if len(a.send) != 1 {
		t.Errorf("net-a got %d messages, want 1", len(a.send))
	}
	if len(b.send) != 0 {
		t.Errorf("net-b got %d messages, want 0", len(b.send))
	}
}

func TestUnregisterCleansTopic(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	sub := &subscriber{send: make(chan []byte, 1)}
	h.register("net1", sub)
	if h.SubscriberCount("net1") != 1 {
		t.Fatal("register failed")
	}
	h.unregister("net1", sub)
	if h.SubscriberCount("net1") != 0 {
		t.Error("unregister left subscriber behind")
	}
}
