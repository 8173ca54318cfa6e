package game

import (
	"encoding/json"
	"testing"
	"time"
)

func TestHub_PublishNeverBlocks(t *testing.T) {
	hub := NewHub() // nobody draining outbound

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish(EventMultiplierUpdate, MultiplierUpdatePayload{Multiplier: 1.5})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with a full outbound channel")
	}

	if got := len(hub.outbound); got != cap(hub.outbound) {
		t.Errorf("outbound holds %d messages, want full buffer of %d", got, cap(hub.outbound))
	}
}

func TestHub_PublishKeepsOldestOnOverflow(t *testing.T) {
	hub := NewHub()

	for i := 0; i < cap(hub.outbound)+10; i++ {
		hub.Publish(EventMultiplierUpdate, MultiplierUpdatePayload{Sequence: uint64(i)})
	}

	first := <-hub.outbound
	payload := first.Data.(MultiplierUpdatePayload)
	if payload.Sequence != 0 {
		t.Errorf("first queued message has sequence %d, want 0 (overflow drops new, not old)", payload.Sequence)
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub()
	if hub.ClientCount() != 0 {
		t.Errorf("fresh hub reports %d clients, want 0", hub.ClientCount())
	}
}

func TestWSMessage_Marshal(t *testing.T) {
	msg := WSMessage{Type: EventRoundStart, Data: RoundStartPayload{Sequence: 7, Commitment: "abc"}}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != EventRoundStart {
		t.Errorf("type = %v, want %s", decoded["type"], EventRoundStart)
	}
	inner := decoded["data"].(map[string]interface{})
	if inner["commitment"] != "abc" {
		t.Errorf("commitment = %v, want abc", inner["commitment"])
	}
}
