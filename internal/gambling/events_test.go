package gambling

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"relay-lounge/internal/store"
)

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Publish(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}

func TestEngineEmitsEvents(t *testing.T) {
	h := newHarness(t, &scriptedRNG{ints: []int{7, 7, 7}}, map[string]int64{"alice": 100}, store.Snapshot{})
	sink := &eventLog{}
	h.engine.events = sink
	ctx := context.Background()

	pot, err := h.engine.CreatePot(ctx, "Daily", "", "house", time.Hour)
	if err != nil {
		t.Fatalf("CreatePot() error = %v", err)
	}
	if _, err := h.engine.EndEarly(ctx, pot.ID); err != nil {
		t.Fatalf("EndEarly() error = %v", err)
	}
	if _, err := h.engine.PlaySlots(ctx, "alice", decimal.NewFromInt(2)); err != nil {
		t.Fatalf("PlaySlots() error = %v", err)
	}

	got := sink.types()
	want := []EventType{EventPotCreated, EventPotResolved, EventBigWin}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	resolved := sink.events[1]
	if resolved.PotID != pot.ID || resolved.Username != "" || resolved.At.IsZero() {
		t.Fatalf("resolved event = %+v", resolved)
	}
	win := sink.events[2]
	if win.Username != "alice" || win.Game != "slots" || !win.Amount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("big win event = %+v", win)
	}
}
