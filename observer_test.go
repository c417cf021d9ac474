package memoize

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goforj/memoize/memocore"
	"github.com/goforj/memoize/memofake"
)

type callEvent struct {
	function string
	key      string
	op       string
	hit      bool
	err      error
	driver   memocore.Driver
}

type recordingObserver struct {
	mu     sync.Mutex
	events []callEvent
}

func (r *recordingObserver) OnCall(_ context.Context, function, key, op string, hit bool, err error, _ time.Duration, driver memocore.Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, callEvent{function, key, op, hit, err, driver})
}

func (r *recordingObserver) snapshot() []callEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]callEvent(nil), r.events...)
}

func TestObserverSeesMissStoreAndHit(t *testing.T) {
	fake := memofake.New()
	obs := &recordingObserver{}

	double, err := Value(func(x int) (int, error) {
		return x * 2, nil
	}, isolated(fake, WithObserver(obs))...)
	if err != nil {
		t.Fatalf("decoration failed: %v", err)
	}

	if _, err := double(3); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if _, err := double(3); err != nil {
		t.Fatalf("call failed: %v", err)
	}

	events := obs.snapshot()
	if len(events) != 3 {
		t.Fatalf("expected get/set/get events, got %d: %+v", len(events), events)
	}
	if events[0].op != "get" || events[0].hit {
		t.Fatalf("first event should be a miss: %+v", events[0])
	}
	if events[1].op != "set" || events[1].err != nil {
		t.Fatalf("second event should be a clean write: %+v", events[1])
	}
	if events[2].op != "get" || !events[2].hit {
		t.Fatalf("third event should be a hit: %+v", events[2])
	}
	for _, e := range events {
		if e.function == "" || e.key == "" || e.driver != "fake" {
			t.Fatalf("event lacks identity: %+v", e)
		}
	}
	if events[0].key != events[2].key {
		t.Fatalf("hit and miss used different keys")
	}
}

func TestObserverFuncNilIsSafe(t *testing.T) {
	var f ObserverFunc
	f.OnCall(context.Background(), "fn", "key", "get", false, nil, 0, memocore.DriverMemory)
}
