package eventbus

import (
	"sync"
	"testing"
	"time"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var got []RobotUpdate

	b.Subscribe(func(u RobotUpdate) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, u)
	})
	b.Subscribe(func(u RobotUpdate) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, u)
	})

	b.Publish(RobotUpdate{Action: "add", Alias: "robot1", IP: "10.0.0.5"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	var mu sync.Mutex
	count := 0

	id := b.Subscribe(func(u RobotUpdate) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})
	b.Unsubscribe(id)
	b.Publish(RobotUpdate{Action: "add"})

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", count)
	}
}
