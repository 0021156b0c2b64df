package subscription

import (
	"errors"
	"sync"
	"testing"
)

type fakeClient struct {
	mu       sync.Mutex
	received [][]byte
	fail     bool
}

func (f *fakeClient) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("closed")
	}
	f.received = append(f.received, payload)
	return nil
}

func (f *fakeClient) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func TestSubscribeThenUnsubscribeRestoresPriorState(t *testing.T) {
	r := New()
	c := &fakeClient{}
	id := r.Register(c)

	r.Subscribe(id, "robot1", "encoder_data")
	r.Unsubscribe(id, "robot1", "encoder_data")

	if len(r.subs[id]) != 0 {
		t.Fatalf("expected no residual subscription entries, got %v", r.subs[id])
	}

	r.Broadcast("robot1", "encoder_data", []byte("x"))
	if c.count() != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", c.count())
	}
}

func TestDoubleSubscribeIsNoOp(t *testing.T) {
	r := New()
	c := &fakeClient{}
	id := r.Register(c)

	r.Subscribe(id, "robot1", "encoder_data")
	r.Subscribe(id, "robot1", "encoder_data")

	r.Broadcast("robot1", "encoder_data", []byte("x"))
	if c.count() != 1 {
		t.Fatalf("expected exactly one delivery despite double subscribe, got %d", c.count())
	}
}

func TestFanOutToMultipleSubscribersExactlyOnce(t *testing.T) {
	r := New()
	c1 := &fakeClient{}
	c2 := &fakeClient{}
	other := &fakeClient{}

	id1 := r.Register(c1)
	id2 := r.Register(c2)
	idOther := r.Register(other)

	r.Subscribe(id1, "robot1", "encoder_data")
	r.Subscribe(id2, "robot1", "encoder_data")
	r.Subscribe(idOther, "robot2", "encoder_data")

	r.Broadcast("robot1", "encoder_data", []byte("frame"))

	if c1.count() != 1 || c2.count() != 1 {
		t.Fatalf("expected both subscribers to receive exactly once: c1=%d c2=%d", c1.count(), c2.count())
	}
	if other.count() != 0 {
		t.Fatalf("expected unrelated robot's subscriber to receive nothing, got %d", other.count())
	}
}

func TestGlobalSubscriptionMatchesEveryRobot(t *testing.T) {
	r := New()
	c := &fakeClient{}
	id := r.Register(c)
	r.Subscribe(id, Global, "encoder_data")

	r.Broadcast("robot1", "encoder_data", []byte("a"))
	r.Broadcast("robot2", "encoder_data", []byte("b"))

	if c.count() != 2 {
		t.Fatalf("expected GLOBAL subscriber to receive frames from every robot, got %d", c.count())
	}
}

func TestFailedSendRemovesClientFromRouter(t *testing.T) {
	r := New()
	c := &fakeClient{fail: true}
	id := r.Register(c)
	r.Subscribe(id, "robot1", "encoder_data")

	r.Broadcast("robot1", "encoder_data", []byte("a"))

	matched := r.snapshotMatches("robot1", "encoder_data")
	if len(matched) != 0 {
		t.Fatalf("expected dead client to be removed after send failure")
	}
}
