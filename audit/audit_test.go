package audit

import (
	"context"
	"testing"
)

func TestConnectWithEmptyURIIsNoOp(t *testing.T) {
	l, err := Connect(context.Background(), "", "robobridge")
	if err != nil {
		t.Fatalf("expected no error for unconfigured audit log, got %v", err)
	}
	if l == nil {
		t.Fatalf("expected a non-nil no-op Log")
	}

	// Must not panic or block even though there is no backing store.
	l.RecordConnect(EventRobotConnect, "10.0.0.5:55000", "robot1", "10.0.0.5:55000")
	l.RecordDisconnect(EventRobotDisconnect, "10.0.0.5:55000", "robot1", "10.0.0.5:55000")
	l.Close(context.Background())
}
