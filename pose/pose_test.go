package pose

import (
	"math"
	"testing"
	"time"

	"robobridge/shared"
)

func TestPoseSeedThenIntegrate(t *testing.T) {
	e := New()
	key := "10.0.0.5:55000"
	now := time.Now()

	e.UpdateIMU(key, 0.0, now)
	e.UpdateEncoder(key, [3]float64{60, 60, 60}, 100.0, now)
	result := e.UpdateEncoder(key, [3]float64{60, 60, 60}, 101.0, now)

	expectedX := shared.WheelRadiusMeters * 2 * math.Pi
	if math.Abs(result.Position.X-expectedX) > 1e-6 {
		t.Fatalf("expected x ~= %.6f, got %.6f", expectedX, result.Position.X)
	}
	if math.Abs(result.Position.Y) > 1e-6 {
		t.Fatalf("expected y ~= 0, got %.6f", result.Position.Y)
	}
	if math.Abs(result.Position.Theta) > 1e-6 {
		t.Fatalf("expected theta ~= 0, got %.6f", result.Position.Theta)
	}
}

func TestFirstEncoderFrameNeverMovesPosition(t *testing.T) {
	e := New()
	key := "10.0.0.5:55000"
	now := time.Now()

	e.UpdateIMU(key, 0.2, now)
	result := e.UpdateEncoder(key, [3]float64{60, 60, 60}, 100.0, now)

	if result.Position.X != 0 || result.Position.Y != 0 {
		t.Fatalf("first encoder frame must only seed timestamp, got %+v", result.Position)
	}
}

func TestNonPositiveDeltaUpdatesThetaOnlyNotPosition(t *testing.T) {
	e := New()
	key := "10.0.0.5:55000"
	now := time.Now()

	e.UpdateIMU(key, 0.0, now)
	e.UpdateEncoder(key, [3]float64{60, 60, 60}, 100.0, now)
	before := e.states[key]
	x, y := before.x, before.y

	e.UpdateIMU(key, 0.5, now)
	result := e.UpdateEncoder(key, [3]float64{60, 60, 60}, 100.0, now)

	if result.Position.X != x || result.Position.Y != y {
		t.Fatalf("non-advancing dt must not move position")
	}
	if result.Position.Theta != 0.5 {
		t.Fatalf("non-advancing dt must still refresh theta, got %v", result.Position.Theta)
	}
}

func TestPathCapEvictsOldestEntries(t *testing.T) {
	e := New()
	key := "10.0.0.5:55000"
	now := time.Now()

	e.UpdateIMU(key, 0.0, now)
	ts := 1.0
	e.UpdateEncoder(key, [3]float64{60, 60, 60}, ts, now)

	for i := 0; i < shared.PoseHistoryCap+1; i++ {
		ts += 1.0
		e.UpdateEncoder(key, [3]float64{60, 60, 60}, ts, now)
	}

	result, ok := e.Snapshot(key)
	if !ok {
		t.Fatalf("expected snapshot to exist")
	}
	if len(result.Path) != shared.PoseHistoryCap {
		t.Fatalf("expected path capped at %d, got %d", shared.PoseHistoryCap, len(result.Path))
	}
}

func TestStaleDataSkipsIntegration(t *testing.T) {
	e := New()
	key := "10.0.0.5:55000"
	old := time.Now().Add(-10 * time.Second)
	now := time.Now()

	e.UpdateIMU(key, 0.0, old)
	e.UpdateEncoder(key, [3]float64{60, 60, 60}, 100.0, old)

	result := e.UpdateEncoder(key, [3]float64{60, 60, 60}, 101.0, now)
	if result.Position.X != 0 || result.Position.Y != 0 {
		t.Fatalf("stale imu arrival must suppress integration, got %+v", result.Position)
	}
}
