// Package pose fuses encoder RPM and IMU yaw readings into a per-robot
// dead-reckoned 2-D pose and a bounded path history. Each robot's state is
// owned by the session task that feeds it; Estimator itself only guards the
// per-key state against concurrent reads from snapshot requests.
package pose

import (
	"math"
	"sync"
	"time"

	"robobridge/shared"
)

// Point is one sample of the integrated path.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// Result is what an update call returns after any successful IMU or
// encoder update: the current position plus a copy of the bounded path.
type Result struct {
	Position Point   `json:"position"`
	Path     []Point `json:"path"`
}

type state struct {
	x, y, theta float64
	path        []Point

	lastEncoderTS *float64 // payload timestamp tₑ of the last integrated encoder frame

	lastIMUArrival     *time.Time // wall-clock arrival of the last IMU frame
	lastEncoderArrival *time.Time // wall-clock arrival of the last encoder frame

	latestEncoder [3]float64
	haveEncoder   bool
	latestIMUYaw  float64
	haveIMU       bool
}

// Estimator holds per-robot-key pose state. Keys are the registry's unique
// key ("ip:port").
type Estimator struct {
	mu     sync.Mutex
	states map[string]*state
}

// New creates an empty Estimator.
func New() *Estimator {
	return &Estimator{states: make(map[string]*state)}
}

func (e *Estimator) ensure(key string) *state {
	if s, ok := e.states[key]; ok {
		return s
	}
	s := &state{}
	e.states[key] = s
	return s
}

// UpdateIMU records a fresh yaw reading for key and attempts integration.
// now is the wall-clock arrival time of the frame.
func (e *Estimator) UpdateIMU(key string, yaw float64, now time.Time) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.ensure(key)
	s.theta = yaw
	s.latestIMUYaw = yaw
	s.haveIMU = true
	s.lastIMUArrival = &now

	return e.tryIntegrate(s, now)
}

// UpdateEncoder records a fresh RPM triplet for key, with encoderTS being
// the timestamp carried in the frame payload itself (falling back to now
// by the caller if absent), and attempts integration.
func (e *Estimator) UpdateEncoder(key string, rpm [3]float64, encoderTS float64, now time.Time) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.ensure(key)
	s.latestEncoder = rpm
	s.haveEncoder = true
	s.lastEncoderArrival = &now

	return e.integrateEncoder(s, encoderTS, now)
}

// tryIntegrate is reached from an IMU update: if an encoder reading is
// already on file, re-run the encoder integration path using the last
// known encoder timestamp so a pure heading update can still refresh theta.
func (e *Estimator) tryIntegrate(s *state, now time.Time) *Result {
	if !s.haveEncoder || !s.haveIMU {
		return currentResult(s)
	}
	if s.lastEncoderTS == nil {
		return currentResult(s)
	}
	return e.integrateEncoder(s, *s.lastEncoderTS, now)
}

func (e *Estimator) integrateEncoder(s *state, encoderTS float64, now time.Time) *Result {
	if !s.haveEncoder || !s.haveIMU {
		return currentResult(s)
	}

	if s.lastIMUArrival == nil || now.Sub(*s.lastIMUArrival) > shared.MaxPoseDataAge {
		return currentResult(s)
	}
	if s.lastEncoderArrival == nil || now.Sub(*s.lastEncoderArrival) > shared.MaxPoseDataAge {
		return currentResult(s)
	}

	if s.lastEncoderTS == nil {
		ts := encoderTS
		s.lastEncoderTS = &ts
		s.theta = s.latestIMUYaw
		if len(s.path) == 0 {
			s.path = append(s.path, Point{X: s.x, Y: s.y, Theta: s.theta})
		}
		return currentResult(s)
	}

	dt := encoderTS - *s.lastEncoderTS
	if dt <= 0 {
		s.theta = s.latestIMUYaw
		return currentResult(s)
	}

	prevTheta := s.theta

	omega1 := rpmToOmega(s.latestEncoder[0])
	omega2 := rpmToOmega(s.latestEncoder[1])
	omega3 := rpmToOmega(s.latestEncoder[2])

	vBody := shared.WheelRadiusMeters * (omega1 + omega2 + omega3) / 3.0
	const vBodyLateral = 0.0

	cosH := math.Cos(prevTheta)
	sinH := math.Sin(prevTheta)
	vx := vBody*cosH - vBodyLateral*sinH
	vy := vBody*sinH + vBodyLateral*cosH

	s.x += vx * dt
	s.y += vy * dt
	s.theta = s.latestIMUYaw

	ts := encoderTS
	s.lastEncoderTS = &ts

	point := Point{X: s.x, Y: s.y, Theta: s.theta}
	s.path = append(s.path, point)
	if len(s.path) > shared.PoseHistoryCap {
		s.path = s.path[len(s.path)-shared.PoseHistoryCap:]
	}

	return &Result{Position: point, Path: copyPath(s.path)}
}

func rpmToOmega(rpm float64) float64 {
	return rpm * (2 * math.Pi) / 60.0
}

func currentResult(s *state) *Result {
	return &Result{
		Position: Point{X: s.x, Y: s.y, Theta: s.theta},
		Path:     copyPath(s.path),
	}
}

func copyPath(path []Point) []Point {
	out := make([]Point, len(path))
	copy(out, path)
	return out
}

// Snapshot returns the current position and path for key without mutating
// state, used by request_trajectory.
func (e *Estimator) Snapshot(key string) (*Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.states[key]
	if !ok {
		return nil, false
	}
	return currentResult(s), true
}

// Forget drops all pose state for key, called on session teardown.
func (e *Estimator) Forget(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, key)
}

// Speeds returns the Euclidean step distances between consecutive path
// points, for the fleet statistics component; the distances are not divided
// by any time interval. It is a read-only derived view; it never feeds back into
// integration. limit bounds how many trailing path points are considered.
func (e *Estimator) Speeds(key string, limit int) []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.states[key]
	if !ok || len(s.path) < 2 {
		return nil
	}

	path := s.path
	if limit > 0 && len(path) > limit {
		path = path[len(path)-limit:]
	}

	speeds := make([]float64, 0, len(path)-1)
	for i := 1; i < len(path); i++ {
		dx := path[i].X - path[i-1].X
		dy := path[i].Y - path[i-1].Y
		speeds = append(speeds, math.Hypot(dx, dy))
	}
	return speeds
}
