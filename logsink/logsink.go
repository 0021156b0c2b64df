// Package logsink appends normalized frames to per-session text files, one
// file per (session, robot, data_type), matching the fixed-header,
// space-separated record format read by operators directly from disk.
package logsink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"robobridge/shared"
)

var headers = map[string]string{
	"encoder_data":    "Time RPM1 RPM2 RPM3\n",
	"imu_data":        "Time Heading Pitch Roll W X Y Z AccelX AccelY AccelZ GravityX GravityY GravityZ\n",
	"log":             "Time Message\n",
	"position_update": "Time X Y Theta\n",
}

// Sink owns one append-only file per (robot key, data type) for the
// lifetime of the process, stamped with a single session start time shared
// across all files it opens.
type Sink struct {
	mu           sync.Mutex
	dir          string
	sessionStamp string
	files        map[string]*os.File // "<key>|<dataType>" -> file
}

// New creates a Sink writing under dir, creating it if necessary. The
// session stamp is fixed once at construction and embedded in every log
// filename this Sink opens for the rest of the process lifetime.
func New(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logsink: create directory: %w", err)
	}
	return &Sink{
		dir:          dir,
		sessionStamp: time.Now().Format("20060102_150405"),
		files:        make(map[string]*os.File),
	}, nil
}

func safeKey(key string) string {
	safe := strings.ReplaceAll(key, ":", "_")
	safe = strings.ReplaceAll(safe, ".", "_")
	return safe
}

func (s *Sink) fileFor(key, dataType string) (*os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mapKey := key + "|" + dataType
	if f, ok := s.files[mapKey]; ok {
		return f, nil
	}

	name := fmt.Sprintf("%s_%s_%s.txt", dataType, safeKey(key), s.sessionStamp)
	path := filepath.Join(s.dir, name)

	info, statErr := os.Stat(path)
	needsHeader := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logsink: open %s: %w", path, err)
	}

	if needsHeader {
		if header, ok := headers[dataType]; ok {
			if _, err := f.WriteString(header); err != nil {
				shared.DebugError(err)
			}
		}
	}

	s.files[mapKey] = f
	return f, nil
}

// LogEncoder appends one encoder record: "Time RPM1 RPM2 RPM3".
func (s *Sink) LogEncoder(key string, at time.Time, rpm [3]float64) {
	f, err := s.fileFor(key, "encoder_data")
	if err != nil {
		shared.DebugError(err)
		return
	}
	s.write(f, fmt.Sprintf("%.3f %.3f %.3f %.3f\n", tsSeconds(at), rpm[0], rpm[1], rpm[2]))
}

// LogIMU appends one IMU record in the fixed header's column order. Any
// field absent from data is written as 0.0.
func (s *Sink) LogIMU(key string, at time.Time, heading, pitch, roll, w, x, y, z, ax, ay, az, gx, gy, gz float64) {
	f, err := s.fileFor(key, "imu_data")
	if err != nil {
		shared.DebugError(err)
		return
	}
	s.write(f, fmt.Sprintf("%.3f %.3f %.3f %.3f %.3f %.3f %.3f %.3f %.3f %.3f %.3f %.3f %.3f %.3f\n",
		tsSeconds(at), heading, pitch, roll, w, x, y, z, ax, ay, az, gx, gy, gz))
}

// LogMessage appends one "log" record: "Time Message".
func (s *Sink) LogMessage(key string, at time.Time, message string) {
	f, err := s.fileFor(key, "log")
	if err != nil {
		shared.DebugError(err)
		return
	}
	s.write(f, fmt.Sprintf("%.3f %s\n", tsSeconds(at), message))
}

// LogPosition appends one "position_update" record: "Time X Y Theta".
func (s *Sink) LogPosition(key string, at time.Time, x, y, theta float64) {
	f, err := s.fileFor(key, "position_update")
	if err != nil {
		shared.DebugError(err)
		return
	}
	s.write(f, fmt.Sprintf("%.3f %.3f %.3f %.3f\n", tsSeconds(at), x, y, theta))
}

func (s *Sink) write(f *os.File, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := f.WriteString(line); err != nil {
		shared.DebugError(err)
	}
}

func tsSeconds(at time.Time) float64 {
	return float64(at.UnixMilli()) / 1000.0
}

// Close closes every file this sink has opened for key, called once per
// robot key on session teardown by the owning session task. Other robots'
// log handles are left untouched.
func (s *Sink) Close(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := key + "|"
	for mapKey, f := range s.files {
		if strings.HasPrefix(mapKey, prefix) {
			shared.SafeClose(f)
			delete(s.files, mapKey)
		}
	}
}
