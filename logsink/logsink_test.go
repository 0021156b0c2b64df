package logsink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogEncoderWritesHeaderOnce(t *testing.T) {
	sink, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	now := time.Now()
	sink.LogEncoder("10.0.0.5:9000", now, [3]float64{1, 2, 3})
	sink.LogEncoder("10.0.0.5:9000", now, [3]float64{4, 5, 6})

	entries, err := os.ReadDir(sink.dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log file, got %d", len(entries))
	}

	contents, err := os.ReadFile(filepath.Join(sink.dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(contents), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 records, got %d lines", len(lines))
	}
	if lines[0] != "Time RPM1 RPM2 RPM3" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
}

func TestDifferentDataTypesGetSeparateFiles(t *testing.T) {
	sink, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	now := time.Now()
	sink.LogEncoder("10.0.0.5:9000", now, [3]float64{1, 2, 3})
	sink.LogMessage("10.0.0.5:9000", now, "booted")

	entries, err := os.ReadDir(sink.dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two separate files, got %d", len(entries))
	}
}

func TestCloseOnlyAffectsOwningKey(t *testing.T) {
	sink, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	now := time.Now()
	sink.LogEncoder("10.0.0.5:9000", now, [3]float64{1, 2, 3})
	sink.LogEncoder("10.0.0.6:9000", now, [3]float64{1, 2, 3})

	sink.Close("10.0.0.5:9000")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if _, stillOpen := sink.files["10.0.0.5:9000|encoder_data"]; stillOpen {
		t.Fatal("expected closed key's file handle to be removed")
	}
	if _, stillOpen := sink.files["10.0.0.6:9000|encoder_data"]; !stillOpen {
		t.Fatal("expected unrelated key's file handle to remain open")
	}
}

func TestSafeKeyReplacesPathHostileCharacters(t *testing.T) {
	got := safeKey("10.0.0.5:9000")
	if strings.ContainsAny(got, ":.") {
		t.Fatalf("expected no ':' or '.' in sanitized key, got %q", got)
	}
}
