package pidconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pid_config.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadParsesBothLineForms(t *testing.T) {
	path := writeTemp(t, "Motor1:0.1,0.2,0.3\n2,0.4,0.5,0.6\n")

	cache, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cache.Motors) != 2 {
		t.Fatalf("expected 2 motors, got %d", len(cache.Motors))
	}
	if cache.Motors[1] != (Entry{Kp: 0.1, Ki: 0.2, Kd: 0.3}) {
		t.Fatalf("unexpected motor 1: %+v", cache.Motors[1])
	}
	if cache.Motors[2] != (Entry{Kp: 0.4, Ki: 0.5, Kd: 0.6}) {
		t.Fatalf("unexpected motor 2: %+v", cache.Motors[2])
	}
}

func TestLoadSkipsCommentsAndBlankLines(t *testing.T) {
	path := writeTemp(t, "# comment\n\nMotor1:0.1,0.2,0.3\n")
	cache, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cache.Motors) != 1 {
		t.Fatalf("expected 1 motor, got %d", len(cache.Motors))
	}
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	path := writeTemp(t, "garbage line\nMotor1:0.1,0.2,0.3\nMotor2:notanumber,0,0\n")
	cache, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cache.Motors) != 1 {
		t.Fatalf("expected malformed lines skipped, got %d motors", len(cache.Motors))
	}
}
