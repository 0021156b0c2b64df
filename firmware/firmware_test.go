package firmware

import (
	"encoding/base64"
	"os"
	"testing"
)

func TestStagingRoundTripSucceedsOnExactSize(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStaging(dir)
	if err != nil {
		t.Fatalf("new staging: %v", err)
	}

	if err := s.Start("10.0.0.5", "f.bin", 8); err != nil {
		t.Fatalf("start: %v", err)
	}

	chunk1 := base64.StdEncoding.EncodeToString([]byte("abcd"))
	chunk2 := base64.StdEncoding.EncodeToString([]byte("efgh"))

	if _, err := s.Chunk("10.0.0.5", chunk1); err != nil {
		t.Fatalf("chunk1: %v", err)
	}
	received, err := s.Chunk("10.0.0.5", chunk2)
	if err != nil {
		t.Fatalf("chunk2: %v", err)
	}
	if received != 8 {
		t.Fatalf("expected 8 bytes received, got %d", received)
	}

	path, size, err := s.Finish("10.0.0.5")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if size != 8 {
		t.Fatalf("expected size 8, got %d", size)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read staged file: %v", err)
	}
	if string(data) != "abcdefgh" {
		t.Fatalf("unexpected staged contents: %q", data)
	}
}

func TestStagingFinishFailsOnSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStaging(dir)

	if err := s.Start("10.0.0.5", "f.bin", 100); err != nil {
		t.Fatalf("start: %v", err)
	}
	chunk := base64.StdEncoding.EncodeToString([]byte("abcd"))
	if _, err := s.Chunk("10.0.0.5", chunk); err != nil {
		t.Fatalf("chunk: %v", err)
	}

	if _, _, err := s.Finish("10.0.0.5"); err == nil {
		t.Fatalf("expected size mismatch error")
	}
}

func TestStagingNewUploadOverwritesInProgress(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStaging(dir)

	s.Start("10.0.0.5", "old.bin", 4)
	s.Start("10.0.0.5", "new.bin", 4)

	chunk := base64.StdEncoding.EncodeToString([]byte("data"))
	if _, err := s.Chunk("10.0.0.5", chunk); err != nil {
		t.Fatalf("chunk: %v", err)
	}

	path, size, err := s.Finish("10.0.0.5")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if size != 4 {
		t.Fatalf("expected 4 bytes from the newer upload, got %d", size)
	}
	_ = path
}

func TestOTAArmDeliversOnceThenEmpty(t *testing.T) {
	dir := t.TempDir()
	firmwarePath := dir + "/fw.bin"
	if err := os.WriteFile(firmwarePath, []byte("firmware-bytes"), 0o644); err != nil {
		t.Fatalf("write firmware: %v", err)
	}

	o := NewOTAServer()
	o.Arm(firmwarePath, "10.0.0.5")

	path, ok := o.consumeIfArmed("10.0.0.5")
	if !ok || path != firmwarePath {
		t.Fatalf("expected arm to be consumed for matching ip")
	}

	_, ok = o.consumeIfArmed("10.0.0.5")
	if ok {
		t.Fatalf("expected second connect from same ip to find nothing armed")
	}
}

func TestOTAArmIgnoresWrongTarget(t *testing.T) {
	o := NewOTAServer()
	o.Arm("/tmp/fw.bin", "10.0.0.5")

	if _, ok := o.consumeIfArmed("10.0.0.6"); ok {
		t.Fatalf("expected arm targeting a different ip to not match")
	}
}
