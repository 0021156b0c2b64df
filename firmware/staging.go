// Package firmware implements the two halves of over-the-air delivery: a
// per-robot-IP upload reassembler fed base64 chunks from the UI, and the
// always-listening OTA TCP server that streams a staged image to the robot
// that connects on the OTA port.
package firmware

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"robobridge/shared"
)

// upload tracks one in-progress reassembly for a robot IP.
type upload struct {
	path     string
	filesize int
	received int
	file     *os.File
}

// Staging holds at most one in-progress upload per robot IP at a time;
// starting a new upload for an IP overwrites (and closes) any in-progress
// one for that same IP.
type Staging struct {
	mu      sync.Mutex
	dir     string
	uploads map[string]*upload
}

// NewStaging creates a Staging area writing temp files under dir.
func NewStaging(dir string) (*Staging, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("firmware: create temp dir: %w", err)
	}
	return &Staging{dir: dir, uploads: make(map[string]*upload)}, nil
}

// Start opens a new upload for ip, closing and discarding any upload
// already in progress for that ip.
func (s *Staging) Start(ip, filename string, filesize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.uploads[ip]; ok {
		shared.SafeClose(existing.file)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s_%d_%s", ip, time.Now().Unix(), filename))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("firmware: create staging file: %w", err)
	}

	s.uploads[ip] = &upload{path: path, filesize: filesize, file: f}
	return nil
}

// Chunk decodes a base64 chunk and appends it to ip's in-progress upload,
// returning the total bytes received so far.
func (s *Staging) Chunk(ip, base64Data string) (received int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	up, ok := s.uploads[ip]
	if !ok {
		return 0, shared.ErrNoUploadStaged
	}

	decoded, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		return up.received, fmt.Errorf("firmware: decode chunk: %w", err)
	}

	if _, err := up.file.Write(decoded); err != nil {
		return up.received, fmt.Errorf("firmware: write chunk: %w", err)
	}

	up.received += len(decoded)
	return up.received, nil
}

// Finish finalizes ip's upload: the file handle is always closed, and
// success requires exactly received == filesize. On success, it returns
// the finished file's path for the caller to arm on the OTA server. On a
// size mismatch it returns shared.ErrFirmwareSizeMismatch and the upload is
// dropped, leaving any previously armed OTA target untouched.
func (s *Staging) Finish(ip string) (path string, size int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	up, ok := s.uploads[ip]
	if !ok {
		return "", 0, shared.ErrNoUploadStaged
	}
	delete(s.uploads, ip)
	shared.SafeClose(up.file)

	if up.received != up.filesize {
		os.Remove(up.path)
		return "", 0, shared.ErrFirmwareSizeMismatch
	}

	return up.path, up.received, nil
}
