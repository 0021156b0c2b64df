package firmware

import (
	"context"
	"io"
	"net"
	"os"
	"strings"
	"sync"

	"robobridge/shared"
)

// arm is the single outstanding OTA delivery slot: a firmware path destined
// for exactly one target IP, consumed by the first OTA accept from that IP.
type arm struct {
	path   string
	target string
}

// OTAServer is the always-listening TCP server that streams a firmware
// image to whichever robot connects next from the armed target IP. Only
// one arm is held at a time; staging a new upload overwrites it.
type OTAServer struct {
	mu  sync.Mutex
	arm *arm
}

// NewOTAServer creates an unarmed OTAServer.
func NewOTAServer() *OTAServer {
	return &OTAServer{}
}

// Arm replaces the current arm (if any) with a new firmware path and
// target IP. Only one robot can be armed at a time.
func (o *OTAServer) Arm(path, targetIP string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.arm = &arm{path: path, target: targetIP}
}

// Run listens on addr until ctx is cancelled, handling each accepted OTA
// connection on its own goroutine. The arm is consumed atomically, so
// firmware is transferred at most once per arming event.
func (o *OTAServer) Run(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		shared.SafeClose(ln)
	}()

	shared.DebugPrint("ota server listening on %s", addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				shared.DebugError(err)
				continue
			}
		}
		go o.handle(conn)
	}
}

func (o *OTAServer) handle(conn net.Conn) {
	defer shared.SafeClose(conn)

	peerIP := peerIPOf(conn)

	path, ok := o.consumeIfArmed(peerIP)
	if !ok {
		shared.DebugPrint("ota connect from %s with no matching arm", peerIP)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		shared.DebugError(err)
		return
	}
	defer shared.SafeClose(f)

	buf := make([]byte, shared.OTAChunkSize)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if _, writeErr := conn.Write(buf[:n]); writeErr != nil {
				shared.DebugError(writeErr)
				return
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			shared.DebugError(readErr)
			return
		}
	}

	if err := os.Remove(path); err != nil {
		shared.DebugError(err)
	}
}

// consumeIfArmed atomically checks and clears the arm if it targets ip,
// so a second connection from the same IP (or any other) finds nothing
// armed and receives zero bytes.
func (o *OTAServer) consumeIfArmed(ip string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.arm == nil || o.arm.target != ip {
		return "", false
	}
	path := o.arm.path
	o.arm = nil
	return path, true
}

func peerIPOf(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return strings.TrimSpace(conn.RemoteAddr().String())
	}
	return host
}
