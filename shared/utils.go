// Package shared provides configuration, debug logging, shared error values,
// and small cross-cutting utilities used by every component of the bridge.
package shared

import (
	"net"
	"reflect"
	"sync"
)

// GetLocalIPs returns the active, non-loopback IPv4 addresses of the host,
// for logging the endpoints a robot or UI client could reach at startup.
func GetLocalIPs() []string {
	var ips []string

	interfaces, err := net.Interfaces()
	if err != nil {
		return ips
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			if ip == nil || ip.IsLoopback() || ip.To4() == nil {
				continue
			}

			ips = append(ips, ip.String())
		}
	}

	return ips
}

// channelCloseMutex serializes concurrent close attempts across all channels
// closed via SafeCloseChannel.
var channelCloseMutex sync.Mutex

// SafeClose closes a resource without panicking: objects exposing Close()
// are closed normally, channels are closed via SafeCloseChannel, and nil is
// a no-op.
func SafeClose(closer interface{}) {
	if closer == nil {
		return
	}

	if c, ok := closer.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			DebugPrint("error closing resource: %v", err)
		}
		return
	}

	SafeCloseChannel(closer)
}

// SafeCloseChannel closes a channel of any element type without panicking
// if it is already closed or concurrently being closed elsewhere.
func SafeCloseChannel(ch interface{}) {
	if ch == nil {
		return
	}

	val := reflect.ValueOf(ch)
	if val.Kind() != reflect.Chan {
		DebugPrint("SafeCloseChannel: not a channel, type: %T", ch)
		return
	}

	channelCloseMutex.Lock()
	defer channelCloseMutex.Unlock()

	if !isChannelClosed(val) {
		val.Close()
	}
}

// isChannelClosed reports whether ch is closed, via a non-blocking receive.
// Assumes ch.Kind() == reflect.Chan.
func isChannelClosed(ch reflect.Value) bool {
	if ch.Kind() != reflect.Chan {
		return true
	}

	chosen, _, ok := reflect.Select([]reflect.SelectCase{
		{Dir: reflect.SelectRecv, Chan: ch},
		{Dir: reflect.SelectDefault},
	})

	return chosen == 0 && !ok
}
