// Package registry maintains the process-wide directory of live robot
// sessions: the bidirectional (ip,port) <-> alias mapping, the secondary
// ip -> primary alias index, and the writer handle used to relay commands
// back to a robot.
package registry

import (
	"fmt"
	"io"
	"sync"

	"robobridge/shared"
)

// Session describes one live robot connection as seen by the registry.
type Session struct {
	IP     string
	Port   string
	Alias  string
	Writer io.Writer
}

// UniqueKey returns the primary key of a session, "<ip>:<port>".
func (s Session) UniqueKey() string {
	return uniqueKey(s.IP, s.Port)
}

// Snapshot is a read-only view of one registered robot, safe to hand out
// beyond the registry's lock.
type Snapshot struct {
	IP        string `json:"ip"`
	Port      string `json:"port"`
	Alias     string `json:"alias"`
	UniqueKey string `json:"unique_key"`
	Status    string `json:"status"`
}

func uniqueKey(ip, port string) string {
	return fmt.Sprintf("%s:%s", ip, port)
}

// Registry is the central coordinator of robot (ip,port) <-> alias mappings.
//
// Every mapping lives under a single RWMutex covering all indexes, so
// reads and mutations never interleave. It is one lock rather than per-key
// locking, since mutations here always touch more than one key at a time
// (forward and reverse index together).
type Registry struct {
	mu sync.RWMutex

	byKey   map[string]*Session // unique_key ("ip:port") -> session
	byAlias map[string]*Session // alias -> session
	primary map[string]string   // ip -> primary alias

	nextAlias int
}

// New creates an empty Registry with the alias counter seeded at 1.
func New() *Registry {
	return &Registry{
		byKey:     make(map[string]*Session),
		byAlias:   make(map[string]*Session),
		primary:   make(map[string]string),
		nextAlias: 1,
	}
}

// Register mints a fresh alias for (ip,port) if unseen, or returns the
// existing one for a reconnecting session at the same address. It is the
// registry's single mutation entry point for new sessions.
//
// Returns shared.ErrRegistrationLost if a concurrent caller already holds
// the (ip,port) key with a different writer: the caller lost the race and
// must close its connection without proceeding.
func (r *Registry) Register(ip, port string, writer io.Writer) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := uniqueKey(ip, port)

	if existing, ok := r.byKey[key]; ok {
		if existing.Writer != writer {
			return "", shared.ErrRegistrationLost
		}
		return existing.Alias, nil
	}

	alias := fmt.Sprintf("robot%d", r.nextAlias)
	r.nextAlias++

	sess := &Session{IP: ip, Port: port, Alias: alias, Writer: writer}
	r.byKey[key] = sess
	r.byAlias[alias] = sess

	if _, hasPrimary := r.primary[ip]; !hasPrimary {
		r.primary[ip] = alias
	}

	shared.DebugPrint("registered %s as %s", key, alias)
	return alias, nil
}

// Unregister removes all mappings for (ip,port). If the removed alias was
// the ip's primary, the primary index entry is cleared too (it is never
// auto-promoted to a later alias for the same ip).
func (r *Registry) Unregister(ip, port string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := uniqueKey(ip, port)
	sess, ok := r.byKey[key]
	if !ok {
		return
	}

	delete(r.byKey, key)
	delete(r.byAlias, sess.Alias)

	if r.primary[ip] == sess.Alias {
		delete(r.primary, ip)
	}
}

// LookupByAlias returns the session registered under alias, if any.
func (r *Registry) LookupByAlias(alias string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.byAlias[alias]
	return sess, ok
}

// LookupByIP returns the primary session for ip, if any.
func (r *Registry) LookupByIP(ip string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	alias, ok := r.primary[ip]
	if !ok {
		return nil, false
	}
	sess, ok := r.byAlias[alias]
	return sess, ok
}

// Resolve looks a target up by alias first, falling back to ip, per the
// "alias wins" rule used throughout the UI command table.
func (r *Registry) Resolve(alias, ip string) (*Session, bool) {
	if alias != "" {
		if sess, ok := r.LookupByAlias(alias); ok {
			return sess, true
		}
		return nil, false
	}
	if ip != "" {
		return r.LookupByIP(ip)
	}
	return nil, false
}

// Snapshot returns a consistent point-in-time copy of every registered
// session, for initial_robot_list, connected_robots_list, and the admin
// HTTP surface.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, 0, len(r.byKey))
	for key, sess := range r.byKey {
		out = append(out, Snapshot{
			IP:        sess.IP,
			Port:      sess.Port,
			Alias:     sess.Alias,
			UniqueKey: key,
			Status:    "connected",
		})
	}
	return out
}

// Count returns the number of currently registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}
