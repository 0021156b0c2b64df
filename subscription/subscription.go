// Package subscription implements the fan-out router between normalized
// robot frames and the WebSocket UI clients subscribed to them. The whole
// nested subscription map lives behind one mutex: snapshots for iteration
// are taken under the lock and sends are performed outside it, which a
// per-key lock cannot express cleanly.
package subscription

import (
	"sync"

	"github.com/google/uuid"

	"robobridge/shared"
)

// Global is the wildcard entity key matching every robot.
const Global = "GLOBAL"

// Client is a connected UI WebSocket the router can deliver frames to.
// Implementations must be safe for concurrent use: Broadcast calls from
// different robot sessions may call Send on the same client at the same
// time.
type Client interface {
	Send(payload []byte) error
}

// Router maps each client id to the set of (entity_key, data_type) pairs it
// has subscribed to, and delivers normalized frames to every matching
// client exactly once.
type Router struct {
	mu      sync.Mutex
	clients map[string]Client
	subs    map[string]map[string]map[string]struct{} // clientID -> entityKey -> dataType -> {}
}

// New creates an empty Router.
func New() *Router {
	return &Router{
		clients: make(map[string]Client),
		subs:    make(map[string]map[string]map[string]struct{}),
	}
}

// Register admits a new client under a freshly minted id, as a UUID.
func (r *Router) Register(c Client) string {
	id := uuid.New().String()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[id] = c
	r.subs[id] = make(map[string]map[string]struct{})
	return id
}

// Remove drops a client and every subscription it held.
func (r *Router) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, clientID)
	delete(r.subs, clientID)
}

// Subscribe adds (entityKey, dataType) to clientID's set. Double-subscribe
// is a no-op by set semantics.
func (r *Router) Subscribe(clientID, entityKey, dataType string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entities, ok := r.subs[clientID]
	if !ok {
		return
	}
	types, ok := entities[entityKey]
	if !ok {
		types = make(map[string]struct{})
		entities[entityKey] = types
	}
	types[dataType] = struct{}{}
}

// Unsubscribe removes (entityKey, dataType) from clientID's set. Entries
// are pruned when their set empties.
func (r *Router) Unsubscribe(clientID, entityKey, dataType string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entities, ok := r.subs[clientID]
	if !ok {
		return
	}
	types, ok := entities[entityKey]
	if !ok {
		return
	}
	delete(types, dataType)
	if len(types) == 0 {
		delete(entities, entityKey)
	}
}

// Broadcast delivers payload to every client subscribed to (entityKey,
// dataType) or (Global, dataType), exactly once per client. The matching
// client set is snapshotted under the lock; sends happen outside it so a
// slow or blocked client cannot stall the whole router. Clients whose send
// fails are removed from the router in a single follow-up critical
// section.
func (r *Router) Broadcast(entityKey, dataType string, payload []byte) {
	matched := r.snapshotMatches(entityKey, dataType)
	if len(matched) == 0 {
		return
	}

	var dead []string
	for id, client := range matched {
		if err := client.Send(payload); err != nil {
			shared.DebugPrint("dropping ui client %s after send error: %v", id, err)
			dead = append(dead, id)
		}
	}

	if len(dead) > 0 {
		r.mu.Lock()
		for _, id := range dead {
			delete(r.clients, id)
			delete(r.subs, id)
		}
		r.mu.Unlock()
	}
}

func (r *Router) snapshotMatches(entityKey, dataType string) map[string]Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make(map[string]Client)
	for id, entities := range r.subs {
		if !matches(entities, entityKey, dataType) {
			continue
		}
		client, ok := r.clients[id]
		if !ok {
			// subs and clients are always added and removed together;
			// this would mean that invariant broke.
			shared.DebugPanic("subscription: clientID %s has subs but no registered client", id)
			continue
		}
		matched[id] = client
	}
	return matched
}

func matches(entities map[string]map[string]struct{}, entityKey, dataType string) bool {
	if types, ok := entities[entityKey]; ok {
		if _, ok := types[dataType]; ok {
			return true
		}
	}
	if types, ok := entities[Global]; ok {
		if _, ok := types[dataType]; ok {
			return true
		}
	}
	return false
}
