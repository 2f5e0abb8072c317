package registry

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDuplicateIdentity is returned by Register when the key already exists.
	ErrDuplicateIdentity = errors.New("identity already registered")

	// ErrUnknownIdentity is returned when a key has never been registered.
	ErrUnknownIdentity = errors.New("unknown identity")

	// ErrAlreadyConnected is returned by AttachParticipant when the key already
	// has a live participant connection.
	ErrAlreadyConnected = errors.New("identity already connected")
)

// Conn is one live duplex connection held in a pool.
// Send must not block on network I/O; implementations queue the message and
// deliver it in call order.
type Conn interface {
	ID() string
	Send(msg []byte) error
	Close(code int, reason string) error
}

// Identity is a known participant. The JSON names are the ones the frontend
// reads from clients_update and /api/clients.
type Identity struct {
	Key         string  `json:"wallet_address"`
	DisplayName string  `json:"username"`
	Secret      string  `json:"wallet_seed"`
	Balance     float64 `json:"xrp_balance"`
	Connected   bool    `json:"is_connected"`
}

// Registry is the shared identity registry and connection pools.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	identities   map[string]*Identity
	order        []string // registration order, used by Snapshot
	participants map[string]Conn
	observers    map[Conn]struct{}
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		identities:   make(map[string]*Identity),
		participants: make(map[string]Conn),
		observers:    make(map[Conn]struct{}),
	}
}

// Register stores a new identity with Connected=false and returns a copy.
func (r *Registry) Register(key, displayName, secret string, balance float64) (Identity, error) {
	if key == "" {
		return Identity{}, fmt.Errorf("register: empty identity key")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.identities[key]; ok {
		return Identity{}, fmt.Errorf("register %q: %w", key, ErrDuplicateIdentity)
	}
	id := &Identity{
		Key:         key,
		DisplayName: displayName,
		Secret:      secret,
		Balance:     balance,
	}
	r.identities[key] = id
	r.order = append(r.order, key)
	return *id, nil
}

// Lookup returns a copy of the identity for key.
func (r *Registry) Lookup(key string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.identities[key]
	if !ok {
		return Identity{}, false
	}
	return *id, true
}

// IsRegistered reports whether key has been registered.
func (r *Registry) IsRegistered(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.identities[key]
	return ok
}

// SetConnected sets the Connected flag for key. Unknown keys are ignored.
func (r *Registry) SetConnected(key string, connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.identities[key]; ok {
		id.Connected = connected
	}
}

// Snapshot returns a point-in-time copy of every identity in registration order.
func (r *Registry) Snapshot() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Identity, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, *r.identities[key])
	}
	return out
}

// AllIdentities is an alias of Snapshot for read-side query collaborators.
func (r *Registry) AllIdentities() []Identity {
	return r.Snapshot()
}

// ConnectedParticipants returns the identities that currently have a live
// participant connection, in registration order.
func (r *Registry) ConnectedParticipants() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Identity, 0, len(r.participants))
	for _, key := range r.order {
		if _, ok := r.participants[key]; ok {
			out = append(out, *r.identities[key])
		}
	}
	return out
}

// --- pools ------------------------------------------------------------------

// AttachParticipant admits c as the participant connection for key and marks
// the identity connected. The registration check and the pool insert happen
// under the same lock.
func (r *Registry) AttachParticipant(key string, c Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.identities[key]
	if !ok {
		return fmt.Errorf("attach %q: %w", key, ErrUnknownIdentity)
	}
	if _, ok := r.participants[key]; ok {
		return fmt.Errorf("attach %q: %w", key, ErrAlreadyConnected)
	}
	r.participants[key] = c
	id.Connected = true
	return nil
}

// DetachParticipant removes the participant connection for key, if any, and
// marks the identity disconnected. It reports whether a pool entry was removed.
func (r *Registry) DetachParticipant(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.participants[key]
	delete(r.participants, key)
	if id, registered := r.identities[key]; registered {
		id.Connected = false
	}
	return ok
}

// AddObserver adds c to the observer pool.
func (r *Registry) AddObserver(c Conn) {
	r.mu.Lock()
	r.observers[c] = struct{}{}
	r.mu.Unlock()
}

// RemoveObserver removes c from the observer pool and reports whether it was present.
func (r *Registry) RemoveObserver(c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.observers[c]; !ok {
		return false
	}
	delete(r.observers, c)
	return true
}

// Participants returns the live participant connections.
func (r *Registry) Participants() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.participants))
	for _, c := range r.participants {
		out = append(out, c)
	}
	return out
}

// Participant returns the live connection for key.
func (r *Registry) Participant(key string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.participants[key]
	return c, ok
}

// Observers returns the live observer connections.
func (r *Registry) Observers() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.observers))
	for c := range r.observers {
		out = append(out, c)
	}
	return out
}

// Counts returns the number of registered identities, live participant
// connections and live observer connections.
func (r *Registry) Counts() (identities, participants, observers int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.identities), len(r.participants), len(r.observers)
}

// DrainAll removes every connection from both pools, marks all identities
// disconnected and returns the removed connections for closing.
func (r *Registry) DrainAll() []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Conn, 0, len(r.participants)+len(r.observers))
	for key, c := range r.participants {
		out = append(out, c)
		delete(r.participants, key)
		if id, ok := r.identities[key]; ok {
			id.Connected = false
		}
	}
	for c := range r.observers {
		out = append(out, c)
		delete(r.observers, c)
	}
	return out
}
