package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aicebreaker/aicebreaker/server/internal/event"
	"github.com/aicebreaker/aicebreaker/server/internal/registry"
)

// WebSocket close codes sent by the Hub.
const (
	CloseGoingAway        = 1001
	CloseUnknownIdentity  = 4001
	CloseAlreadyConnected = 4002
)

// Stats holds cumulative hub counters.
type Stats struct {
	Delivered   uint64 // successful per-recipient sends
	Failed      uint64 // per-recipient send failures
	Malformed   uint64 // inbound messages that failed to parse
	Rejected    uint64 // participant admissions refused
	RateLimited uint64 // inbound messages dropped by the transport limiter
}

// Hub routes events between participants, observers and HTTP collaborators.
//
// Hub is safe for concurrent use.
type Hub struct {
	reg *registry.Registry
	now func() time.Time // injectable for deterministic tests

	notify   chan struct{}
	done     chan struct{} // closed when Run returns
	doneOnce sync.Once

	// listMu serializes clients_update production so observers never see an
	// older snapshot after a newer one.
	listMu sync.Mutex

	delivered   atomic.Uint64
	failed      atomic.Uint64
	malformed   atomic.Uint64
	rejected    atomic.Uint64
	rateLimited atomic.Uint64
}

// New creates a Hub over reg.
func New(reg *registry.Registry) *Hub {
	return &Hub{
		reg:    reg,
		now:    time.Now,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Done is closed once Run has returned and every pooled connection has been
// asked to close.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Registry returns the registry the Hub mutates.
func (h *Hub) Registry() *registry.Registry { return h.reg }

// Run delivers deferred clients_update notifications until ctx is cancelled,
// then closes every live connection. Call it once.
func (h *Hub) Run(ctx context.Context) {
	defer h.doneOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-h.notify:
			h.broadcastClientList()
		}
	}
}

// --- admission --------------------------------------------------------------

// AdmitObserver adds c to the observer pool and sends the current identity
// list to every observer, c included.
func (h *Hub) AdmitObserver(c registry.Conn) {
	h.reg.AddObserver(c)
	_, _, observers := h.reg.Counts()
	slog.Info("hub: observer connected", "conn", c.ID(), "observers", observers)
	h.broadcastClientList()
}

// RemoveObserver removes c from the observer pool. Removing twice is a no-op.
func (h *Hub) RemoveObserver(c registry.Conn) {
	if !h.reg.RemoveObserver(c) {
		return
	}
	_, _, observers := h.reg.Counts()
	slog.Info("hub: observer disconnected", "conn", c.ID(), "observers", observers)
}

// AdmitParticipant admits c as the connection for key and notifies observers.
// An unregistered key, or one that already has a live connection, is refused:
// c is closed with CloseUnknownIdentity or CloseAlreadyConnected and the
// registry error is returned.
func (h *Hub) AdmitParticipant(c registry.Conn, key string) error {
	if err := h.reg.AttachParticipant(key, c); err != nil {
		h.rejected.Add(1)
		code, reason := CloseUnknownIdentity, "unknown identity"
		if errors.Is(err, registry.ErrAlreadyConnected) {
			code, reason = CloseAlreadyConnected, "identity already connected"
		}
		slog.Warn("hub: participant refused", "key", key, "conn", c.ID(), "err", err)
		if cerr := c.Close(code, reason); cerr != nil {
			slog.Debug("hub: close refused connection", "conn", c.ID(), "err", cerr)
		}
		return err
	}

	_, participants, _ := h.reg.Counts()
	slog.Info("hub: participant connected", "key", key, "conn", c.ID(), "participants", participants)
	h.broadcastClientList()
	return nil
}

// RemoveParticipant drops the connection for key, marks the identity
// disconnected and schedules a clients_update without waiting for it.
func (h *Hub) RemoveParticipant(key string) {
	if h.reg.DetachParticipant(key) {
		_, participants, _ := h.reg.Counts()
		slog.Info("hub: participant disconnected", "key", key, "participants", participants)
	}
	h.scheduleClientList()
}

// --- routing ----------------------------------------------------------------

// RouteInbound handles text received on key's participant socket.
// Malformed input is logged and dropped. A game_result is stamped with the
// sender's identity and relayed to observers. Other types are ignored.
func (h *Hub) RouteInbound(key string, raw []byte) {
	in, err := event.Parse(raw)
	if err != nil {
		h.malformed.Add(1)
		slog.Warn("hub: dropping malformed message", "key", key, "bytes", len(raw), "err", err)
		return
	}

	switch in.Type {
	case event.TypeGameResult:
		id, _ := h.reg.Lookup(key)
		slog.Info("hub: result received", "key", key, "gesture", in.Gesture)
		h.RelayToObservers(event.ParticipantResult{
			Wallet:    key,
			Username:  id.DisplayName,
			Gesture:   in.Gesture,
			Image:     in.Image,
			Timestamp: h.now().UTC().Format(time.RFC3339),
		})
	default:
		slog.Debug("hub: ignoring inbound message", "key", key, "type", in.Type)
	}
}

// NoteRateLimited records an inbound message dropped by the transport limiter.
func (h *Hub) NoteRateLimited(key string) {
	h.rateLimited.Add(1)
	slog.Warn("hub: inbound rate limit exceeded, message dropped", "key", key)
}

// --- fan-out ----------------------------------------------------------------

// BroadcastCountdown sends a countdown tick to every participant and observer.
func (h *Hub) BroadcastCountdown(tick int) {
	h.broadcastAll(event.Countdown{Value: tick})
}

// BroadcastGameResult sends the master result to every participant and observer.
func (h *Hub) BroadcastGameResult(value string) {
	h.broadcastAll(event.GameResult{Value: value})
}

// RelayToObservers sends ev to every observer.
func (h *Hub) RelayToObservers(ev event.Event) {
	data, err := event.Encode(ev)
	if err != nil {
		slog.Error("hub: encode failed", "type", ev.Type(), "err", err)
		return
	}
	h.fanOut(h.reg.Observers(), ev.Type(), data)
}

// Stats returns a copy of the hub counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Delivered:   h.delivered.Load(),
		Failed:      h.failed.Load(),
		Malformed:   h.malformed.Load(),
		Rejected:    h.rejected.Load(),
		RateLimited: h.rateLimited.Load(),
	}
}

// --- internal ---------------------------------------------------------------

func (h *Hub) broadcastAll(ev event.Event) {
	data, err := event.Encode(ev)
	if err != nil {
		slog.Error("hub: encode failed", "type", ev.Type(), "err", err)
		return
	}
	h.fanOut(h.reg.Participants(), ev.Type(), data)
	h.fanOut(h.reg.Observers(), ev.Type(), data)
}

func (h *Hub) broadcastClientList() {
	h.listMu.Lock()
	defer h.listMu.Unlock()

	observers := h.reg.Observers()
	if len(observers) == 0 {
		return
	}
	ev := event.ClientsUpdate{Clients: h.reg.Snapshot()}
	data, err := event.Encode(ev)
	if err != nil {
		slog.Error("hub: encode failed", "type", ev.Type(), "err", err)
		return
	}
	h.fanOut(observers, ev.Type(), data)
}

func (h *Hub) scheduleClientList() {
	select {
	case h.notify <- struct{}{}:
	default:
		// A notification is already pending and will carry the latest list.
	}
}

func (h *Hub) fanOut(targets []registry.Conn, typ event.Type, data []byte) {
	for _, c := range targets {
		if err := c.Send(data); err != nil {
			h.failed.Add(1)
			slog.Warn("hub: delivery failed", "conn", c.ID(), "type", typ, "err", err)
			continue
		}
		h.delivered.Add(1)
	}
}

func (h *Hub) closeAll() {
	conns := h.reg.DrainAll()
	for _, c := range conns {
		if err := c.Close(CloseGoingAway, "server shutting down"); err != nil {
			slog.Debug("hub: close on shutdown", "conn", c.ID(), "err", err)
		}
	}
	if len(conns) > 0 {
		slog.Info("hub: closed connections on shutdown", "count", len(conns))
	}
}
