package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/aicebreaker/aicebreaker/server/internal/hub"
)

// Server serves the observer and participant socket endpoints.
type Server struct {
	hub      *hub.Hub
	opts     Options
	upgrader websocket.Upgrader

	// live counts socket handlers that have not yet finished flushing.
	live sync.WaitGroup
}

// NewServer creates a Server that admits connections into h.
func NewServer(h *hub.Hub, opts Options) *Server {
	return &Server{
		hub:  h,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origins are not checked; restrict them at the reverse proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts the socket endpoints on mux:
//
//	GET /ws/manager  observer
//	GET /ws/{key}    participant identified by wallet address
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/manager", s.ServeObserver)
	mux.HandleFunc("GET /ws/{key}", s.ServeParticipant)
}

// ServeObserver upgrades the request and serves an observer until the
// connection closes. Inbound observer text is read and discarded.
func (s *Server) ServeObserver(w http.ResponseWriter, r *http.Request) {
	s.live.Add(1)
	defer s.live.Done()

	c, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	go c.writePump()

	s.hub.AdmitObserver(c)
	c.readPump(func([]byte) {})
	s.hub.RemoveObserver(c)

	c.Close(websocket.CloseNormalClosure, "") //nolint:errcheck
	c.wait()
}

// ServeParticipant upgrades the request and serves the participant named by
// the {key} path value. Unknown or already connected keys receive a close
// frame from the hub and are never pooled.
func (s *Server) ServeParticipant(w http.ResponseWriter, r *http.Request) {
	s.live.Add(1)
	defer s.live.Done()

	key := r.PathValue("key")
	c, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	go c.writePump()

	if err := s.hub.AdmitParticipant(c, key); err != nil {
		c.wait()
		return
	}

	var limiter *rate.Limiter
	if s.opts.InboundRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.opts.InboundRate), s.opts.InboundBurst)
	}

	c.readPump(func(msg []byte) {
		if limiter != nil && !limiter.Allow() {
			s.hub.NoteRateLimited(key)
			return
		}
		s.hub.RouteInbound(key, msg)
	})
	s.hub.RemoveParticipant(key)

	c.Close(websocket.CloseNormalClosure, "") //nolint:errcheck
	c.wait()
}

// Wait blocks until every socket handler has sent its close frame and
// returned, or until ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		s.live.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) (*conn, bool) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		slog.Debug("ws: upgrade failed", "path", r.URL.Path, "err", err)
		return nil, false
	}
	return newConn(uuid.NewString(), wsConn, s.opts), true
}
