// Package ws implements the WebSocket transport for aicebreaker-server.
//
// Server mounts two endpoints:
//
//	GET /ws/manager  observer ("master") sockets; receive every broadcast
//	GET /ws/{key}    participant sockets keyed by wallet address
//
// Each upgraded socket becomes a conn with its own buffered send queue and a
// writePump goroutine, the only writer on the socket, so messages reach a
// client in the order they were queued. readPump runs on the handler goroutine
// with a pong deadline; when it returns the connection is removed from its
// pool exactly once.
//
// A participant whose key is unknown is closed with code 4001; a second socket
// for an already connected key is closed with code 4002. Participant text is
// rate limited with golang.org/x/time/rate; excess messages are dropped and
// the connection stays open.
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level.
package ws
