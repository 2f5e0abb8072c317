// Package hub implements the broadcast hub of aicebreaker-server.
//
// The Hub admits and removes connections in the shared registry.Registry and
// fans events out to the right audience:
//
//	countdown       participants + observers   BroadcastCountdown
//	game_result     participants + observers   BroadcastGameResult
//	game_result     observers                  RouteInbound (participant submission)
//	clients_update  observers                  admit / remove
//	any event       observers                  RelayToObservers (HTTP collaborators)
//
// Recipients are snapshotted under the registry lock and sent to outside it.
// Send never blocks on the network: each connection queues messages and a
// single writer delivers them, so events reach one connection in the order
// the Hub issued them. A failed send is counted, logged and skipped.
//
// RemoveParticipant does not wait for the resulting clients_update. It marks
// the list dirty and Run's goroutine broadcasts a fresh snapshot; pending
// notifications coalesce into one since each carries the full list.
//
// Run must be started for deferred notifications to be delivered. When its
// context is cancelled every live connection is closed with CloseGoingAway
// and Done is closed.
package hub
