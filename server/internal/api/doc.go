// Package api implements the HTTP REST API for aicebreaker-server.
//
// New(deps) returns an http.Handler that serves:
//
//	POST /api/broadcast_countdown      {"duration": n}; blocks until tick 0
//	POST /api/broadcast_game_result    {"game_result": "..."} to every socket
//	GET  /api/clients                  every registered identity
//	GET  /api/clients/connected        identities with a live participant socket
//	GET  /api/create_user/{username}   provision a wallet and register it
//	GET  /api/get_username/{key}       display name; 404 if unknown
//	GET  /api/get_balance/{key}        ledger balance; 404 if unknown
//	POST /api/game-result              multipart gesture + image, relayed to observers
//	POST /api/countdown-response       multipart value + image, relayed to observers
//	POST /api/save-last-result         bare JSON 0|1|2, the observer's gesture
//	GET  /api/last-result              last saved gesture or null
//	POST /api/has-won                  bare JSON 0|1|2; 400 until a result is saved
//
// All responses are application/json. When a frontend origin is configured,
// CORS headers for it are added and OPTIONS preflights answer 204.
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
