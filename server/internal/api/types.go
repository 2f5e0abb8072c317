package api

import "github.com/aicebreaker/aicebreaker/server/internal/registry"

// CountdownRequest is the body of POST /api/broadcast_countdown.
type CountdownRequest struct {
	Duration *int `json:"duration"`
}

// GameResultRequest is the body of POST /api/broadcast_game_result.
type GameResultRequest struct {
	GameResult string `json:"game_result"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// ClientListResponse is the payload for GET /api/clients and
// GET /api/clients/connected.
type ClientListResponse struct {
	Clients []registry.Identity `json:"clients"`
}

// UsernameResponse is the payload for GET /api/get_username/{key}.
type UsernameResponse struct {
	Username string `json:"username"`
}

// BalanceResponse is the payload for GET /api/get_balance/{key}.
type BalanceResponse struct {
	Balance float64 `json:"xrp_balance"`
}

// SubmissionResponse is the payload for POST /api/game-result.
type SubmissionResponse struct {
	Status        string             `json:"status"`
	WalletAddress string             `json:"wallet_address"`
	Username      string             `json:"username"`
	Gesture       string             `json:"gesture"`
	Emotions      map[string]float64 `json:"emotions"`
	EmotionScore  float64            `json:"emotion_score"`
	ImageSize     int64              `json:"image_size"`
}

// CountdownAnswerResponse is the payload for POST /api/countdown-response.
type CountdownAnswerResponse struct {
	Status        string `json:"status"`
	WalletAddress string `json:"wallet_address"`
	Value         int    `json:"value"`
	ImageSize     int64  `json:"image_size"`
}

// LastResultResponse is the payload for POST /api/save-last-result and
// GET /api/last-result. LastResult is null until a result is saved.
type LastResultResponse struct {
	Status     string `json:"status,omitempty"`
	LastResult *int   `json:"last_result"`
}

// HasWonResponse is the payload for POST /api/has-won.
type HasWonResponse struct {
	HasWon bool `json:"hasWon"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
