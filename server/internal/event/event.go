// Package event defines the messages exchanged over the hub's sockets.
//
// Outbound events form a closed set: Countdown, GameResult, ParticipantResult,
// ClientsUpdate and CountdownResponse. Each marshals to a flat JSON object
// carrying a "type" discriminator alongside its own fields. Values are never
// mutated after construction; Encode serializes them once per fan-out.
//
// Inbound text from participants is decoded by Parse into an Inbound. Any
// payload that is not a JSON object with a non-empty "type" fails with
// ErrMalformed.
package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aicebreaker/aicebreaker/server/internal/registry"
)

// Type is the wire discriminator of an event.
type Type string

const (
	TypeCountdown         Type = "countdown"
	TypeGameResult        Type = "game_result"
	TypeClientsUpdate     Type = "clients_update"
	TypeCountdownResponse Type = "countdown_response"
)

// ErrMalformed is returned by Parse for input that is not a tagged JSON object.
var ErrMalformed = errors.New("malformed inbound message")

// Event is an outbound message. The set of implementations is closed.
type Event interface {
	Type() Type
	event()
}

// Countdown is one tick of a countdown, sent to participants and observers.
type Countdown struct {
	Value int `json:"value"`
}

// GameResult is the master-initiated result sent to participants and observers.
type GameResult struct {
	Value string `json:"value"`
}

// ParticipantResult is a participant's gesture relayed to observers. It shares
// the game_result discriminator with GameResult.
type ParticipantResult struct {
	Wallet       string             `json:"wallet"`
	Username     string             `json:"username,omitempty"`
	Gesture      string             `json:"gesture"`
	Image        string             `json:"image,omitempty"`
	Emotions     map[string]float64 `json:"emotions"`
	EmotionScore float64            `json:"emotion_score"`
	Timestamp    string             `json:"timestamp"`
}

// ClientsUpdate carries the full identity list to observers.
type ClientsUpdate struct {
	Clients []registry.Identity `json:"clients"`
}

// CountdownResponse is a participant's answer to a countdown, relayed to observers.
type CountdownResponse struct {
	Wallet    string `json:"wallet"`
	Value     int    `json:"value"`
	Timestamp string `json:"timestamp"`
}

func (Countdown) Type() Type         { return TypeCountdown }
func (GameResult) Type() Type        { return TypeGameResult }
func (ParticipantResult) Type() Type { return TypeGameResult }
func (ClientsUpdate) Type() Type     { return TypeClientsUpdate }
func (CountdownResponse) Type() Type { return TypeCountdownResponse }

func (Countdown) event()         {}
func (GameResult) event()        {}
func (ParticipantResult) event() {}
func (ClientsUpdate) event()     {}
func (CountdownResponse) event() {}

func (e Countdown) MarshalJSON() ([]byte, error) {
	type fields Countdown
	return json.Marshal(struct {
		Type Type `json:"type"`
		fields
	}{e.Type(), fields(e)})
}

func (e GameResult) MarshalJSON() ([]byte, error) {
	type fields GameResult
	return json.Marshal(struct {
		Type Type `json:"type"`
		fields
	}{e.Type(), fields(e)})
}

func (e ParticipantResult) MarshalJSON() ([]byte, error) {
	type fields ParticipantResult
	f := fields(e)
	if f.Emotions == nil {
		f.Emotions = map[string]float64{}
	}
	return json.Marshal(struct {
		Type Type `json:"type"`
		fields
	}{e.Type(), f})
}

func (e ClientsUpdate) MarshalJSON() ([]byte, error) {
	type fields ClientsUpdate
	f := fields(e)
	if f.Clients == nil {
		f.Clients = []registry.Identity{}
	}
	return json.Marshal(struct {
		Type Type `json:"type"`
		fields
	}{e.Type(), f})
}

func (e CountdownResponse) MarshalJSON() ([]byte, error) {
	type fields CountdownResponse
	return json.Marshal(struct {
		Type Type `json:"type"`
		fields
	}{e.Type(), fields(e)})
}

// Encode serializes e to its wire text.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Type(), err)
	}
	return data, nil
}

// Inbound is a message received on a participant socket. Only the fields of
// a game_result submission are decoded; other types carry just Type.
type Inbound struct {
	Type    Type   `json:"type"`
	Gesture string `json:"gesture"`
	Image   string `json:"image"`
}

// Parse decodes raw participant text.
func Parse(raw []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if in.Type == "" {
		return Inbound{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return in, nil
}
