package challenge

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Broadcast event types carried on the session topic. The set is closed:
// decoders ignore anything else instead of trusting payload shape.
const (
	EventSessionStarted   = "session_started"
	EventCardAdvanced     = "card_advanced"
	EventPlayerAnswered   = "player_answered"
	EventSessionCompleted = "session_completed"
)

// ErrUnknownEvent marks a broadcast variant outside the closed set.
var ErrUnknownEvent = errors.New("unknown event type")

// Envelope wraps every broadcast payload with its variant tag.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SessionStartedEvent struct {
	DeckSize int `json:"deck_size"`
}

type CardAdvancedEvent struct {
	Index    int       `json:"index"`
	Deadline time.Time `json:"deadline"`
}

type PlayerAnsweredEvent struct {
	PlayerID string `json:"player_id"`
	Index    int    `json:"index"`
	Correct  bool   `json:"correct"`
}

type SessionCompletedEvent struct{}

// EncodeEvent marshals a tagged event for the broadcast channel.
func EncodeEvent(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return json.Marshal(Envelope{Type: eventType, Payload: raw})
}

// DecodeEvent parses a broadcast message into its concrete payload.
// Unknown variants return ErrUnknownEvent so receivers can drop them;
// malformed payloads of known variants are an error.
func DecodeEvent(data []byte) (string, any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("decode event envelope: %w", err)
	}

	switch env.Type {
	case EventSessionStarted:
		var ev SessionStartedEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return env.Type, nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return env.Type, ev, nil
	case EventCardAdvanced:
		var ev CardAdvancedEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return env.Type, nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return env.Type, ev, nil
	case EventPlayerAnswered:
		var ev PlayerAnsweredEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return env.Type, nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return env.Type, ev, nil
	case EventSessionCompleted:
		return env.Type, SessionCompletedEvent{}, nil
	default:
		return env.Type, nil, ErrUnknownEvent
	}
}

// SessionTopic names the broadcast topic for a session.
func SessionTopic(sessionID string) string {
	return "challenge:" + sessionID
}
