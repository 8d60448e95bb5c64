package ws

import (
	"encoding/json"
	"time"
)

// MessageType constants for the challenge WebSocket protocol.
const (
	// Client -> Server
	TypeCreateSession = "create_session"
	TypeJoinLobby     = "join_lobby"
	TypeStartSession  = "start_session"
	TypeSubmitAnswer  = "submit_answer"
	TypeLeaveSession  = "leave_session"

	// Server -> Client
	TypeSessionCreated   = "session_created"
	TypeLobbyUpdate      = "lobby_update"
	TypeSessionStarted   = "session_started"
	TypeCardUpdate       = "card_update"
	TypeAnswerAck        = "answer_ack"
	TypePlayerAnswered   = "player_answered"
	TypeSessionCompleted = "session_completed"
	TypeError            = "error"
	TypePing             = "ping"
	TypePong             = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage builds a typed message, swallowing marshal errors for payloads
// built from plain structs.
func NewMessage(msgType string, payload any) Message {
	msg := Message{Type: msgType}
	if payload != nil {
		msg.Payload, _ = json.Marshal(payload)
	}
	return msg
}

// Client messages (incoming)

type CreateSessionPayload struct {
	DisplayName string `json:"display_name,omitempty"`
}

type JoinLobbyPayload struct {
	SessionID   string `json:"session_id"`
	DisplayName string `json:"display_name,omitempty"`
}

type StartSessionPayload struct {
	SessionID string `json:"session_id"`
}

type SubmitAnswerPayload struct {
	SessionID string `json:"session_id"`
	CardIndex int    `json:"card_index"`
	Option    string `json:"option"`
}

type LeaveSessionPayload struct {
	SessionID string `json:"session_id"`
}

// Server messages (outgoing)

type SessionCreatedPayload struct {
	SessionID string `json:"session_id"`
	HostID    string `json:"host_id"`
}

type LobbyPlayer struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	IsHost      bool   `json:"is_host"`
	Online      bool   `json:"online"`
}

type LobbyUpdatePayload struct {
	SessionID    string        `json:"session_id"`
	Status       string        `json:"status"`
	DeckAssigned bool          `json:"deck_assigned"`
	Players      []LobbyPlayer `json:"players"`
}

type SessionStartedPayload struct {
	SessionID string `json:"session_id"`
	DeckSize  int    `json:"deck_size"`
}

// CardUpdatePayload carries the active card. The correct answer never leaves
// the server; clients only see the shuffled options.
type CardUpdatePayload struct {
	SessionID        string    `json:"session_id"`
	Index            int       `json:"index"`
	DeckSize         int       `json:"deck_size"`
	Prompt           string    `json:"prompt"`
	Options          []string  `json:"options"`
	Deadline         time.Time `json:"deadline"`
	RemainingSeconds int       `json:"remaining_seconds"`
}

type AnswerAckPayload struct {
	SessionID string `json:"session_id"`
	CardIndex int    `json:"card_index"`
	Accepted  bool   `json:"accepted"`
	Correct   bool   `json:"correct"`
}

type PlayerAnsweredPayload struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
	CardIndex int    `json:"card_index"`
	Correct   bool   `json:"correct"`
}

type LeaderboardRow struct {
	PlayerID     string `json:"player_id"`
	DisplayName  string `json:"display_name,omitempty"`
	CorrectCount int    `json:"correct_count"`
}

type SessionCompletedPayload struct {
	SessionID   string           `json:"session_id"`
	Leaderboard []LeaderboardRow `json:"leaderboard"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
