package challenge

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meghanavb/cardclash/internal/deck"
	httperrors "github.com/meghanavb/cardclash/pkg/http/errors"
)

// DeckReader serves materialized runtime decks from the out-of-band cache.
type DeckReader interface {
	Get(ctx context.Context, sessionID uuid.UUID) ([]deck.QuizItem, error)
}

// HTTPHandler exposes the session REST surface: creating sessions, fetching
// the runtime deck on reconnect, and post-game leaderboards without a live
// socket.
type HTTPHandler struct {
	lobby      *Lobby
	aggregator *Aggregator
	deckCache  DeckReader
	logger     zerolog.Logger
}

func NewHTTPHandler(lobby *Lobby, aggregator *Aggregator, deckCache DeckReader, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		lobby:      lobby,
		aggregator: aggregator,
		deckCache:  deckCache,
		logger:     logger.With().Str("component", "challenge_http").Logger(),
	}
}

type createSessionRequest struct {
	HostID      string `json:"host_id"`
	DisplayName string `json:"display_name,omitempty"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	HostID    string `json:"host_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type sessionResponse struct {
	SessionID    string          `json:"session_id"`
	HostID       string          `json:"host_id"`
	Status       string          `json:"status"`
	DeckAssigned bool            `json:"deck_assigned"`
	CurrentIndex int             `json:"current_index"`
	Players      []playerSummary `json:"players"`
}

type playerSummary struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	IsHost      bool   `json:"is_host"`
}

type leaderboardResponse struct {
	SessionID   string           `json:"session_id"`
	Leaderboard []leaderboardRow `json:"leaderboard"`
}

type leaderboardRow struct {
	PlayerID     string `json:"player_id"`
	DisplayName  string `json:"display_name,omitempty"`
	CorrectCount int    `json:"correct_count"`
}

// Handle routes /v1/sessions requests:
//
//	POST /v1/sessions
//	GET  /v1/sessions/{id}
//	GET  /v1/sessions/{id}/leaderboard
func (h *HTTPHandler) Handle(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")

	if rest == "" {
		if r.Method != http.MethodPost {
			httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
			return
		}
		h.handleCreate(w, r)
		return
	}

	parts := strings.Split(rest, "/")
	sessionID, err := uuid.Parse(parts[0])
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid session id")
		return
	}

	if r.Method != http.MethodGet {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}

	switch {
	case len(parts) == 1:
		h.handleGet(w, r, sessionID)
	case len(parts) == 2 && parts[1] == "deck":
		h.handleDeck(w, r, sessionID)
	case len(parts) == 2 && parts[1] == "leaderboard":
		h.handleLeaderboard(w, r, sessionID)
	default:
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "Unknown resource")
	}
}

func (h *HTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid request body")
		return
	}
	hostID, err := uuid.Parse(req.HostID)
	if err != nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "host_id must be a UUID", "host_id")
		return
	}

	sess, err := h.lobby.CreateSession(r.Context(), hostID, req.DisplayName)
	if err != nil {
		h.logger.Error().Err(err).Msg("create session failed")
		httperrors.RespondInternalError(w, "Could not create session")
		return
	}

	respondJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: sess.ID.String(),
		HostID:    sess.HostID.String(),
		Status:    sess.Status,
		CreatedAt: sess.CreatedAt.Format(time.RFC3339),
	})
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	sess, players, _, err := h.lobby.Snapshot(r.Context(), sessionID)
	if err != nil {
		if err == ErrSessionNotFound {
			httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "Session not found")
			return
		}
		h.logger.Error().Err(err).Msg("session fetch failed")
		httperrors.RespondInternalError(w, "Could not fetch session")
		return
	}

	resp := sessionResponse{
		SessionID:    sess.ID.String(),
		HostID:       sess.HostID.String(),
		Status:       sess.Status,
		DeckAssigned: sess.DeckID != nil,
		CurrentIndex: sess.CurrentIndex,
		Players:      make([]playerSummary, len(players)),
	}
	for i, p := range players {
		resp.Players[i] = playerSummary{
			UserID:      p.UserID.String(),
			DisplayName: p.DisplayName,
			IsHost:      p.UserID == sess.HostID,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

type deckResponse struct {
	SessionID    string         `json:"session_id"`
	CurrentIndex int            `json:"current_index"`
	Cards        []deckCardView `json:"cards"`
}

type deckCardView struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// handleDeck returns the runtime deck for a running session so a
// reconnecting client can render without waiting for the next broadcast.
// Answers are stripped; grading stays server-side.
func (h *HTTPHandler) handleDeck(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	ctx := r.Context()

	sess, err := h.lobby.store.GetSession(ctx, sessionID)
	if err != nil {
		h.logger.Error().Err(err).Msg("session fetch failed")
		httperrors.RespondInternalError(w, "Could not fetch session")
		return
	}
	if sess == nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "Session not found")
		return
	}
	if sess.Status == StatusWaiting {
		httperrors.RespondConflict(w, httperrors.ErrCodeConflict, "Session has not started")
		return
	}

	items := sess.Deck
	if len(items) == 0 && h.deckCache != nil {
		cached, err := h.deckCache.Get(ctx, sessionID)
		if err != nil {
			h.logger.Warn().Err(err).Msg("deck cache read failed")
		} else if cached != nil {
			items = cached
		}
	}

	resp := deckResponse{
		SessionID:    sessionID.String(),
		CurrentIndex: sess.CurrentIndex,
		Cards:        make([]deckCardView, len(items)),
	}
	for i, item := range items {
		resp.Cards[i] = deckCardView{Prompt: item.Prompt, Options: item.Options}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) handleLeaderboard(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	board, err := h.aggregator.ComputeLeaderboard(r.Context(), sessionID)
	if err != nil {
		if err == ErrSessionNotFound {
			httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "Session not found")
			return
		}
		h.logger.Error().Err(err).Msg("leaderboard compute failed")
		httperrors.RespondInternalError(w, "Could not compute leaderboard")
		return
	}

	resp := leaderboardResponse{
		SessionID:   sessionID.String(),
		Leaderboard: make([]leaderboardRow, len(board)),
	}
	for i, entry := range board {
		resp.Leaderboard[i] = leaderboardRow{
			PlayerID:     entry.PlayerID.String(),
			DisplayName:  entry.DisplayName,
			CorrectCount: entry.CorrectCount,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
