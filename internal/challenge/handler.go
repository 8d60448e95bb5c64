package challenge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/meghanavb/cardclash/internal/channel"
	"github.com/meghanavb/cardclash/internal/metrics"
	httperrors "github.com/meghanavb/cardclash/pkg/http/errors"
	"github.com/meghanavb/cardclash/pkg/http/ws"
)

// Handler bridges WebSocket clients to the challenge core. Each connection
// that joins a lobby gets its own Runner, so every attached client drives
// the advance loop redundantly, exactly as the protocol requires.
type Handler struct {
	lobby      *Lobby
	recorder   *Recorder
	aggregator *Aggregator
	hub        *ws.Hub
	ch         channel.Channel
	clock      clockwork.Clock
	store      SessionStore
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	cardDuration time.Duration
	tickInterval time.Duration
}

// HandlerOptions passes gameplay timing through to per-connection runners.
type HandlerOptions struct {
	CardDuration time.Duration
	TickInterval time.Duration
}

func NewHandler(lobby *Lobby, recorder *Recorder, aggregator *Aggregator, store SessionStore, hub *ws.Hub, ch channel.Channel, clock clockwork.Clock, m *metrics.Metrics, opts HandlerOptions, logger zerolog.Logger) *Handler {
	return &Handler{
		lobby:        lobby,
		recorder:     recorder,
		aggregator:   aggregator,
		store:        store,
		hub:          hub,
		ch:           ch,
		clock:        clock,
		metrics:      m,
		logger:       logger.With().Str("component", "challenge_ws").Logger(),
		cardDuration: opts.CardDuration,
		tickInterval: opts.TickInterval,
	}
}

// clientConn is the per-socket state: who the player is and which session
// its runner is attached to.
type clientConn struct {
	connID uuid.UUID
	userID uuid.UUID

	mu           sync.Mutex
	sessionID    uuid.UUID
	cancelRunner context.CancelFunc
	lastPhase    string
	resultsSent  bool
}

// HandleConnection owns a socket for its lifetime.
func (h *Handler) HandleConnection(conn *websocket.Conn, userID uuid.UUID) {
	wsConn := ws.NewConnection(conn, h.logger)
	connID := h.hub.Register(wsConn)

	client := &clientConn{connID: connID, userID: userID}

	go wsConn.WritePump()

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(context.Background(), client, msg)
	})

	h.detachRunner(client)
	h.hub.Unregister(connID)
}

func (h *Handler) handleMessage(ctx context.Context, client *clientConn, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeCreateSession:
		return h.handleCreateSession(ctx, client, msg.Payload)
	case ws.TypeJoinLobby:
		return h.handleJoinLobby(ctx, client, msg.Payload)
	case ws.TypeStartSession:
		return h.handleStartSession(ctx, client, msg.Payload)
	case ws.TypeSubmitAnswer:
		return h.handleSubmitAnswer(ctx, client, msg.Payload)
	case ws.TypeLeaveSession:
		h.detachRunner(client)
		return nil
	case ws.TypePing:
		return h.hub.Send(client.connID, ws.NewMessage(ws.TypePong, nil))
	default:
		return h.sendError(client, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *Handler) handleCreateSession(ctx context.Context, client *clientConn, payload json.RawMessage) error {
	var req ws.CreateSessionPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return h.sendError(client, httperrors.ErrCodeInvalidPayload, "Invalid create_session payload")
		}
	}

	sess, err := h.lobby.CreateSession(ctx, client.userID, req.DisplayName)
	if err != nil {
		h.logger.Error().Err(err).Msg("create session failed")
		return h.sendError(client, httperrors.ErrCodeSessionCreateFailed, "Could not create session")
	}

	return h.hub.Send(client.connID, ws.NewMessage(ws.TypeSessionCreated, ws.SessionCreatedPayload{
		SessionID: sess.ID.String(),
		HostID:    sess.HostID.String(),
	}))
}

func (h *Handler) handleJoinLobby(ctx context.Context, client *clientConn, payload json.RawMessage) error {
	var req ws.JoinLobbyPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(client, httperrors.ErrCodeInvalidPayload, "Invalid join_lobby payload")
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return h.sendError(client, httperrors.ErrCodeInvalidPayload, "Invalid session id")
	}

	if _, err := h.lobby.Join(ctx, sessionID, client.userID, req.DisplayName); err != nil {
		if err == ErrSessionNotFound {
			return h.sendError(client, httperrors.ErrCodeSessionNotFound, "Session not found")
		}
		h.logger.Error().Err(err).Msg("join failed")
		return h.sendError(client, httperrors.ErrCodeJoinFailed, "Could not join session")
	}

	// Mirrors the lobby flow: the host's first visit picks a deck when none
	// is assigned. Losing this race is silent.
	if err := h.lobby.AssignDeckIfMissing(ctx, sessionID, client.userID); err != nil {
		h.logger.Warn().Err(err).Msg("deck auto-assign failed")
	}

	h.hub.JoinSession(sessionID, client.connID)
	h.startRunner(client, sessionID)
	h.broadcastLobby(ctx, sessionID)
	return nil
}

func (h *Handler) handleStartSession(ctx context.Context, client *clientConn, payload json.RawMessage) error {
	var req ws.StartSessionPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(client, httperrors.ErrCodeInvalidPayload, "Invalid start_session payload")
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return h.sendError(client, httperrors.ErrCodeInvalidPayload, "Invalid session id")
	}

	switch err := h.lobby.Start(ctx, sessionID, client.userID); err {
	case nil:
		return nil
	case ErrSessionNotFound:
		return h.sendError(client, httperrors.ErrCodeSessionNotFound, "Session not found")
	case ErrNotHost:
		return h.sendError(client, httperrors.ErrCodeNotHost, "Only the host can start the game")
	case ErrInsufficientPlayers:
		return h.sendError(client, httperrors.ErrCodeInsufficientPlayers, "Need at least 2 players to start")
	case ErrNoDeckAssigned:
		return h.sendError(client, httperrors.ErrCodeNoDeckAssigned, "No deck assigned")
	default:
		h.logger.Error().Err(err).Msg("start failed")
		return h.sendError(client, httperrors.ErrCodeStartFailed, "Could not start session")
	}
}

func (h *Handler) handleSubmitAnswer(ctx context.Context, client *clientConn, payload json.RawMessage) error {
	var req ws.SubmitAnswerPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(client, httperrors.ErrCodeInvalidPayload, "Invalid submit_answer payload")
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return h.sendError(client, httperrors.ErrCodeInvalidPayload, "Invalid session id")
	}

	result, err := h.recorder.Submit(ctx, sessionID, client.userID, req.CardIndex, req.Option)
	if err != nil {
		// Expired submissions simply score nothing; the ack tells the
		// client to stop waiting, nothing more.
		switch err {
		case ErrCardExpired, ErrTimeExpired:
			return h.hub.Send(client.connID, ws.NewMessage(ws.TypeAnswerAck, ws.AnswerAckPayload{
				SessionID: req.SessionID,
				CardIndex: req.CardIndex,
				Accepted:  false,
			}))
		case ErrSessionNotFound:
			return h.sendError(client, httperrors.ErrCodeSessionNotFound, "Session not found")
		default:
			h.logger.Error().Err(err).Msg("submit failed")
			return h.sendError(client, httperrors.ErrCodeSubmitFailed, "Could not record answer")
		}
	}

	return h.hub.Send(client.connID, ws.NewMessage(ws.TypeAnswerAck, ws.AnswerAckPayload{
		SessionID: req.SessionID,
		CardIndex: req.CardIndex,
		Accepted:  result.Accepted,
		Correct:   result.IsCorrect,
	}))
}

// startRunner attaches a scheduler loop to this connection, replacing any
// previous one.
func (h *Handler) startRunner(client *clientConn, sessionID uuid.UUID) {
	h.detachRunner(client)

	ctx, cancel := context.WithCancel(context.Background())

	client.mu.Lock()
	client.sessionID = sessionID
	client.cancelRunner = cancel
	client.lastPhase = ""
	client.resultsSent = false
	client.mu.Unlock()

	clientID := fmt.Sprintf("%s:%s", client.userID, client.connID)
	runner := NewRunner(sessionID, clientID, h.store, h.ch, h.clock, h.metrics, RunnerOptions{
		CardDuration: h.cardDuration,
		TickInterval: h.tickInterval,
		Hooks: RunnerHooks{
			OnState:      func(state RunnerState) { h.pushState(client, sessionID, state) },
			OnPeerAnswer: func(ev PlayerAnsweredEvent) { h.pushPeerAnswer(client, sessionID, ev) },
		},
	}, h.logger)

	go func() {
		if err := runner.Run(ctx); err != nil && err != context.Canceled {
			h.logger.Warn().Err(err).Str("session_id", sessionID.String()).Msg("runner stopped")
		}
	}()
}

func (h *Handler) detachRunner(client *clientConn) {
	client.mu.Lock()
	cancel := client.cancelRunner
	sessionID := client.sessionID
	client.cancelRunner = nil
	client.mu.Unlock()

	if cancel != nil {
		cancel()
		h.hub.LeaveSession(sessionID, client.connID)
	}
}

// pushState translates runner output into client-facing messages.
func (h *Handler) pushState(client *clientConn, sessionID uuid.UUID, state RunnerState) {
	client.mu.Lock()
	phaseChanged := state.Phase != client.lastPhase
	client.lastPhase = state.Phase
	sendResults := state.Phase == StatusCompleted && !client.resultsSent
	if sendResults {
		client.resultsSent = true
	}
	client.mu.Unlock()

	switch state.Phase {
	case StatusRunning:
		if phaseChanged {
			_ = h.hub.Send(client.connID, ws.NewMessage(ws.TypeSessionStarted, ws.SessionStartedPayload{
				SessionID: sessionID.String(),
				DeckSize:  state.DeckSize,
			}))
		}
		if state.Card == nil {
			return
		}
		_ = h.hub.Send(client.connID, ws.NewMessage(ws.TypeCardUpdate, ws.CardUpdatePayload{
			SessionID:        sessionID.String(),
			Index:            state.Index,
			DeckSize:         state.DeckSize,
			Prompt:           state.Card.Prompt,
			Options:          state.Card.Options,
			Deadline:         state.Deadline,
			RemainingSeconds: int(state.Remaining.Round(time.Second).Seconds()),
		}))
	case StatusCompleted:
		if !sendResults {
			return
		}
		h.sendResults(client, sessionID)
	}
}

func (h *Handler) pushPeerAnswer(client *clientConn, sessionID uuid.UUID, ev PlayerAnsweredEvent) {
	_ = h.hub.Send(client.connID, ws.NewMessage(ws.TypePlayerAnswered, ws.PlayerAnsweredPayload{
		SessionID: sessionID.String(),
		PlayerID:  ev.PlayerID,
		CardIndex: ev.Index,
		Correct:   ev.Correct,
	}))
}

func (h *Handler) sendResults(client *clientConn, sessionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	board, err := h.aggregator.ComputeLeaderboard(ctx, sessionID)
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID.String()).Msg("leaderboard compute failed")
		_ = h.sendError(client, httperrors.ErrCodeLeaderboardFetchFailed, "Could not compute results")
		return
	}

	rows := make([]ws.LeaderboardRow, len(board))
	for i, entry := range board {
		rows[i] = ws.LeaderboardRow{
			PlayerID:     entry.PlayerID.String(),
			DisplayName:  entry.DisplayName,
			CorrectCount: entry.CorrectCount,
		}
	}
	_ = h.hub.Send(client.connID, ws.NewMessage(ws.TypeSessionCompleted, ws.SessionCompletedPayload{
		SessionID:   sessionID.String(),
		Leaderboard: rows,
	}))
}

func (h *Handler) broadcastLobby(ctx context.Context, sessionID uuid.UUID) {
	sess, players, present, err := h.lobby.Snapshot(ctx, sessionID)
	if err != nil {
		h.logger.Warn().Err(err).Msg("lobby snapshot failed")
		return
	}

	online := make(map[string]bool, len(present))
	for _, id := range present {
		online[id] = true
	}

	rows := make([]ws.LobbyPlayer, len(players))
	for i, p := range players {
		rows[i] = ws.LobbyPlayer{
			UserID:      p.UserID.String(),
			DisplayName: p.DisplayName,
			IsHost:      p.UserID == sess.HostID,
			Online:      online[p.UserID.String()],
		}
	}

	h.hub.BroadcastToSession(sessionID, ws.NewMessage(ws.TypeLobbyUpdate, ws.LobbyUpdatePayload{
		SessionID:    sessionID.String(),
		Status:       sess.Status,
		DeckAssigned: sess.DeckID != nil,
		Players:      rows,
	}))
}

func (h *Handler) sendError(client *clientConn, code, message string) error {
	return h.hub.Send(client.connID, ws.NewMessage(ws.TypeError, ws.ErrorPayload{
		Code:    code,
		Message: message,
	}))
}
