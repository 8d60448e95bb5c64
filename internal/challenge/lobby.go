package challenge

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/meghanavb/cardclash/internal/channel"
	"github.com/meghanavb/cardclash/internal/deck"
	"github.com/meghanavb/cardclash/internal/metrics"
)

// DeckCache persists materialized runtime decks out-of-band for fast reads.
// Optional; a nil cache disables it.
type DeckCache interface {
	Set(ctx context.Context, sessionID uuid.UUID, items []deck.QuizItem) error
}

// Lobby manages pre-game membership, deck assignment, and the single
// waiting -> running transition.
type Lobby struct {
	store   SessionStore
	decks   deck.Provider
	cache   DeckCache
	ch      channel.Channel
	clock   clockwork.Clock
	metrics *metrics.Metrics
	logger  zerolog.Logger

	cardDuration time.Duration
	deckSize     int
	optionCount  int
	minPlayers   int

	mu  sync.Mutex
	rng *rand.Rand
}

// LobbyOptions tunes gameplay defaults.
type LobbyOptions struct {
	CardDuration time.Duration
	DeckSize     int
	OptionCount  int
	MinPlayers   int
	Rand         *rand.Rand // tests inject a seeded source
}

func NewLobby(store SessionStore, decks deck.Provider, cache DeckCache, ch channel.Channel, clock clockwork.Clock, m *metrics.Metrics, opts LobbyOptions, logger zerolog.Logger) *Lobby {
	if opts.CardDuration <= 0 {
		opts.CardDuration = 10 * time.Second
	}
	if opts.DeckSize <= 0 {
		opts.DeckSize = 10
	}
	if opts.OptionCount <= 0 {
		opts.OptionCount = 4
	}
	if opts.MinPlayers <= 0 {
		opts.MinPlayers = 2
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Lobby{
		store:        store,
		decks:        decks,
		cache:        cache,
		ch:           ch,
		clock:        clock,
		metrics:      m,
		logger:       logger.With().Str("component", "lobby").Logger(),
		cardDuration: opts.CardDuration,
		deckSize:     opts.DeckSize,
		optionCount:  opts.OptionCount,
		minPlayers:   opts.MinPlayers,
		rng:          rng,
	}
}

// CreateSession opens a new waiting session owned by hostID and registers
// the host as its first player.
func (l *Lobby) CreateSession(ctx context.Context, hostID uuid.UUID, displayName string) (*Session, error) {
	sess, err := l.store.CreateSession(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if _, err := l.store.UpsertPlayer(ctx, Player{
		SessionID:   sess.ID,
		UserID:      hostID,
		DisplayName: displayName,
	}); err != nil {
		return nil, fmt.Errorf("register host: %w", err)
	}

	l.logger.Info().
		Str("session_id", sess.ID.String()).
		Str("host_id", hostID.String()).
		Msg("session created")
	return sess, nil
}

// Join upserts the player into the session. Joining twice, from a retry or a
// second tab, is a no-op.
func (l *Lobby) Join(ctx context.Context, sessionID, userID uuid.UUID, displayName string) (*Player, error) {
	sess, err := l.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	player, err := l.store.UpsertPlayer(ctx, Player{
		SessionID:   sessionID,
		UserID:      userID,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert player: %w", err)
	}

	l.logger.Info().
		Str("session_id", sessionID.String()).
		Str("user_id", userID.String()).
		Msg("player joined lobby")
	return player, nil
}

// AssignDeckIfMissing picks a shared deck for the session when the host has
// not chosen one. The write is a CAS from unset, so when several of the
// host's tabs race, one pick lands and the rest are discarded silently.
func (l *Lobby) AssignDeckIfMissing(ctx context.Context, sessionID, callerID uuid.UUID) error {
	sess, err := l.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}
	if sess.DeckID != nil || sess.Status != StatusWaiting || callerID != sess.HostID {
		return nil
	}

	ids, err := l.decks.ListDeckIDs(ctx)
	if err != nil {
		return fmt.Errorf("list shared decks: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	l.mu.Lock()
	pick := ids[l.rng.Intn(len(ids))]
	l.mu.Unlock()

	won, err := l.store.AssignDeck(ctx, sessionID, pick)
	if err != nil {
		return fmt.Errorf("assign deck: %w", err)
	}
	if won {
		l.logger.Info().
			Str("session_id", sessionID.String()).
			Str("deck_id", pick.String()).
			Msg("deck assigned")
	}
	return nil
}

// Start performs the irreversible waiting -> running transition: it
// materializes the runtime deck, arms the first card deadline, and announces
// the start. The write is conditional on status still being waiting, so a
// retried Start is a no-op with no re-materialization and no second
// broadcast.
func (l *Lobby) Start(ctx context.Context, sessionID, callerID uuid.UUID) error {
	sess, err := l.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}
	if callerID != sess.HostID {
		return ErrNotHost
	}
	if sess.Status != StatusWaiting {
		return nil
	}
	if sess.DeckID == nil {
		return ErrNoDeckAssigned
	}

	players, err := l.store.ListPlayers(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	if len(players) < l.minPlayers {
		return ErrInsufficientPlayers
	}

	shared, err := l.decks.GetDeck(ctx, *sess.DeckID)
	if err != nil {
		if errors.Is(err, deck.ErrDeckNotFound) {
			return ErrNoDeckAssigned
		}
		return fmt.Errorf("load deck: %w", err)
	}
	if len(shared.Cards) == 0 {
		return ErrNoDeckAssigned
	}

	l.mu.Lock()
	runtime := deck.BuildRuntime(shared.Cards, l.deckSize, l.optionCount, l.rng)
	l.mu.Unlock()

	deadline := l.clock.Now().Add(l.cardDuration)
	won, err := l.store.StartSession(ctx, sessionID, runtime, deadline)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	if !won {
		// A concurrent Start already flipped the session. Nothing to do.
		return nil
	}

	if l.metrics != nil {
		l.metrics.SessionsStarted.Inc()
	}
	if l.cache != nil {
		if err := l.cache.Set(ctx, sessionID, runtime); err != nil {
			l.logger.Warn().Err(err).Msg("failed to cache runtime deck")
		}
	}

	l.broadcastStarted(ctx, sessionID, len(runtime))

	l.logger.Info().
		Str("session_id", sessionID.String()).
		Int("cards", len(runtime)).
		Int("players", len(players)).
		Msg("session started")
	return nil
}

// Snapshot returns the lobby view: session state, joined players, and the
// identities currently attached to the topic.
func (l *Lobby) Snapshot(ctx context.Context, sessionID uuid.UUID) (*Session, []Player, []string, error) {
	sess, err := l.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, err
	}
	if sess == nil {
		return nil, nil, nil, ErrSessionNotFound
	}

	players, err := l.store.ListPlayers(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list players: %w", err)
	}

	present, err := l.ch.Presence(ctx, SessionTopic(sessionID.String()))
	if err != nil {
		// Presence is cosmetic; the lobby still renders from the store.
		l.logger.Warn().Err(err).Msg("presence unavailable")
		present = nil
	}

	return sess, players, present, nil
}

func (l *Lobby) broadcastStarted(ctx context.Context, sessionID uuid.UUID, deckSize int) {
	data, err := EncodeEvent(EventSessionStarted, SessionStartedEvent{DeckSize: deckSize})
	if err != nil {
		l.logger.Warn().Err(err).Msg("encode session_started")
		return
	}
	if err := l.ch.Publish(ctx, SessionTopic(sessionID.String()), data); err != nil {
		if l.metrics != nil {
			l.metrics.BroadcastsFailed.Inc()
		}
		// Clients detect the transition on their next poll.
		l.logger.Warn().Err(err).Msg("session_started broadcast failed")
	}
}
