package challenge

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/meghanavb/cardclash/internal/channel"
	"github.com/meghanavb/cardclash/internal/deck"
	"github.com/meghanavb/cardclash/internal/metrics"
)

// RunnerState is the per-client view of the session, pushed to the attached
// client on every change and every countdown tick.
type RunnerState struct {
	Phase     string
	Index     int
	Deadline  time.Time
	Remaining time.Duration
	DeckSize  int
	Card      *deck.QuizItem
}

// RunnerHooks deliver runner output to the owning connection.
type RunnerHooks struct {
	OnState      func(RunnerState)
	OnPeerAnswer func(PlayerAnsweredEvent)
}

// Runner drives the advance loop for one attached client. Every connected
// client runs one redundantly; no runner is authoritative. A runner that
// reaches the deadline attempts a conditional advance against the store and
// treats losing the race as adopting the winner's state. Stopping a runner
// (client detach) never blocks the others.
type Runner struct {
	sessionID uuid.UUID
	clientID  string

	store SessionStore
	ch    channel.Channel
	clock clockwork.Clock

	cardDuration time.Duration
	tickInterval time.Duration
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	hooks        RunnerHooks

	// local snapshot, only mutated by the Run goroutine
	sess *Session
}

// RunnerOptions configures one client loop.
type RunnerOptions struct {
	CardDuration time.Duration
	TickInterval time.Duration
	Hooks        RunnerHooks
}

func NewRunner(sessionID uuid.UUID, clientID string, store SessionStore, ch channel.Channel, clock clockwork.Clock, m *metrics.Metrics, opts RunnerOptions, logger zerolog.Logger) *Runner {
	if opts.CardDuration <= 0 {
		opts.CardDuration = 10 * time.Second
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	return &Runner{
		sessionID:    sessionID,
		clientID:     clientID,
		store:        store,
		ch:           ch,
		clock:        clock,
		cardDuration: opts.CardDuration,
		tickInterval: opts.TickInterval,
		metrics:      m,
		logger: logger.With().
			Str("component", "scheduler").
			Str("session_id", sessionID.String()).
			Str("client_id", clientID).
			Logger(),
		hooks: opts.Hooks,
	}
}

// Run ticks until the context is cancelled or the session completes. It
// subscribes to the session topic for fast convergence; if the channel is
// unavailable it degrades to polling the store on every tick.
func (r *Runner) Run(ctx context.Context) error {
	topic := SessionTopic(r.sessionID.String())

	if err := r.ch.Attach(ctx, topic, r.clientID); err != nil {
		r.logger.Warn().Err(err).Msg("presence attach failed")
	}
	defer func() {
		// Detach with a fresh context; ctx is usually already cancelled.
		detachCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.ch.Detach(detachCtx, topic, r.clientID); err != nil {
			r.logger.Debug().Err(err).Msg("presence detach failed")
		}
	}()

	var events <-chan []byte
	sub, err := r.ch.Subscribe(ctx, topic)
	if err != nil {
		// Store polling keeps the protocol correct without broadcasts.
		r.logger.Warn().Err(err).Msg("channel unavailable, falling back to store polling")
	} else {
		defer sub.Close()
		events = sub.Events()
	}

	r.refresh(ctx)

	ticker := r.clock.NewTicker(r.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			r.handleEvent(ctx, data)
		case <-ticker.Chan():
			r.tick(ctx)
			if r.sess != nil && r.sess.Status == StatusCompleted {
				return nil
			}
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if r.sess == nil || r.sess.Status == StatusWaiting {
		// Lobby phase: poll so the running transition is seen within one
		// cycle even if the broadcast was missed.
		r.refresh(ctx)
		return
	}
	if r.sess.Status == StatusCompleted {
		return
	}

	remaining := r.sess.CardDeadline.Sub(r.clock.Now())
	if remaining > 0 {
		r.emitState(remaining)
		return
	}
	r.attemptAdvance(ctx)
}

// attemptAdvance issues the conditional write for the next card. Exactly one
// racing client wins; the rest observe a false CAS and adopt the new state.
func (r *Runner) attemptAdvance(ctx context.Context) {
	observed := r.sess.CurrentIndex
	next := observed + 1

	if next >= len(r.sess.Deck) {
		won, err := r.store.CompleteSession(ctx, r.sessionID)
		if err != nil {
			r.logger.Warn().Err(err).Msg("complete write failed, retrying next tick")
			return
		}
		if won {
			r.publish(ctx, EventSessionCompleted, SessionCompletedEvent{})
		}
		r.sess.Status = StatusCompleted
		r.emitState(0)
		return
	}

	deadline := r.clock.Now().Add(r.cardDuration)
	won, err := r.store.AdvanceCard(ctx, r.sessionID, observed, deadline)
	if err != nil {
		r.logger.Warn().Err(err).Msg("advance write failed, retrying next tick")
		return
	}

	if won {
		if r.metrics != nil {
			r.metrics.AdvancesWon.Inc()
		}
		r.sess.CurrentIndex = next
		r.sess.CardDeadline = deadline
		r.publish(ctx, EventCardAdvanced, CardAdvancedEvent{Index: next, Deadline: deadline})
		r.emitState(r.cardDuration)
		return
	}

	// Lost the race: expected, not an error. Adopt the winner's state.
	if r.metrics != nil {
		r.metrics.AdvancesLost.Inc()
	}
	r.refresh(ctx)
}

func (r *Runner) handleEvent(ctx context.Context, data []byte) {
	eventType, payload, err := DecodeEvent(data)
	if err != nil {
		if !errors.Is(err, ErrUnknownEvent) {
			r.logger.Debug().Err(err).Str("event", eventType).Msg("dropping malformed event")
		}
		return
	}

	switch ev := payload.(type) {
	case SessionStartedEvent:
		r.refresh(ctx)
	case CardAdvancedEvent:
		r.adoptAdvance(ctx, ev)
	case PlayerAnsweredEvent:
		if r.hooks.OnPeerAnswer != nil {
			r.hooks.OnPeerAnswer(ev)
		}
	case SessionCompletedEvent:
		if r.sess != nil {
			r.sess.Status = StatusCompleted
		}
		r.emitState(0)
	}
}

// adoptAdvance applies a peer's broadcast advance. The index never moves
// backward and the broadcast deadline is authoritative for the countdown.
func (r *Runner) adoptAdvance(ctx context.Context, ev CardAdvancedEvent) {
	if r.sess == nil || r.sess.Status == StatusWaiting {
		// Broadcast for a session this runner has not synced yet.
		r.refresh(ctx)
		return
	}
	if ev.Index <= r.sess.CurrentIndex {
		return
	}
	r.sess.CurrentIndex = ev.Index
	r.sess.CardDeadline = ev.Deadline
	r.emitState(ev.Deadline.Sub(r.clock.Now()))
}

// refresh re-reads the authoritative store state and adopts it.
func (r *Runner) refresh(ctx context.Context) {
	sess, err := r.store.GetSession(ctx, r.sessionID)
	if err != nil {
		r.logger.Warn().Err(err).Msg("session fetch failed, retrying next tick")
		return
	}
	if sess == nil {
		r.logger.Warn().Msg("session disappeared")
		return
	}

	if r.sess != nil && sess.Status == r.sess.Status && sess.CurrentIndex < r.sess.CurrentIndex {
		// Stale read; the cursor is monotonic.
		return
	}
	r.sess = sess

	if sess.Finished() {
		r.sess.Status = StatusCompleted
		r.emitState(0)
		return
	}
	r.emitState(sess.CardDeadline.Sub(r.clock.Now()))
}

// State returns the current local view. Only meaningful from the Run
// goroutine or after Run has returned.
func (r *Runner) State() RunnerState {
	return r.snapshotState(0)
}

func (r *Runner) emitState(remaining time.Duration) {
	if r.hooks.OnState == nil {
		return
	}
	r.hooks.OnState(r.snapshotState(remaining))
}

func (r *Runner) snapshotState(remaining time.Duration) RunnerState {
	if r.sess == nil {
		return RunnerState{Phase: StatusWaiting}
	}
	if remaining < 0 {
		remaining = 0
	}
	state := RunnerState{
		Phase:     r.sess.Status,
		Index:     r.sess.CurrentIndex,
		Deadline:  r.sess.CardDeadline,
		Remaining: remaining,
		DeckSize:  len(r.sess.Deck),
	}
	state.Card = r.sess.CurrentCard()
	return state
}

func (r *Runner) publish(ctx context.Context, eventType string, payload any) {
	data, err := EncodeEvent(eventType, payload)
	if err != nil {
		r.logger.Warn().Err(err).Str("event", eventType).Msg("encode failed")
		return
	}
	if err := r.ch.Publish(ctx, SessionTopic(r.sessionID.String()), data); err != nil {
		if r.metrics != nil {
			r.metrics.BroadcastsFailed.Inc()
		}
		// Peers converge through their own polls.
		r.logger.Warn().Err(err).Str("event", eventType).Msg("broadcast failed")
	}
}
