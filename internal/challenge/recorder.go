package challenge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/meghanavb/cardclash/internal/channel"
	"github.com/meghanavb/cardclash/internal/metrics"
)

// SubmitResult reports the outcome of one answer submission. Accepted is
// false when the at-most-once guard suppressed a duplicate; that is a normal
// outcome, not an error.
type SubmitResult struct {
	Accepted  bool
	IsCorrect bool
}

// Recorder validates and records answers against the current card, enforcing
// at-most-once semantics through the ledger's uniqueness guard rather than a
// read-then-write check.
type Recorder struct {
	store   SessionStore
	ledger  AnswerLedger
	ch      channel.Channel
	clock   clockwork.Clock
	metrics *metrics.Metrics
	logger  zerolog.Logger

	cardDuration time.Duration
}

func NewRecorder(store SessionStore, ledger AnswerLedger, ch channel.Channel, clock clockwork.Clock, m *metrics.Metrics, cardDuration time.Duration, logger zerolog.Logger) *Recorder {
	if cardDuration <= 0 {
		cardDuration = 10 * time.Second
	}
	return &Recorder{
		store:        store,
		ledger:       ledger,
		ch:           ch,
		clock:        clock,
		metrics:      m,
		logger:       logger.With().Str("component", "recorder").Logger(),
		cardDuration: cardDuration,
	}
}

// Submit records playerID's answer for cardIndex. Stale submissions fail
// with ErrCardExpired, late ones with ErrTimeExpired. A duplicate submission
// returns Accepted=false with no error and never overwrites the first write.
func (r *Recorder) Submit(ctx context.Context, sessionID, playerID uuid.UUID, cardIndex int, selectedOption string) (SubmitResult, error) {
	sess, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	if sess == nil {
		return SubmitResult{}, ErrSessionNotFound
	}

	if sess.Status != StatusRunning || sess.CurrentIndex != cardIndex {
		if r.metrics != nil {
			r.metrics.AnswersRejected.Inc()
		}
		return SubmitResult{}, ErrCardExpired
	}
	if cardIndex < 0 || cardIndex >= len(sess.Deck) {
		if r.metrics != nil {
			r.metrics.AnswersRejected.Inc()
		}
		return SubmitResult{}, ErrCardExpired
	}

	now := r.clock.Now()
	if now.After(sess.CardDeadline) {
		if r.metrics != nil {
			r.metrics.AnswersRejected.Inc()
		}
		return SubmitResult{}, ErrTimeExpired
	}

	card := sess.Deck[cardIndex]
	isCorrect := selectedOption == card.Answer

	// Informational only: time spent inside the card window.
	latency := r.cardDuration - sess.CardDeadline.Sub(now)
	if latency < 0 {
		latency = 0
	}

	inserted, err := r.ledger.InsertIfAbsent(ctx, Answer{
		SessionID: sessionID,
		PlayerID:  playerID,
		CardIndex: cardIndex,
		IsCorrect: isCorrect,
		LatencyMs: int(latency.Milliseconds()),
		CreatedAt: now,
	})
	if err != nil {
		return SubmitResult{}, fmt.Errorf("record answer: %w", err)
	}
	if !inserted {
		// Retried request or a double-click; the first write stands.
		if r.metrics != nil {
			r.metrics.AnswersDuplicate.Inc()
		}
		return SubmitResult{Accepted: false, IsCorrect: isCorrect}, nil
	}

	if r.metrics != nil {
		r.metrics.AnswersAccepted.Inc()
	}
	r.broadcastAnswer(ctx, sessionID, playerID, cardIndex, isCorrect)

	r.logger.Info().
		Str("session_id", sessionID.String()).
		Str("player_id", playerID.String()).
		Int("card_index", cardIndex).
		Bool("correct", isCorrect).
		Msg("answer recorded")

	return SubmitResult{Accepted: true, IsCorrect: isCorrect}, nil
}

// broadcastAnswer tells peers about the recorded answer. Best-effort only:
// the scoreboard reads the ledger, never this event.
func (r *Recorder) broadcastAnswer(ctx context.Context, sessionID, playerID uuid.UUID, cardIndex int, correct bool) {
	data, err := EncodeEvent(EventPlayerAnswered, PlayerAnsweredEvent{
		PlayerID: playerID.String(),
		Index:    cardIndex,
		Correct:  correct,
	})
	if err != nil {
		r.logger.Warn().Err(err).Msg("encode player_answered")
		return
	}
	if err := r.ch.Publish(ctx, SessionTopic(sessionID.String()), data); err != nil {
		if r.metrics != nil {
			r.metrics.BroadcastsFailed.Inc()
		}
		r.logger.Warn().Err(err).Msg("player_answered broadcast failed")
	}
}
