package challenge

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/meghanavb/cardclash/internal/deck"
)

// MemoryStore is an in-process SessionStore with the same conditional-update
// semantics as the Postgres implementation. It backs single-node deployments
// without a database and the protocol tests.
type MemoryStore struct {
	clock clockwork.Clock

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	players  map[uuid.UUID][]Player
}

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		clock:    clock,
		sessions: make(map[uuid.UUID]*Session),
		players:  make(map[uuid.UUID][]Player),
	}
}

var _ SessionStore = (*MemoryStore)(nil)

func (m *MemoryStore) CreateSession(_ context.Context, hostID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := &Session{
		ID:        uuid.New(),
		HostID:    hostID,
		Status:    StatusWaiting,
		CreatedAt: m.clock.Now(),
	}
	m.sessions[sess.ID] = sess
	return cloneSession(sess), nil
}

func (m *MemoryStore) GetSession(_ context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(sess), nil
}

func (m *MemoryStore) AssignDeck(_ context.Context, id, deckID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok || sess.DeckID != nil || sess.Status != StatusWaiting {
		return false, nil
	}
	d := deckID
	sess.DeckID = &d
	return true, nil
}

func (m *MemoryStore) StartSession(_ context.Context, id uuid.UUID, runtime []deck.QuizItem, deadline time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok || sess.Status != StatusWaiting {
		return false, nil
	}
	sess.Deck = append([]deck.QuizItem(nil), runtime...)
	sess.CurrentIndex = 0
	sess.CardDeadline = deadline
	sess.Status = StatusRunning
	return true, nil
}

func (m *MemoryStore) AdvanceCard(_ context.Context, id uuid.UUID, fromIndex int, deadline time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok || sess.Status != StatusRunning || sess.CurrentIndex != fromIndex {
		return false, nil
	}
	sess.CurrentIndex = fromIndex + 1
	sess.CardDeadline = deadline
	return true, nil
}

func (m *MemoryStore) CompleteSession(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok || sess.Status != StatusRunning {
		return false, nil
	}
	sess.Status = StatusCompleted
	return true, nil
}

func (m *MemoryStore) UpsertPlayer(_ context.Context, p Player) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	roster := m.players[p.SessionID]
	for i := range roster {
		if roster[i].UserID == p.UserID {
			if p.DisplayName != "" {
				roster[i].DisplayName = p.DisplayName
			}
			existing := roster[i]
			return &existing, nil
		}
	}

	p.JoinedAt = m.clock.Now()
	m.players[p.SessionID] = append(roster, p)
	return &p, nil
}

func (m *MemoryStore) ListPlayers(_ context.Context, sessionID uuid.UUID) ([]Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	roster := m.players[sessionID]
	out := append([]Player(nil), roster...)
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func cloneSession(s *Session) *Session {
	dup := *s
	if s.DeckID != nil {
		d := *s.DeckID
		dup.DeckID = &d
	}
	dup.Deck = append([]deck.QuizItem(nil), s.Deck...)
	return &dup
}

// MemoryLedger is an in-process AnswerLedger keyed by the composite
// (session, player, card) triple.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[answerKey]Answer
}

type answerKey struct {
	sessionID uuid.UUID
	playerID  uuid.UUID
	cardIndex int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[answerKey]Answer)}
}

var _ AnswerLedger = (*MemoryLedger)(nil)

func (m *MemoryLedger) InsertIfAbsent(_ context.Context, a Answer) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := answerKey{a.SessionID, a.PlayerID, a.CardIndex}
	if _, exists := m.records[key]; exists {
		return false, nil
	}
	m.records[key] = a
	return true, nil
}

func (m *MemoryLedger) ListBySession(_ context.Context, sessionID uuid.UUID) ([]Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Answer
	for key, ans := range m.records {
		if key.sessionID == sessionID {
			out = append(out, ans)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CardIndex != out[j].CardIndex {
			return out[i].CardIndex < out[j].CardIndex
		}
		return out[i].PlayerID.String() < out[j].PlayerID.String()
	})
	return out, nil
}
