package challenge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestHTTPHandler(t *testing.T, clock clockwork.Clock) (*HTTPHandler, *Lobby, *MemoryStore) {
	t.Helper()
	lobby, store, _ := newTestLobby(t, clock)
	ledger := NewMemoryLedger()
	agg := NewAggregator(store, ledger, zerolog.Nop())
	return NewHTTPHandler(lobby, agg, nil, zerolog.Nop()), lobby, store
}

func TestHTTPCreateSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	handler, _, _ := newTestHTTPHandler(t, clock)

	hostID := uuid.New()
	body := strings.NewReader(`{"host_id":"` + hostID.String() + `","display_name":"host"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", body)
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp createSessionResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, hostID.String(), resp.HostID)
	assert.Equal(t, StatusWaiting, resp.Status)
	_, err := uuid.Parse(resp.SessionID)
	assert.NoError(t, err)
}

func TestHTTPCreateSessionRejectsBadHost(t *testing.T) {
	clock := clockwork.NewFakeClock()
	handler, _, _ := newTestHTTPHandler(t, clock)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{"host_id":"nope"}`))
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPGetSession(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	handler, lobby, _ := newTestHTTPHandler(t, clock)

	hostID := uuid.New()
	sess, err := lobby.CreateSession(ctx, hostID, "host")
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+sess.ID.String(), nil)
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp sessionResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusWaiting, resp.Status)
	assert.False(t, resp.DeckAssigned)
	if assert.Len(t, resp.Players, 1) {
		assert.True(t, resp.Players[0].IsHost)
	}
}

func TestHTTPGetUnknownSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	handler, _, _ := newTestHTTPHandler(t, clock)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPDeckEndpoint(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	handler, lobby, _ := newTestHTTPHandler(t, clock)

	hostID := uuid.New()
	sess, err := lobby.CreateSession(ctx, hostID, "host")
	assert.NoError(t, err)

	// Not started yet: nothing to fetch.
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+sess.ID.String()+"/deck", nil)
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.NoError(t, lobby.AssignDeckIfMissing(ctx, sess.ID, hostID))
	_, err = lobby.Join(ctx, sess.ID, uuid.New(), "alice")
	assert.NoError(t, err)
	assert.NoError(t, lobby.Start(ctx, sess.ID, hostID))

	rec = httptest.NewRecorder()
	handler.Handle(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp deckResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Cards, 10)
	assert.Equal(t, 0, resp.CurrentIndex)
	for _, card := range resp.Cards {
		assert.NotEmpty(t, card.Prompt)
		assert.NotEmpty(t, card.Options)
	}
	// The answer never appears in the payload.
	assert.NotContains(t, rec.Body.String(), `"answer"`)
}

func TestHTTPLeaderboard(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	lobby, store, _ := newTestLobby(t, clock)
	ledger := NewMemoryLedger()
	handler := NewHTTPHandler(lobby, NewAggregator(store, ledger, zerolog.Nop()), nil, zerolog.Nop())

	hostID := uuid.New()
	sess, err := lobby.CreateSession(ctx, hostID, "host")
	assert.NoError(t, err)
	seedAnswer(t, ledger, sess.ID, hostID, 0, true)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+sess.ID.String()+"/leaderboard", nil)
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp leaderboardResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	if assert.Len(t, resp.Leaderboard, 1) {
		assert.Equal(t, 1, resp.Leaderboard[0].CorrectCount)
	}
}

func TestHTTPMethodNotAllowed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	handler, _, _ := newTestHTTPHandler(t, clock)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+uuid.NewString(), nil)
	rec = httptest.NewRecorder()
	handler.Handle(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
