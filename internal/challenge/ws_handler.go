package challenge

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/meghanavb/cardclash/internal/server"
	httperrors "github.com/meghanavb/cardclash/pkg/http/errors"
)

// HandleWebSocket upgrades the HTTP connection to WebSocket. Identity arrives
// on the already-authenticated channel: the upstream proxy sets X-User-ID, or
// clients pass user_id directly in development.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		raw = r.URL.Query().Get("user_id")
	}
	if raw == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeMissingField, "Missing user id")
		return
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid user id")
		return
	}

	conn, err := server.WSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.HandleConnection(conn, userID)
}
