package challenge

import "errors"

// Protocol error taxonomy. Only ErrInsufficientPlayers and ErrNoDeckAssigned
// surface to the host; everything else is absorbed by the protocol (a
// rejected answer scores nothing, a lost race adopts the winner's state).
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrNotHost             = errors.New("only the host can do this")
	ErrInsufficientPlayers = errors.New("need at least 2 players")
	ErrNoDeckAssigned      = errors.New("no deck assigned")
	ErrCardExpired         = errors.New("card already advanced")
	ErrTimeExpired         = errors.New("card deadline passed")

	// ErrAlreadyAnswered names the duplicate-submission condition. The
	// recorder reports it as Accepted=false rather than an error; the
	// sentinel exists for edge layers that want to label the outcome.
	ErrAlreadyAnswered = errors.New("card already answered")
)
