// Package backend provides clients for the per-group conversational AI
// backends that handle ordinary (non-scripted) participant dialogue.
//
// Every client degrades transport failures to a fixed apology reply instead
// of surfacing an error: a participant must always get a textual answer, and
// the platform's own redelivery is the only retry path.
package backend

import (
	"context"

	"github.com/chiayulab/linebridge/internal/models"
)

// DefaultApology is the reply used whenever a backend cannot produce an
// answer. Matches the deployment's original fallback text.
const DefaultApology = "抱歉，我現在無法回覆。"

// Request is one conversational turn to forward to a group's backend.
type Request struct {
	Group models.Group
	// UserID identifies the participant for backend-side session affinity.
	UserID string
	Text   string
	// ConversationID is the continuation token from a previous turn.
	// Empty on the first turn of a dialogue.
	ConversationID string
}

// Reply is the backend's answer to one turn.
type Reply struct {
	Text string
	// ConversationID is the backend-issued continuation token, if any.
	// Empty when the backend did not thread the dialogue (e.g. on failure).
	ConversationID string
}

// Client sends one conversational turn and returns the reply. Implementations
// return models.ErrUnknownGroup for groups they have no credential for;
// transport failures never surface as errors.
type Client interface {
	Send(ctx context.Context, req Request) (Reply, error)
}
