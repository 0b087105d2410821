package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Event types published on mutations. Subscribers re-evaluate the views
// keyed by the ids carried on the event.
const (
	EventUserUpdated         = "user.updated"
	EventConversationCreated = "conversation.created"
	EventConversationUpdated = "conversation.updated"
	EventMessageCreated      = "message.created"
	EventMessageDeleted      = "message.deleted"
	EventReactionUpdated     = "reaction.updated"
	EventTypingUpdated       = "typing.updated"
	EventReceiptUpdated      = "receipt.updated"
)

// An Event is an invalidation notice tagged with the entity keys it
// affects. It carries no payload: subscribers re-read the views they
// hold for the tagged keys.
type Event struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	MessageID      string    `json:"message_id,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	At             time.Time `json:"at"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// streamEvents upgrades the connection to a websocket and relays the
// invalidation event stream until the client disconnects.
func (a *API) streamEvents(w http.ResponseWriter, r *http.Request) {
	if a.Events == nil {
		a.respond(w, http.StatusNotImplemented, map[string]string{"error": "Event streaming is not enabled"})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, err := a.Events.Subscribe(ctx)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not subscribe to events")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		a.Logger.Error("Could not upgrade connection", "error", err.Error())
		return
	}
	defer conn.Close()

	// Drain the read side so close frames are processed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				a.Logger.Info("Event subscriber gone", "error", err.Error())
				return
			}
		}
	}
}
