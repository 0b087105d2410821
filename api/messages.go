package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// createMessage appends a message to the conversation log. The storage
// layer bumps the conversation's last_message_at in the same
// transaction, so a successful append is always reflected in
// conversation-list ordering.
func (a *API) createMessage(w http.ResponseWriter, r *http.Request) {
	type request struct {
		SenderID string `json:"sender_id" validate:"required"`
		Content  string `json:"content" validate:"required,notblank"`
	}

	conversationID := r.PathValue("conversationID")
	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return
	}
	if valid := a.validateBody(w, &body); !valid {
		return
	}

	msg, err := a.DB.InsertMessage(r.Context(), Message{
		ConversationID: conversationID,
		SenderID:       body.SenderID,
		Content:        body.Content,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		a.respondStorageError(w, err, "Could not insert message")
		return
	}

	a.publish(r.Context(), Event{Type: EventMessageCreated, ConversationID: conversationID, MessageID: msg.ID, UserID: msg.SenderID})
	a.publish(r.Context(), Event{Type: EventConversationUpdated, ConversationID: conversationID})
	a.respond(w, http.StatusCreated, msg)
}

// listMessages returns the full conversation history in createdAt order.
// Deleted messages stay in the list with their content withheld, so
// reaction and receipt history keeps a row to hang off.
func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Messages []Message `json:"messages"`
	}

	msgs, err := a.DB.ListMessages(r.Context(), r.PathValue("conversationID"))
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list messages")
		return
	}

	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.display()
	}

	a.respond(w, http.StatusOK, response{Messages: out})
}

// latestMessage returns the newest message for preview text, or a null
// message when the conversation is empty.
func (a *API) latestMessage(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Message *Message `json:"message"`
	}

	msg, ok, err := a.DB.LatestMessage(r.Context(), r.PathValue("conversationID"))
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not get latest message")
		return
	}
	if !ok {
		a.respond(w, http.StatusOK, response{Message: nil})
		return
	}

	msg = msg.display()
	a.respond(w, http.StatusOK, response{Message: &msg})
}

// deleteMessage soft deletes a message. Only the sender may delete, and
// deleting an already deleted message is a no-op success.
func (a *API) deleteMessage(w http.ResponseWriter, r *http.Request) {
	type response struct {
		ID      string `json:"id"`
		Deleted bool   `json:"deleted"`
	}

	messageID := r.PathValue("messageID")
	requesterID := r.URL.Query().Get("requester_id")
	if !a.requireParam(w, "requester_id", requesterID) {
		return
	}

	if err := a.DB.SoftDeleteMessage(r.Context(), messageID, requesterID); err != nil {
		a.respondStorageError(w, err, "Could not delete message")
		return
	}

	a.publish(r.Context(), Event{Type: EventMessageDeleted, MessageID: messageID, UserID: requesterID})
	a.respond(w, http.StatusOK, response{ID: messageID, Deleted: true})
}
