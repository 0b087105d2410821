package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// createDirectConversation returns the existing one-on-one conversation
// for the pair, creating it when the pair has never talked. This is the
// explicit "open or start a conversation with user X" entry point, so
// callers never have to guess whether an id names a user or a
// conversation.
func (a *API) createDirectConversation(w http.ResponseWriter, r *http.Request) {
	type request struct {
		UserA string `json:"user_a" validate:"required"`
		UserB string `json:"user_b" validate:"required"`
	}

	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return
	}
	if valid := a.validateBody(w, &body); !valid {
		return
	}
	if body.UserA == body.UserB {
		a.respondError(w, http.StatusBadRequest, errors.New("one-on-one members must be distinct"), "A one-on-one conversation needs two distinct users")
		return
	}

	conv, created, err := a.DB.GetOrCreateDirectConversation(r.Context(), body.UserA, body.UserB)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not get or create conversation")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		a.publish(r.Context(), Event{Type: EventConversationCreated, ConversationID: conv.ID})
	}
	a.respond(w, status, conv)
}

func (a *API) createGroupConversation(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Name      string   `json:"name" validate:"required,notblank"`
		MemberIDs []string `json:"member_ids" validate:"required,min=1,dive,required"`
		CreatorID string   `json:"creator_id" validate:"required"`
	}

	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return
	}
	if valid := a.validateBody(w, &body); !valid {
		return
	}

	conv, err := a.DB.CreateGroupConversation(r.Context(), body.Name, body.MemberIDs, body.CreatorID)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not create group conversation")
		return
	}

	a.publish(r.Context(), Event{Type: EventConversationCreated, ConversationID: conv.ID})
	a.respond(w, http.StatusCreated, conv)
}

// listConversations returns the user's conversations ordered by
// last_message_at descending, conversation id breaking ties.
func (a *API) listConversations(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Conversations []Conversation `json:"conversations"`
	}

	userID := r.URL.Query().Get("user_id")
	if !a.requireParam(w, "user_id", userID) {
		return
	}

	convs, err := a.DB.ListConversations(r.Context(), userID)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list conversations")
		return
	}
	if convs == nil {
		convs = []Conversation{}
	}

	a.respond(w, http.StatusOK, response{Conversations: convs})
}

func (a *API) getConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversationID")

	conv, ok, err := a.DB.GetConversation(r.Context(), conversationID)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not get conversation")
		return
	}
	if !ok {
		a.respondError(w, http.StatusNotFound, ErrNotFound, "Conversation not found")
		return
	}

	a.respond(w, http.StatusOK, conv)
}
