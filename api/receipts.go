package api

import (
	"encoding/json"
	"net/http"
)

// markRead advances the caller's read watermark for the conversation to
// now. The watermark never moves backwards, so repeated calls are
// idempotent beyond the advance.
func (a *API) markRead(w http.ResponseWriter, r *http.Request) {
	type request struct {
		UserID string `json:"user_id" validate:"required"`
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

	if err := a.DB.MarkRead(r.Context(), conversationID, body.UserID); err != nil {
		a.respondStorageError(w, err, "Could not mark conversation read")
		return
	}

	a.publish(r.Context(), Event{Type: EventReceiptUpdated, ConversationID: conversationID, UserID: body.UserID})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getUnreadCount(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Count int `json:"count"`
	}

	userID := r.URL.Query().Get("user_id")
	if !a.requireParam(w, "user_id", userID) {
		return
	}

	count, err := a.DB.UnreadCount(r.Context(), r.PathValue("conversationID"), userID)
	if err != nil {
		a.respondStorageError(w, err, "Could not count unread messages")
		return
	}

	a.respond(w, http.StatusOK, response{Count: count})
}

// getUnreadCounts returns the unread count for every conversation the
// user belongs to, including zero entries. The storage layer computes
// this with batched reads rather than one query per conversation.
func (a *API) getUnreadCounts(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Counts map[string]int `json:"counts"`
	}

	counts, err := a.DB.UnreadCounts(r.Context(), r.PathValue("userID"))
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not count unread messages")
		return
	}
	if counts == nil {
		counts = map[string]int{}
	}

	a.respond(w, http.StatusOK, response{Counts: counts})
}
