package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// setTyping refreshes or removes the caller's typing beacon. Removal of
// an absent beacon is not an error.
func (a *API) setTyping(w http.ResponseWriter, r *http.Request) {
	type request struct {
		UserID   string `json:"user_id" validate:"required"`
		IsTyping bool   `json:"is_typing"`
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

	if err := a.Presence.SetTyping(r.Context(), conversationID, body.UserID, body.IsTyping); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not update typing status")
		return
	}

	a.publish(r.Context(), Event{Type: EventTypingUpdated, ConversationID: conversationID, UserID: body.UserID})
	w.WriteHeader(http.StatusNoContent)
}

// listTypingUsers returns the profiles of users whose beacon is inside
// the liveness window. The filter is wall-clock-relative: the same
// beacons age out of this view with no write in between, so clients
// should re-poll on a short timer as well as on typing events.
func (a *API) listTypingUsers(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Users []User `json:"users"`
	}

	conversationID := r.PathValue("conversationID")
	exclude := r.URL.Query().Get("exclude_user_id")

	cutoff := time.Now().Add(-a.typingWindow())
	typerIDs, err := a.Presence.ListTypers(r.Context(), conversationID, cutoff)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list typing users")
		return
	}

	ids := typerIDs[:0]
	for _, id := range typerIDs {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		a.respond(w, http.StatusOK, response{Users: []User{}})
		return
	}

	users, err := a.DB.GetUsersByIDs(r.Context(), ids)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not resolve typing users")
		return
	}
	if users == nil {
		users = []User{}
	}

	a.respond(w, http.StatusOK, response{Users: users})
}
