package api

import (
	"encoding/json"
	"net/http"
)

// toggleReaction applies the single-transition reaction rule: same emoji
// removes the reaction, a different emoji replaces it, none adds it. A
// user holds at most one reaction per message throughout.
func (a *API) toggleReaction(w http.ResponseWriter, r *http.Request) {
	type request struct {
		UserID string `json:"user_id" validate:"required"`
		Emoji  string `json:"emoji" validate:"required"`
	}

	messageID := r.PathValue("messageID")
	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return
	}
	if valid := a.validateBody(w, &body); !valid {
		return
	}

	if err := a.DB.ToggleReaction(r.Context(), messageID, body.UserID, body.Emoji); err != nil {
		a.respondStorageError(w, err, "Could not toggle reaction")
		return
	}

	a.publish(r.Context(), Event{Type: EventReactionUpdated, MessageID: messageID, UserID: body.UserID})
	w.WriteHeader(http.StatusNoContent)
}

// getReactions returns the emoji -> {count, user_ids} projection for a
// message. A message with no reactions yields an empty mapping.
func (a *API) getReactions(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Reactions map[string]ReactionGroup `json:"reactions"`
	}

	groups, err := a.DB.ListReactions(r.Context(), r.PathValue("messageID"))
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list reactions")
		return
	}
	if groups == nil {
		groups = map[string]ReactionGroup{}
	}

	a.respond(w, http.StatusOK, response{Reactions: groups})
}
