package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// upsertUser syncs a profile from the external identity provider. The
// user is marked online as part of the sync.
func (a *API) upsertUser(w http.ResponseWriter, r *http.Request) {
	type request struct {
		ID        string `json:"id" validate:"required"`
		Name      string `json:"name" validate:"required"`
		Email     string `json:"email" validate:"required,email"`
		AvatarURL string `json:"avatar_url"`
	}

	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return
	}
	if valid := a.validateBody(w, &body); !valid {
		return
	}

	user, err := a.DB.UpsertUser(r.Context(), User{
		ID:         body.ID,
		Name:       body.Name,
		Email:      body.Email,
		AvatarURL:  body.AvatarURL,
		IsOnline:   true,
		LastSeenAt: time.Now(),
	})
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not upsert user")
		return
	}

	a.publish(r.Context(), Event{Type: EventUserUpdated, UserID: user.ID})
	a.respond(w, http.StatusOK, user)
}

// setUserStatus flips the online flag. Status updates are best effort:
// a storage failure is logged but never surfaced to the caller, so the
// surrounding identity sync flow cannot be broken by it.
func (a *API) setUserStatus(w http.ResponseWriter, r *http.Request) {
	type request struct {
		IsOnline bool `json:"is_online"`
	}

	userID := r.PathValue("userID")
	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return
	}

	if err := a.DB.SetUserOnline(r.Context(), userID, body.IsOnline); err != nil {
		a.Logger.Error("Could not update online status", "user_id", userID, "error", err.Error())
	} else {
		a.publish(r.Context(), Event{Type: EventUserUpdated, UserID: userID})
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Users []User `json:"users"`
	}

	users, err := a.DB.ListUsers(r.Context(), r.URL.Query().Get("exclude"))
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list users")
		return
	}
	if users == nil {
		users = []User{}
	}

	a.respond(w, http.StatusOK, response{Users: users})
}

func (a *API) searchUsers(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Users []User `json:"users"`
	}

	query := r.URL.Query().Get("q")
	if !a.requireParam(w, "q", query) {
		return
	}

	users, err := a.DB.SearchUsers(r.Context(), query, r.URL.Query().Get("exclude"))
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not search users")
		return
	}
	if users == nil {
		users = []User{}
	}

	a.respond(w, http.StatusOK, response{Users: users})
}
