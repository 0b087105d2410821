package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pulsechat/pulse/api/validator"
)

// A DB provides the durable storage layer: users, conversations,
// messages, reactions and read receipts.
type DB interface {
	UpsertUser(ctx context.Context, user User) (User, error)
	SetUserOnline(ctx context.Context, userID string, online bool) error
	ListUsers(ctx context.Context, excludeUserID string) ([]User, error)
	SearchUsers(ctx context.Context, query, excludeUserID string) ([]User, error)
	GetUsersByIDs(ctx context.Context, userIDs []string) ([]User, error)

	GetOrCreateDirectConversation(ctx context.Context, userA, userB string) (Conversation, bool, error)
	CreateGroupConversation(ctx context.Context, name string, memberIDs []string, creatorID string) (Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (Conversation, bool, error)

	InsertMessage(ctx context.Context, msg Message) (Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	LatestMessage(ctx context.Context, conversationID string) (Message, bool, error)
	SoftDeleteMessage(ctx context.Context, messageID, requesterID string) error

	ToggleReaction(ctx context.Context, messageID, userID, emoji string) error
	ListReactions(ctx context.Context, messageID string) (map[string]ReactionGroup, error)

	MarkRead(ctx context.Context, conversationID, userID string) error
	UnreadCount(ctx context.Context, conversationID, userID string) (int, error)
	UnreadCounts(ctx context.Context, userID string) (map[string]int, error)
}

// A Presence provides the ephemeral storage layer for typing beacons.
// ListTypers must exclude beacons at or before the cutoff even if they
// have not been physically purged yet.
type Presence interface {
	SetTyping(ctx context.Context, conversationID, userID string, typing bool) error
	ListTypers(ctx context.Context, conversationID string, cutoff time.Time) ([]string, error)
}

// An EventBus carries invalidation events from mutations to live view
// subscribers.
type EventBus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// defaultTypingWindow is the read-side liveness window: a beacon older
// than this is treated as absent.
const defaultTypingWindow = 2 * time.Second

// API provides the REST endpoints for the application.
type API struct {
	Logger   *slog.Logger
	DB       DB
	Presence Presence
	Events   EventBus
	Val      *validator.Validator

	// TypingWindow overrides the read-side liveness window for typing
	// beacons. Zero means the 2 second default.
	TypingWindow time.Duration

	once sync.Once
	mux  *http.ServeMux
}

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /users", a.upsertUser)
	mux.HandleFunc("GET /users", a.listUsers)
	mux.HandleFunc("GET /users/search", a.searchUsers)
	mux.HandleFunc("PUT /users/{userID}/status", a.setUserStatus)
	mux.HandleFunc("GET /users/{userID}/unread-counts", a.getUnreadCounts)

	mux.HandleFunc("POST /conversations/direct", a.createDirectConversation)
	mux.HandleFunc("POST /conversations/group", a.createGroupConversation)
	mux.HandleFunc("GET /conversations", a.listConversations)
	mux.HandleFunc("GET /conversations/{conversationID}", a.getConversation)
	mux.HandleFunc("POST /conversations/{conversationID}/messages", a.createMessage)
	mux.HandleFunc("GET /conversations/{conversationID}/messages", a.listMessages)
	mux.HandleFunc("GET /conversations/{conversationID}/messages/latest", a.latestMessage)
	mux.HandleFunc("PUT /conversations/{conversationID}/typing", a.setTyping)
	mux.HandleFunc("GET /conversations/{conversationID}/typing", a.listTypingUsers)
	mux.HandleFunc("POST /conversations/{conversationID}/read", a.markRead)
	mux.HandleFunc("GET /conversations/{conversationID}/unread", a.getUnreadCount)

	mux.HandleFunc("DELETE /messages/{messageID}", a.deleteMessage)
	mux.HandleFunc("POST /messages/{messageID}/reactions", a.toggleReaction)
	mux.HandleFunc("GET /messages/{messageID}/reactions", a.getReactions)

	mux.HandleFunc("GET /events", a.streamEvents)

	a.mux = mux
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setupRoutes)
	a.Logger.Info("Request received", "method", r.Method, "path", r.URL.Path)
	a.mux.ServeHTTP(w, r)
}

func (a *API) typingWindow() time.Duration {
	if a.TypingWindow > 0 {
		return a.TypingWindow
	}
	return defaultTypingWindow
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Logger.Error("Could not encode JSON body", "error", err.Error())
	}
}

func (a *API) respondError(w http.ResponseWriter, status int, err error, msg string) {
	type response struct {
		Error string `json:"error"`
	}
	a.Logger.Error("Error", "error", err.Error())
	a.respond(w, status, response{Error: msg})
}

// respondStorageError maps the storage error taxonomy onto HTTP statuses.
func (a *API) respondStorageError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		a.respondError(w, http.StatusNotFound, err, msg)
	case errors.Is(err, ErrUnauthorized):
		a.respondError(w, http.StatusForbidden, err, msg)
	default:
		a.respondError(w, http.StatusInternalServerError, err, msg)
	}
}

func (a *API) validateBody(w http.ResponseWriter, s interface{}) bool {
	errs := a.Val.ValidateStruct(s)
	type response struct {
		Errors []validator.ValidationError `json:"errors"`
	}

	if len(errs) > 0 {
		a.respond(w, http.StatusBadRequest, &response{
			Errors: errs,
		})
		return false
	}
	return true
}

// requireParam validates a single required query or path parameter and
// writes a 400 response when it is missing.
func (a *API) requireParam(w http.ResponseWriter, name, value string) bool {
	if errs := a.Val.Validate(value, "required"); len(errs) > 0 {
		type response struct {
			Error string `json:"error"`
		}
		a.respond(w, http.StatusBadRequest, response{Error: "Missing required parameter " + name})
		return false
	}
	return true
}

// publish emits an invalidation event. Publishing is best effort: a
// failed publish is logged and never fails the surrounding mutation.
func (a *API) publish(ctx context.Context, ev Event) {
	if a.Events == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if err := a.Events.Publish(ctx, ev); err != nil {
		a.Logger.Error("Could not publish event", "type", ev.Type, "error", err.Error())
	}
}
