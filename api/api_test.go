package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
	"github.com/pulsechat/pulse/api/validator"
)

// testdb is a closure-backed fake of the DB interface. Methods whose
// closure is unset fail the test when called.
type testdb struct {
	T *testing.T

	upsertUser    func(t *testing.T, user User) (User, error)
	setUserOnline func(t *testing.T, userID string, online bool) error
	listUsers     func(t *testing.T, excludeUserID string) ([]User, error)
	searchUsers   func(t *testing.T, query, excludeUserID string) ([]User, error)
	getUsersByIDs func(t *testing.T, userIDs []string) ([]User, error)

	getOrCreateDirect func(t *testing.T, userA, userB string) (Conversation, bool, error)
	createGroup       func(t *testing.T, name string, memberIDs []string, creatorID string) (Conversation, error)
	listConversations func(t *testing.T, userID string) ([]Conversation, error)
	getConversation   func(t *testing.T, conversationID string) (Conversation, bool, error)

	insertMessage     func(t *testing.T, msg Message) (Message, error)
	listMessages      func(t *testing.T, conversationID string) ([]Message, error)
	latestMessage     func(t *testing.T, conversationID string) (Message, bool, error)
	softDeleteMessage func(t *testing.T, messageID, requesterID string) error

	toggleReaction func(t *testing.T, messageID, userID, emoji string) error
	listReactions  func(t *testing.T, messageID string) (map[string]ReactionGroup, error)

	markRead     func(t *testing.T, conversationID, userID string) error
	unreadCount  func(t *testing.T, conversationID, userID string) (int, error)
	unreadCounts func(t *testing.T, userID string) (map[string]int, error)
}

var errUnexpectedCall = errors.New("unexpected call")

func (db *testdb) UpsertUser(_ context.Context, user User) (User, error) {
	if db.upsertUser == nil {
		db.T.Error("Unexpected call to UpsertUser")
		return User{}, errUnexpectedCall
	}
	return db.upsertUser(db.T, user)
}

func (db *testdb) SetUserOnline(_ context.Context, userID string, online bool) error {
	if db.setUserOnline == nil {
		db.T.Error("Unexpected call to SetUserOnline")
		return errUnexpectedCall
	}
	return db.setUserOnline(db.T, userID, online)
}

func (db *testdb) ListUsers(_ context.Context, excludeUserID string) ([]User, error) {
	if db.listUsers == nil {
		db.T.Error("Unexpected call to ListUsers")
		return nil, errUnexpectedCall
	}
	return db.listUsers(db.T, excludeUserID)
}

func (db *testdb) SearchUsers(_ context.Context, query, excludeUserID string) ([]User, error) {
	if db.searchUsers == nil {
		db.T.Error("Unexpected call to SearchUsers")
		return nil, errUnexpectedCall
	}
	return db.searchUsers(db.T, query, excludeUserID)
}

func (db *testdb) GetUsersByIDs(_ context.Context, userIDs []string) ([]User, error) {
	if db.getUsersByIDs == nil {
		db.T.Error("Unexpected call to GetUsersByIDs")
		return nil, errUnexpectedCall
	}
	return db.getUsersByIDs(db.T, userIDs)
}

func (db *testdb) GetOrCreateDirectConversation(_ context.Context, userA, userB string) (Conversation, bool, error) {
	if db.getOrCreateDirect == nil {
		db.T.Error("Unexpected call to GetOrCreateDirectConversation")
		return Conversation{}, false, errUnexpectedCall
	}
	return db.getOrCreateDirect(db.T, userA, userB)
}

func (db *testdb) CreateGroupConversation(_ context.Context, name string, memberIDs []string, creatorID string) (Conversation, error) {
	if db.createGroup == nil {
		db.T.Error("Unexpected call to CreateGroupConversation")
		return Conversation{}, errUnexpectedCall
	}
	return db.createGroup(db.T, name, memberIDs, creatorID)
}

func (db *testdb) ListConversations(_ context.Context, userID string) ([]Conversation, error) {
	if db.listConversations == nil {
		db.T.Error("Unexpected call to ListConversations")
		return nil, errUnexpectedCall
	}
	return db.listConversations(db.T, userID)
}

func (db *testdb) GetConversation(_ context.Context, conversationID string) (Conversation, bool, error) {
	if db.getConversation == nil {
		db.T.Error("Unexpected call to GetConversation")
		return Conversation{}, false, errUnexpectedCall
	}
	return db.getConversation(db.T, conversationID)
}

func (db *testdb) InsertMessage(_ context.Context, msg Message) (Message, error) {
	if db.insertMessage == nil {
		db.T.Error("Unexpected call to InsertMessage")
		return Message{}, errUnexpectedCall
	}
	return db.insertMessage(db.T, msg)
}

func (db *testdb) ListMessages(_ context.Context, conversationID string) ([]Message, error) {
	if db.listMessages == nil {
		db.T.Error("Unexpected call to ListMessages")
		return nil, errUnexpectedCall
	}
	return db.listMessages(db.T, conversationID)
}

func (db *testdb) LatestMessage(_ context.Context, conversationID string) (Message, bool, error) {
	if db.latestMessage == nil {
		db.T.Error("Unexpected call to LatestMessage")
		return Message{}, false, errUnexpectedCall
	}
	return db.latestMessage(db.T, conversationID)
}

func (db *testdb) SoftDeleteMessage(_ context.Context, messageID, requesterID string) error {
	if db.softDeleteMessage == nil {
		db.T.Error("Unexpected call to SoftDeleteMessage")
		return errUnexpectedCall
	}
	return db.softDeleteMessage(db.T, messageID, requesterID)
}

func (db *testdb) ToggleReaction(_ context.Context, messageID, userID, emoji string) error {
	if db.toggleReaction == nil {
		db.T.Error("Unexpected call to ToggleReaction")
		return errUnexpectedCall
	}
	return db.toggleReaction(db.T, messageID, userID, emoji)
}

func (db *testdb) ListReactions(_ context.Context, messageID string) (map[string]ReactionGroup, error) {
	if db.listReactions == nil {
		db.T.Error("Unexpected call to ListReactions")
		return nil, errUnexpectedCall
	}
	return db.listReactions(db.T, messageID)
}

func (db *testdb) MarkRead(_ context.Context, conversationID, userID string) error {
	if db.markRead == nil {
		db.T.Error("Unexpected call to MarkRead")
		return errUnexpectedCall
	}
	return db.markRead(db.T, conversationID, userID)
}

func (db *testdb) UnreadCount(_ context.Context, conversationID, userID string) (int, error) {
	if db.unreadCount == nil {
		db.T.Error("Unexpected call to UnreadCount")
		return 0, errUnexpectedCall
	}
	return db.unreadCount(db.T, conversationID, userID)
}

func (db *testdb) UnreadCounts(_ context.Context, userID string) (map[string]int, error) {
	if db.unreadCounts == nil {
		db.T.Error("Unexpected call to UnreadCounts")
		return nil, errUnexpectedCall
	}
	return db.unreadCounts(db.T, userID)
}

// testpresence fakes the Presence interface.
type testpresence struct {
	T *testing.T

	setTyping  func(t *testing.T, conversationID, userID string, typing bool) error
	listTypers func(t *testing.T, conversationID string, cutoff time.Time) ([]string, error)
}

func (p *testpresence) SetTyping(_ context.Context, conversationID, userID string, typing bool) error {
	if p.setTyping == nil {
		p.T.Error("Unexpected call to SetTyping")
		return errUnexpectedCall
	}
	return p.setTyping(p.T, conversationID, userID, typing)
}

func (p *testpresence) ListTypers(_ context.Context, conversationID string, cutoff time.Time) ([]string, error) {
	if p.listTypers == nil {
		p.T.Error("Unexpected call to ListTypers")
		return nil, errUnexpectedCall
	}
	return p.listTypers(p.T, conversationID, cutoff)
}

// testbus records published events and serves a canned subscription.
type testbus struct {
	mu        sync.Mutex
	published []Event
	events    chan Event
	pubErr    error
}

func (b *testbus) Publish(_ context.Context, ev Event) error {
	if b.pubErr != nil {
		return b.pubErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, ev)
	return nil
}

func (b *testbus) Subscribe(context.Context) (<-chan Event, error) {
	return b.events, nil
}

func (b *testbus) publishedTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, len(b.published))
	for i, ev := range b.published {
		types[i] = ev.Type
	}
	return types
}

func newTestAPI(t *testing.T, db *testdb, presence *testpresence, bus *testbus) *API {
	t.Helper()
	a := &API{
		Logger: slogt.New(t),
		Val:    validator.New(),
	}
	if db != nil {
		db.T = t
		a.DB = db
	}
	if presence != nil {
		presence.T = t
		a.Presence = presence
	}
	if bus != nil {
		a.Events = bus
	}
	return a
}

func checkStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("Got HTTP status %d, want %d", got, want)
	}
}

func checkBody(t *testing.T, resp *http.Response, want string) {
	t.Helper()
	if want == "" {
		return
	}
	gotBody := normalizeJSON(t, resp.Body)
	wantBody := normalizeJSON(t, bytes.NewReader([]byte(want)))
	if gotBody != wantBody {
		t.Errorf("Body does not match\nGot\n  %s\n\nWant\n  %s", gotBody, wantBody)
	}
}

func checkLog(t *testing.T, buffer *bytes.Buffer, want string) {
	t.Helper()

	if s := buffer.String(); want != "" && !strings.Contains(s, want) {
		t.Errorf("Log does not contain  %s\n", want)
	}
}

func checkEvents(t *testing.T, bus *testbus, want ...string) {
	t.Helper()
	got := bus.publishedTypes()
	if len(got) != len(want) {
		t.Errorf("Got events %v, want %v", got, want)
		return
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Got events %v, want %v", got, want)
			return
		}
	}
}

func normalizeJSON(t *testing.T, r io.Reader) string {
	t.Helper()
	var buf bytes.Buffer
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Could not read JSON: %v", err)
	}
	if err := json.Indent(&buf, b, "  ", "  "); err != nil {
		t.Fatalf("Could not indent JSON: %v", err)
	}
	return strings.TrimSpace(buf.String())
}
