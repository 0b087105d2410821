package postgres

import (
	"time"

	"github.com/pulsechat/pulse/api"
)

// A user represents a profile record in the database. The primary key
// is the external identity provider's id.
type user struct {
	ID         string    `bun:",pk"`
	Name       string    `bun:",notnull"`
	Email      string    `bun:",notnull"`
	AvatarURL  string    `bun:"avatar_url"`
	IsOnline   bool      `bun:",notnull,default:false"`
	LastSeenAt time.Time `bun:"last_seen_at,nullzero"`
}

// A conversation represents a one-on-one or group thread. DirectKey is
// the sorted member pair for one-on-one conversations; its unique
// index makes concurrent get-or-create race-safe. Group conversations
// leave it NULL, which the index does not constrain.
type conversation struct {
	ID            string               `bun:",pk,type:uuid"`
	IsGroup       bool                 `bun:",notnull,default:false"`
	Name          string               `bun:",nullzero"`
	DirectKey     string               `bun:"direct_key,nullzero"`
	CreatedAt     time.Time            `bun:",nullzero"`
	LastMessageAt time.Time            `bun:"last_message_at,nullzero"`
	Members       []conversationMember `bun:"rel:has-many,join:id=conversation_id"`
}

type conversationMember struct {
	ConversationID string `bun:",pk,type:uuid"`
	UserID         string `bun:"user_id,pk"`
}

type message struct {
	ID             string    `bun:",pk,type:uuid"`
	ConversationID string    `bun:",notnull,type:uuid"`
	SenderID       string    `bun:"sender_id,notnull"`
	Content        string    `bun:",notnull"`
	CreatedAt      time.Time `bun:",nullzero"`
	Deleted        bool      `bun:",notnull,default:false"`
}

// A reaction row is unique per (message_id, user_id): a user holds at
// most one reaction per message.
type reaction struct {
	ID        string `bun:",pk,type:uuid"`
	MessageID string `bun:",notnull,type:uuid"`
	UserID    string `bun:"user_id,notnull"`
	Emoji     string `bun:",notnull"`
}

// A readReceipt is the per-(conversation, user) read watermark.
type readReceipt struct {
	ConversationID string    `bun:",pk,type:uuid"`
	UserID         string    `bun:"user_id,pk"`
	LastReadAt     time.Time `bun:"last_read_at,nullzero"`
}

func (u user) APIUser() api.User {
	return api.User{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		AvatarURL:  u.AvatarURL,
		IsOnline:   u.IsOnline,
		LastSeenAt: u.LastSeenAt,
	}
}

func (c conversation) APIConversation() api.Conversation {
	members := make([]string, len(c.Members))
	for i, m := range c.Members {
		members[i] = m.UserID
	}
	return api.Conversation{
		ID:            c.ID,
		IsGroup:       c.IsGroup,
		Name:          c.Name,
		Members:       members,
		CreatedAt:     c.CreatedAt,
		LastMessageAt: c.LastMessageAt,
	}
}

func (m message) APIMessage() api.Message {
	return api.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		Deleted:        m.Deleted,
	}
}
