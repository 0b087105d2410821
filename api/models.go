package api

import "time"

// A User is a profile record synced from the external identity provider.
// The ID is the opaque, stable identifier the provider assigned.
type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	IsOnline   bool      `json:"is_online"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// A Conversation is a one-on-one or group thread. Members holds the
// canonical member list; for non-group conversations it has exactly two
// distinct user ids.
type Conversation struct {
	ID            string    `json:"id"`
	IsGroup       bool      `json:"is_group"`
	Name          string    `json:"name,omitempty"`
	Members       []string  `json:"members"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// A Message is one entry in a conversation's append-only log. Deleted
// messages keep their row; Content must not be shown once Deleted is set.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	Deleted        bool      `json:"deleted"`
}

// A ReactionGroup is the per-emoji projection of a message's reactions.
type ReactionGroup struct {
	Count   int      `json:"count"`
	UserIDs []string `json:"user_ids"`
}

// display returns the message with deleted content withheld. Storage keeps
// the content; the wire does not carry it.
func (m Message) display() Message {
	if m.Deleted {
		m.Content = ""
	}
	return m
}
