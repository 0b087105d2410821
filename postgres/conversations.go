package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pulsechat/pulse/api"
	"github.com/uptrace/bun"
)

// pairKey builds the canonical sorted-pair key for a one-on-one
// conversation. The unique index on this key is what guarantees at most
// one conversation per unordered pair.
func pairKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + "|" + userB
}

// dedupeMembers removes duplicates while keeping first-seen order.
func dedupeMembers(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func memberRows(conversationID string, userIDs []string) []conversationMember {
	rows := make([]conversationMember, len(userIDs))
	for i, id := range userIDs {
		rows[i] = conversationMember{ConversationID: conversationID, UserID: id}
	}
	return rows
}

func orderMembers(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("user_id ASC")
}

// directConversationInsert builds the race-guarded insert. The bare
// conflict target requires the non-partial unique index on direct_key;
// a partial arbiter would have to repeat the index predicate here.
func directConversationInsert(db bun.IDB, c *conversation) *bun.InsertQuery {
	return db.NewInsert().Model(c).On("CONFLICT (direct_key) DO NOTHING")
}

// GetOrCreateDirectConversation returns the one-on-one conversation for
// the pair, creating it if the pair has never talked. Concurrent calls
// for the same pair serialize on the direct_key unique index: the loser
// of the race falls through the DO NOTHING insert and reads the
// winner's row.
func (pg *Postgres) GetOrCreateDirectConversation(ctx context.Context, userA, userB string) (api.Conversation, bool, error) {
	key := pairKey(userA, userB)
	now := time.Now()

	var out conversation
	created := false
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		c := &conversation{
			ID:            uuid.NewString(),
			IsGroup:       false,
			DirectKey:     key,
			CreatedAt:     now,
			LastMessageAt: now,
		}
		res, err := directConversationInsert(tx, c).Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		created = rows > 0

		if created {
			members := memberRows(c.ID, []string{userA, userB})
			if _, err := tx.NewInsert().Model(&members).Exec(ctx); err != nil {
				return fmt.Errorf("insert members: %w", err)
			}
		}

		// Read back the canonical row; after a lost race this is the
		// winner's conversation.
		if err := tx.NewSelect().Model(&out).Relation("Members", orderMembers).Where("direct_key = ?", key).Scan(ctx); err != nil {
			return fmt.Errorf("select conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return api.Conversation{}, false, err
	}
	return out.APIConversation(), created, nil
}

// CreateGroupConversation creates a group thread with the deduplicated
// union of the member ids and the creator.
func (pg *Postgres) CreateGroupConversation(ctx context.Context, name string, memberIDs []string, creatorID string) (api.Conversation, error) {
	members := dedupeMembers(append(append([]string{}, memberIDs...), creatorID))
	now := time.Now()

	c := &conversation{
		ID:            uuid.NewString(),
		IsGroup:       true,
		Name:          name,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(c).Exec(ctx); err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
		rows := memberRows(c.ID, members)
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert members: %w", err)
		}
		return nil
	})
	if err != nil {
		return api.Conversation{}, err
	}

	sort.Strings(members)
	return api.Conversation{
		ID:            c.ID,
		IsGroup:       true,
		Name:          name,
		Members:       members,
		CreatedAt:     now,
		LastMessageAt: now,
	}, nil
}

// ListConversations returns the user's conversations, most recently
// active first, using the membership index rather than scanning every
// conversation.
func (pg *Postgres) ListConversations(ctx context.Context, userID string) ([]api.Conversation, error) {
	var convs []conversation
	err := pg.bun.NewSelect().
		Model(&convs).
		Relation("Members", orderMembers).
		Join("JOIN conversation_members AS cm ON cm.conversation_id = conversation.id").
		Where("cm.user_id = ?", userID).
		Order("conversation.last_message_at DESC", "conversation.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	out := make([]api.Conversation, len(convs))
	for i, c := range convs {
		out[i] = c.APIConversation()
	}
	return out, nil
}

// GetConversation returns the conversation and whether it exists.
// Absence is not an error: callers need to tell not-found apart from
// storage failure.
func (pg *Postgres) GetConversation(ctx context.Context, conversationID string) (api.Conversation, bool, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return api.Conversation{}, false, nil
	}

	var c conversation
	err := pg.bun.NewSelect().Model(&c).Relation("Members", orderMembers).Where("conversation.id = ?", conversationID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return api.Conversation{}, false, nil
	}
	if err != nil {
		return api.Conversation{}, false, fmt.Errorf("scan: %w", err)
	}
	return c.APIConversation(), true, nil
}
