package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pulsechat/pulse/api"
)

// MarkRead upserts the (conversation, user) read watermark to now.
// GREATEST keeps the watermark monotone: a delayed retry can never move
// it backwards.
func (pg *Postgres) MarkRead(ctx context.Context, conversationID, userID string) error {
	if _, err := uuid.Parse(conversationID); err != nil {
		return fmt.Errorf("conversation %s: %w", conversationID, api.ErrNotFound)
	}

	r := &readReceipt{
		ConversationID: conversationID,
		UserID:         userID,
		LastReadAt:     time.Now(),
	}
	_, err := pg.bun.NewInsert().
		Model(r).
		On("CONFLICT (conversation_id, user_id) DO UPDATE").
		Set("last_read_at = GREATEST(read_receipt.last_read_at, EXCLUDED.last_read_at)").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert receipt: %w", err)
	}
	return nil
}

// UnreadCount counts messages newer than the user's watermark that the
// user did not send. A user with no receipt has watermark zero and sees
// everything as unread. Deleted messages count: the unread badge tracks
// log position, not visible content.
func (pg *Postgres) UnreadCount(ctx context.Context, conversationID, userID string) (int, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return 0, fmt.Errorf("conversation %s: %w", conversationID, api.ErrNotFound)
	}

	count, err := pg.bun.NewSelect().
		Model((*message)(nil)).
		Where("conversation_id = ?", conversationID).
		Where("sender_id != ?", userID).
		Where("created_at > COALESCE((SELECT last_read_at FROM read_receipts WHERE conversation_id = ? AND user_id = ?), 'epoch'::timestamptz)", conversationID, userID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

// UnreadCounts computes the unread count for every conversation the
// user belongs to in two batched reads: the membership list, then one
// grouped count across all of the user's conversations. Conversations
// with nothing unread appear with a zero entry.
func (pg *Postgres) UnreadCounts(ctx context.Context, userID string) (map[string]int, error) {
	var memberships []conversationMember
	err := pg.bun.NewSelect().
		Model(&memberships).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan memberships: %w", err)
	}

	counts := make(map[string]int, len(memberships))
	for _, m := range memberships {
		counts[m.ConversationID] = 0
	}
	if len(memberships) == 0 {
		return counts, nil
	}

	var rows []struct {
		ConversationID string `bun:"conversation_id"`
		Count          int    `bun:"count"`
	}
	err = pg.bun.NewSelect().
		TableExpr("messages AS m").
		ColumnExpr("m.conversation_id").
		ColumnExpr("count(*) AS count").
		Join("JOIN conversation_members AS cm ON cm.conversation_id = m.conversation_id AND cm.user_id = ?", userID).
		Join("LEFT JOIN read_receipts AS r ON r.conversation_id = m.conversation_id AND r.user_id = ?", userID).
		Where("m.sender_id != ?", userID).
		Where("m.created_at > COALESCE(r.last_read_at, 'epoch'::timestamptz)").
		GroupExpr("m.conversation_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("scan counts: %w", err)
	}

	for _, row := range rows {
		counts[row.ConversationID] = row.Count
	}
	return counts, nil
}
