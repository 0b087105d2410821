package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pulsechat/pulse/api"
	"github.com/uptrace/bun"
)

// InsertMessage appends a message and bumps the parent conversation's
// last_message_at in the same transaction. Either both land or neither:
// a message that exists while last_message_at is stale would break
// conversation-list ordering.
func (pg *Postgres) InsertMessage(ctx context.Context, msg api.Message) (api.Message, error) {
	if _, err := uuid.Parse(msg.ConversationID); err != nil {
		return api.Message{}, fmt.Errorf("conversation %s: %w", msg.ConversationID, api.ErrNotFound)
	}

	m := &message{
		ID:             uuid.NewString(),
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
		Deleted:        false,
	}
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// GREATEST keeps the timestamp monotone even if appends land
		// out of wall-clock order.
		res, err := tx.NewUpdate().
			Model((*conversation)(nil)).
			Set("last_message_at = GREATEST(last_message_at, ?)", m.CreatedAt).
			Where("id = ?", m.ConversationID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("bump conversation: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("conversation %s: %w", m.ConversationID, api.ErrNotFound)
		}

		if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return nil
	})
	if err != nil {
		return api.Message{}, err
	}
	return m.APIMessage(), nil
}

// ListMessages returns the conversation's full history ordered by
// created_at, message id breaking timestamp ties so the order is total.
// Deleted messages are included; hiding them is the display layer's job.
func (pg *Postgres) ListMessages(ctx context.Context, conversationID string) ([]api.Message, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return nil, nil
	}

	var msgs []message
	err := pg.bun.NewSelect().
		Model(&msgs).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	out := make([]api.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.APIMessage()
	}
	return out, nil
}

// LatestMessage returns the newest message in the conversation and
// whether one exists.
func (pg *Postgres) LatestMessage(ctx context.Context, conversationID string) (api.Message, bool, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return api.Message{}, false, nil
	}

	var m message
	err := pg.bun.NewSelect().
		Model(&m).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return api.Message{}, false, nil
	}
	if err != nil {
		return api.Message{}, false, fmt.Errorf("scan: %w", err)
	}
	return m.APIMessage(), true, nil
}

// SoftDeleteMessage marks the message deleted. Only the sender may
// delete; deleting twice is a no-op success. The row and its content
// stay so reactions and receipts keep a valid target.
func (pg *Postgres) SoftDeleteMessage(ctx context.Context, messageID, requesterID string) error {
	if _, err := uuid.Parse(messageID); err != nil {
		return fmt.Errorf("message %s: %w", messageID, api.ErrNotFound)
	}

	return pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var m message
		err := tx.NewSelect().Model(&m).Where("id = ?", messageID).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("message %s: %w", messageID, api.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}

		if m.SenderID != requesterID {
			return fmt.Errorf("message %s is not owned by %s: %w", messageID, requesterID, api.ErrUnauthorized)
		}
		if m.Deleted {
			return nil
		}

		if _, err := tx.NewUpdate().Model(&m).Set("deleted = TRUE").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update: %w", err)
		}
		return nil
	})
}
