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

// ToggleReaction applies the reaction transition as one serialized
// step: same emoji removes the reaction, a different emoji replaces it,
// no prior reaction adds one. The row lock (and the (message_id,
// user_id) unique index for the no-prior-row case) makes concurrent
// toggles by the same user read a consistent prior state.
func (pg *Postgres) ToggleReaction(ctx context.Context, messageID, userID, emoji string) error {
	if _, err := uuid.Parse(messageID); err != nil {
		return fmt.Errorf("message %s: %w", messageID, api.ErrNotFound)
	}

	return pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*message)(nil)).Where("id = ?", messageID).Exists(ctx)
		if err != nil {
			return fmt.Errorf("check message: %w", err)
		}
		if !exists {
			return fmt.Errorf("message %s: %w", messageID, api.ErrNotFound)
		}

		var r reaction
		err = tx.NewSelect().
			Model(&r).
			Where("message_id = ?", messageID).
			Where("user_id = ?", userID).
			For("UPDATE").
			Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			n := &reaction{
				ID:        uuid.NewString(),
				MessageID: messageID,
				UserID:    userID,
				Emoji:     emoji,
			}
			// Two racing first-time toggles both reach here; the
			// conflict clause turns the loser into a replace.
			if _, err := tx.NewInsert().Model(n).On("CONFLICT (message_id, user_id) DO UPDATE").Set("emoji = EXCLUDED.emoji").Exec(ctx); err != nil {
				return fmt.Errorf("insert reaction: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("scan: %w", err)
		case r.Emoji == emoji:
			if _, err := tx.NewDelete().Model(&r).WherePK().Exec(ctx); err != nil {
				return fmt.Errorf("delete reaction: %w", err)
			}
			return nil
		default:
			if _, err := tx.NewUpdate().Model(&r).Set("emoji = ?", emoji).WherePK().Exec(ctx); err != nil {
				return fmt.Errorf("update reaction: %w", err)
			}
			return nil
		}
	})
}

// ListReactions folds the message's reaction rows into the
// emoji -> {count, user_ids} projection. No reactions yields an empty
// mapping, not an error.
func (pg *Postgres) ListReactions(ctx context.Context, messageID string) (map[string]api.ReactionGroup, error) {
	out := make(map[string]api.ReactionGroup)
	if _, err := uuid.Parse(messageID); err != nil {
		return out, nil
	}

	var rows []reaction
	err := pg.bun.NewSelect().
		Model(&rows).
		Where("message_id = ?", messageID).
		Order("user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	for _, r := range rows {
		g := out[r.Emoji]
		g.Count++
		g.UserIDs = append(g.UserIDs, r.UserID)
		out[r.Emoji] = g
	}
	return out, nil
}
