package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pulsechat/pulse/api"
	"github.com/uptrace/bun"
)

// UpsertUser creates or refreshes a profile record from the external
// identity provider.
func (pg *Postgres) UpsertUser(ctx context.Context, u api.User) (api.User, error) {
	m := &user{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		AvatarURL:  u.AvatarURL,
		IsOnline:   u.IsOnline,
		LastSeenAt: u.LastSeenAt,
	}
	_, err := pg.bun.NewInsert().
		Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("email = EXCLUDED.email").
		Set("avatar_url = EXCLUDED.avatar_url").
		Set("is_online = EXCLUDED.is_online").
		Set("last_seen_at = EXCLUDED.last_seen_at").
		Exec(ctx)
	if err != nil {
		return api.User{}, fmt.Errorf("upsert: %w", err)
	}
	return m.APIUser(), nil
}

// SetUserOnline flips the online flag and stamps last_seen_at. An
// unknown user id is a no-op, matching the best-effort contract of
// presence updates.
func (pg *Postgres) SetUserOnline(ctx context.Context, userID string, online bool) error {
	_, err := pg.bun.NewUpdate().
		Model((*user)(nil)).
		Set("is_online = ?", online).
		Set("last_seen_at = ?", time.Now()).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return nil
}

// ListUsers returns all users except the excluded one, ordered by name.
func (pg *Postgres) ListUsers(ctx context.Context, excludeUserID string) ([]api.User, error) {
	var users []user
	q := pg.bun.NewSelect().
		Model(&users).
		Order("name ASC", "id ASC")
	if excludeUserID != "" {
		q = q.Where("id != ?", excludeUserID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	out := make([]api.User, len(users))
	for i, u := range users {
		out[i] = u.APIUser()
	}
	return out, nil
}

// SearchUsers finds users by case-insensitive name substring.
func (pg *Postgres) SearchUsers(ctx context.Context, query, excludeUserID string) ([]api.User, error) {
	var users []user
	q := pg.bun.NewSelect().
		Model(&users).
		Where("lower(name) LIKE ?", "%"+strings.ToLower(query)+"%").
		Order("name ASC", "id ASC")
	if excludeUserID != "" {
		q = q.Where("id != ?", excludeUserID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	out := make([]api.User, len(users))
	for i, u := range users {
		out[i] = u.APIUser()
	}
	return out, nil
}

// GetUsersByIDs batch-fetches profiles, ordered by id for determinism.
// Ids with no profile row are simply absent from the result.
func (pg *Postgres) GetUsersByIDs(ctx context.Context, userIDs []string) ([]api.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	var users []user
	err := pg.bun.NewSelect().
		Model(&users).
		Where("id IN (?)", bun.In(userIDs)).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	out := make([]api.User, len(users))
	for i, u := range users {
		out[i] = u.APIUser()
	}
	return out, nil
}
