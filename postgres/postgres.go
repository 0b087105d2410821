package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Postgres provides storage in PostgreSQL. It is the source of truth
// for users, conversations, messages, reactions and read receipts.
type Postgres struct {
	bun *bun.DB
}

// Connect connects to the database and pings the DB to ensure the
// connection is working.
func Connect(ctx context.Context, connStr string) (*Postgres, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	return &Postgres{
		bun: db,
	}, nil
}

// EnsureSchema creates the tables and the indexes the query paths rely
// on: the unique sorted-pair key that serializes one-on-one conversation
// creation, the (message_id, user_id) uniqueness behind reaction
// toggling, the membership index, and the message ordering index.
func (pg *Postgres) EnsureSchema(ctx context.Context) error {
	models := []any{
		(*user)(nil),
		(*conversation)(nil),
		(*conversationMember)(nil),
		(*message)(nil),
		(*reaction)(nil),
		(*readReceipt)(nil),
	}
	for _, m := range models {
		if _, err := pg.bun.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	indexes := []struct {
		name string
		def  func() *bun.CreateIndexQuery
	}{
		{"conversations_direct_key_uq", pg.directKeyIndex},
		{"conversation_members_user_idx", func() *bun.CreateIndexQuery {
			return pg.bun.NewCreateIndex().Model((*conversationMember)(nil)).Index("conversation_members_user_idx").Column("user_id")
		}},
		{"messages_conversation_created_idx", func() *bun.CreateIndexQuery {
			return pg.bun.NewCreateIndex().Model((*message)(nil)).Index("messages_conversation_created_idx").Column("conversation_id", "created_at")
		}},
		{"reactions_message_user_uq", func() *bun.CreateIndexQuery {
			return pg.bun.NewCreateIndex().Model((*reaction)(nil)).Unique().Index("reactions_message_user_uq").Column("message_id", "user_id")
		}},
	}
	for _, idx := range indexes {
		if _, err := idx.def().IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// directKeyIndex is the uniqueness source for one-on-one conversations.
// It must stay non-partial: ON CONFLICT (direct_key) can only infer a
// plain unique index as its arbiter, and the NULL keys of group
// conversations never collide anyway.
func (pg *Postgres) directKeyIndex() *bun.CreateIndexQuery {
	return pg.bun.NewCreateIndex().Model((*conversation)(nil)).Unique().Index("conversations_direct_key_uq").Column("direct_key")
}
