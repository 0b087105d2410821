package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis provides the ephemeral storage layer: typing beacons and the
// invalidation event bus. Beacons live in one sorted set per
// conversation, scored by their updated-at time, so both the read-side
// liveness filter and the sweep are score-range operations.
type Redis struct {
	cli *redis.Client
}

// Connect connects to the Redis server and pings the server to ensure
// the connection is working.
func Connect(ctx context.Context, addr string) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{
		cli: cli,
	}, nil
}

const (
	typingPrefix = "typing"

	// typingIndex tracks which conversations have a beacon set, so the
	// sweeper does not have to SCAN the keyspace.
	typingIndex = "typing:conversations"
)

func typingKey(conversationID string) string {
	return fmt.Sprintf("%s:%s", typingPrefix, conversationID)
}

// exclusiveCutoff formats a time as an exclusive ZSet score bound.
func exclusiveCutoff(t time.Time) string {
	return fmt.Sprintf("(%d", t.UnixMilli())
}

// SetTyping refreshes the user's beacon when typing, removes it when
// not. Removing an absent beacon is not an error.
func (r *Redis) SetTyping(ctx context.Context, conversationID, userID string, typing bool) error {
	key := typingKey(conversationID)

	if !typing {
		if err := r.cli.ZRem(ctx, key, userID).Err(); err != nil {
			return fmt.Errorf("zrem: %w", err)
		}
		return nil
	}

	_, err := r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(time.Now().UnixMilli()),
			Member: userID,
		})
		pipe.SAdd(ctx, typingIndex, conversationID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("refresh beacon: %w", err)
	}
	return nil
}

// ListTypers returns the ids of users whose beacon is strictly newer
// than the cutoff. Expired beacons are excluded here regardless of
// whether the sweeper has physically removed them yet.
func (r *Redis) ListTypers(ctx context.Context, conversationID string, cutoff time.Time) ([]string, error) {
	ids, err := r.cli.ZRangeByScore(ctx, typingKey(conversationID), &redis.ZRangeBy{
		Min: exclusiveCutoff(cutoff),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore: %w", err)
	}
	return ids, nil
}

// SweepExpired deletes every beacon strictly older than the cutoff and
// returns the number deleted. The cutoff is fixed by the caller at
// sweep start, so a beacon refreshed mid-sweep scores above the bound
// and survives.
func (r *Redis) SweepExpired(ctx context.Context, cutoff time.Time) (int, error) {
	convIDs, err := r.cli.SMembers(ctx, typingIndex).Result()
	if err != nil {
		return 0, fmt.Errorf("smembers: %w", err)
	}

	total := 0
	for _, conversationID := range convIDs {
		key := typingKey(conversationID)
		n, err := r.cli.ZRemRangeByScore(ctx, key, "-inf", exclusiveCutoff(cutoff)).Result()
		if err != nil {
			return total, fmt.Errorf("zremrangebyscore: %w", err)
		}
		total += int(n)

		// Redis drops empty sorted sets; drop the index entry with it.
		if err := r.dropIndexIfEmpty(ctx, conversationID); err != nil {
			return total, err
		}
	}
	return total, nil
}

// dropIndexIfEmpty removes the conversation from the sweep index when
// its beacon set is empty. The watch ties the emptiness check to the
// removal: a beacon refreshed in between aborts the transaction and the
// conversation stays indexed.
func (r *Redis) dropIndexIfEmpty(ctx context.Context, conversationID string) error {
	key := typingKey(conversationID)
	err := r.cli.Watch(ctx, func(tx *redis.Tx) error {
		card, err := tx.ZCard(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("zcard: %w", err)
		}
		if card > 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SRem(ctx, typingIndex, conversationID)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("drop typing index %s: %w", conversationID, err)
	}
	return nil
}
