package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"anon-relay-bot/internal/features/emoji/models"
	"anon-relay-bot/internal/features/emoji/repository"
	platformredis "anon-relay-bot/internal/platform/redis"
)

const (
	keyEmojiOwner = "emoji:owner"
	keyOwnerEmoji = "emoji:by_user"
	keyReservedAt = "emoji:reserved_at"
)

// KEYS: emoji->owner, owner->emoji, emoji->reserved_at
// ARGV: emoji, owner, reserved_at (unix ms)
// Returns {1, owner} on success and {0, owner} on conflict.
var reserveScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[1], ARGV[1])
if owner then
	if owner == ARGV[2] then
		return {1, owner}
	end
	return {0, owner}
end
local prior = redis.call('HGET', KEYS[2], ARGV[2])
if prior then
	redis.call('HDEL', KEYS[1], prior)
	redis.call('HDEL', KEYS[3], prior)
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[2], ARGV[1])
redis.call('HSET', KEYS[3], ARGV[1], ARGV[3])
return {1, ARGV[2]}
`)

// ARGV: owner. Returns the released emoji or nil.
var releaseScript = redis.NewScript(`
local emoji = redis.call('HGET', KEYS[2], ARGV[1])
if not emoji then
	return false
end
if redis.call('HGET', KEYS[1], emoji) == ARGV[1] then
	redis.call('HDEL', KEYS[1], emoji)
	redis.call('HDEL', KEYS[3], emoji)
end
redis.call('HDEL', KEYS[2], ARGV[1])
return emoji
`)

// ARGV: emoji, owner. Returns 1 when owner's reservation of emoji was removed.
var releaseEmojiOfScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[1], ARGV[1])
if owner ~= ARGV[2] then
	return 0
end
redis.call('HDEL', KEYS[1], ARGV[1])
redis.call('HDEL', KEYS[3], ARGV[1])
if redis.call('HGET', KEYS[2], owner) == ARGV[1] then
	redis.call('HDEL', KEYS[2], owner)
end
return 1
`)

type reservationRepository struct {
	client *platformredis.Client
}

func NewReservationRepository(client *platformredis.Client) repository.ReservationRepository {
	return &reservationRepository{client: client}
}

func (r *reservationRepository) keys() []string {
	return []string{
		r.client.Key(keyEmojiOwner),
		r.client.Key(keyOwnerEmoji),
		r.client.Key(keyReservedAt),
	}
}

func (r *reservationRepository) Reserve(ctx context.Context, userID int64, emoji string, now time.Time) (models.ReserveResult, error) {
	res, err := reserveScript.Run(ctx, r.client, r.keys(),
		emoji, strconv.FormatInt(userID, 10), now.UnixMilli()).Slice()
	if err != nil {
		return models.ReserveResult{}, fmt.Errorf("reserve emoji: %w", err)
	}
	if len(res) != 2 {
		return models.ReserveResult{}, fmt.Errorf("reserve emoji: unexpected reply %v", res)
	}

	ok, _ := res[0].(int64)
	ownerRaw, _ := res[1].(string)
	owner, err := strconv.ParseInt(ownerRaw, 10, 64)
	if err != nil {
		return models.ReserveResult{}, fmt.Errorf("reserve emoji: bad owner %q: %w", ownerRaw, err)
	}

	if ok == 1 {
		return models.ReserveResult{Status: models.Reserved, OwnerID: owner}, nil
	}
	return models.ReserveResult{Status: models.Conflict, OwnerID: owner}, nil
}

func (r *reservationRepository) Release(ctx context.Context, userID int64) (string, error) {
	emoji, err := releaseScript.Run(ctx, r.client, r.keys(), strconv.FormatInt(userID, 10)).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("release emoji: %w", err)
	}
	return emoji, nil
}

func (r *reservationRepository) ReleaseEmojiOf(ctx context.Context, emoji string, ownerID int64) (bool, error) {
	n, err := releaseEmojiOfScript.Run(ctx, r.client, r.keys(), emoji, strconv.FormatInt(ownerID, 10)).Int()
	if err != nil {
		return false, fmt.Errorf("release emoji: %w", err)
	}
	return n == 1, nil
}

func (r *reservationRepository) OwnerOf(ctx context.Context, emoji string) (int64, bool, error) {
	raw, err := r.client.HGet(ctx, r.client.Key(keyEmojiOwner), emoji).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	owner, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("bad owner %q: %w", raw, err)
	}
	return owner, true, nil
}

func (r *reservationRepository) ReservationOf(ctx context.Context, userID int64) (*models.Reservation, error) {
	emoji, err := r.client.HGet(ctx, r.client.Key(keyOwnerEmoji), strconv.FormatInt(userID, 10)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	res := &models.Reservation{Emoji: emoji, OwnerID: userID}
	ms, err := r.client.HGet(ctx, r.client.Key(keyReservedAt), emoji).Int64()
	if err == nil {
		res.ReservedAt = time.UnixMilli(ms).UTC()
	} else if !errors.Is(err, redis.Nil) {
		return nil, err
	}
	return res, nil
}

func (r *reservationRepository) List(ctx context.Context) ([]models.Reservation, error) {
	pipe := r.client.Pipeline()
	ownersCmd := pipe.HGetAll(ctx, r.client.Key(keyEmojiOwner))
	stampsCmd := pipe.HGetAll(ctx, r.client.Key(keyReservedAt))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	stamps := stampsCmd.Val()
	out := make([]models.Reservation, 0, len(ownersCmd.Val()))
	for emoji, ownerRaw := range ownersCmd.Val() {
		owner, err := strconv.ParseInt(ownerRaw, 10, 64)
		if err != nil {
			continue
		}
		res := models.Reservation{Emoji: emoji, OwnerID: owner}
		if ms, err := strconv.ParseInt(stamps[emoji], 10, 64); err == nil {
			res.ReservedAt = time.UnixMilli(ms).UTC()
		}
		out = append(out, res)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ReservedAt.Equal(out[j].ReservedAt) {
			return out[i].Emoji < out[j].Emoji
		}
		return out[i].ReservedAt.Before(out[j].ReservedAt)
	})
	return out, nil
}
