package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"anon-relay-bot/internal/features/user/models"
	"anon-relay-bot/internal/features/user/repository"
	platformredis "anon-relay-bot/internal/platform/redis"
)

const (
	keyUser    = "user:%d"
	keyUsers   = "users"
	keyPremium = "users:premium"
)

type userRepository struct {
	client *platformredis.Client
}

func NewUserRepository(client *platformredis.Client) repository.UserRepository {
	return &userRepository{
		client: client,
	}
}

func (r *userRepository) Get(ctx context.Context, id int64) (*models.User, error) {
	raw, err := r.client.Get(ctx, r.client.Key(keyUser, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrUserNotFound
		}
		return nil, err
	}

	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user %d: %w", id, err)
	}
	return &u, nil
}

func (r *userRepository) Upsert(ctx context.Context, id int64, fn repository.UpsertFunc) (*models.User, error) {
	return r.mutate(ctx, id, true, fn)
}

func (r *userRepository) Update(ctx context.Context, id int64, fn func(u *models.User) error) (*models.User, error) {
	return r.mutate(ctx, id, false, func(u *models.User, _ bool) error {
		return fn(u)
	})
}

// mutate performs an optimistic read-modify-write of one user record and
// keeps the registration and premium indexes in the same transaction.
func (r *userRepository) mutate(ctx context.Context, id int64, create bool, fn repository.UpsertFunc) (*models.User, error) {
	key := r.client.Key(keyUser, id)
	member := strconv.FormatInt(id, 10)

	var result *models.User
	err := r.client.WatchRetry(ctx, func(tx *redis.Tx) error {
		u := &models.User{ID: id}
		exists := true

		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if !create {
				return repository.ErrUserNotFound
			}
			exists = false
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(raw, u); err != nil {
				return fmt.Errorf("decode user %d: %w", id, err)
			}
		}

		if err := fn(u, exists); err != nil {
			return err
		}

		data, err := json.Marshal(u)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if !exists {
				pipe.ZAdd(ctx, r.client.Key(keyUsers), redis.Z{
					Score:  float64(u.RegisteredAt.UnixMilli()),
					Member: member,
				})
			}
			if u.PremiumUntil != nil {
				pipe.ZAdd(ctx, r.client.Key(keyPremium), redis.Z{
					Score:  float64(u.PremiumUntil.UnixMilli()),
					Member: member,
				})
			} else {
				pipe.ZRem(ctx, r.client.Key(keyPremium), member)
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = u
		return nil
	}, key)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *userRepository) List(ctx context.Context, limit int) ([]*models.User, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	members, err := r.client.ZRange(ctx, r.client.Key(keyUsers), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []*models.User{}, nil
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		keys = append(keys, r.client.Key(keyUser, id))
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var u models.User
		if err := json.Unmarshal([]byte(s), &u); err != nil {
			continue
		}
		users = append(users, &u)
	}
	return users, nil
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.client.Key(keyUsers)).Result()
	return int(n), err
}

func (r *userRepository) CountPremium(ctx context.Context, now time.Time) (int, error) {
	n, err := r.client.ZCount(ctx, r.client.Key(keyPremium), "("+strconv.FormatInt(now.UnixMilli(), 10), "+inf").Result()
	return int(n), err
}

func (r *userRepository) PremiumExpiredBefore(ctx context.Context, now time.Time) ([]int64, error) {
	members, err := r.client.ZRangeByScore(ctx, r.client.Key(keyPremium), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
