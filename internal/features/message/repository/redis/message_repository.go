package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"anon-relay-bot/internal/features/message/models"
	"anon-relay-bot/internal/features/message/repository"
	platformredis "anon-relay-bot/internal/platform/redis"
)

const (
	keyMessage = "msg:%d"
	keyHistory = "msg:%d:edits"
	keyByOwner = "msgs:by_owner:%d"
	keyCount   = "msgs:count"
)

type messageRepository struct {
	client *platformredis.Client
}

func NewMessageRepository(client *platformredis.Client) repository.MessageRepository {
	return &messageRepository{client: client}
}

func (r *messageRepository) Insert(ctx context.Context, m *models.Message) error {
	key := r.client.Key(keyMessage, m.ID)
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	return r.client.WatchRetry(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return models.ErrDuplicateMessageID
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, r.client.Key(keyByOwner, m.OwnerID), redis.Z{
				Score:  float64(m.CreatedAt.UnixMilli()),
				Member: strconv.FormatInt(m.ID, 10),
			})
			pipe.Incr(ctx, r.client.Key(keyCount))
			return nil
		})
		return err
	}, key)
}

func (r *messageRepository) Get(ctx context.Context, id int64) (*models.Message, error) {
	raw, err := r.client.Get(ctx, r.client.Key(keyMessage, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrMessageNotFound
		}
		return nil, err
	}
	return decode(id, raw)
}

func (r *messageRepository) Apply(ctx context.Context, id int64, fn models.Mutation) (models.Outcome, *models.Message, error) {
	key := r.client.Key(keyMessage, id)

	var (
		outcome models.Outcome
		result  *models.Message
	)
	err := r.client.WatchRetry(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				outcome, result = models.OutcomeNotFound, nil
				return nil
			}
			return err
		}
		m, err := decode(id, raw)
		if err != nil {
			return err
		}

		before := m.Clone()
		var rec *models.EditRecord
		outcome, rec = fn(m)
		if outcome != models.OutcomeOK {
			result = before
			return nil
		}

		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		var recData []byte
		if rec != nil {
			if recData, err = json.Marshal(rec); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if recData != nil {
				pipe.RPush(ctx, r.client.Key(keyHistory, id), recData)
			}
			if m.Deleted {
				pipe.ZRem(ctx, r.client.Key(keyByOwner, m.OwnerID), strconv.FormatInt(id, 10))
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = m
		return nil
	}, key)
	if err != nil {
		return 0, nil, err
	}
	return outcome, result, nil
}

func (r *messageRepository) History(ctx context.Context, id int64) ([]models.EditRecord, error) {
	n, err := r.client.Exists(ctx, r.client.Key(keyMessage, id)).Result()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, models.ErrMessageNotFound
	}

	raws, err := r.client.LRange(ctx, r.client.Key(keyHistory, id), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.EditRecord, 0, len(raws))
	for _, raw := range raws {
		var rec models.EditRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode edit record of %d: %w", id, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *messageRepository) ListByOwner(ctx context.Context, ownerID int64, limit int) ([]*models.Message, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	members, err := r.client.ZRevRange(ctx, r.client.Key(keyByOwner, ownerID), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []*models.Message{}, nil
	}

	keys := make([]string, 0, len(members))
	ids := make([]int64, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
		keys = append(keys, r.client.Key(keyMessage, id))
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*models.Message, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		m, err := decode(ids[i], []byte(s))
		if err != nil || m.Deleted {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *messageRepository) Count(ctx context.Context) (int, error) {
	n, err := r.client.Get(ctx, r.client.Key(keyCount)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func decode(id int64, raw []byte) (*models.Message, error) {
	var m models.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode message %d: %w", id, err)
	}
	return &m, nil
}
