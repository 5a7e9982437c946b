package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"anon-relay-bot/internal/features/user/models"
	"anon-relay-bot/internal/features/user/repository"
)

type userRepository struct {
	mu    sync.Mutex
	users map[int64]*models.User
}

func NewUserRepository() repository.UserRepository {
	return &userRepository{
		users: make(map[int64]*models.User),
	}
}

func (r *userRepository) Get(_ context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (r *userRepository) Upsert(_ context.Context, id int64, fn repository.UpsertFunc) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.users[id]
	var u *models.User
	if exists {
		u = current.Clone()
	} else {
		u = &models.User{ID: id}
	}
	if err := fn(u, exists); err != nil {
		return nil, err
	}
	r.users[id] = u
	return u.Clone(), nil
}

func (r *userRepository) Update(_ context.Context, id int64, fn func(u *models.User) error) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u := current.Clone()
	if err := fn(u); err != nil {
		return nil, err
	}
	r.users[id] = u
	return u.Clone(), nil
}

func (r *userRepository) List(_ context.Context, limit int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u.Clone())
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].RegisteredAt.Equal(users[j].RegisteredAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].RegisteredAt.Before(users[j].RegisteredAt)
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (r *userRepository) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func (r *userRepository) CountPremium(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, u := range r.users {
		if u.IsPremium(now) {
			n++
		}
	}
	return n, nil
}

func (r *userRepository) PremiumExpiredBefore(_ context.Context, now time.Time) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []int64
	for id, u := range r.users {
		if u.PremiumLapsed(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
