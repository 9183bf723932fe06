package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"example.com/userapi/internal/domain"
	"example.com/userapi/internal/repository"
	"example.com/userapi/internal/storage"
)

// Store keeps users in insertion order. Reads share the lock, writes and
// WithinTx units hold it exclusively.
type Store struct {
	mu    sync.RWMutex
	users []domain.User
	index map[int64]int
}

func New() *Store {
	return &Store{
		users: make([]domain.User, 0, 16),
		index: make(map[int64]int, 16),
	}
}

// NewFrom builds a store holding users in the given order. It fails when the
// records break an identity or uniqueness invariant.
func NewFrom(users []domain.User) (*Store, error) {
	s := New()
	emails := make(map[string]struct{}, len(users))
	names := make(map[string]struct{}, len(users))
	for _, u := range users {
		if u.ID < 1 {
			return nil, fmt.Errorf("invalid user_id %d", u.ID)
		}
		if _, ok := s.index[u.ID]; ok {
			return nil, fmt.Errorf("duplicate user_id %d", u.ID)
		}
		if _, ok := emails[u.Email]; ok {
			return nil, fmt.Errorf("duplicate email %q", u.Email)
		}
		if _, ok := names[u.Name]; ok {
			return nil, fmt.Errorf("duplicate name %q", u.Name)
		}
		emails[u.Email] = struct{}{}
		names[u.Name] = struct{}{}
		s.index[u.ID] = len(s.users)
		s.users = append(s.users, u)
	}
	return s, nil
}

// Snapshot returns a copy of every user in store order.
func (s *Store) Snapshot() []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.users)
}

func (s *Store) List(ctx context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s}.List(ctx)
}

func (s *Store) GetByID(ctx context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s}.GetByID(ctx, id)
}

func (s *Store) FindConflicts(ctx context.Context, email, name *string, excludeID int64) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s}.FindConflicts(ctx, email, name, excludeID)
}

func (s *Store) Create(ctx context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s}.Create(ctx, user)
}

func (s *Store) Update(ctx context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s}.Update(ctx, user)
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s}.Delete(ctx, id)
}

// WithinTx runs fn under the writer lock. If fn fails or panics the
// collection is restored to its state before the call.
func (s *Store) WithinTx(ctx context.Context, fn func(repo repository.UserRepository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := slices.Clone(s.users)
	committed := false
	defer func() {
		if !committed {
			s.users = saved
			s.reindex()
		}
	}()
	if err := fn(view{s}); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) reindex() {
	clear(s.index)
	for i, u := range s.users {
		s.index[u.ID] = i
	}
}

// view operates on the store without locking; callers hold s.mu.
type view struct {
	s *Store
}

func (v view) List(_ context.Context) ([]domain.User, error) {
	return slices.Clone(v.s.users), nil
}

func (v view) GetByID(_ context.Context, id int64) (domain.User, error) {
	i, ok := v.s.index[id]
	if !ok {
		return domain.User{}, storage.ErrNotFound
	}
	return v.s.users[i], nil
}

func (v view) FindConflicts(_ context.Context, email, name *string, excludeID int64) ([]domain.User, error) {
	var res []domain.User
	for _, u := range v.s.users {
		if excludeID != 0 && u.ID == excludeID {
			continue
		}
		if (email != nil && u.Email == *email) || (name != nil && u.Name == *name) {
			res = append(res, u)
		}
	}
	return res, nil
}

func (v view) Create(_ context.Context, user domain.User) (domain.User, error) {
	if err := v.checkUnique(user, 0); err != nil {
		return domain.User{}, err
	}
	user.ID = v.nextID()
	v.s.index[user.ID] = len(v.s.users)
	v.s.users = append(v.s.users, user)
	return user, nil
}

func (v view) Update(_ context.Context, user domain.User) (domain.User, error) {
	i, ok := v.s.index[user.ID]
	if !ok {
		return domain.User{}, storage.ErrNotFound
	}
	if err := v.checkUnique(user, user.ID); err != nil {
		return domain.User{}, err
	}
	v.s.users[i] = user
	return user, nil
}

func (v view) Delete(_ context.Context, id int64) error {
	i, ok := v.s.index[id]
	if !ok {
		return storage.ErrNotFound
	}
	v.s.users = slices.Delete(v.s.users, i, i+1)
	v.s.reindex()
	return nil
}

// nextID is 1 for an empty store, otherwise the highest id plus one.
func (v view) nextID() int64 {
	var maxID int64
	for _, u := range v.s.users {
		if u.ID > maxID {
			maxID = u.ID
		}
	}
	return maxID + 1
}

func (v view) checkUnique(user domain.User, excludeID int64) error {
	var nameTaken bool
	for _, u := range v.s.users {
		if u.ID == excludeID {
			continue
		}
		if u.Email == user.Email {
			return domain.ErrEmailConflict
		}
		nameTaken = nameTaken || u.Name == user.Name
	}
	if nameTaken {
		return domain.ErrNameConflict
	}
	return nil
}
