package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"example.com/userapi/internal/domain"
	"example.com/userapi/internal/repository"
)

// UserService enforces the user rules on top of any UserStore. Every
// mutation validates and writes inside a single unit of work.
type UserService struct {
	store repository.UserStore
	log   zerolog.Logger
}

func NewUserService(store repository.UserStore, log zerolog.Logger) *UserService {
	return &UserService{
		store: store,
		log:   log.With().Str("component", "user_service").Logger(),
	}
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.User{}
	}
	return items, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (domain.User, error) {
	return s.store.GetByID(ctx, id)
}

// Create ignores user.ID; the store assigns it.
func (s *UserService) Create(ctx context.Context, user domain.User) (domain.User, error) {
	user.ID = 0
	var created domain.User
	err := s.store.WithinTx(ctx, func(repo repository.UserRepository) error {
		if err := checkConflict(ctx, repo, &user.Email, &user.Name, 0); err != nil {
			return err
		}
		var err error
		created, err = repo.Create(ctx, user)
		return err
	})
	if err != nil {
		s.log.Debug().Err(err).Str("email", user.Email).Str("name", user.Name).Msg("create rejected")
		return domain.User{}, err
	}
	s.log.Debug().Int64("user_id", created.ID).Msg("user created")
	return created, nil
}

// Replace overwrites name, email and age of the user with the given id.
func (s *UserService) Replace(ctx context.Context, id int64, user domain.User) (domain.User, error) {
	var updated domain.User
	err := s.store.WithinTx(ctx, func(repo repository.UserRepository) error {
		if _, err := repo.GetByID(ctx, id); err != nil {
			return err
		}
		if err := checkConflict(ctx, repo, &user.Email, &user.Name, id); err != nil {
			return err
		}
		user.ID = id
		var err error
		updated, err = repo.Update(ctx, user)
		return err
	})
	if err != nil {
		s.log.Debug().Err(err).Int64("user_id", id).Msg("replace rejected")
		return domain.User{}, err
	}
	s.log.Debug().Int64("user_id", id).Msg("user replaced")
	return updated, nil
}

// Patch assigns the fields present in upd. An empty update returns the
// stored user without writing.
func (s *UserService) Patch(ctx context.Context, id int64, upd domain.UserUpdate) (domain.User, error) {
	var result domain.User
	err := s.store.WithinTx(ctx, func(repo repository.UserRepository) error {
		current, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if upd.Empty() {
			result = current
			return nil
		}
		if err := checkConflict(ctx, repo, upd.Email, upd.Name, id); err != nil {
			return err
		}
		result, err = repo.Update(ctx, upd.Apply(current))
		return err
	})
	if err != nil {
		s.log.Debug().Err(err).Int64("user_id", id).Msg("patch rejected")
		return domain.User{}, err
	}
	return result, nil
}

// Delete removes the user and returns the record as it was.
func (s *UserService) Delete(ctx context.Context, id int64) (domain.User, error) {
	var deleted domain.User
	err := s.store.WithinTx(ctx, func(repo repository.UserRepository) error {
		var err error
		deleted, err = repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		s.log.Debug().Err(err).Int64("user_id", id).Msg("delete rejected")
		return domain.User{}, err
	}
	s.log.Debug().Int64("user_id", id).Msg("user deleted")
	return deleted, nil
}
