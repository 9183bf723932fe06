package repository

import (
	"context"

	"example.com/userapi/internal/domain"
)

// UserRepository reads and writes user records. Implementations return
// storage.ErrNotFound for a missing id and a *domain.ConflictError when a
// write would duplicate an email or a name.
type UserRepository interface {
	List(ctx context.Context) ([]domain.User, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
	// FindConflicts returns users, other than excludeID, whose email equals
	// *email or whose name equals *name. Nil candidates are ignored.
	FindConflicts(ctx context.Context, email, name *string, excludeID int64) ([]domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	Update(ctx context.Context, user domain.User) (domain.User, error)
	Delete(ctx context.Context, id int64) error
}

// UserStore runs fn as one unit of work that is atomic with respect to
// every other mutation of the store.
type UserStore interface {
	UserRepository
	WithinTx(ctx context.Context, fn func(repo UserRepository) error) error
}
