package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"example.com/userapi/internal/domain"
	"example.com/userapi/internal/repository"
	"example.com/userapi/internal/storage"
)

var userColumns = []string{"user_id", "name", "email", "age"}

// Store keeps users in a relational table. Each WithinTx call is one
// database transaction.
type Store struct {
	db      *sql.DB
	session *Session
	repo
}

// Open connects with driver ("sqlite3", "pgx" or "postgres"), checks the
// connection and creates the users table when missing.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect.Name() == SQLite.Name() {
		// one connection serializes writers and keeps :memory: databases shared
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := New(db, driver, dialect, opts...)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB, driver string, dialect Dialect, opts ...Option) *Store {
	session := NewSession(db, driver, dialect, opts...)
	return &Store{
		db:      db,
		session: session,
		repo:    repo{session: session},
	}
}

// Migrate creates the users table if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.session.ExecRaw(ctx, "migrate", s.session.dialect.schema); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(repo repository.UserRepository) error) error {
	return s.session.Transaction(ctx, func(tx *Session) error {
		return fn(repo{session: tx})
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

// repo implements repository.UserRepository on top of a session, which may
// be bound to a transaction.
type repo struct {
	session *Session
}

func (r repo) List(ctx context.Context) ([]domain.User, error) {
	q := r.session.builder().
		Select(userColumns...).
		From("users").
		OrderBy("user_id")
	var res []domain.User
	if err := r.session.Select(ctx, "list", &res, q); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return res, nil
}

func (r repo) GetByID(ctx context.Context, id int64) (domain.User, error) {
	q := r.session.builder().
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"user_id": id})
	var u domain.User
	if err := r.session.Get(ctx, "get", &u, q); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, storage.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r repo) FindConflicts(ctx context.Context, email, name *string, excludeID int64) ([]domain.User, error) {
	match := sq.Or{}
	if email != nil {
		match = append(match, sq.Eq{"email": *email})
	}
	if name != nil {
		match = append(match, sq.Eq{"name": *name})
	}
	if len(match) == 0 {
		return nil, nil
	}
	q := r.session.builder().
		Select(userColumns...).
		From("users").
		Where(match).
		OrderBy("user_id")
	if excludeID != 0 {
		q = q.Where(sq.NotEq{"user_id": excludeID})
	}
	var res []domain.User
	if err := r.session.Select(ctx, "find_conflicts", &res, q); err != nil {
		return nil, fmt.Errorf("failed to look up conflicts: %w", err)
	}
	return res, nil
}

func (r repo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	q := r.session.builder().
		Insert("users").
		Columns("name", "email", "age").
		Values(u.Name, u.Email, u.Age).
		Suffix("returning user_id")
	if err := r.session.Get(ctx, "create", &u.ID, q); err != nil {
		return domain.User{}, mapWriteError("create", err)
	}
	return u, nil
}

func (r repo) Update(ctx context.Context, u domain.User) (domain.User, error) {
	q := r.session.builder().
		Update("users").
		Set("name", u.Name).
		Set("email", u.Email).
		Set("age", u.Age).
		Where(sq.Eq{"user_id": u.ID})
	res, err := r.session.Exec(ctx, "update", q)
	if err != nil {
		return domain.User{}, mapWriteError("update", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (r repo) Delete(ctx context.Context, id int64) error {
	q := r.session.builder().
		Delete("users").
		Where(sq.Eq{"user_id": id})
	res, err := r.session.Exec(ctx, "delete", q)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
