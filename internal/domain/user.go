package domain

import (
	"errors"
)

type User struct {
	ID    int64  `json:"user_id" db:"user_id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
	Age   int    `json:"age" db:"age"`
}

// UserUpdate carries a partial change; nil fields are left untouched.
type UserUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Age   *int    `json:"age,omitempty"`
}

func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.Age == nil
}

// Apply returns a copy of user with the present fields of u assigned.
func (u UserUpdate) Apply(user User) User {
	if u.Name != nil {
		user.Name = *u.Name
	}
	if u.Email != nil {
		user.Email = *u.Email
	}
	if u.Age != nil {
		user.Age = *u.Age
	}
	return user
}

type ConflictKind int

const (
	EmailConflict ConflictKind = iota + 1
	NameConflict
)

func (k ConflictKind) String() string {
	switch k {
	case EmailConflict:
		return "email"
	case NameConflict:
		return "name"
	default:
		return "unknown"
	}
}

var (
	ErrEmailConflict = &ConflictError{Kind: EmailConflict}
	ErrNameConflict  = &ConflictError{Kind: NameConflict}
)

// ConflictError reports a uniqueness violation on email or name.
type ConflictError struct {
	Kind ConflictKind
}

func (e *ConflictError) Error() string {
	switch e.Kind {
	case EmailConflict:
		return "Email already exists"
	case NameConflict:
		return "User name already exists"
	default:
		return "conflict"
	}
}

func (e *ConflictError) Is(target error) bool {
	var t *ConflictError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// ConflictKindOf returns the kind of a conflict error, or false when err is not one.
func ConflictKindOf(err error) (ConflictKind, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}
