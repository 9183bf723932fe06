package usecase

import (
	"context"

	"example.com/userapi/internal/domain"
	"example.com/userapi/internal/repository"
)

// checkConflict reports whether another user already holds the candidate
// email or name. Email conflicts win over name conflicts.
func checkConflict(ctx context.Context, repo repository.UserRepository, email, name *string, excludeID int64) error {
	if email == nil && name == nil {
		return nil
	}
	found, err := repo.FindConflicts(ctx, email, name, excludeID)
	if err != nil {
		return err
	}
	var nameTaken bool
	for _, u := range found {
		if excludeID != 0 && u.ID == excludeID {
			continue
		}
		if email != nil && u.Email == *email {
			return domain.ErrEmailConflict
		}
		if name != nil && u.Name == *name {
			nameTaken = true
		}
	}
	if nameTaken {
		return domain.ErrNameConflict
	}
	return nil
}
