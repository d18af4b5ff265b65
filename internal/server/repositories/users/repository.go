// Package users implements the credential store: lookups of accounts by
// email, username and id, and insertion of new accounts.
//
// Every implementation enforces email and username uniqueness at insert time
// and reports a lost race as common.ErrDuplicateEmail or
// common.ErrDuplicateUsername.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophreview/internal/server/models"
)

// Repository is the credential store contract. Find* return
// common.ErrorNotFound when no account matches.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}
