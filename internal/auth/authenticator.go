package auth

import (
	"context"

	"github.com/chipin/chipin/internal/models"
)

// Authenticator defines the interface for authentication
// implementations. This abstraction allows swapping between different
// auth methods (password, passkeys, OAuth, ...) without changing the
// API layer.
type Authenticator interface {
	// Register creates a new user account with the given email and credential.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}

var _ Authenticator = (*PasswordAuthenticator)(nil)
