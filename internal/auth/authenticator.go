package auth

import (
	"context"

	"github.com/kiumaa/kixikila-sub001/internal/models"
)

// Registration is the data a new user signs up with.
type Registration struct {
	Email       string
	Phone       string
	DisplayName string
	// Credential is interpreted by the Authenticator (a password for PasswordAuthenticator).
	Credential string
}

// Authenticator defines the interface for authentication implementations.
// This abstraction allows swapping between different auth methods (password, OTP, OAuth, etc.)
// without changing the service layer code.
type Authenticator interface {
	// Register creates a new user account.
	// Returns the created user or an error if registration fails.
	Register(ctx context.Context, reg Registration) (*models.User, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}
