package auth

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/gabai/gabai/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
)

const minPasswordLen = 8

// UserStorage defines the user persistence operations authentication needs.
// Implemented by storage.Store.
type UserStorage interface {
	CreateUser(u storage.User) error
	GetUserByEmail(email string) (storage.User, error)
}

// PasswordAuthenticator implements password-based authentication using bcrypt.
type PasswordAuthenticator struct {
	storage UserStorage
	cost    int
}

func NewPasswordAuthenticator(storage UserStorage) *PasswordAuthenticator {
	return &PasswordAuthenticator{storage: storage, cost: bcrypt.DefaultCost}
}

// ValidateCredential checks the password meets minimum requirements.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < minPasswordLen {
		return ErrWeakPassword
	}
	return nil
}

// Register creates a user account with a hashed password.
func (a *PasswordAuthenticator) Register(email, name, credential string) (storage.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return storage.User{}, ErrInvalidEmail
	}
	if err := a.ValidateCredential(credential); err != nil {
		return storage.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(credential), a.cost)
	if err != nil {
		return storage.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	u := storage.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hashed),
	}
	if err := a.storage.CreateUser(u); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return storage.User{}, ErrEmailExists
		}
		return storage.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return a.storage.GetUserByEmail(email)
}

// Authenticate verifies the email and password, returning the user if valid.
func (a *PasswordAuthenticator) Authenticate(email, credential string) (storage.User, error) {
	u, err := a.storage.GetUserByEmail(email)
	if err != nil {
		return storage.User{}, ErrInvalidCredentials
	}
	if u.PasswordHash == "" {
		return storage.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(credential)); err != nil {
		return storage.User{}, ErrInvalidCredentials
	}
	return u, nil
}
