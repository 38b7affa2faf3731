package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxUsernameLength bounds the length of a username.
const MaxUsernameLength = 64

// DefaultLanguage is assigned to new users.
const DefaultLanguage = "en"

// User is an account held by the backend. Balance and Experience are the
// remote-authoritative values.
type User struct {
	ID                uuid.UUID `json:"id"`
	Username          string    `json:"username"`
	Balance           int       `json:"balance"`
	Experience        int       `json:"experience"`
	Language          string    `json:"language"`
	PurchasedProducts []string  `json:"purchased_products"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewUser creates a new User with a fresh ID, a zero balance and the default
// language. Returns an error if validation fails.
func NewUser(username string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:                uuid.New(),
		Username:          strings.TrimSpace(username),
		Language:          DefaultLanguage,
		PurchasedProducts: []string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return NewValidationError("id", "user ID cannot be empty", ErrValidation)
	}
	if u.Username == "" {
		return NewValidationError("username", "username cannot be empty", ErrEmptyUsername)
	}
	if len(u.Username) > MaxUsernameLength {
		return NewValidationError("username", "username is too long", ErrValidation)
	}
	if u.Balance < 0 {
		return NewValidationError("balance", "balance cannot be negative", ErrValidation)
	}
	if u.Experience < 0 {
		return NewValidationError("experience", "experience cannot be negative", ErrValidation)
	}
	return nil
}

// Owns reports whether the user has purchased productID.
func (u *User) Owns(productID string) bool {
	for _, p := range u.PurchasedProducts {
		if p == productID {
			return true
		}
	}
	return false
}
