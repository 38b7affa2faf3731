package backend

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/phrazzld/arcana/internal/domain"
)

// Account binds a Client to one user, giving the engine services the
// user-scoped remote operations they depend on.
type Account struct {
	client *Client
	userID uuid.UUID
}

// NewAccount binds client to userID.
func NewAccount(client *Client, userID uuid.UUID) (*Account, error) {
	if client == nil {
		return nil, errors.New("backend client cannot be nil")
	}
	if userID == uuid.Nil {
		return nil, errors.New("user ID cannot be empty")
	}
	return &Account{client: client, userID: userID}, nil
}

// Register creates (or fetches) the user named username and binds client to it.
func Register(ctx context.Context, client *Client, username string) (*Account, domain.User, error) {
	user, err := client.CreateUser(ctx, username)
	if err != nil {
		return nil, domain.User{}, err
	}
	acct, err := NewAccount(client, user.ID)
	if err != nil {
		return nil, domain.User{}, err
	}
	return acct, user, nil
}

// UserID returns the bound user.
func (a *Account) UserID() uuid.UUID { return a.userID }

// Credit adds coins to the remote balance.
func (a *Account) Credit(ctx context.Context, amount int, source string) error {
	return a.client.AddBalance(ctx, a.userID, amount, source)
}

// Debit removes coins from the remote balance.
func (a *Account) Debit(ctx context.Context, amount int, description string) error {
	return a.client.DeductBalance(ctx, a.userID, amount, description)
}

// FetchLevel returns the remote XP snapshot.
func (a *Account) FetchLevel(ctx context.Context) (domain.ExperienceSnapshot, error) {
	return a.client.GetLevel(ctx, a.userID)
}

// AddExperience adds XP remotely and returns the canonical snapshot.
func (a *Account) AddExperience(ctx context.Context, amount int) (domain.ExperienceSnapshot, error) {
	return a.client.AddExperience(ctx, a.userID, amount)
}

// RecordPurchase records a product purchase remotely.
func (a *Account) RecordPurchase(ctx context.Context, productID string) error {
	return a.client.RecordPurchase(ctx, a.userID, productID)
}

// PurchasedProducts returns the products the backend has recorded for the user.
func (a *Account) PurchasedProducts(ctx context.Context) ([]string, error) {
	user, err := a.client.GetUser(ctx, a.userID)
	if err != nil {
		return nil, err
	}
	return user.PurchasedProducts, nil
}

// Profile returns the full remote user record.
func (a *Account) Profile(ctx context.Context) (domain.User, error) {
	return a.client.GetUser(ctx, a.userID)
}

// SetLanguage stores the display language remotely.
func (a *Account) SetLanguage(ctx context.Context, lang string) error {
	return a.client.SetLanguage(ctx, a.userID, lang)
}

// SaveReading stores a completed reading remotely.
func (a *Account) SaveReading(ctx context.Context, spreadType string, cards []domain.ReadingCard) error {
	_, err := a.client.SaveReading(ctx, a.userID, spreadType, cards)
	return err
}

// Transactions returns the remote balance history.
func (a *Account) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	return a.client.ListTransactions(ctx, a.userID)
}

// Readings returns the user's saved readings.
func (a *Account) Readings(ctx context.Context) ([]domain.Reading, error) {
	return a.client.ListReadings(ctx, a.userID)
}
