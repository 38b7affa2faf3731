package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/service/account"
)

// MockAccountService implements account.Service for testing
type MockAccountService struct {
	CreateUserFn     func(ctx context.Context, username string) (*domain.User, error)
	GetUserFn        func(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	LevelFn          func(ctx context.Context, userID uuid.UUID) (domain.ExperienceSnapshot, error)
	AddExperienceFn  func(ctx context.Context, userID uuid.UUID, amount int) (domain.ExperienceSnapshot, error)
	SetLanguageFn    func(ctx context.Context, userID uuid.UUID, lang string) (string, error)
	AddBalanceFn     func(ctx context.Context, userID uuid.UUID, amount int, source string) (int, error)
	DeductBalanceFn  func(ctx context.Context, userID uuid.UUID, amount int, description string) (int, error)
	TransactionsFn   func(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)
	ProductsFn       func() []domain.Product
	RecordPurchaseFn func(ctx context.Context, userID uuid.UUID, productID string) (*domain.User, error)
	SaveReadingFn    func(ctx context.Context, userID uuid.UUID, spreadType string, cards []domain.ReadingCard) (*domain.Reading, error)
	ReadingsFn       func(ctx context.Context, userID uuid.UUID) ([]domain.Reading, error)
	RevenueSummaryFn func(ctx context.Context, from, to time.Time) (domain.RevenueSummary, error)

	mu    sync.Mutex
	calls []string
}

var _ account.Service = (*MockAccountService)(nil)

func (m *MockAccountService) record(name string) {
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()
}

// Calls returns the names of the methods called so far, in order.
func (m *MockAccountService) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CreateUser implements account.Service
func (m *MockAccountService) CreateUser(ctx context.Context, username string) (*domain.User, error) {
	m.record("CreateUser")
	if m.CreateUserFn != nil {
		return m.CreateUserFn(ctx, username)
	}
	return nil, nil
}

// GetUser implements account.Service
func (m *MockAccountService) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	m.record("GetUser")
	if m.GetUserFn != nil {
		return m.GetUserFn(ctx, userID)
	}
	return nil, nil
}

// Level implements account.Service
func (m *MockAccountService) Level(ctx context.Context, userID uuid.UUID) (domain.ExperienceSnapshot, error) {
	m.record("Level")
	if m.LevelFn != nil {
		return m.LevelFn(ctx, userID)
	}
	return domain.ExperienceSnapshot{}, nil
}

// AddExperience implements account.Service
func (m *MockAccountService) AddExperience(ctx context.Context, userID uuid.UUID, amount int) (domain.ExperienceSnapshot, error) {
	m.record("AddExperience")
	if m.AddExperienceFn != nil {
		return m.AddExperienceFn(ctx, userID, amount)
	}
	return domain.ExperienceSnapshot{}, nil
}

// SetLanguage implements account.Service
func (m *MockAccountService) SetLanguage(ctx context.Context, userID uuid.UUID, lang string) (string, error) {
	m.record("SetLanguage")
	if m.SetLanguageFn != nil {
		return m.SetLanguageFn(ctx, userID, lang)
	}
	return lang, nil
}

// AddBalance implements account.Service
func (m *MockAccountService) AddBalance(ctx context.Context, userID uuid.UUID, amount int, source string) (int, error) {
	m.record("AddBalance")
	if m.AddBalanceFn != nil {
		return m.AddBalanceFn(ctx, userID, amount, source)
	}
	return 0, nil
}

// DeductBalance implements account.Service
func (m *MockAccountService) DeductBalance(ctx context.Context, userID uuid.UUID, amount int, description string) (int, error) {
	m.record("DeductBalance")
	if m.DeductBalanceFn != nil {
		return m.DeductBalanceFn(ctx, userID, amount, description)
	}
	return 0, nil
}

// Transactions implements account.Service
func (m *MockAccountService) Transactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	m.record("Transactions")
	if m.TransactionsFn != nil {
		return m.TransactionsFn(ctx, userID)
	}
	return nil, nil
}

// Products implements account.Service
func (m *MockAccountService) Products() []domain.Product {
	m.record("Products")
	if m.ProductsFn != nil {
		return m.ProductsFn()
	}
	return nil
}

// RecordPurchase implements account.Service
func (m *MockAccountService) RecordPurchase(ctx context.Context, userID uuid.UUID, productID string) (*domain.User, error) {
	m.record("RecordPurchase")
	if m.RecordPurchaseFn != nil {
		return m.RecordPurchaseFn(ctx, userID, productID)
	}
	return nil, nil
}

// SaveReading implements account.Service
func (m *MockAccountService) SaveReading(
	ctx context.Context,
	userID uuid.UUID,
	spreadType string,
	cards []domain.ReadingCard,
) (*domain.Reading, error) {
	m.record("SaveReading")
	if m.SaveReadingFn != nil {
		return m.SaveReadingFn(ctx, userID, spreadType, cards)
	}
	return nil, nil
}

// Readings implements account.Service
func (m *MockAccountService) Readings(ctx context.Context, userID uuid.UUID) ([]domain.Reading, error) {
	m.record("Readings")
	if m.ReadingsFn != nil {
		return m.ReadingsFn(ctx, userID)
	}
	return nil, nil
}

// RevenueSummary implements account.Service
func (m *MockAccountService) RevenueSummary(ctx context.Context, from, to time.Time) (domain.RevenueSummary, error) {
	m.record("RevenueSummary")
	if m.RevenueSummaryFn != nil {
		return m.RevenueSummaryFn(ctx, from, to)
	}
	return domain.RevenueSummary{}, nil
}
