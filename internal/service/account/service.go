// Package account implements the backend's account operations: users, XP
// and level tiers, the coin balance with its transaction history, purchases,
// saved readings and revenue reporting.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/platform/i18n"
	"github.com/phrazzld/arcana/internal/platform/logger"
	"github.com/phrazzld/arcana/internal/store"
)

// Catalog lists the products on sale.
type Catalog interface {
	Products() []domain.Product
	Product(id string) (domain.Product, bool)
}

// Service provides the account operations served by the backend API.
type Service interface {
	// CreateUser registers username, or returns the existing user with that name
	CreateUser(ctx context.Context, username string) (*domain.User, error)

	// GetUser retrieves a user with their purchased products
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)

	// Level returns the user's XP and tier
	Level(ctx context.Context, userID uuid.UUID) (domain.ExperienceSnapshot, error)

	// AddExperience adds amount XP and returns the new XP and tier
	AddExperience(ctx context.Context, userID uuid.UUID, amount int) (domain.ExperienceSnapshot, error)

	// SetLanguage stores the user's display language and returns its normalized code
	SetLanguage(ctx context.Context, userID uuid.UUID, lang string) (string, error)

	// AddBalance credits amount coins from source and returns the new balance
	AddBalance(ctx context.Context, userID uuid.UUID, amount int, source string) (int, error)

	// DeductBalance debits amount coins and returns the new balance
	DeductBalance(ctx context.Context, userID uuid.UUID, amount int, description string) (int, error)

	// Transactions returns the user's balance history, newest first
	Transactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)

	// Products returns the products on sale
	Products() []domain.Product

	// RecordPurchase records that the user owns productID. The price is
	// debited separately by the client.
	RecordPurchase(ctx context.Context, userID uuid.UUID, productID string) (*domain.User, error)

	// SaveReading stores a completed reading
	SaveReading(ctx context.Context, userID uuid.UUID, spreadType string, cards []domain.ReadingCard) (*domain.Reading, error)

	// Readings returns the user's saved readings, newest first
	Readings(ctx context.Context, userID uuid.UUID) ([]domain.Reading, error)

	// RevenueSummary aggregates revenue within [from, to]; zero bounds are open
	RevenueSummary(ctx context.Context, from, to time.Time) (domain.RevenueSummary, error)
}

// Stores groups the persistence dependencies of the service.
type Stores struct {
	Users        store.UserStore
	Transactions store.TransactionStore
	Revenue      store.RevenueStore
	Readings     store.ReadingStore
}

// ServiceImpl implements Service.
type ServiceImpl struct {
	users        store.UserStore
	transactions store.TransactionStore
	revenue      store.RevenueStore
	readings     store.ReadingStore
	catalog      Catalog
	db           *sql.DB
	logger       *slog.Logger
}

var _ Service = (*ServiceImpl)(nil)

// NewService creates the account service. db is used to run balance changes
// in a transaction together with their history entries.
func NewService(stores Stores, catalog Catalog, db *sql.DB, logger *slog.Logger) (*ServiceImpl, error) {
	if stores.Users == nil || stores.Transactions == nil || stores.Revenue == nil || stores.Readings == nil {
		return nil, errors.New("all stores are required")
	}
	if catalog == nil {
		return nil, errors.New("catalog cannot be nil")
	}
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ServiceImpl{
		users:        stores.Users,
		transactions: stores.Transactions,
		revenue:      stores.Revenue,
		readings:     stores.Readings,
		catalog:      catalog,
		db:           db,
		logger:       logger.With("component", "account_service"),
	}, nil
}

func (s *ServiceImpl) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, s.logger)
}

// CreateUser implements Service.CreateUser
func (s *ServiceImpl) CreateUser(ctx context.Context, username string) (*domain.User, error) {
	user, err := domain.NewUser(username)
	if err != nil {
		return nil, err
	}

	if existing, err := s.users.GetByUsername(ctx, user.Username); err == nil {
		s.log(ctx).Debug("returning existing user", "user_id", existing.ID)
		return existing, nil
	} else if !errors.Is(err, store.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up username: %w", err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration of the same name.
		if errors.Is(err, store.ErrUsernameExists) {
			return s.users.GetByUsername(ctx, user.Username)
		}
		s.log(ctx).Error("failed to create user", "error", err)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log(ctx).Info("user created", "user_id", user.ID)
	return user, nil
}

// GetUser implements Service.GetUser
func (s *ServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return user, nil
}

// Level implements Service.Level
func (s *ServiceImpl) Level(ctx context.Context, userID uuid.UUID) (domain.ExperienceSnapshot, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return domain.ExperienceSnapshot{}, err
	}
	return snapshot(user.Experience), nil
}

// AddExperience implements Service.AddExperience
func (s *ServiceImpl) AddExperience(ctx context.Context, userID uuid.UUID, amount int) (domain.ExperienceSnapshot, error) {
	if amount <= 0 {
		return domain.ExperienceSnapshot{}, domain.NewValidationError("xp_amount", "must be positive", domain.ErrInvalidAmount)
	}
	total, err := s.users.AddExperience(ctx, userID, amount)
	if err != nil {
		return domain.ExperienceSnapshot{}, fmt.Errorf("failed to add experience: %w", err)
	}

	snap := snapshot(total)
	if before := domain.CalculateLevel(total - amount); before.Level != snap.LevelInfo.Level {
		s.log(ctx).Info("user reached a new level", "user_id", userID, "level", snap.LevelInfo.Level)
	}
	return snap, nil
}

func snapshot(xp int) domain.ExperienceSnapshot {
	return domain.ExperienceSnapshot{Experience: xp, LevelInfo: domain.CalculateLevel(xp)}
}

// SetLanguage implements Service.SetLanguage
func (s *ServiceImpl) SetLanguage(ctx context.Context, userID uuid.UUID, lang string) (string, error) {
	code, err := i18n.Normalize(lang)
	if err != nil {
		return "", err
	}
	if err := s.users.SetLanguage(ctx, userID, code); err != nil {
		return "", fmt.Errorf("failed to update language: %w", err)
	}
	return code, nil
}

// AddBalance implements Service.AddBalance
func (s *ServiceImpl) AddBalance(ctx context.Context, userID uuid.UUID, amount int, source string) (int, error) {
	if amount <= 0 {
		return 0, domain.NewValidationError("amount", "must be positive", domain.ErrInvalidAmount)
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return 0, domain.NewValidationError("source", "is required", domain.ErrValidation)
	}

	var balance int
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		balance, err = s.users.WithTx(tx).AdjustBalance(ctx, userID, amount)
		if err != nil {
			return err
		}
		entry := &domain.Transaction{
			UserID:      userID,
			Amount:      amount,
			Type:        source,
			Description: fmt.Sprintf("Added %d coins from %s", amount, source),
		}
		if err := s.transactions.WithTx(tx).Create(ctx, entry); err != nil {
			return err
		}
		if cents := domain.RevenueCents(source, amount); cents > 0 {
			return s.revenue.WithTx(tx).Record(ctx, &domain.RevenueEntry{Source: source, AmountCents: cents})
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add balance: %w", err)
	}

	s.log(ctx).Debug("balance credited", "user_id", userID, "amount", amount, "source", source, "balance", balance)
	return balance, nil
}

// DeductBalance implements Service.DeductBalance
func (s *ServiceImpl) DeductBalance(ctx context.Context, userID uuid.UUID, amount int, description string) (int, error) {
	if amount <= 0 {
		return 0, domain.NewValidationError("amount", "must be positive", domain.ErrInvalidAmount)
	}

	var balance int
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		balance, err = s.users.WithTx(tx).AdjustBalance(ctx, userID, -amount)
		if errors.Is(err, store.ErrInsufficientBalance) {
			return fmt.Errorf("%w: %w", domain.ErrInsufficientFunds, err)
		}
		if err != nil {
			return err
		}
		return s.transactions.WithTx(tx).Create(ctx, &domain.Transaction{
			UserID:      userID,
			Amount:      -amount,
			Type:        domain.SourcePurchase,
			Description: description,
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			s.log(ctx).Debug("debit rejected for insufficient funds", "user_id", userID, "amount", amount)
		}
		return 0, fmt.Errorf("failed to deduct balance: %w", err)
	}

	s.log(ctx).Debug("balance debited", "user_id", userID, "amount", amount, "balance", balance)
	return balance, nil
}

// Transactions implements Service.Transactions
func (s *ServiceImpl) Transactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	txs, err := s.transactions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// Products implements Service.Products
func (s *ServiceImpl) Products() []domain.Product {
	return s.catalog.Products()
}

// RecordPurchase implements Service.RecordPurchase
func (s *ServiceImpl) RecordPurchase(ctx context.Context, userID uuid.UUID, productID string) (*domain.User, error) {
	if _, ok := s.catalog.Product(productID); !ok {
		return nil, domain.NewValidationError("product_id", "unknown product", domain.ErrUnknownProduct)
	}
	if err := s.users.AddPurchase(ctx, userID, productID); err != nil {
		if errors.Is(err, store.ErrPurchaseExists) {
			return nil, fmt.Errorf("%w: %w", domain.ErrAlreadyOwned, err)
		}
		return nil, fmt.Errorf("failed to record purchase: %w", err)
	}

	s.log(ctx).Info("purchase recorded", "user_id", userID, "product_id", productID)
	return s.GetUser(ctx, userID)
}

// SaveReading implements Service.SaveReading
func (s *ServiceImpl) SaveReading(
	ctx context.Context,
	userID uuid.UUID,
	spreadType string,
	cards []domain.ReadingCard,
) (*domain.Reading, error) {
	spreadType = strings.TrimSpace(spreadType)
	if spreadType == "" {
		return nil, domain.NewValidationError("spread_type", "is required", domain.ErrValidation)
	}
	if len(cards) == 0 {
		return nil, domain.NewValidationError("cards", "at least one card is required", domain.ErrValidation)
	}
	for _, c := range cards {
		if c.Orientation != domain.Upright && c.Orientation != domain.Reversed {
			return nil, domain.NewValidationError("cards", "invalid orientation", domain.ErrValidation)
		}
		if c.Position < 0 {
			return nil, domain.NewValidationError("cards", "invalid position", domain.ErrValidation)
		}
	}

	reading := &domain.Reading{UserID: userID, SpreadType: spreadType, Cards: cards}
	if err := s.readings.Create(ctx, reading); err != nil {
		return nil, fmt.Errorf("failed to save reading: %w", err)
	}
	return reading, nil
}

// Readings implements Service.Readings
func (s *ServiceImpl) Readings(ctx context.Context, userID uuid.UUID) ([]domain.Reading, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	readings, err := s.readings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	return readings, nil
}

// RevenueSummary implements Service.RevenueSummary
func (s *ServiceImpl) RevenueSummary(ctx context.Context, from, to time.Time) (domain.RevenueSummary, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return domain.RevenueSummary{}, domain.NewValidationError("end_date", "must not be before start_date", domain.ErrValidation)
	}
	sum, err := s.revenue.Summary(ctx, from, to)
	if err != nil {
		return domain.RevenueSummary{}, fmt.Errorf("failed to summarize revenue: %w", err)
	}
	return sum, nil
}
