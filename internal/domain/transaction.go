package domain

import (
	"time"

	"github.com/google/uuid"
)

// Well-known credit sources.
const (
	SourceAd       = "ad"
	SourcePayment  = "payment"
	SourceReward   = "reward"
	SourcePurchase = "purchase"
)

// Transaction records one balance change on the backend. Amount is positive
// for credits and negative for debits.
type Transaction struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Amount      int       `json:"amount"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// RevenueSummary aggregates revenue attributed to ads and payments, in cents.
type RevenueSummary struct {
	TotalCents       int64 `json:"total_cents"`
	AdCents          int64 `json:"ad_cents"`
	PaymentCents     int64 `json:"payment_cents"`
	TransactionCount int   `json:"transaction_count"`
}

// RevenueCents returns the revenue attributed to a credit of amount coins
// from source, or zero when the source earns nothing.
func RevenueCents(source string, amount int) int64 {
	switch source {
	case SourceAd:
		return 1
	case SourcePayment:
		// one coin is worth ten cents
		return int64(amount) * 10
	default:
		return 0
	}
}

// RevenueEntry is revenue attributed to one credit.
type RevenueEntry struct {
	ID          uuid.UUID `json:"id"`
	Source      string    `json:"source"`
	AmountCents int64     `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}
