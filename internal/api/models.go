package api

import "github.com/phrazzld/arcana/internal/domain"

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,max=64"`
}

// AddBalanceRequest is the body of POST /users/{userID}/balance/add.
type AddBalanceRequest struct {
	Amount int    `json:"amount" validate:"gt=0"`
	Source string `json:"source" validate:"required,max=32"`
}

// DeductBalanceRequest is the body of POST /users/{userID}/balance/deduct.
type DeductBalanceRequest struct {
	Amount      int    `json:"amount"      validate:"gt=0"`
	Description string `json:"description" validate:"max=255"`
}

// PurchaseRequest is the body of POST /purchase/{productID}.
type PurchaseRequest struct {
	ProductID string `json:"productId"`
	UserID    string `json:"user_id"   validate:"required,uuid"`
}

// SaveReadingRequest is the body of POST /readings/{userID}.
type SaveReadingRequest struct {
	SpreadType string               `json:"spread_type" validate:"required,max=64"`
	Cards      []domain.ReadingCard `json:"cards"       validate:"required,min=1"`
}

// BalanceResponse reports a balance after a change.
type BalanceResponse struct {
	Balance int `json:"balance"`
}

// LanguageResponse reports the stored language code.
type LanguageResponse struct {
	Language string `json:"language"`
}
