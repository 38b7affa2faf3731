// Package backend is the HTTP client for the account, economy and reading
// endpoints served by cmd/server.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/platform/logger"
	"github.com/phrazzld/arcana/internal/redact"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Client calls the backend API. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for the backend at baseURL. A zero timeout
// leaves requests bounded only by their context.
func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url scheme %q", u.Scheme)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
		logger:  log.With("component", "backend_client"),
	}, nil
}

type createUserRequest struct {
	Username string `json:"username"`
}

type balanceAddRequest struct {
	Amount int    `json:"amount"`
	Source string `json:"source"`
}

type balanceDeductRequest struct {
	Amount      int    `json:"amount"`
	Description string `json:"description"`
}

type purchaseRequest struct {
	ProductID string    `json:"productId"`
	UserID    uuid.UUID `json:"user_id"`
}

type saveReadingRequest struct {
	SpreadType string               `json:"spread_type"`
	Cards      []domain.ReadingCard `json:"cards"`
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// CreateUser registers username, or returns the existing user with that name.
func (c *Client) CreateUser(ctx context.Context, username string) (domain.User, error) {
	var user domain.User
	err := c.do(ctx, "create_user", http.MethodPost, "/users", nil, createUserRequest{Username: username}, &user)
	return user, err
}

// GetUser fetches a user, including their purchased products.
func (c *Client) GetUser(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	var user domain.User
	err := c.do(ctx, "get_user", http.MethodGet, "/users/"+userID.String(), nil, nil, &user)
	return user, err
}

// GetLevel fetches the user's XP and tier.
func (c *Client) GetLevel(ctx context.Context, userID uuid.UUID) (domain.ExperienceSnapshot, error) {
	var snap domain.ExperienceSnapshot
	err := c.do(ctx, "get_level", http.MethodGet, "/users/"+userID.String()+"/level", nil, nil, &snap)
	return snap, err
}

// AddExperience adds amount XP and returns the canonical result.
func (c *Client) AddExperience(ctx context.Context, userID uuid.UUID, amount int) (domain.ExperienceSnapshot, error) {
	var snap domain.ExperienceSnapshot
	q := url.Values{"xp_amount": {strconv.Itoa(amount)}}
	err := c.do(ctx, "add_experience", http.MethodPost, "/users/"+userID.String()+"/experience", q, nil, &snap)
	return snap, err
}

// SetLanguage stores the user's display language.
func (c *Client) SetLanguage(ctx context.Context, userID uuid.UUID, lang string) error {
	q := url.Values{"language": {lang}}
	return c.do(ctx, "set_language", http.MethodPut, "/users/"+userID.String()+"/language", q, nil, nil)
}

// AddBalance credits amount coins labelled with source.
func (c *Client) AddBalance(ctx context.Context, userID uuid.UUID, amount int, source string) error {
	body := balanceAddRequest{Amount: amount, Source: source}
	return c.do(ctx, "add_balance", http.MethodPost, "/users/"+userID.String()+"/balance/add", nil, body, nil)
}

// DeductBalance debits amount coins. A rejection for insufficient funds
// matches domain.ErrInsufficientFunds.
func (c *Client) DeductBalance(ctx context.Context, userID uuid.UUID, amount int, description string) error {
	body := balanceDeductRequest{Amount: amount, Description: description}
	return c.do(ctx, "deduct_balance", http.MethodPost, "/users/"+userID.String()+"/balance/deduct", nil, body, nil)
}

// ListProducts returns the products offered for sale.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	err := c.do(ctx, "list_products", http.MethodGet, "/products", nil, nil, &products)
	return products, err
}

// RecordPurchase records that the user bought productID.
func (c *Client) RecordPurchase(ctx context.Context, userID uuid.UUID, productID string) error {
	body := purchaseRequest{ProductID: productID, UserID: userID}
	return c.do(ctx, "record_purchase", http.MethodPost, "/purchase/"+url.PathEscape(productID), nil, body, nil)
}

// ListTransactions returns the user's balance history.
func (c *Client) ListTransactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := c.do(ctx, "list_transactions", http.MethodGet, "/users/"+userID.String()+"/transactions", nil, nil, &txs)
	return txs, err
}

// SaveReading stores a completed reading.
func (c *Client) SaveReading(ctx context.Context, userID uuid.UUID, spreadType string, cards []domain.ReadingCard) (domain.Reading, error) {
	var reading domain.Reading
	body := saveReadingRequest{SpreadType: spreadType, Cards: cards}
	err := c.do(ctx, "save_reading", http.MethodPost, "/readings/"+userID.String(), nil, body, &reading)
	return reading, err
}

// ListReadings returns the user's saved readings, newest first.
func (c *Client) ListReadings(ctx context.Context, userID uuid.UUID) ([]domain.Reading, error) {
	var readings []domain.Reading
	err := c.do(ctx, "list_readings", http.MethodGet, "/readings/"+userID.String(), nil, nil, &readings)
	return readings, err
}

// do performs one request. Every failure is returned as a *RemoteError.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	log := logger.FromContextOrDefault(ctx, c.logger).With("operation", op)

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &RemoteError{Operation: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return &RemoteError{Operation: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("backend request failed", "error", redact.Error(err))
		return &RemoteError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	log.Debug("backend request completed",
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remote := &RemoteError{Operation: op, StatusCode: resp.StatusCode}
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if json.Unmarshal(raw, &eb) == nil {
			remote.Code = eb.Reason
			remote.Message = eb.Error
		}
		log.Warn("backend rejected request",
			"status_code", resp.StatusCode,
			"reason", remote.Code)
		return remote
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteError{Operation: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
