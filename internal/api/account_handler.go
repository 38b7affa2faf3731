package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/arcana/internal/api/shared"
	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/platform/logger"
	"github.com/phrazzld/arcana/internal/service/account"
)

// AccountHandler handles the account, ledger, purchase, reading and revenue
// endpoints.
type AccountHandler struct {
	service account.Service
	logger  *slog.Logger
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(service account.Service, logger *slog.Logger) *AccountHandler {
	if service == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("service cannot be nil for AccountHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountHandler{
		service: service,
		logger:  logger.With(slog.String("component", "account_handler")),
	}
}

// RegisterRoutes mounts the handler's endpoints on r.
func (h *AccountHandler) RegisterRoutes(r chi.Router) {
	r.Post("/users", h.CreateUser)
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/", h.GetUser)
		r.Get("/level", h.GetLevel)
		r.Post("/experience", h.AddExperience)
		r.Put("/language", h.SetLanguage)
		r.Post("/balance/add", h.AddBalance)
		r.Post("/balance/deduct", h.DeductBalance)
		r.Get("/transactions", h.ListTransactions)
	})
	r.Get("/products", h.ListProducts)
	r.Post("/purchase/{productID}", h.Purchase)
	r.Post("/readings/{userID}", h.SaveReading)
	r.Get("/readings/{userID}", h.ListReadings)
	r.Get("/revenue/summary", h.RevenueSummary)
}

// decode reads and validates a JSON body, writing the error response itself
// when either step fails.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := shared.DecodeJSON(r, v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", domain.CodeValidation, err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		handleValidationError(w, r, err)
		return false
	}
	return true
}

func (h *AccountHandler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := getPathUUID(r, "userID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return uuid.Nil, false
	}
	return id, true
}

// CreateUser handles POST /users. An existing user with the same name is
// returned instead of an error.
func (h *AccountHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.service.CreateUser(r.Context(), req.Username)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create user")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, user)
}

// GetUser handles GET /users/{userID}
func (h *AccountHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get user")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, user)
}

// GetLevel handles GET /users/{userID}/level
func (h *AccountHandler) GetLevel(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	snap, err := h.service.Level(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get level")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, snap)
}

// AddExperience handles POST /users/{userID}/experience?xp_amount=N
func (h *AccountHandler) AddExperience(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	amount, err := getQueryInt(r, "xp_amount")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	snap, err := h.service.AddExperience(r.Context(), userID, amount)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to add experience")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, snap)
}

// SetLanguage handles PUT /users/{userID}/language?language=L
func (h *AccountHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	lang, err := h.service.SetLanguage(r.Context(), userID, r.URL.Query().Get("language"))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update language")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, LanguageResponse{Language: lang})
}

// AddBalance handles POST /users/{userID}/balance/add
func (h *AccountHandler) AddBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req AddBalanceRequest
	if !decode(w, r, &req) {
		return
	}

	balance, err := h.service.AddBalance(r.Context(), userID, req.Amount, req.Source)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to add balance")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, BalanceResponse{Balance: balance})
}

// DeductBalance handles POST /users/{userID}/balance/deduct
func (h *AccountHandler) DeductBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req DeductBalanceRequest
	if !decode(w, r, &req) {
		return
	}

	balance, err := h.service.DeductBalance(r.Context(), userID, req.Amount, req.Description)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to deduct balance")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, BalanceResponse{Balance: balance})
}

// ListTransactions handles GET /users/{userID}/transactions
func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	txs, err := h.service.Transactions(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list transactions")
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, txs)
}

// ListProducts handles GET /products
func (h *AccountHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.service.Products())
}

// Purchase handles POST /purchase/{productID}. It records ownership only;
// the client debits the price through the balance endpoint.
func (h *AccountHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	productID := chi.URLParam(r, "productID")
	var req PurchaseRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ProductID != "" && req.ProductID != productID {
		log.Debug("purchase body does not match path", "path_product", productID, "body_product", req.ProductID)
		HandleAPIError(w, r, domain.NewValidationError("productId", "does not match the path", domain.ErrValidation), "")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		HandleAPIError(w, r, domain.NewValidationError("user_id", "has invalid format", domain.ErrValidation), "")
		return
	}

	user, err := h.service.RecordPurchase(r.Context(), userID, productID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to record purchase")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, user)
}

// SaveReading handles POST /readings/{userID}
func (h *AccountHandler) SaveReading(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req SaveReadingRequest
	if !decode(w, r, &req) {
		return
	}

	reading, err := h.service.SaveReading(r.Context(), userID, req.SpreadType, req.Cards)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to save reading")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, reading)
}

// ListReadings handles GET /readings/{userID}
func (h *AccountHandler) ListReadings(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	readings, err := h.service.Readings(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list readings")
		return
	}
	if readings == nil {
		readings = []domain.Reading{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, readings)
}

// RevenueSummary handles GET /revenue/summary?start_date=&end_date=
func (h *AccountHandler) RevenueSummary(w http.ResponseWriter, r *http.Request) {
	from, err := getQueryTime(r, "start_date")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	to, err := getQueryTime(r, "end_date")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	sum, err := h.service.RevenueSummary(r.Context(), from, to)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to summarize revenue")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, sum)
}
