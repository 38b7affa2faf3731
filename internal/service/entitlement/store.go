// Package entitlement tracks which premium spreads and cards the user has
// unlocked and runs the purchase flow that unlocks them.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/events"
)

// Debiter is the part of the ledger purchases spend through.
type Debiter interface {
	DeductBalance(ctx context.Context, amount int, description string) (bool, error)
}

// Awarder grants experience.
type Awarder interface {
	AddExperience(ctx context.Context, amount int) (domain.ExperienceSnapshot, error)
}

// Remote records purchases with the backend.
type Remote interface {
	RecordPurchase(ctx context.Context, productID string) error
	PurchasedProducts(ctx context.Context) ([]string, error)
}

// Catalog resolves products and merges premium content.
type Catalog interface {
	Product(id string) (domain.Product, bool)
	AvailableSpreads(ent domain.EntitlementSet) []domain.SpreadTemplate
	AvailableCards(ent domain.EntitlementSet) []domain.Card
}

// Cache persists entitlements and purchases awaiting remote confirmation.
type Cache interface {
	LoadEntitlements(ctx context.Context) (domain.EntitlementSet, error)
	SaveEntitlements(ctx context.Context, ent domain.EntitlementSet) error
	AddPendingPurchase(ctx context.Context, productID string, price int, lastErr string) error
	RemovePendingPurchase(ctx context.Context, productID string) error
	PendingPurchases(ctx context.Context) ([]domain.PendingPurchase, error)
}

// Deps bundles the collaborators of a Store.
type Deps struct {
	Ledger  Debiter
	XP      Awarder
	Remote  Remote
	Catalog Catalog
	Cache   Cache
	Emitter events.EventEmitter
}

// Store owns the EntitlementSet.
type Store struct {
	ledger     Debiter
	xp         Awarder
	remote     Remote
	catalog    Catalog
	cache      Cache
	emitter    events.EventEmitter
	purchaseXP int
	logger     *slog.Logger

	// purchaseMu serializes purchase flows so a product cannot be bought twice
	// by overlapping calls.
	purchaseMu sync.Mutex

	mu          sync.RWMutex
	set         domain.EntitlementSet
	pending     map[string]domain.PendingPurchase
	subscribers map[int]func(domain.EntitlementSet)
	nextSub     int
}

// NewStore creates the entitlement store and restores cached state.
func NewStore(ctx context.Context, deps Deps, purchaseXP int, logger *slog.Logger) (*Store, error) {
	if deps.Ledger == nil {
		return nil, errors.New("ledger cannot be nil")
	}
	if deps.Remote == nil {
		return nil, errors.New("remote cannot be nil")
	}
	if deps.Catalog == nil {
		return nil, errors.New("catalog cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		ledger:      deps.Ledger,
		xp:          deps.XP,
		remote:      deps.Remote,
		catalog:     deps.Catalog,
		cache:       deps.Cache,
		emitter:     deps.Emitter,
		purchaseXP:  purchaseXP,
		logger:      logger.With("component", "entitlement_store"),
		pending:     make(map[string]domain.PendingPurchase),
		subscribers: make(map[int]func(domain.EntitlementSet)),
	}

	if s.cache != nil {
		if set, err := s.cache.LoadEntitlements(ctx); err == nil {
			s.set = set
		}
		pending, err := s.cache.PendingPurchases(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load pending purchases: %w", err)
		}
		for _, p := range pending {
			s.pending[p.ProductID] = p
		}
	}
	return s, nil
}

// Entitlements returns the current set.
func (s *Store) Entitlements() domain.EntitlementSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set
}

// AvailableSpreads returns the base spreads plus every unlocked premium spread.
func (s *Store) AvailableSpreads() []domain.SpreadTemplate {
	return s.catalog.AvailableSpreads(s.Entitlements())
}

// AvailableCards returns the base deck plus every unlocked premium card.
func (s *Store) AvailableCards() []domain.Card {
	return s.catalog.AvailableCards(s.Entitlements())
}

// Pending returns purchases that were paid for but not yet recorded remotely.
func (s *Store) Pending() []domain.PendingPurchase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PendingPurchase, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p)
	}
	return out
}

// Subscribe registers fn to be called with the new set after every change.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(domain.EntitlementSet)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// Purchase spends price coins on productID and unlocks what it bundles.
//
// Insufficient funds stop the flow before any remote call. If the coins are
// spent but the backend fails to record the purchase, the purchase is kept as
// pending and an error wrapping domain.ErrReconciliationGap is returned;
// RetryPending completes it.
func (s *Store) Purchase(ctx context.Context, productID string, price int) (domain.EntitlementSet, error) {
	product, err := s.validate(productID, price)
	if err != nil {
		return s.Entitlements(), err
	}

	s.purchaseMu.Lock()
	defer s.purchaseMu.Unlock()

	// Re-check under the purchase lock; a concurrent purchase may have won.
	if _, err := s.validate(productID, price); err != nil {
		return s.Entitlements(), err
	}

	ok, err := s.ledger.DeductBalance(ctx, price, "purchase: "+productID)
	if !ok {
		if err != nil {
			return s.Entitlements(), fmt.Errorf("failed to pay for %s: %w", productID, err)
		}
		return s.Entitlements(), domain.ErrInsufficientFunds
	}
	if err != nil {
		s.logger.Warn("debit applied locally but not yet synced", "product_id", productID, "error", err)
	}

	if err := s.remote.RecordPurchase(ctx, productID); err != nil && !errors.Is(err, domain.ErrAlreadyOwned) {
		return s.Entitlements(), s.markPending(ctx, product, err)
	}

	return s.grant(ctx, product), nil
}

// RetryPending re-records every pending purchase and grants the ones the
// backend accepts. It returns the products granted and the first failure.
func (s *Store) RetryPending(ctx context.Context) ([]string, error) {
	s.purchaseMu.Lock()
	defer s.purchaseMu.Unlock()

	var granted []string
	var firstErr error
	for _, p := range s.Pending() {
		product, ok := s.catalog.Product(p.ProductID)
		if !ok {
			s.logger.Error("pending purchase for unknown product", "product_id", p.ProductID)
			continue
		}
		if err := s.remote.RecordPurchase(ctx, p.ProductID); err != nil && !errors.Is(err, domain.ErrAlreadyOwned) {
			s.logger.Warn("pending purchase still not recorded", "product_id", p.ProductID, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to record %s: %w", p.ProductID, err)
			}
			continue
		}
		s.clearPending(ctx, p.ProductID)
		s.grant(ctx, product)
		granted = append(granted, p.ProductID)
	}
	return granted, firstErr
}

// Restore rebuilds the set from the purchases the backend has recorded.
// Products the catalog does not know are ignored.
func (s *Store) Restore(ctx context.Context) (domain.EntitlementSet, error) {
	ids, err := s.remote.PurchasedProducts(ctx)
	if err != nil {
		return s.Entitlements(), fmt.Errorf("failed to restore purchases: %w", err)
	}

	var set domain.EntitlementSet
	for _, id := range ids {
		product, ok := s.catalog.Product(id)
		if !ok {
			s.logger.Warn("backend reports unknown product", "product_id", id)
			continue
		}
		set = set.Grant(product)
	}

	s.replace(ctx, set)
	s.logger.Info("entitlements restored", "products", set.Products)
	return set, nil
}

func (s *Store) validate(productID string, price int) (domain.Product, error) {
	product, ok := s.catalog.Product(productID)
	if !ok {
		return domain.Product{}, domain.NewValidationError("product_id", fmt.Sprintf("unknown product %q", productID), domain.ErrUnknownProduct)
	}
	if price <= 0 || price != product.Price {
		return domain.Product{}, domain.NewValidationError("price", fmt.Sprintf("price must be %d", product.Price), domain.ErrInvalidAmount)
	}
	if s.Entitlements().OwnsProduct(productID) {
		return domain.Product{}, domain.NewValidationError("product_id", "product already owned", domain.ErrAlreadyOwned)
	}
	s.mu.RLock()
	_, pending := s.pending[productID]
	s.mu.RUnlock()
	if pending {
		return domain.Product{}, fmt.Errorf("%w: purchase of %s awaits confirmation", domain.ErrReconciliationGap, productID)
	}
	return product, nil
}

func (s *Store) markPending(ctx context.Context, product domain.Product, cause error) error {
	s.logger.Error("coins spent but purchase not recorded",
		"product_id", product.ID,
		"price", product.Price,
		"error", cause)

	p := domain.PendingPurchase{ProductID: product.ID, Price: product.Price, LastError: cause.Error()}
	s.mu.Lock()
	s.pending[product.ID] = p
	s.mu.Unlock()
	if s.cache != nil {
		if err := s.cache.AddPendingPurchase(ctx, product.ID, product.Price, cause.Error()); err != nil {
			s.logger.Error("failed to persist pending purchase", "product_id", product.ID, "error", err)
		}
	}

	events.Publish(ctx, s.emitter, s.logger, events.TypePurchaseReconciliationGap, events.PurchaseGap{
		ProductID: product.ID,
		Price:     product.Price,
		Error:     cause.Error(),
	})
	return fmt.Errorf("purchase of %s not recorded: %w", product.ID, errors.Join(domain.ErrReconciliationGap, cause))
}

func (s *Store) clearPending(ctx context.Context, productID string) {
	s.mu.Lock()
	delete(s.pending, productID)
	s.mu.Unlock()
	if s.cache != nil {
		if err := s.cache.RemovePendingPurchase(ctx, productID); err != nil {
			s.logger.Warn("failed to clear pending purchase", "product_id", productID, "error", err)
		}
	}
}

// grant adds product to the set, persists it and awards purchase XP. XP is a
// bonus: its failure is logged, not returned.
func (s *Store) grant(ctx context.Context, product domain.Product) domain.EntitlementSet {
	set := s.Entitlements().Grant(product)
	s.replace(ctx, set)

	events.Publish(ctx, s.emitter, s.logger, events.TypeEntitlementGranted, events.Grant{
		ProductID: product.ID,
		Spreads:   product.SpreadIDs,
		Cards:     product.CardIDs,
	})
	s.logger.Info("product unlocked", "product_id", product.ID)

	if s.xp != nil && s.purchaseXP > 0 {
		if _, err := s.xp.AddExperience(ctx, s.purchaseXP); err != nil {
			s.logger.Warn("failed to award purchase experience", "error", err)
		}
	}
	return set
}

func (s *Store) replace(ctx context.Context, set domain.EntitlementSet) {
	s.mu.Lock()
	s.set = set
	subs := make([]func(domain.EntitlementSet), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SaveEntitlements(ctx, set); err != nil {
			s.logger.Warn("failed to persist entitlements", "error", err)
		}
	}
	for _, fn := range subs {
		fn(set)
	}
}
