// Package catalog holds the built-in card and spread definitions, the premium
// content they can be extended with, and the products that unlock it.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/phrazzld/arcana/internal/domain"
)

//go:embed data/*.json
var dataFS embed.FS

type contentFile struct {
	Cards   []domain.Card           `json:"cards"`
	Spreads []domain.SpreadTemplate `json:"spreads"`
}

type productFile struct {
	Products []domain.Product `json:"products"`
}

// Catalog is the immutable content the client draws from. All methods are safe
// for concurrent use.
type Catalog struct {
	baseCards      []domain.Card
	baseSpreads    []domain.SpreadTemplate
	premiumCards   []domain.Card
	premiumSpreads []domain.SpreadTemplate
	products       []domain.Product
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog parsed from the embedded data files. Parsing
// happens once.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = load()
	})
	return defaultCatalog, defaultErr
}

func load() (*Catalog, error) {
	var base, premium contentFile
	var products productFile

	for name, dst := range map[string]any{
		"data/base.json":     &base,
		"data/premium.json":  &premium,
		"data/products.json": &products,
	} {
		raw, err := dataFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read embedded %s: %w", name, err)
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, fmt.Errorf("parse embedded %s: %w", name, err)
		}
	}

	return New(base.Cards, base.Spreads, premium.Cards, premium.Spreads, products.Products)
}

// New builds a catalog from explicit content, validating that ids are unique
// and that every product bundles premium content that exists.
func New(
	baseCards []domain.Card,
	baseSpreads []domain.SpreadTemplate,
	premiumCards []domain.Card,
	premiumSpreads []domain.SpreadTemplate,
	products []domain.Product,
) (*Catalog, error) {
	if len(baseCards) == 0 {
		return nil, fmt.Errorf("catalog: base deck is empty")
	}
	if len(baseSpreads) == 0 {
		return nil, fmt.Errorf("catalog: no base spreads")
	}

	cardIDs := make(map[int]bool)
	for _, c := range append(append([]domain.Card{}, baseCards...), premiumCards...) {
		if cardIDs[c.ID] {
			return nil, fmt.Errorf("catalog: duplicate card id %d", c.ID)
		}
		if !c.Category.Valid() {
			return nil, fmt.Errorf("catalog: card %d has unknown category %q", c.ID, c.Category)
		}
		cardIDs[c.ID] = true
	}

	spreadIDs := make(map[string]bool)
	for _, s := range append(append([]domain.SpreadTemplate{}, baseSpreads...), premiumSpreads...) {
		if spreadIDs[s.ID] {
			return nil, fmt.Errorf("catalog: duplicate spread id %q", s.ID)
		}
		if s.SlotCount() == 0 {
			return nil, fmt.Errorf("catalog: spread %q has no positions", s.ID)
		}
		spreadIDs[s.ID] = true
	}

	c := &Catalog{
		baseCards:      baseCards,
		baseSpreads:    baseSpreads,
		premiumCards:   premiumCards,
		premiumSpreads: premiumSpreads,
		products:       products,
	}

	for _, p := range products {
		if p.Price <= 0 {
			return nil, fmt.Errorf("catalog: product %q has non-positive price", p.ID)
		}
		for _, id := range p.SpreadIDs {
			if !c.isPremiumSpread(id) {
				return nil, fmt.Errorf("catalog: product %q bundles unknown premium spread %q", p.ID, id)
			}
		}
		for _, id := range p.CardIDs {
			if !c.isPremiumCard(id) {
				return nil, fmt.Errorf("catalog: product %q bundles unknown premium card %d", p.ID, id)
			}
		}
	}

	return c, nil
}

func (c *Catalog) isPremiumSpread(id string) bool {
	for _, s := range c.premiumSpreads {
		if s.ID == id {
			return true
		}
	}
	return false
}

func (c *Catalog) isPremiumCard(id int) bool {
	for _, card := range c.premiumCards {
		if card.ID == id {
			return true
		}
	}
	return false
}

// BaseCards returns the built-in deck.
func (c *Catalog) BaseCards() []domain.Card {
	return append([]domain.Card(nil), c.baseCards...)
}

// BaseSpreads returns the built-in spreads.
func (c *Catalog) BaseSpreads() []domain.SpreadTemplate {
	return append([]domain.SpreadTemplate(nil), c.baseSpreads...)
}

// Products returns every product offered for sale.
func (c *Catalog) Products() []domain.Product {
	return append([]domain.Product(nil), c.products...)
}

// Product looks up a product by id.
func (c *Catalog) Product(id string) (domain.Product, bool) {
	for _, p := range c.products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

// AvailableCards returns the base deck followed by every premium card the
// entitlements unlock.
func (c *Catalog) AvailableCards(ent domain.EntitlementSet) []domain.Card {
	out := c.BaseCards()
	for _, card := range c.premiumCards {
		if ent.HasCard(card.ID) {
			out = append(out, card)
		}
	}
	return out
}

// AvailableSpreads returns the base spreads followed by every premium spread
// the entitlements unlock.
func (c *Catalog) AvailableSpreads(ent domain.EntitlementSet) []domain.SpreadTemplate {
	out := c.BaseSpreads()
	for _, s := range c.premiumSpreads {
		if ent.HasSpread(s.ID) {
			out = append(out, s)
		}
	}
	return out
}

// FindSpread returns the spread with the given id if it is available under
// ent.
func (c *Catalog) FindSpread(id string, ent domain.EntitlementSet) (domain.SpreadTemplate, bool) {
	for _, s := range c.AvailableSpreads(ent) {
		if s.ID == id {
			return s, true
		}
	}
	return domain.SpreadTemplate{}, false
}
