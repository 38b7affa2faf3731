package domain

import (
	"slices"
	"time"
)

// EntitlementSet lists the premium content a user has unlocked. Values are
// immutable; Grant returns a new set.
type EntitlementSet struct {
	Products []string `json:"products"`
	Spreads  []string `json:"spreads"`
	Cards    []int    `json:"cards"`
}

// OwnsProduct reports whether productID has been granted.
func (e EntitlementSet) OwnsProduct(productID string) bool {
	return slices.Contains(e.Products, productID)
}

// HasSpread reports whether the premium spread id is unlocked.
func (e EntitlementSet) HasSpread(id string) bool {
	return slices.Contains(e.Spreads, id)
}

// HasCard reports whether the premium card id is unlocked.
func (e EntitlementSet) HasCard(id int) bool {
	return slices.Contains(e.Cards, id)
}

// Empty reports whether nothing has been unlocked.
func (e EntitlementSet) Empty() bool {
	return len(e.Products) == 0 && len(e.Spreads) == 0 && len(e.Cards) == 0
}

// Grant returns a copy of e with the product and everything it bundles added.
func (e EntitlementSet) Grant(p Product) EntitlementSet {
	out := EntitlementSet{
		Products: slices.Clone(e.Products),
		Spreads:  slices.Clone(e.Spreads),
		Cards:    slices.Clone(e.Cards),
	}
	if !out.OwnsProduct(p.ID) {
		out.Products = append(out.Products, p.ID)
	}
	for _, id := range p.SpreadIDs {
		if !out.HasSpread(id) {
			out.Spreads = append(out.Spreads, id)
		}
	}
	for _, id := range p.CardIDs {
		if !out.HasCard(id) {
			out.Cards = append(out.Cards, id)
		}
	}
	slices.Sort(out.Products)
	slices.Sort(out.Spreads)
	slices.Sort(out.Cards)
	return out
}

// PendingPurchase is a purchase whose coins were spent but which the backend
// has not yet recorded. Its entitlements are granted once the record succeeds.
type PendingPurchase struct {
	ProductID string
	Price     int
	LastError string
	CreatedAt time.Time
}
