// Package domain contains the core entities of the tarot reading engine:
// cards and spreads, reading sessions with their draw state, level tiers,
// products, users, transactions and saved readings. It is independent of
// any storage or transport.
package domain
