// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package balance keeps per-(owner, element) balances. The composite id
// owner_element is both the document key and the canonical semaphore name:
// every mutation runs inside a lock on that exact string.
package balance

import (
	"github.com/shopspring/decimal"

	"github.com/norsh/blockchain/docdb"
	"github.com/norsh/blockchain/norsh"
)

// Balance is the persisted balance document.
type Balance struct {
	ID      string          `json:"id"`
	Owner   string          `json:"owner"`
	Element string          `json:"element"`
	Amount  decimal.Decimal `json:"amount"`
}

// ID builds the canonical balance id and lock key.
func ID(owner, element string) string {
	return owner + "_" + element
}

// Store reads and writes balances.
type Store struct {
	col  *docdb.Collection
	seed decimal.Decimal
}

// NewStore creates a balance store. Absent balances read back with the seed
// amount; the demonstration network seeds 10000, production seeds zero.
func NewStore(store *docdb.Store, seed decimal.Decimal) *Store {
	return &Store{col: store.Collection(norsh.CollectionBalances), seed: seed}
}

// Get returns the balance for (owner, element), synthesizing a seeded record
// when absent. The synthesized record is not persisted until Save.
func (s *Store) Get(owner, element string) (*Balance, error) {
	id := ID(owner, element)
	var b Balance
	err := s.col.Get(id, &b)
	if docdb.IsNotFound(err) {
		return &Balance{ID: id, Owner: owner, Element: element, Amount: s.seed}, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Set assigns amount and persists. Callers must hold the owner_element
// semaphore.
func (s *Store) Set(b *Balance, amount decimal.Decimal) error {
	b.Amount = amount
	return s.Save(b)
}

// Save upserts the balance document by id.
func (s *Store) Save(b *Balance) error {
	return s.col.Put(b.ID, b)
}

// Has reports whether the owner's balance covers amount.
func (s *Store) Has(owner, element string, amount decimal.Decimal) (bool, error) {
	b, err := s.Get(owner, element)
	if err != nil {
		return false, err
	}
	return b.Amount.GreaterThanOrEqual(amount), nil
}
