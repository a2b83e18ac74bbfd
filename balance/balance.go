// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package balance is the BalanceService: balances keyed by (owner,
// element), lazily created with a configured seed amount. Every mutation
// must be performed by the caller inside lock.Semaphore.Execute(buildId(...)).
package balance

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/norsh-org/ledger-worker/ledgertypes"
	"github.com/norsh-org/ledger-worker/log"
	"github.com/norsh-org/ledger-worker/store"
)

const collection = "balances"

var logger = log.NewModuleLogger(log.Balance)

// Service is the BalanceService.
type Service struct {
	db         store.Store
	seedAmount decimal.Decimal
}

// New wraps the document store as a balance service. seedAmount is the
// documented demonstration behavior (§9 Open Questions): production
// deployments should configure it to zero.
func New(db store.Store, seedAmount decimal.Decimal) *Service {
	return &Service{db: db, seedAmount: seedAmount}
}

// BuildID returns the canonical balance id and lock key for (owner,
// element): owner_element.
func BuildID(owner, element string) string {
	return owner + "_" + element
}

// Get returns the balance for (owner, element), synthesizing one seeded to
// Service.seedAmount when absent. The synthesized balance is not persisted
// until Set is called.
func (s *Service) Get(ctx context.Context, owner, element string) (ledgertypes.Balance, error) {
	id := BuildID(owner, element)
	var b ledgertypes.Balance
	ok, err := s.db.FindByID(ctx, collection, id, &b)
	if err != nil {
		return ledgertypes.Balance{}, err
	}
	if !ok {
		return ledgertypes.Balance{
			ID:      id,
			Owner:   owner,
			Element: element,
			Amount:  s.seedAmount.String(),
		}, nil
	}
	return b, nil
}

// Amount parses a balance's stored decimal string.
func Amount(b ledgertypes.Balance) (decimal.Decimal, error) {
	return decimal.NewFromString(b.Amount)
}

// Set upserts the balance with newAmount. Callers must hold the
// BuildID(owner, element) lock.
func (s *Service) Set(ctx context.Context, b ledgertypes.Balance, newAmount decimal.Decimal) error {
	b.Amount = newAmount.String()
	return s.db.ReplaceByID(ctx, collection, b.ID, b)
}

// HasBalance reports whether b.Amount >= amount.
func HasBalance(b ledgertypes.Balance, amount decimal.Decimal) (bool, error) {
	current, err := Amount(b)
	if err != nil {
		return false, err
	}
	return current.GreaterThanOrEqual(amount), nil
}
