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

package balance

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norsh-org/ledger-worker/store"
)

func TestGetSeedsAbsentBalance(t *testing.T) {
	s := New(store.NewMemoryStoreForTest(), decimal.NewFromInt(10000))
	b, err := s.Get(context.Background(), "alice", "nsh")
	require.NoError(t, err)
	assert.Equal(t, "alice_nsh", b.ID)
	amt, err := Amount(b)
	require.NoError(t, err)
	assert.True(t, amt.Equal(decimal.NewFromInt(10000)))
}

func TestSetPersistsAmount(t *testing.T) {
	db := store.NewMemoryStoreForTest()
	s := New(db, decimal.NewFromInt(10000))
	ctx := context.Background()

	b, err := s.Get(ctx, "alice", "nsh")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, b, decimal.NewFromInt(9900)))

	b2, err := s.Get(ctx, "alice", "nsh")
	require.NoError(t, err)
	amt, err := Amount(b2)
	require.NoError(t, err)
	assert.True(t, amt.Equal(decimal.NewFromInt(9900)))
}

func TestHasBalance(t *testing.T) {
	b, err := New(store.NewMemoryStoreForTest(), decimal.NewFromInt(100)).Get(context.Background(), "a", "e")
	require.NoError(t, err)

	ok, err := HasBalance(b, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasBalance(b, decimal.NewFromInt(101))
	require.NoError(t, err)
	assert.False(t, ok)
}
