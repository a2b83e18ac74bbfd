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

package block

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norsh-org/ledger-worker/cache"
	"github.com/norsh-org/ledger-worker/cryptoutil"
	"github.com/norsh-org/ledger-worker/ledgertypes"
	"github.com/norsh-org/ledger-worker/lock"
	"github.com/norsh-org/ledger-worker/sequence"
	"github.com/norsh-org/ledger-worker/store"
)

func newTestService() *Service {
	db := store.NewMemoryStoreForTest()
	seq := sequence.New(db)
	sem := lock.New(cache.NewMemoryCacheForTest(), time.Second, time.Millisecond, 10*time.Millisecond)
	return New(db, seq, sem, time.Second, time.Millisecond, 10*time.Millisecond)
}

func TestMerkleRootDuplicatesOddTail(t *testing.T) {
	root := MerkleRoot([]string{"a", "b", "c"})
	expectedPair := cryptoutil.KeccakHex("a" + "b")
	expectedTail := cryptoutil.KeccakHex("c" + "c")
	expected := cryptoutil.KeccakHex(expectedPair + expectedTail)
	assert.Equal(t, expected, root)
}

func TestMerkleRootEmpty(t *testing.T) {
	assert.Equal(t, "", MerkleRoot(nil))
}

func TestDifficultyZeroFeeIsTwo(t *testing.T) {
	assert.Equal(t, 2, Difficulty(decimal.Zero))
}

func TestDifficultyScalesWithDigitCount(t *testing.T) {
	assert.Equal(t, 2, Difficulty(decimal.NewFromInt(9)))
	assert.Equal(t, 4, Difficulty(decimal.NewFromInt(10)))
	assert.Equal(t, 6, Difficulty(decimal.NewFromInt(100)))
}

func TestAddTransactionToBlockCreatesAndAppends(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	ref := ledgertypes.BlockTransactionRef{ID: "tx1", Element: "nsh", Ledger: "ledger_1", Tax: "0.3"}
	n, err := s.AddTransactionToBlock(ctx, ref, now)
	require.NoError(t, err)
	assert.Equal(t, NumberAt(now), n)

	ok, err := s.db.FindOne(ctx, collection, store.M{"number": n}, nil, &ledgertypes.Block{})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBlockRolloverClosesPrevious(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	t0 := time.Unix(1_700_000_000, 0)
	t1 := t0.Add(time.Duration(WindowMs) * time.Millisecond)

	ref1 := ledgertypes.BlockTransactionRef{ID: "tx1", Element: "nsh", Ledger: "ledger_1", Tax: "1.5"}
	n0, err := s.AddTransactionToBlock(ctx, ref1, t0)
	require.NoError(t, err)

	ref2 := ledgertypes.BlockTransactionRef{ID: "tx2", Element: "nsh", Ledger: "ledger_1", Tax: "0"}
	n1, err := s.AddTransactionToBlock(ctx, ref2, t1)
	require.NoError(t, err)
	assert.NotEqual(t, n0, n1)

	var prev ledgertypes.Block
	ok, err := s.db.FindOne(ctx, collection, store.M{"number": n0}, nil, &prev)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, prev.Closed)
	assert.NotEmpty(t, prev.MerkleRoot)
	assert.Equal(t, 2, prev.Difficulty)
	assert.Equal(t, "1.5", prev.TotalFee)

	var cur ledgertypes.Block
	ok, err = s.db.FindOne(ctx, collection, store.M{"number": n1}, nil, &cur)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, cur.Closed)
	assert.Equal(t, prev.ID, cur.PreviousID)
}

func TestFindBlockByTransactionID(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	ref := ledgertypes.BlockTransactionRef{ID: "tx-find-me", Element: "nsh", Ledger: "ledger_1", Tax: "0"}
	_, err := s.AddTransactionToBlock(ctx, ref, now)
	require.NoError(t, err)

	b, ok, err := s.FindBlockByTransactionID(ctx, "tx-find-me")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, NumberAt(now), b.Number)
}
