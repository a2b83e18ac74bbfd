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

package miner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norsh-org/ledger-worker/block"
	"github.com/norsh-org/ledger-worker/cache"
	"github.com/norsh-org/ledger-worker/ledgertypes"
	"github.com/norsh-org/ledger-worker/lock"
	"github.com/norsh-org/ledger-worker/store"
)

func TestIncrementVectorCarries(t *testing.T) {
	v := incrementVector([]uint64{0})
	assert.Equal(t, []uint64{1}, v)

	max := []uint64{^uint64(0)}
	v = incrementVector(max)
	assert.Equal(t, []uint64{0, 1}, v)
}

func TestMineFindsMatchingDifficulty(t *testing.T) {
	db := store.NewMemoryStoreForTest()
	sem := lock.New(cache.NewMemoryCacheForTest(), time.Second, time.Millisecond, 10*time.Millisecond)
	svc := New(db, sem, time.Second, nil)

	b := ledgertypes.Block{ID: "b1", Timestamp: 1, MerkleRoot: "m", Difficulty: 2}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	nonces, hash, err := svc.Mine(ctx, b, 4, 4)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "00"))
	assert.Equal(t, sha256Hex(miningBase(b)+vectorString(nonces)), hash)
}

func TestVerifyBlockAndRewardMiner(t *testing.T) {
	db := store.NewMemoryStoreForTest()
	sem := lock.New(cache.NewMemoryCacheForTest(), time.Second, time.Millisecond, 10*time.Millisecond)

	rewarded := ""
	svc := New(db, sem, time.Second, func(ctx context.Context, blockID, miner string) error {
		rewarded = miner
		return nil
	})

	b := ledgertypes.Block{ID: "b1", Timestamp: 1, MerkleRoot: "m", Difficulty: 2, Closed: true, Mined: false}
	require.NoError(t, db.InsertOne(context.Background(), block.Collection, b))

	ctx := context.Background()
	nonces, hash, err := svc.Mine(ctx, b, 4, 4)
	require.NoError(t, err)

	ok, err := svc.VerifyBlockAndRewardMiner(ctx, b.ID, nonces, hash, "miner-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "miner-1", rewarded)

	var stored ledgertypes.Block
	found, err := db.FindByID(ctx, block.Collection, b.ID, &stored)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, stored.Mined)
	assert.Equal(t, hash, stored.BlockHash)

	ok, err = svc.VerifyBlockAndRewardMiner(ctx, b.ID, nonces, hash, "miner-2")
	require.NoError(t, err)
	assert.False(t, ok)
}
