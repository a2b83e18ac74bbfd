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

package element

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norsh-org/ledger-worker/cache"
	"github.com/norsh-org/ledger-worker/config"
	"github.com/norsh-org/ledger-worker/ledgertypes"
	"github.com/norsh-org/ledger-worker/lock"
	"github.com/norsh-org/ledger-worker/sequence"
	"github.com/norsh-org/ledger-worker/store"
)

func newTestBootstrap(t *testing.T) (*Bootstrap, *Service, store.Store) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	genesis := config.Genesis{
		NshTFO:     "genesis-tfo",
		PublicKey:  base64.StdEncoding.EncodeToString(pub),
		PrivateKey: base64.StdEncoding.EncodeToString(priv),
	}

	db := store.NewMemoryStoreForTest()
	seq := sequence.New(db)
	sem := lock.New(cache.NewMemoryCacheForTest(), time.Second, time.Millisecond, 10*time.Millisecond)
	elements := New(db, seq, sem, time.Second)

	return NewBootstrap(elements, genesis), elements, db
}

func TestBootstrapMintsGenesisElements(t *testing.T) {
	boot, elements, db := newTestBootstrap(t)
	ctx := context.Background()

	require.NoError(t, boot.Run(ctx))

	var all []ledgertypes.Element
	require.NoError(t, db.Find(ctx, collection, store.M{}, store.M{"timestamp": 1}, 0, &all))
	require.Len(t, all, 2)

	symbols := map[string]ledgertypes.Element{}
	for _, el := range all {
		symbols[el.Symbol] = el
		assert.Equal(t, ledgertypes.ElementEnabled, el.Status)
	}

	coin, ok := symbols[genesisCoinSymbol]
	require.True(t, ok)
	proxy, ok := symbols[genesisProxySymbol]
	require.True(t, ok)
	assert.Equal(t, ledgertypes.ElementTypeCoin, coin.Type)
	assert.Equal(t, ledgertypes.ElementTypeProxy, proxy.Type)

	seq, err := elements.sequences.Get(ctx, SequenceKey)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, seq.Sequence, int64(2))
	assert.NotEqual(t, coin.ID, "")
}

func TestBootstrapIsIdempotent(t *testing.T) {
	boot, elements, db := newTestBootstrap(t)
	ctx := context.Background()

	require.NoError(t, boot.Run(ctx))

	var firstRun []ledgertypes.Element
	require.NoError(t, db.Find(ctx, collection, store.M{}, nil, 0, &firstRun))
	require.Len(t, firstRun, 2)

	seqAfterFirst, err := elements.sequences.Get(ctx, SequenceKey)
	require.NoError(t, err)

	require.NoError(t, boot.Run(ctx))

	var secondRun []ledgertypes.Element
	require.NoError(t, db.Find(ctx, collection, store.M{}, nil, 0, &secondRun))
	assert.Len(t, secondRun, 2, "second Run must not mint any further elements")

	seqAfterSecond, err := elements.sequences.Get(ctx, SequenceKey)
	require.NoError(t, err)
	assert.Equal(t, seqAfterFirst.Data, seqAfterSecond.Data)
}
