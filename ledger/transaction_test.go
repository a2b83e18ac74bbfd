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

package ledger

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norsh-org/ledger-worker/balance"
	"github.com/norsh-org/ledger-worker/block"
	"github.com/norsh-org/ledger-worker/cache"
	"github.com/norsh-org/ledger-worker/cryptoutil"
	"github.com/norsh-org/ledger-worker/ledgertypes"
	"github.com/norsh-org/ledger-worker/lock"
	"github.com/norsh-org/ledger-worker/sequence"
	"github.com/norsh-org/ledger-worker/store"
)

type fakeElements struct {
	byID map[string]ledgertypes.Element
}

func (f *fakeElements) FindByID(ctx context.Context, id string) (ledgertypes.Element, bool, error) {
	e, ok := f.byID[id]
	return e, ok, nil
}

type testRig struct {
	svc      *Service
	db       store.Store
	balances *balance.Service
	pub      string
	priv     ed25519.PrivateKey
	element  ledgertypes.Element
}

func newTestRig(t *testing.T, elementDecimals int32, elementTaxPercent *string, captureTaxOnChain bool) *testRig {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pubB64 := base64.StdEncoding.EncodeToString(pub)

	element := ledgertypes.Element{
		ID:       "nsh",
		Owner:    "network-treasury",
		Symbol:   "NSH",
		Type:     ledgertypes.ElementTypeCoin,
		Decimals: elementDecimals,
		Status:   ledgertypes.ElementEnabled,
		Privacy:  false,
		Policy:   ledgertypes.ElementPolicy{TransactionTax: elementTaxPercent},
	}

	db := store.NewMemoryStoreForTest()
	elements := &fakeElements{byID: map[string]ledgertypes.Element{element.ID: element}}
	balances := balance.New(db, decimal.RequireFromString("10000"))
	seq := sequence.New(db)
	sem := lock.New(cache.NewMemoryCacheForTest(), time.Second, time.Millisecond, 10*time.Millisecond)
	blocks := block.New(db, seq, sem, time.Second, time.Millisecond, 10*time.Millisecond)

	svc := New(db, elements, balances, seq, blocks, sem, "0.3", captureTaxOnChain, time.Second)
	svc.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	return &testRig{svc: svc, db: db, balances: balances, pub: pubB64, priv: priv, element: element}
}

func (r *testRig) seedSenderBalance(t *testing.T, ctx context.Context, owner string, amount string) {
	t.Helper()
	b, err := r.balances.Get(ctx, owner, r.element.ID)
	require.NoError(t, err)
	require.NoError(t, r.balances.Set(ctx, b, decimal.RequireFromString(amount)))
}

func (r *testRig) signedTransfer(to, volume, nonce string) TransferRequest {
	hash := cryptoutil.KeccakHex(r.element.ID, to, volume, nonce)
	sig := cryptoutil.Sign(r.priv, []byte(hash))
	return TransferRequest{
		PublicKey: r.pub,
		Signature: sig,
		Element:   r.element.ID,
		To:        to,
		Volume:    volume,
		Nonce:     nonce,
		Hash:      hash,
	}
}

func (r *testRig) owner(t *testing.T) string {
	t.Helper()
	owner, err := cryptoutil.OwnerFromPublicKey(r.pub)
	require.NoError(t, err)
	return owner
}

func TestCreateTransferMovesBalancesAndComputesTax(t *testing.T) {
	r := newTestRig(t, 18, nil, false)
	ctx := context.Background()
	owner := r.owner(t)
	r.seedSenderBalance(t, ctx, owner, "10000")

	dto := r.signedTransfer("bob", "100", "n1")
	resp, err := r.svc.CreateTransfer(ctx, dto, nil)
	require.NoError(t, err)
	require.True(t, resp.IsOK(), "expected OK, got %+v", resp)

	tx := resp.Data.(ledgertypes.Transaction)
	assert.Equal(t, "0", decimal.RequireFromString(tx.ElementTax).String())
	assert.True(t, decimal.RequireFromString(tx.NetworkTax).Equal(decimal.RequireFromString("0.3")))
	assert.True(t, decimal.RequireFromString(tx.Total).Equal(decimal.RequireFromString("100.3")))
	assert.True(t, tx.Confirmed)

	senderBal, err := r.balances.Get(ctx, owner, r.element.ID)
	require.NoError(t, err)
	senderAmt, err := balance.Amount(senderBal)
	require.NoError(t, err)
	assert.True(t, senderAmt.Equal(decimal.RequireFromString("9900")))

	recvBal, err := r.balances.Get(ctx, "bob", r.element.ID)
	require.NoError(t, err)
	recvAmt, err := balance.Amount(recvBal)
	require.NoError(t, err)
	// bob had no balance, so it was seeded to 10000 before the +100 credit.
	assert.True(t, recvAmt.Equal(decimal.RequireFromString("10100")))
}

func TestCreateTransferDuplicateHashReturnsExists(t *testing.T) {
	r := newTestRig(t, 18, nil, false)
	ctx := context.Background()
	owner := r.owner(t)
	r.seedSenderBalance(t, ctx, owner, "10000")

	dto := r.signedTransfer("bob", "50", "n1")
	resp1, err := r.svc.CreateTransfer(ctx, dto, nil)
	require.NoError(t, err)
	require.True(t, resp1.IsOK())

	resp2, err := r.svc.CreateTransfer(ctx, dto, nil)
	require.NoError(t, err)
	assert.Equal(t, "EXISTS", string(resp2.Status))
}

func TestCreateTransferInsufficientBalance(t *testing.T) {
	r := newTestRig(t, 18, nil, false)
	ctx := context.Background()
	owner := r.owner(t)
	r.seedSenderBalance(t, ctx, owner, "10")

	dto := r.signedTransfer("bob", "50", "n1")
	resp, err := r.svc.CreateTransfer(ctx, dto, nil)
	require.NoError(t, err)
	assert.Equal(t, "INSUFFICIENT_BALANCE", string(resp.Status))
}

func TestCreateTransferUnknownElement(t *testing.T) {
	r := newTestRig(t, 18, nil, false)
	ctx := context.Background()
	owner := r.owner(t)
	r.seedSenderBalance(t, ctx, owner, "10000")

	dto := r.signedTransfer("bob", "50", "n1")
	dto.Element = "does-not-exist"
	dto.Hash = cryptoutil.KeccakHex("does-not-exist", "bob", "50", "n1")
	dto.Signature = cryptoutil.Sign(r.priv, []byte(dto.Hash))

	resp, err := r.svc.CreateTransfer(ctx, dto, nil)
	require.NoError(t, err)
	assert.Equal(t, "ERROR", string(resp.Status))
}

func TestCreateTransferCaptureTaxOnChainDeductsTotal(t *testing.T) {
	rate := "1"
	r := newTestRig(t, 4, &rate, true)
	ctx := context.Background()
	owner := r.owner(t)
	r.seedSenderBalance(t, ctx, owner, "10000")

	dto := r.signedTransfer("bob", "100", "n1")
	resp, err := r.svc.CreateTransfer(ctx, dto, nil)
	require.NoError(t, err)
	require.True(t, resp.IsOK())

	tx := resp.Data.(ledgertypes.Transaction)
	totalTax := decimal.RequireFromString(tx.TotalTax)
	assert.True(t, totalTax.IsPositive())

	senderBal, err := r.balances.Get(ctx, owner, r.element.ID)
	require.NoError(t, err)
	senderAmt, err := balance.Amount(senderBal)
	require.NoError(t, err)
	expected := decimal.RequireFromString("10000").Sub(decimal.RequireFromString("100")).Sub(totalTax)
	assert.True(t, senderAmt.Equal(expected), "sender balance %s expected %s", senderAmt, expected)
}

func TestCreateTransferZeroVolumeRejectedByValidate(t *testing.T) {
	r := newTestRig(t, 18, nil, false)
	ctx := context.Background()
	owner := r.owner(t)
	r.seedSenderBalance(t, ctx, owner, "10000")

	dto := r.signedTransfer("bob", "0", "n1")
	resp, err := r.svc.CreateTransfer(ctx, dto, nil)
	require.NoError(t, err)
	assert.Equal(t, "ERROR", string(resp.Status))
}
