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
	"time"

	"github.com/pkg/errors"

	"github.com/norsh-org/ledger-worker/config"
	"github.com/norsh-org/ledger-worker/cryptoutil"
	"github.com/norsh-org/ledger-worker/ledgertypes"
)

// genesisCoinSymbol and genesisProxySymbol are the two elements Bootstrap
// deterministically mints: the network's native coin, and a seed proxy
// asset so a freshly bootstrapped ledger has more than one kind of
// transferable element to exercise.
const (
	genesisCoinSymbol  = "NSH"
	genesisProxySymbol = "USDN-P"
)

// Bootstrap mints the genesis elements exactly once, on the first run of a
// fresh ledger.
type Bootstrap struct {
	elements *Service
	genesis  config.Genesis
	now      func() time.Time
}

// NewBootstrap wires a Bootstrap against an already-constructed ElementService.
func NewBootstrap(elements *Service, genesis config.Genesis) *Bootstrap {
	return &Bootstrap{elements: elements, genesis: genesis, now: time.Now}
}

// Run mints the genesis COIN and a seed PROXY element, but only the first
// time it is ever called for this ledger: the sentinel is whether the
// "elements" sequence document has ever been created, checked with
// sequence.Store.Exists rather than Get so the check itself has no
// create-on-read side effect. A second call against an already-bootstrapped
// ledger is a no-op, so wiring this into every worker's startup path is
// safe.
func (b *Bootstrap) Run(ctx context.Context) error {
	initialized, err := b.elements.sequences.Exists(ctx, SequenceKey)
	if err != nil {
		return err
	}
	if initialized {
		logger.Info("genesis elements already bootstrapped, skipping")
		return nil
	}

	priv, err := b.genesisPrivateKey()
	if err != nil {
		return errors.Wrap(err, "element: decoding genesis private key")
	}

	if err := b.mintGenesisElement(ctx, genesisCoinSymbol, ledgertypes.ElementTypeCoin, priv); err != nil {
		return errors.Wrap(err, "element: minting genesis coin")
	}
	if err := b.mintGenesisElement(ctx, genesisProxySymbol, ledgertypes.ElementTypeProxy, priv); err != nil {
		return errors.Wrap(err, "element: minting genesis proxy")
	}

	logger.Info("genesis elements bootstrapped", "coin", genesisCoinSymbol, "proxy", genesisProxySymbol)
	return nil
}

func (b *Bootstrap) genesisPrivateKey() (ed25519.PrivateKey, error) {
	raw, err := cryptoutil.DecodeBase64(b.genesis.PrivateKey)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, errors.New("element: genesis private key has the wrong size")
	}
	return ed25519.PrivateKey(raw), nil
}

// mintGenesisElement signs and self-verifies a genesis element, then chains
// it through the same "elements" sequence an ordinary CreateElement call
// uses, but ENABLED rather than PENDING: genesis elements are usable from
// the moment they exist, with no approval step to wait on.
func (b *Bootstrap) mintGenesisElement(ctx context.Context, symbol string, typ ledgertypes.ElementType, priv ed25519.PrivateKey) error {
	hash := cryptoutil.KeccakHex(symbol, b.genesis.NshTFO, b.genesis.PublicKey)
	sig := cryptoutil.Sign(priv, []byte(hash))

	ok, err := cryptoutil.Verify(b.genesis.PublicKey, sig, []byte(hash))
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("element: genesis signature failed self-verification for " + symbol)
	}

	owner, err := cryptoutil.OwnerFromPublicKey(b.genesis.PublicKey)
	if err != nil {
		return err
	}

	el := ledgertypes.Element{
		Owner:         owner,
		Symbol:        symbol,
		Type:          typ,
		Decimals:      18,
		InitialSupply: "0",
		TFO:           b.genesis.NshTFO,
		Hash:          hash,
		PublicKey:     b.genesis.PublicKey,
		Signature:     sig,
		Timestamp:     b.now().UnixNano() / int64(time.Millisecond),
		Privacy:       false,
		Status:        ledgertypes.ElementEnabled,
		Version:       1,
	}

	return b.elements.chainAndInsert(ctx, &el)
}
