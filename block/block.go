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

// Package block is the BlockService: it maintains the block timeline,
// appends confirmed transactions to the open block (creating one when
// none exists), closes the previous block on rollover, and computes the
// merkle root, difficulty, total fee and hash chain at close time.
package block

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/norsh-org/ledger-worker/cryptoutil"
	"github.com/norsh-org/ledger-worker/ledgertypes"
	"github.com/norsh-org/ledger-worker/lock"
	"github.com/norsh-org/ledger-worker/log"
	"github.com/norsh-org/ledger-worker/sequence"
	"github.com/norsh-org/ledger-worker/store"
)

const (
	// Collection is the blocks collection name, exported so miner (which
	// needs a raw conditional update outside BlockService's own methods)
	// doesn't have to duplicate the literal.
	Collection = "blocks"
	collection = Collection
	// BlockchainLockName is the canonical lock name for the block-timeline
	// critical section (open/close/mining-verify), per §5.
	BlockchainLockName = "blockchain"
	// blockIDSequenceKey is the dynamic-sequence key chaining block ids.
	blockIDSequenceKey = "blockchain-block-id"
	// WindowMs is the 6-minute block window, a constant per §4.5/glossary.
	WindowMs int64 = 6 * 60 * 1000
)

var logger = log.NewModuleLogger(log.Block)

// Service is the BlockService.
type Service struct {
	db             store.Store
	seq            *sequence.Store
	sem            *lock.Semaphore
	lockTimeout    time.Duration
	retryInitial   time.Duration
	retryMax       time.Duration
}

// New builds a BlockService.
func New(db store.Store, seq *sequence.Store, sem *lock.Semaphore, lockTimeout, retryInitial, retryMax time.Duration) *Service {
	return &Service{db: db, seq: seq, sem: sem, lockTimeout: lockTimeout, retryInitial: retryInitial, retryMax: retryMax}
}

// NumberAt returns the block number (window index) for a wall-clock instant.
func NumberAt(now time.Time) int64 {
	return now.UnixNano() / int64(time.Millisecond) / WindowMs
}

// AddTransactionToBlock appends ref into the open block for the current
// block number, creating and/or closing blocks as needed, and returns the
// block number it landed in. The whole algorithm runs under the
// blockchain lock.
func (s *Service) AddTransactionToBlock(ctx context.Context, ref ledgertypes.BlockTransactionRef, now time.Time) (int64, error) {
	result, err := s.sem.Execute(ctx, BlockchainLockName, s.lockTimeout, func(ctx context.Context) (interface{}, error) {
		return s.appendWithRetry(ctx, ref, now)
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

func (s *Service) appendWithRetry(ctx context.Context, ref ledgertypes.BlockTransactionRef, now time.Time) (int64, error) {
	n := NumberAt(now)
	deadline := time.Now().Add(s.lockTimeout)
	attempt := 0
	for {
		matched, err := s.db.UpdateOne(ctx, collection,
			store.M{"number": n, "closed": false},
			store.M{"$push": store.M{"transactions": ref}},
		)
		if err != nil {
			return 0, errors.Wrap(err, "block: append transaction")
		}
		if matched == 1 {
			return n, nil
		}

		if err := s.openBlock(ctx, n, now); err != nil {
			return 0, errors.Wrap(err, "block: open block")
		}

		attempt++
		backoff := s.retryInitial * time.Duration(attempt)
		if backoff > s.retryMax {
			backoff = s.retryMax
		}
		if time.Now().Add(backoff).After(deadline) {
			return 0, errors.New("block: append retry exhausted before semaphore timeout")
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// openBlock creates the block for number n if absent, closing its
// predecessor as a required side effect.
func (s *Service) openBlock(ctx context.Context, n int64, now time.Time) error {
	var existing ledgertypes.Block
	ok, err := s.db.FindOne(ctx, collection, store.M{"number": n}, nil, &existing)
	if err != nil {
		return err
	}
	if ok {
		// Another opener (e.g. a retry after a transient store hiccup)
		// already created it; nothing to do.
		return nil
	}

	seq, err := s.seq.Get(ctx, blockIDSequenceKey)
	if err != nil {
		return err
	}
	previousID := seq.Data
	id := cryptoutil.KeccakHex(previousID, strconv.FormatInt(n, 10))

	newData := id
	if _, err := s.seq.Inc(ctx, blockIDSequenceKey, &newData); err != nil {
		return err
	}

	nowMs := now.UnixNano() / int64(time.Millisecond)
	newBlock := ledgertypes.Block{
		ID:           id,
		PreviousID:   previousID,
		Number:       n,
		Height:       seq.Sequence,
		Closed:       false,
		Mined:        false,
		Timestamp:    nowMs,
		Transactions: []ledgertypes.BlockTransactionRef{},
	}

	if previousID != "" {
		if err := s.closeBlock(ctx, previousID, now); err != nil {
			return err
		}
	}

	return s.db.InsertOne(ctx, collection, newBlock)
}

// closeBlock finalizes the previous block: merkle root, difficulty, total
// fee, and hash-chains it to the last mined block at height-1 when one
// exists.
func (s *Service) closeBlock(ctx context.Context, id string, now time.Time) error {
	var b ledgertypes.Block
	ok, err := s.db.FindByID(ctx, collection, id, &b)
	if err != nil {
		return err
	}
	if !ok || b.Closed {
		return nil
	}

	nowMs := now.UnixNano() / int64(time.Millisecond)
	set := store.M{}

	if b.Height == 0 {
		set["miningReleaseTimestamp"] = nowMs
	} else {
		var lastMined ledgertypes.Block
		found, err := s.db.FindOne(ctx, collection, store.M{"height": b.Height - 1, "mined": true}, nil, &lastMined)
		if err != nil {
			return err
		}
		if found && lastMined.BlockHash != "" {
			set["previousBlockHash"] = lastMined.BlockHash
			set["miningReleaseTimestamp"] = nowMs
		}
	}

	ids := make([]string, 0, len(b.Transactions))
	totalFee := decimal.Zero
	for _, ref := range b.Transactions {
		ids = append(ids, ref.ID)
		tax, err := decimal.NewFromString(ref.Tax)
		if err != nil {
			return errors.Wrap(err, "block: parse tax")
		}
		totalFee = totalFee.Add(tax)
	}

	set["merkleRoot"] = MerkleRoot(ids)
	set["difficulty"] = Difficulty(totalFee)
	set["totalFee"] = totalFee.String()
	set["closeTimestamp"] = nowMs
	set["closed"] = true

	_, err = s.db.UpdateOne(ctx, collection, store.M{"_id": id}, store.M{"$set": set})
	return err
}

// FindByID loads a block by id.
func (s *Service) FindByID(ctx context.Context, id string) (ledgertypes.Block, bool, error) {
	var b ledgertypes.Block
	ok, err := s.db.FindByID(ctx, collection, id, &b)
	return b, ok, err
}

// FindBlockByTransactionID returns the block containing transaction txID.
func (s *Service) FindBlockByTransactionID(ctx context.Context, txID string) (ledgertypes.Block, bool, error) {
	var b ledgertypes.Block
	ok, err := s.db.FindOne(ctx, collection, store.M{"transactions.id": txID}, nil, &b)
	return b, ok, err
}

// ReleaseNextBlockForMining promotes the block at height+1 to mineable
// (sets previousBlockHash) when it is closed and not already released.
func (s *Service) ReleaseNextBlockForMining(ctx context.Context, height int64, previousBlockHash string, now time.Time) error {
	var next ledgertypes.Block
	found, err := s.db.FindOne(ctx, collection, store.M{"height": height + 1}, nil, &next)
	if err != nil {
		return err
	}
	if !found || !next.Closed || next.PreviousBlockHash != "" {
		return nil
	}
	nowMs := now.UnixNano() / int64(time.Millisecond)
	_, err = s.db.UpdateOne(ctx, collection, store.M{"_id": next.ID}, store.M{"$set": store.M{
		"previousBlockHash":      previousBlockHash,
		"miningReleaseTimestamp": nowMs,
	}})
	return err
}
