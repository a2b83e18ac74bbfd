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

// Package miner is the MinerService: an optional proof-of-work pass over a
// closed block (a vector of 64-bit nonces searched by a worker pool until
// one yields a hash with the required leading-zero prefix), and a verifier
// that applies a caller-supplied solution under the blockchain lock.
package miner

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/norsh-org/ledger-worker/block"
	"github.com/norsh-org/ledger-worker/ledgertypes"
	"github.com/norsh-org/ledger-worker/lock"
	"github.com/norsh-org/ledger-worker/log"
	"github.com/norsh-org/ledger-worker/store"
)

var logger = log.NewModuleLogger(log.Miner)

// RewardFn is invoked once a block's mining is verified and recorded; it
// is the caller's hook for crediting the miner (e.g. a ledger.Service
// REWARD transaction). Left to the caller so this package stays free of a
// direct ledger dependency.
type RewardFn func(ctx context.Context, blockID, miner string) error

// Service is the MinerService.
type Service struct {
	db          store.Store
	sem         *lock.Semaphore
	lockTimeout time.Duration
	reward      RewardFn
}

// New builds a MinerService. reward may be nil, in which case a successful
// verify simply records the mined block without crediting anyone.
func New(db store.Store, sem *lock.Semaphore, lockTimeout time.Duration, reward RewardFn) *Service {
	return &Service{db: db, sem: sem, lockTimeout: lockTimeout, reward: reward}
}

// Mine searches for a nonce vector whose sha256 digest (over the block's
// fixed base) carries block.Difficulty leading zero hex digits, using
// threadCount worker goroutines. maxNonceDepth bounds the vector length
// the search is allowed to grow to before giving up.
func (s *Service) Mine(ctx context.Context, b ledgertypes.Block, threadCount, maxNonceDepth int) ([]uint64, string, error) {
	if threadCount <= 0 {
		threadCount = 1
	}
	if maxNonceDepth <= 0 {
		maxNonceDepth = 1
	}

	base := miningBase(b)
	prefix := difficultyPrefix(b.Difficulty)

	var mined int32
	work := make(chan []uint64, threadCount*4)
	results := make(chan struct {
		nonces []uint64
		hash   string
	}, threadCount)

	var wg sync.WaitGroup
	for i := 0; i < threadCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for v := range work {
				if atomic.LoadInt32(&mined) == 1 {
					continue
				}
				hash := sha256Hex(base + vectorString(v))
				if strings.HasPrefix(hash, prefix) && atomic.CompareAndSwapInt32(&mined, 0, 1) {
					results <- struct {
						nonces []uint64
						hash   string
					}{nonces: v, hash: hash}
				}
			}
		}()
	}

	go func() {
		defer close(work)
		vector := []uint64{0}
		for atomic.LoadInt32(&mined) == 0 {
			vector = incrementVector(vector)
			if len(vector) > maxNonceDepth {
				return
			}
			select {
			case work <- append([]uint64(nil), vector...):
			case <-ctx.Done():
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case res := <-results:
		atomic.StoreInt32(&mined, 1)
		<-done
		return res.nonces, res.hash, nil
	case <-done:
		return nil, "", errors.New("miner: exhausted nonce depth without finding a match")
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
}

// VerifyBlockAndRewardMiner recomputes the candidate hash for blockID with
// the given nonces and, if it matches providedHash and the block's
// difficulty prefix, atomically marks the block mined (only if it was not
// already) and runs the reward hook. Returns false without error if the
// hash doesn't match or the block was already mined.
func (s *Service) VerifyBlockAndRewardMiner(ctx context.Context, blockID string, nonces []uint64, providedHash, miner string) (bool, error) {
	result, err := s.sem.Execute(ctx, block.BlockchainLockName, s.lockTimeout, func(ctx context.Context) (interface{}, error) {
		var b ledgertypes.Block
		ok, err := s.db.FindByID(ctx, block.Collection, blockID, &b)
		if err != nil {
			return false, err
		}
		if !ok || b.Mined {
			return false, nil
		}

		hash := sha256Hex(miningBase(b) + vectorString(nonces))
		if hash != providedHash || !strings.HasPrefix(hash, difficultyPrefix(b.Difficulty)) {
			return false, nil
		}

		nowMs := time.Now().UnixNano() / int64(time.Millisecond)
		matched, err := s.db.UpdateOne(ctx, block.Collection,
			store.M{"_id": blockID, "mined": false},
			store.M{"$set": store.M{
				"miner":              miner,
				"mined":              true,
				"miningEndTimestamp": nowMs,
				"nonces":             nonces,
				"blockHash":          hash,
			}},
		)
		if err != nil {
			return false, err
		}
		if matched != 1 {
			return false, nil
		}

		if s.reward != nil {
			if err := s.reward(ctx, blockID, miner); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}
