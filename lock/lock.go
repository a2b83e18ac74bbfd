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

// Package lock implements the distributed semaphore: named mutual
// exclusion backed by the cache's atomic set-if-absent with TTL, plus an
// in-process mutex per name to cut down on cache round-trips within a
// single worker. The in-process registry is a bounded LRU (adapted from
// common/cache.go's lruCache wrapper over hashicorp/golang-lru) — losing an
// entry early only costs a redundant cache round-trip, never correctness,
// since the cache SETNX remains the true fleet-wide arbiter.
package lock

import (
	"context"
	"sync"
	"time"

	uuid "github.com/hashicorp/go-uuid"
	lru "github.com/hashicorp/golang-lru"

	"github.com/norsh-org/ledger-worker/cache"
	"github.com/norsh-org/ledger-worker/log"
)

var logger = log.NewModuleLogger(log.Lock)

// ErrNotAcquired is returned when a lock could not be acquired before the
// caller's timeout elapsed.
type ErrNotAcquired struct{ Name string }

func (e *ErrNotAcquired) Error() string { return "lock: could not acquire \"" + e.Name + "\"" }

// defaultMutexRegistrySize bounds the in-process mutex LRU. Sized well past
// any realistic number of concurrently hot lock names (elements, balances,
// "elements", "blockchain").
const defaultMutexRegistrySize = 4096

// Semaphore is the distributed lock. Safe for concurrent use by many
// goroutines, which is the point: callers serialize against each other by
// name, not by holding onto a Semaphore per name.
type Semaphore struct {
	cache           cache.Cache
	mutexes         *lru.Cache
	lockTTL         time.Duration
	initialBackoff  time.Duration
	maxBackoff      time.Duration
}

// New builds a Semaphore over cache c with the given TTL and backoff
// envelope (see config.Defaults).
func New(c cache.Cache, lockTTL, initialBackoff, maxBackoff time.Duration) *Semaphore {
	registry, err := lru.New(defaultMutexRegistrySize)
	if err != nil {
		// lru.New only fails for a non-positive size, which is a
		// programming error, not a runtime condition.
		panic(err)
	}
	return &Semaphore{
		cache:          c,
		mutexes:        registry,
		lockTTL:        lockTTL,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

// Fn is the unit of work run while a lock is held. It may return an error,
// which Execute propagates unchanged after the lock is released.
type Fn func(ctx context.Context) (interface{}, error)

// Execute runs fn with name held for up to timeout while waiting to
// acquire, propagating fn's return value and error. Nested acquisition of
// distinct names within the same call stack is fine; re-entrant
// acquisition of the same name from the same goroutine will deadlock on
// the in-process mutex, by design — re-entrancy on a single name is not a
// supported pattern (see §4.1).
func (s *Semaphore) Execute(ctx context.Context, name string, timeout time.Duration, fn Fn) (result interface{}, err error) {
	mu := s.localMutex(name)
	mu.Lock()
	defer mu.Unlock()

	acquireCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	lockID, err := s.acquire(acquireCtx, name)
	if err != nil {
		return nil, err
	}
	defer s.release(context.Background(), name, lockID)

	return fn(ctx)
}

func (s *Semaphore) localMutex(name string) *sync.Mutex {
	if v, ok := s.mutexes.Get(name); ok {
		return v.(*sync.Mutex)
	}
	mu := &sync.Mutex{}
	s.mutexes.Add(name, mu)
	return mu
}

func (s *Semaphore) acquire(ctx context.Context, name string) (string, error) {
	attempt := 0
	for {
		lockID, err := newLockID()
		if err != nil {
			return "", err
		}
		ok, err := s.cache.SetNX(ctx, name, lockID, s.lockTTL)
		if err != nil {
			return "", err
		}
		if ok {
			return lockID, nil
		}

		attempt++
		backoff := s.initialBackoff * time.Duration(attempt)
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}

		select {
		case <-ctx.Done():
			return "", &ErrNotAcquired{Name: name}
		case <-time.After(backoff):
		}
	}
}

func (s *Semaphore) release(ctx context.Context, name, lockID string) {
	current, ok, err := s.cache.Get(ctx, name)
	if err != nil {
		logger.Error("failed to read lock for release", "name", name, "err", err)
		return
	}
	if !ok || current != lockID {
		logger.Warn("lock no longer owned at release time", "name", name)
		return
	}
	if err := s.cache.Delete(ctx, name); err != nil {
		logger.Error("failed to delete lock", "name", name, "err", err)
	}
}

func newLockID() (string, error) {
	return uuid.GenerateUUID()
}
