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

package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value   string
	expires time.Time // zero = no expiry
}

// MemoryCache is an in-process Cache for tests, mirroring the teacher's
// NewLevelDBManagerForTest in-memory-fake convention.
type MemoryCache struct {
	mu   sync.Mutex
	data map[string]memoryEntry
}

// NewMemoryCacheForTest returns an empty in-process Cache.
func NewMemoryCacheForTest() *MemoryCache {
	return &MemoryCache{data: make(map[string]memoryEntry)}
}

func (m *MemoryCache) expired(e memoryEntry, now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

func (m *MemoryCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if e, ok := m.data[key]; ok && !m.expired(e, now) {
		return false, nil
	}
	m.data[key] = m.newEntry(value, ttl, now)
	return true, nil
}

func (m *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok || m.expired(e, time.Now()) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = m.newEntry(value, ttl, time.Now())
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryCache) newEntry(value string, ttl time.Duration, now time.Time) memoryEntry {
	if ttl <= 0 {
		return memoryEntry{value: value}
	}
	return memoryEntry{value: value, expires: now.Add(ttl)}
}
