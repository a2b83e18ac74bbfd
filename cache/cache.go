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

// Package cache is the TTL-backed KV collaborator used for lock tokens and
// response envelopes. The interface is intentionally narrow: everything the
// core needs from a cache is set-if-absent, get, set, and delete.
package cache

import (
	"context"
	"time"
)

// Cache is the collaborator the lock and dispatch packages depend on.
type Cache interface {
	// SetNX sets key to value with the given TTL only if key is currently
	// absent. Returns true if the set happened.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Get returns the current value of key, or ok=false if absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set unconditionally sets key to value with the given TTL (0 = no
	// expiry).
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes key unconditionally.
	Delete(ctx context.Context, key string) error
}
