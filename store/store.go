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

// Package store is the document store collaborator: a KV+collection API
// with atomic single-document updates and conditional update-or-count,
// backed in production by MongoDB. The ledger core only ever talks to the
// Store interface, never to mongo-driver types directly.
package store

import (
	"context"
	"errors"
)

// ErrNotFound describes a missing document. FindByID does not return it:
// absence is reported as ok=false with a nil error.
var ErrNotFound = errors.New("store: document not found")

// M is a generic document/filter/update map, mirroring bson.M without
// forcing every caller to import the mongo driver.
type M map[string]interface{}

// Store is the collection-oriented document store the core depends on.
// "id" is always the document's string primary key; "collection" is the
// bucket name (elements, balances, sequences, blocks, ledger_<shard>, ...).
type Store interface {
	// FindByID loads the document with the given id into out. Returns
	// ok=false, err=nil when absent.
	FindByID(ctx context.Context, collection, id string, out interface{}) (ok bool, err error)

	// FindOne loads the first document matching filter into out. Returns
	// ok=false, err=nil when none match.
	FindOne(ctx context.Context, collection string, filter M, sort M, out interface{}) (ok bool, err error)

	// Find loads every document matching filter, ordered by sort, into
	// outSlicePtr (a pointer to a slice).
	Find(ctx context.Context, collection string, filter M, sort M, limit int64, outSlicePtr interface{}) error

	// InsertOne inserts doc, which must already carry its id.
	InsertOne(ctx context.Context, collection string, doc interface{}) error

	// ReplaceByID upserts doc under id: replaces the existing document or
	// inserts it if absent.
	ReplaceByID(ctx context.Context, collection, id string, doc interface{}) error

	// FindOneAndUpdate atomically applies update (using $set/$inc/$unset
	// operators, see M) to the document with the given id, creating it
	// first from upsertSeed if absent, and decodes the post-update
	// document into out. This is how SequenceStore.get/set/inc stay
	// atomic.
	FindOneAndUpdate(ctx context.Context, collection, id string, update M, upsertSeed interface{}, out interface{}) error

	// UpdateOne applies update to at most one document matching filter and
	// reports how many documents matched (0 or 1). Used for the block-append
	// conditional update ("push into the open block where number==n and
	// closed==false, iff exactly one document matched") and for
	// mining-verify's "only if currently mined=false" guard.
	UpdateOne(ctx context.Context, collection string, filter M, update M) (matchedCount int64, err error)
}
