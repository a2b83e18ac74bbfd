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

// Package sequence implements the dynamic sequence: a per-key monotonic
// counter plus an auxiliary string payload, used to produce the chained
// previousId of the next record in a stream (elements, block ids,
// per-element transaction chains).
package sequence

import (
	"context"

	"github.com/norsh-org/ledger-worker/ledgertypes"
	"github.com/norsh-org/ledger-worker/log"
	"github.com/norsh-org/ledger-worker/store"
)

const collection = "sequences"

var logger = log.NewModuleLogger(log.Sequence)

// Store is the dynamic sequence service.
type Store struct {
	db store.Store
}

// New wraps the document store as a sequence service.
func New(db store.Store) *Store {
	return &Store{db: db}
}

// Sequence is the dynamic-sequence document shape.
type Sequence = ledgertypes.DynamicSequence

// Exists reports whether id has ever been created, without the
// create-on-read side effect Get has. Used by Bootstrap's "has this ever
// run" sentinel check.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var doc Sequence
	return s.db.FindByID(ctx, collection, id, &doc)
}

// Get returns the record for id, creating {sequence:0, data:""} when
// absent. This is the only operation guaranteed to observe a consistent
// (sequence, data) pair without an enclosing lock.
func (s *Store) Get(ctx context.Context, id string) (Sequence, error) {
	var doc Sequence
	err := s.db.FindOneAndUpdate(ctx, collection, id, store.M{}, &Sequence{ID: id, Sequence: 0}, &doc)
	return doc, err
}

// Set assigns the provided fields. A nil seq leaves the counter untouched;
// an empty-string data unsets the data field rather than storing "".
func (s *Store) Set(ctx context.Context, id string, seq *int64, data *string) (Sequence, error) {
	update := store.M{}
	set := store.M{}
	unset := store.M{}
	if seq != nil {
		set["sequence"] = *seq
	}
	if data != nil {
		if *data == "" {
			unset["data"] = ""
		} else {
			set["data"] = *data
		}
	}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	var doc Sequence
	err := s.db.FindOneAndUpdate(ctx, collection, id, update, &Sequence{ID: id, Sequence: 0}, &doc)
	return doc, err
}

// Inc atomically increments sequence by one, optionally setting or
// unsetting data in the same update.
func (s *Store) Inc(ctx context.Context, id string, data *string) (Sequence, error) {
	update := store.M{"$inc": store.M{"sequence": int64(1)}}
	if data != nil {
		if *data == "" {
			update["$unset"] = store.M{"data": ""}
		} else {
			update["$set"] = store.M{"data": *data}
		}
	}
	var doc Sequence
	err := s.db.FindOneAndUpdate(ctx, collection, id, update, &Sequence{ID: id, Sequence: 0}, &doc)
	return doc, err
}
