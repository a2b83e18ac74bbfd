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

package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store for tests, emulating the slice of
// Mongo semantics the core relies on: equality filters (including "array.field"
// containment), $set/$inc/$unset/$push updates, and FindOneAndUpdate upserts.
// Mirrors the teacher's NewLevelDBManagerForTest in-memory-fake convention.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]interface{}
	order       map[string][]string
}

// NewMemoryStoreForTest returns an empty in-process Store.
func NewMemoryStoreForTest() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]interface{}),
		order:       make(map[string][]string),
	}
}

// toDoc marshals v (whose json tag for the primary key is "id", mirroring
// the real bson tag "_id" only by convention) into a plain map, then
// aliases "_id" to the same value so filters written in the store's
// bson-flavored vocabulary ("_id", matching MongoStore) match documents
// held by this JSON-based fake the same way they would against Mongo.
func toDoc(v interface{}) map[string]interface{} {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	if id, ok := m["id"]; ok {
		m["_id"] = id
	}
	return m
}

func fromDoc(m map[string]interface{}, out interface{}) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func cloneDoc(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func normalize(v interface{}) interface{} {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

func valuesEqual(a, b interface{}) bool {
	na, nb := normalize(a), normalize(b)
	ab, _ := json.Marshal(na)
	bb, _ := json.Marshal(nb)
	return string(ab) == string(bb)
}

func matches(doc map[string]interface{}, filter M) bool {
	for k, v := range filter {
		if idx := strings.Index(k, "."); idx >= 0 {
			arrField, subField := k[:idx], k[idx+1:]
			arr, ok := doc[arrField].([]interface{})
			if !ok {
				return false
			}
			found := false
			for _, elem := range arr {
				em, ok := elem.(map[string]interface{})
				if ok && valuesEqual(em[subField], v) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}
		if !valuesEqual(doc[k], v) {
			return false
		}
	}
	return true
}

func (s *MemoryStore) bucket(collection string) map[string]map[string]interface{} {
	b, ok := s.collections[collection]
	if !ok {
		b = make(map[string]map[string]interface{})
		s.collections[collection] = b
	}
	return b
}

func applyUpdate(doc map[string]interface{}, update M) map[string]interface{} {
	out := cloneDoc(doc)
	if set, ok := update["$set"].(M); ok {
		for k, v := range set {
			out[k] = normalize(v)
		}
	}
	if inc, ok := update["$inc"].(M); ok {
		for k, v := range inc {
			cur := toFloat(out[k])
			out[k] = cur + toFloat(v)
		}
	}
	if unset, ok := update["$unset"].(M); ok {
		for k := range unset {
			delete(out, k)
		}
	}
	if push, ok := update["$push"].(M); ok {
		for k, v := range push {
			arr, _ := out[k].([]interface{})
			arr = append(arr, normalize(v))
			out[k] = arr
		}
	}
	return out
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func (s *MemoryStore) FindByID(ctx context.Context, collection, id string, out interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.bucket(collection)[id]
	if !ok {
		return false, nil
	}
	return true, fromDoc(doc, out)
}

func (s *MemoryStore) FindOne(ctx context.Context, collection string, filter, sortBy M, out interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := s.matchAll(collection, filter)
	if len(matched) == 0 {
		return false, nil
	}
	sortDocs(matched, sortBy)
	return true, fromDoc(matched[0], out)
}

func (s *MemoryStore) Find(ctx context.Context, collection string, filter, sortBy M, limit int64, outSlicePtr interface{}) error {
	s.mu.Lock()
	matched := s.matchAll(collection, filter)
	sortDocs(matched, sortBy)
	if limit > 0 && int64(len(matched)) > limit {
		matched = matched[:limit]
	}
	s.mu.Unlock()

	b, err := json.Marshal(matched)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, outSlicePtr)
}

func (s *MemoryStore) matchAll(collection string, filter M) []map[string]interface{} {
	bucket := s.bucket(collection)
	ids := s.order[collection]
	var out []map[string]interface{}
	for _, id := range ids {
		doc, ok := bucket[id]
		if !ok {
			continue
		}
		if matches(doc, filter) {
			out = append(out, doc)
		}
	}
	return out
}

func sortDocs(docs []map[string]interface{}, sortBy M) {
	if len(sortBy) == 0 {
		return
	}
	type kv struct {
		key string
		dir int
	}
	var keys []kv
	for k, v := range sortBy {
		dir := 1
		if toFloat(v) < 0 {
			dir = -1
		}
		keys = append(keys, kv{k, dir})
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			vi, vj := toFloat(docs[i][k.key]), toFloat(docs[j][k.key])
			if vi == vj {
				continue
			}
			if k.dir > 0 {
				return vi < vj
			}
			return vi > vj
		}
		return false
	})
}

func (s *MemoryStore) InsertOne(ctx context.Context, collection string, doc interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := toDoc(doc)
	id, _ := m["id"].(string)
	if id == "" {
		id, _ = m["_id"].(string)
	}
	s.bucket(collection)[id] = m
	s.order[collection] = append(s.order[collection], id)
	return nil
}

func (s *MemoryStore) ReplaceByID(ctx context.Context, collection, id string, doc interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.bucket(collection)
	if _, existed := bucket[id]; !existed {
		s.order[collection] = append(s.order[collection], id)
	}
	bucket[id] = toDoc(doc)
	return nil
}

func (s *MemoryStore) FindOneAndUpdate(ctx context.Context, collection, id string, update M, upsertSeed interface{}, out interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.bucket(collection)
	doc, existed := bucket[id]
	if !existed {
		doc = toDoc(upsertSeed)
		doc["id"] = id
		doc["_id"] = id
	}
	next := applyUpdate(doc, update)
	bucket[id] = next
	if !existed {
		s.order[collection] = append(s.order[collection], id)
	}
	return fromDoc(next, out)
}

func (s *MemoryStore) UpdateOne(ctx context.Context, collection string, filter, update M) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.bucket(collection)
	ids := s.order[collection]
	for _, id := range ids {
		doc, ok := bucket[id]
		if !ok || !matches(doc, filter) {
			continue
		}
		bucket[id] = applyUpdate(doc, update)
		return 1, nil
	}
	return 0, nil
}
