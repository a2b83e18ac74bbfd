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

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/norsh-org/ledger-worker/config"
	"github.com/norsh-org/ledger-worker/log"
)

var logger = log.NewModuleLogger(log.Store)

// MongoStore is the production Store, one collection per bucket name.
type MongoStore struct {
	db *mongo.Database
}

// Connect dials the configured MongoDB instance.
func Connect(ctx context.Context, cfg config.Mongo) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "mongo ping")
	}
	return &MongoStore{db: client.Database(cfg.Database)}, nil
}

func (s *MongoStore) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func toBsonM(m M) bson.M {
	out := bson.M{}
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *MongoStore) FindByID(ctx context.Context, collection, id string, out interface{}) (bool, error) {
	err := s.coll(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "mongo findById")
	}
	return true, nil
}

func (s *MongoStore) FindOne(ctx context.Context, collection string, filter, sort M, out interface{}) (bool, error) {
	opts := options.FindOne()
	if len(sort) > 0 {
		opts.SetSort(toBsonM(sort))
	}
	err := s.coll(collection).FindOne(ctx, toBsonM(filter), opts).Decode(out)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "mongo findOne")
	}
	return true, nil
}

func (s *MongoStore) Find(ctx context.Context, collection string, filter, sort M, limit int64, outSlicePtr interface{}) error {
	opts := options.Find()
	if len(sort) > 0 {
		opts.SetSort(toBsonM(sort))
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.coll(collection).Find(ctx, toBsonM(filter), opts)
	if err != nil {
		return errors.Wrap(err, "mongo find")
	}
	defer cur.Close(ctx)
	return cur.All(ctx, outSlicePtr)
}

func (s *MongoStore) InsertOne(ctx context.Context, collection string, doc interface{}) error {
	_, err := s.coll(collection).InsertOne(ctx, doc)
	if err != nil {
		return errors.Wrap(err, "mongo insertOne")
	}
	return nil
}

func (s *MongoStore) ReplaceByID(ctx context.Context, collection, id string, doc interface{}) error {
	_, err := s.coll(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(err, "mongo replaceById")
	}
	return nil
}

func (s *MongoStore) FindOneAndUpdate(ctx context.Context, collection, id string, update M, upsertSeed interface{}, out interface{}) error {
	after := options.After
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(after)
	if upsertSeed != nil {
		// $setOnInsert seeds the document the first time it is created;
		// subsequent calls only ever apply update.
		seedBytes, err := bson.Marshal(upsertSeed)
		if err != nil {
			return errors.Wrap(err, "mongo marshal upsert seed")
		}
		var seed bson.M
		if err := bson.Unmarshal(seedBytes, &seed); err != nil {
			return errors.Wrap(err, "mongo unmarshal upsert seed")
		}
		delete(seed, "_id")
		// A field may appear in only one update operator, so seed fields
		// that update already touches (e.g. $inc sequence) are left to it.
		for _, op := range update {
			if fields, ok := op.(M); ok {
				for k := range fields {
					delete(seed, k)
				}
			}
		}
		merged := toBsonM(update)
		merged["$setOnInsert"] = seed
		err = s.coll(collection).FindOneAndUpdate(ctx, bson.M{"_id": id}, merged, opts).Decode(out)
		if err != nil {
			return errors.Wrap(err, "mongo findOneAndUpdate")
		}
		return nil
	}
	err := s.coll(collection).FindOneAndUpdate(ctx, bson.M{"_id": id}, toBsonM(update), opts).Decode(out)
	if err != nil {
		return errors.Wrap(err, "mongo findOneAndUpdate")
	}
	return nil
}

func (s *MongoStore) UpdateOne(ctx context.Context, collection string, filter, update M) (int64, error) {
	res, err := s.coll(collection).UpdateOne(ctx, toBsonM(filter), toBsonM(update))
	if err != nil {
		return 0, errors.Wrap(err, "mongo updateOne")
	}
	return res.MatchedCount, nil
}
