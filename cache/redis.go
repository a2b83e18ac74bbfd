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
	"time"

	redis "github.com/go-redis/redis/v7"

	"github.com/norsh-org/ledger-worker/config"
	"github.com/norsh-org/ledger-worker/log"
)

var logger = log.NewModuleLogger(log.Cache)

// RedisCache is the production Cache backed by go-redis/v7.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache dials the configured Redis instance.
func NewRedisCache(cfg config.Redis) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisCache{client: client}
}

func (c *RedisCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := c.client.WithContext(ctx).SetNX(key, value, ttl).Result()
	if err != nil {
		logger.Error("redis SETNX failed", "key", key, "err", err)
		return false, err
	}
	return ok, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.WithContext(ctx).Get(key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.WithContext(ctx).Set(key, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.WithContext(ctx).Del(key).Err()
}
