// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore 基于 Redis 的幂等结果存储：SET NX PX 保证先写者胜，物理 TTL 与逻辑过期一致
type RedisStore struct {
	client redis.UniversalClient
	owned  bool
	now    func() time.Time
}

// NewRedisStore 使用共享的 Redis 客户端；Close 不会关闭该客户端
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// NewRedisStoreFromOptions 自建客户端并在 Close 时关闭
func NewRedisStoreFromOptions(opts *redis.Options) *RedisStore {
	return &RedisStore{client: redis.NewClient(opts), owned: true, now: time.Now}
}

// Get 获取结果
func (s *RedisStore) Get(ctx context.Context, key string) (*Result, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}
	if !r.Fresh(s.now()) {
		return nil, false, nil
	}
	return &r, true, nil
}

// PutIfAbsent SET key value NX PX ttl
func (s *RedisStore) PutIfAbsent(ctx context.Context, key string, r Result, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return false, fmt.Errorf("failed to marshal cached result: %w", err)
	}
	ok, err := s.client.SetNX(ctx, key, data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Delete 删除结果
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Close 关闭自建的客户端
func (s *RedisStore) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
