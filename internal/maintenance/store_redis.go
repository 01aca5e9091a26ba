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
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"home-panel/pkg/metrics"
)

// RedisStore 基于 WATCH/MULTI/EXEC 的计数器存储；EXEC 失败（redis.TxFailedErr）即视为冲突并重试
type RedisStore struct {
	client     redis.UniversalClient
	maxRetries int
}

// NewRedisStore 使用共享的 Redis 客户端
func NewRedisStore(client redis.UniversalClient, maxRetries int) *RedisStore {
	return &RedisStore{client: client, maxRetries: retriesOrDefault(maxRetries)}
}

// Get 读取记录；不存在返回 nil
func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	return readRecord(ctx, s.client, key)
}

// Transact WATCH key → GET → fn → MULTI SET EXEC
func (s *RedisStore) Transact(ctx context.Context, key string, fn TxFunc) (Decision, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var d Decision
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := readRecord(ctx, tx, key)
			if err != nil {
				return err
			}
			d = fn(current)
			next, ok := d.Record()
			if !ok {
				return nil
			}
			data, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("marshal counter: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				return nil
			})
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			metrics.CounterTxConflicts.WithLabelValues("redis").Inc()
			continue
		}
		if err != nil {
			return Decision{}, err
		}
		return d, nil
	}
	return Decision{}, ErrTxConflict
}

// Close 共享客户端由调用方关闭
func (s *RedisStore) Close() error { return nil }

// stringGetter *redis.Client 与 *redis.Tx 共有的读取能力
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readRecord(ctx context.Context, c stringGetter, key string) (*Record, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal counter %s: %w", key, err)
	}
	return &rec, nil
}
