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
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"home-panel/pkg/config"
)

// KeyPrefix Redis 中计数器记录的 key 前缀
const KeyPrefix = "maintenance/counters/"

// DefaultMaxTxRetries 乐观并发冲突的最大重试次数
const DefaultMaxTxRetries = 10

// ErrTxConflict 冲突重试次数用尽仍未提交
var ErrTxConflict = errors.New("maintenance: transaction conflict retries exhausted")

// CounterKey 设备计数器的存储 key
func CounterKey(deviceID string) string {
	return KeyPrefix + deviceID
}

// Store 计数器存储：Transact 在存储自身的乐观并发原语下执行 fn，
// 读到的记录过期时重新读取并再次调用 fn，直到提交成功或重试耗尽。
// fn 返回 Rejected 时不写入，直接返回该 Decision。
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Transact(ctx context.Context, key string, fn TxFunc) (Decision, error)
	Close() error
}

// NewStore 根据配置创建计数器存储；redis/postgres 使用调用方提供的共享连接
func NewStore(cfg config.MaintenanceConfig, rdb redis.UniversalClient, pool *pgxpool.Pool) (Store, error) {
	retries := cfg.MaxTxRetries
	switch cfg.Store {
	case "", "memory":
		return NewMemoryStore(retries), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("maintenance store redis: redis client not configured")
		}
		return NewRedisStore(rdb, retries), nil
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("maintenance store postgres: postgres pool not configured")
		}
		return NewPostgresStore(pool, retries), nil
	default:
		return nil, fmt.Errorf("unsupported maintenance store: %s", cfg.Store)
	}
}

func retriesOrDefault(n int) int {
	if n <= 0 {
		return DefaultMaxTxRetries
	}
	return n
}
