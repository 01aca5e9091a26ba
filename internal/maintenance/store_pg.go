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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"home-panel/pkg/metrics"
)

// Schema 计数器表；version 列用于乐观并发
const Schema = `CREATE TABLE IF NOT EXISTS maintenance_counters (
	key        TEXT PRIMARY KEY,
	record     JSONB NOT NULL,
	version    BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore PostgreSQL 实现：UPDATE ... WHERE version = $n，首次写入 INSERT ... ON CONFLICT DO NOTHING
type PostgresStore struct {
	pool       *pgxpool.Pool
	maxRetries int
}

// NewPostgresStore 使用共享连接池
func NewPostgresStore(pool *pgxpool.Pool, maxRetries int) *PostgresStore {
	return &PostgresStore{pool: pool, maxRetries: retriesOrDefault(maxRetries)}
}

// NewPool 按 DSN 建立连接池并确认可用
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// EnsureSchema 建表（幂等）
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

// Get 读取记录；不存在返回 nil
func (s *PostgresStore) Get(ctx context.Context, key string) (*Record, error) {
	rec, _, err := s.read(ctx, key)
	return rec, err
}

func (s *PostgresStore) read(ctx context.Context, key string) (*Record, int64, error) {
	var data []byte
	var version int64
	err := s.pool.QueryRow(ctx,
		`SELECT record, version FROM maintenance_counters WHERE key = $1`, key).Scan(&data, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, 0, fmt.Errorf("unmarshal counter %s: %w", key, err)
	}
	return &rec, version, nil
}

// Transact 版本号 CAS；RowsAffected=0 说明被并发写入抢先，重读后重试
func (s *PostgresStore) Transact(ctx context.Context, key string, fn TxFunc) (Decision, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		current, version, err := s.read(ctx, key)
		if err != nil {
			return Decision{}, err
		}
		d := fn(current)
		next, ok := d.Record()
		if !ok {
			return d, nil
		}
		data, err := json.Marshal(next)
		if err != nil {
			return Decision{}, fmt.Errorf("marshal counter: %w", err)
		}

		var tag pgconn.CommandTag
		if current == nil {
			tag, err = s.pool.Exec(ctx,
				`INSERT INTO maintenance_counters (key, record, version, updated_at) VALUES ($1, $2, 1, now()) ON CONFLICT (key) DO NOTHING`,
				key, data)
		} else {
			tag, err = s.pool.Exec(ctx,
				`UPDATE maintenance_counters SET record = $2, version = version + 1, updated_at = now() WHERE key = $1 AND version = $3`,
				key, data, version)
		}
		if err != nil {
			return Decision{}, err
		}
		if tag.RowsAffected() == 0 {
			metrics.CounterTxConflicts.WithLabelValues("postgres").Inc()
			continue
		}
		return d, nil
	}
	return Decision{}, ErrTxConflict
}

// Close 共享连接池由调用方关闭
func (s *PostgresStore) Close() error { return nil }
