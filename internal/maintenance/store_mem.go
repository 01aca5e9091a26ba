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
	"sync"

	"home-panel/pkg/metrics"
)

type versioned struct {
	rec     Record
	version int64
}

// MemoryStore 进程内实现：读取快照后在锁外执行 fn，提交时比对版本号
type MemoryStore struct {
	mu         sync.RWMutex
	items      map[string]versioned
	maxRetries int
}

// NewMemoryStore 创建内存计数器存储
func NewMemoryStore(maxRetries int) *MemoryStore {
	return &MemoryStore{
		items:      make(map[string]versioned),
		maxRetries: retriesOrDefault(maxRetries),
	}
}

// Get 读取记录；不存在返回 nil
func (s *MemoryStore) Get(ctx context.Context, key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	rec := v.rec.Clone()
	return &rec, nil
}

// Transact 版本号 CAS 循环
func (s *MemoryStore) Transact(ctx context.Context, key string, fn TxFunc) (Decision, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Decision{}, err
		}
		s.mu.RLock()
		v, exists := s.items[key]
		s.mu.RUnlock()

		var current *Record
		if exists {
			rec := v.rec.Clone()
			current = &rec
		}
		d := fn(current)
		next, ok := d.Record()
		if !ok {
			return d, nil
		}

		s.mu.Lock()
		cur, stillExists := s.items[key]
		if stillExists != exists || cur.version != v.version {
			s.mu.Unlock()
			metrics.CounterTxConflicts.WithLabelValues("memory").Inc()
			continue
		}
		s.items[key] = versioned{rec: next.Clone(), version: v.version + 1}
		s.mu.Unlock()
		return d, nil
	}
	return Decision{}, ErrTxConflict
}

// Close 无资源需要释放
func (s *MemoryStore) Close() error { return nil }
