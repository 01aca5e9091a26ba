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

package api

import (
	"context"
	"sync"
	"time"

	"home-panel/pkg/log"
	"home-panel/pkg/metrics"
)

// defaultSweepInterval 内存幂等缓存的清理周期
const defaultSweepInterval = 5 * time.Minute

// sweeper 需要主动清理过期项的存储（Redis 依赖键过期，不需要）
type sweeper interface {
	Sweep() int
	Len() int
}

// janitor 周期清理内存幂等缓存，并更新条目数指标
type janitor struct {
	store    sweeper
	interval time.Duration
	logger   *log.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newJanitor(store sweeper, interval time.Duration, logger *log.Logger) *janitor {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &janitor{store: store, interval: interval, logger: logger.Component("janitor")}
}

// Start 在后台运行清理循环，直到 Stop
func (j *janitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.sweepOnce()
			}
		}
	}()
}

// Stop 停止清理循环并等待退出；未启动时直接返回
func (j *janitor) Stop() {
	if j.cancel == nil {
		return
	}
	j.cancel()
	j.wg.Wait()
	j.cancel = nil
}

func (j *janitor) sweepOnce() int {
	n := j.store.Sweep()
	metrics.IdempotencyCacheEntries.Set(float64(j.store.Len()))
	if n > 0 {
		j.logger.Debug("已清理过期幂等结果", "removed", n)
	}
	return n
}
