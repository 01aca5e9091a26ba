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

package dispatch

import (
	"sync"
	"time"
)

// DefaultDedupTTL 在途标记的安全过期时间；不短于默认传输参数下一次派发的最长耗时
const DefaultDedupTTL = 60 * time.Second

// OperationKey 逻辑操作标识，如 "stove:ignite"
func OperationKey(device, action string) string {
	return device + ":" + action
}

type mark struct {
	since time.Time
	gen   uint64
}

// Guard 在途操作表：同一 key 并发执行时只放行第一个（防双击），不是分布式锁
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]mark
	ttl      time.Duration
	gen      uint64
	now      func() time.Time
}

// NewGuard 创建 Guard；ttl<=0 时使用 DefaultDedupTTL
func NewGuard(ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &Guard{
		inFlight: make(map[string]mark),
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL 生效的安全过期时间
func (g *Guard) TTL() time.Duration { return g.ttl }

// Acquire 标记 key 在途并返回本次标记的代号；key 已在途时 ok=false 且不改变状态。
// 超过 ttl 的标记视为遗留，直接被新调用接管。
func (g *Guard) Acquire(key string) (gen uint64, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if m, exists := g.inFlight[key]; exists && now.Sub(m.since) < g.ttl {
		return 0, false
	}
	g.gen++
	g.inFlight[key] = mark{since: now, gen: g.gen}
	return g.gen, true
}

// Touch 刷新仍属于 gen 的标记时间
func (g *Guard) Touch(key string, gen uint64) {
	g.mu.Lock()
	if m, ok := g.inFlight[key]; ok && m.gen == gen {
		m.since = g.now()
		g.inFlight[key] = m
	}
	g.mu.Unlock()
}

// Release 仅当标记仍属于 gen 时取消；被接管后的新标记不受影响
func (g *Guard) Release(key string, gen uint64) {
	g.mu.Lock()
	if m, ok := g.inFlight[key]; ok && m.gen == gen {
		delete(g.inFlight, key)
	}
	g.mu.Unlock()
}

// IsDuplicate key 已在途时返回 true 且不改变状态；否则标记在途并返回 false
func (g *Guard) IsDuplicate(key string) bool {
	_, ok := g.Acquire(key)
	return !ok
}

// Clear 无条件取消在途标记
func (g *Guard) Clear(key string) {
	g.mu.Lock()
	delete(g.inFlight, key)
	g.mu.Unlock()
}

// Sweep 清理超过 ttl 的遗留标记，返回清理数量
func (g *Guard) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	n := 0
	for key, m := range g.inFlight {
		if now.Sub(m.since) >= g.ttl {
			delete(g.inFlight, key)
			n++
		}
	}
	return n
}

// Len 当前在途数量
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inFlight)
}
