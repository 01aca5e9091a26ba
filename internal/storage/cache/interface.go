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
	"time"
)

// KeyPrefix 幂等结果在共享存储中的 key 前缀
const KeyPrefix = "idempotency/results/"

// DefaultRetention 缓存结果的逻辑过期时间
const DefaultRetention = time.Hour

// ResultKey 幂等 token 对应的存储 key
func ResultKey(token string) string {
	return KeyPrefix + token
}

// Result 一次成功处理的响应快照；时间戳为毫秒
type Result struct {
	Data        json.RawMessage `json:"data"`
	Status      int             `json:"status"`
	Timestamp   int64           `json:"timestamp"`
	ExpiresAt   int64           `json:"expiresAt"`
	RequestHash string          `json:"requestHash,omitempty"`
}

// Fresh now 时刻结果是否仍在逻辑有效期内
func (r *Result) Fresh(now time.Time) bool {
	return r != nil && now.UnixMilli() < r.ExpiresAt
}

// Store 幂等结果存储接口
type Store interface {
	// Get 读取结果；不存在或已过期返回 (nil, false, nil)
	Get(ctx context.Context, key string) (*Result, bool, error)
	// PutIfAbsent 仅在 key 不存在（或已过期）时写入，返回是否写入；先写者胜
	PutIfAbsent(ctx context.Context, key string, r Result, ttl time.Duration) (bool, error)
	// Delete 删除结果
	Delete(ctx context.Context, key string) error
	// Close 关闭存储
	Close() error
}
