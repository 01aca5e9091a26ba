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
	"fmt"

	"github.com/redis/go-redis/v9"

	"home-panel/pkg/config"
)

// NewStore 根据配置创建幂等结果存储；type=redis 时需要传入共享客户端
func NewStore(cfg config.IdempotencyConfig, client redis.UniversalClient) (Store, error) {
	switch cfg.Store {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("idempotency store redis: redis client not configured")
		}
		return NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unsupported idempotency store: %s", cfg.Store)
	}
}
