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
package device

import (
	"context"
	"fmt"

	"home-panel/pkg/config"
	"home-panel/pkg/log"
	"home-panel/pkg/secrets"
)

// NewStove 按配置创建壁炉控制器；vendor 驱动的 API key 从 secrets store 解析
func NewStove(ctx context.Context, cfg config.StoveConfig, store secrets.Store, logger *log.Logger) (Controller, error) {
	id := cfg.ID
	if id == "" {
		id = "stove"
	}
	switch cfg.Driver {
	case "", "simulator":
		return NewSimulator(id), nil
	case "vendor":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("device.stove.base_url is required for vendor driver")
		}
		apiKey, err := secrets.Resolve(ctx, store, cfg.APIKeySecret)
		if err != nil {
			return nil, fmt.Errorf("resolve stove api key: %w", err)
		}
		return NewVendorClient(VendorOptions{
			DeviceID:     id,
			BaseURL:      cfg.BaseURL,
			APIKey:       apiKey,
			Timeout:      config.ParseDuration(cfg.Timeout, 0),
			RateLimitRPS: cfg.RateLimitRPS,
			Burst:        cfg.Burst,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported stove driver: %s", cfg.Driver)
	}
}
