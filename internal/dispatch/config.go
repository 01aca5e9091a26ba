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
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"home-panel/pkg/config"
	"home-panel/pkg/log"
)

// TransportOptionsFromConfig 将配置转换为 TransportOptions
func TransportOptionsFromConfig(cfg config.DispatcherConfig) TransportOptions {
	return TransportOptions{
		MaxAttempts:    cfg.MaxAttempts,
		BaseDelay:      config.ParseDuration(cfg.BaseDelay, DefaultBaseDelay),
		MaxDelay:       config.ParseDuration(cfg.MaxDelay, DefaultMaxDelay),
		MaxTotalWait:   config.ParseDuration(cfg.MaxTotalWait, DefaultMaxTotalWait),
		AttemptTimeout: config.ParseDuration(cfg.AttemptTimeout, DefaultAttemptTimeout),
		JitterRatio:    cfg.JitterRatio,
	}
}

// NewFromConfig 按配置装配 Dispatcher（CLI 使用）；每个请求带 X-Request-ID 便于服务端关联日志。
// dedup_ttl 与 token_window 不会低于 SettleWindow。
func NewFromConfig(cfg config.DispatcherConfig, notifier Notifier, logger *log.Logger) *Dispatcher {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			r.SetHeader("X-Request-ID", uuid.NewString())
			return nil
		})
	transport := NewTransport(client, TransportOptionsFromConfig(cfg), logger)
	settle := SettleWindow(transport.Options())
	return NewDispatcher(transport,
		WithGuard(NewGuard(atLeast(config.ParseDuration(cfg.DedupTTL, DefaultDedupTTL), settle))),
		WithTokenManager(NewTokenManager(atLeast(config.ParseDuration(cfg.TokenWindow, DefaultTokenWindow), settle), TokenMode(cfg.TokenMode))),
		WithNotifier(notifier),
		WithLogger(logger),
	)
}
