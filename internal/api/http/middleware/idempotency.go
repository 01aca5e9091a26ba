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
package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"

	"home-panel/internal/api/http/response"
	"home-panel/internal/storage/cache"
	apperrors "home-panel/pkg/errors"
	"home-panel/pkg/log"
	"home-panel/pkg/metrics"
)

// 幂等相关请求/响应头
const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"
)

// Idempotency 服务端幂等缓存：同一 Idempotency-Key 的成功结果在保留期内原样重放，
// handler 不会被再次执行。非 2xx 结果从不缓存；缓存读写失败只告警，不影响响应。
type Idempotency struct {
	store     cache.Store
	retention time.Duration
	logger    *log.Logger
	now       func() time.Time
}

// NewIdempotency 创建幂等中间件；retention<=0 使用默认 1h
func NewIdempotency(store cache.Store, retention time.Duration, logger *log.Logger) *Idempotency {
	if retention <= 0 {
		retention = cache.DefaultRetention
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Idempotency{
		store:     store,
		retention: retention,
		logger:    logger.Component("idempotency"),
		now:       time.Now,
	}
}

// Handler 返回 Hertz 中间件
func (m *Idempotency) Handler() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		token := strings.TrimSpace(string(c.GetHeader(IdempotencyHeader)))
		if token == "" {
			c.Next(ctx)
			return
		}
		key := cache.ResultKey(token)
		reqHash := requestHash(string(c.Method()), string(c.Path()), c.Request.Body())

		cached, found, err := m.store.Get(ctx, key)
		switch {
		case err != nil:
			metrics.IdempotencyStoreErrors.WithLabelValues("get").Inc()
			m.logger.Warn("读取幂等缓存失败，按未命中处理", "key", key, "error", err)
		case found && cached.RequestHash != "" && cached.RequestHash != reqHash:
			metrics.IdempotencyLookups.WithLabelValues("conflict").Inc()
			response.Abort(c, apperrors.New(apperrors.KindIdempotencyConf,
				apperrors.WithDetails(map[string]any{"idempotencyKey": token})))
			return
		case found:
			metrics.IdempotencyLookups.WithLabelValues("hit").Inc()
			m.logger.Debug("幂等重放", "key", key, "status", cached.Status)
			c.Response.Header.Set(ReplayedHeader, "true")
			c.Data(cached.Status, "application/json; charset=utf-8", cached.Data)
			c.Abort()
			return
		}
		metrics.IdempotencyLookups.WithLabelValues("miss").Inc()

		c.Next(ctx)

		status := c.Response.StatusCode()
		if status < 200 || status >= 300 {
			metrics.IdempotencyLookups.WithLabelValues("skipped").Inc()
			return
		}
		body := append([]byte(nil), c.Response.Body()...)
		if !json.Valid(body) {
			metrics.IdempotencyLookups.WithLabelValues("skipped").Inc()
			m.logger.Warn("响应体不是 JSON，不缓存", "key", key)
			return
		}
		now := m.now()
		stored, err := m.store.PutIfAbsent(ctx, key, cache.Result{
			Data:        body,
			Status:      status,
			Timestamp:   now.UnixMilli(),
			ExpiresAt:   now.Add(m.retention).UnixMilli(),
			RequestHash: reqHash,
		}, m.retention)
		if err != nil {
			metrics.IdempotencyStoreErrors.WithLabelValues("put").Inc()
			m.logger.Warn("写入幂等缓存失败", "key", key, "error", err)
			return
		}
		if stored {
			metrics.IdempotencyLookups.WithLabelValues("stored").Inc()
		}
	}
}

// requestHash 同一 key 下请求内容的指纹，用于发现 key 被复用到不同请求
func requestHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{'\n'})
	h.Write([]byte(path))
	h.Write([]byte{'\n'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
