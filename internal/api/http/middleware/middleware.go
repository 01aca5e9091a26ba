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
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"home-panel/internal/api/http/response"
	apperrors "home-panel/pkg/errors"
	"home-panel/pkg/log"
)

// RequestIDHeader 请求关联 ID
const RequestIDHeader = "X-Request-ID"

// Middleware 通用中间件集合
type Middleware struct {
	logger *log.Logger
}

// NewMiddleware 创建中间件集合
func NewMiddleware(logger *log.Logger) *Middleware {
	if logger == nil {
		logger = log.Nop()
	}
	return &Middleware{logger: logger.Component("http")}
}

// CORS CORS 中间件；allowOrigins 为空时允许任意来源
func (m *Middleware) CORS(allowOrigins []string) app.HandlerFunc {
	allowed := make(map[string]bool, len(allowOrigins))
	for _, o := range allowOrigins {
		allowed[o] = true
	}
	return func(ctx context.Context, c *app.RequestContext) {
		origin := string(c.GetHeader("Origin"))
		switch {
		case len(allowed) == 0:
			c.Response.Header.Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			c.Response.Header.Set("Access-Control-Allow-Origin", origin)
			c.Response.Header.Set("Vary", "Origin")
		}
		c.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Response.Header.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, "+IdempotencyHeader+", "+RequestIDHeader)
		c.Response.Header.Set("Access-Control-Expose-Headers", ReplayedHeader+", "+RequestIDHeader)
		c.Response.Header.Set("Access-Control-Max-Age", "86400")

		if string(c.Method()) == consts.MethodOptions {
			c.AbortWithStatus(consts.StatusNoContent)
			return
		}
		c.Next(ctx)
	}
}

// RequestID 透传或生成 X-Request-ID
func (m *Middleware) RequestID() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := string(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Response.Header.Set(RequestIDHeader, id)
		c.Next(ctx)
	}
}

// RateLimit 令牌桶限流，超限返回 RATE_LIMITED 与 Retry-After
func (m *Middleware) RateLimit(rps float64, burst int) app.HandlerFunc {
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(ctx context.Context, c *app.RequestContext) {
		if rps > 0 && !limiter.Allow() {
			c.Response.Header.Set("Retry-After", "1")
			response.Abort(c, apperrors.New(apperrors.KindRateLimited))
			return
		}
		c.Next(ctx)
	}
}

// AccessLog 访问日志
func (m *Middleware) AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)
		m.logger.Info("http request",
			"method", string(c.Method()),
			"path", string(c.Path()),
			"status", c.Response.StatusCode(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString("request_id"),
			"replayed", string(c.Response.Header.Peek(ReplayedHeader)) == "true",
		)
	}
}
