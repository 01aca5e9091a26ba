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
package http

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"

	"home-panel/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler     *Handler
	middleware  *middleware.Middleware
	idempotency *middleware.Idempotency

	cors         bool
	allowOrigins []string
	rateLimitRPS float64
	rateBurst    int
	limiter      app.HandlerFunc
	extra        []app.HandlerFunc
}

// NewRouter 创建 HTTP 路由器；idempotency 为 nil 时命令接口不做幂等缓存
func NewRouter(handler *Handler, mw *middleware.Middleware, idempotency *middleware.Idempotency) *Router {
	return &Router{
		handler:     handler,
		middleware:  mw,
		idempotency: idempotency,
	}
}

// SetCORS 启用 CORS；origins 为空允许任意来源
func (r *Router) SetCORS(origins []string) {
	r.cors = true
	r.allowOrigins = origins
}

// SetRateLimit 命令接口限流；rps<=0 不限流
func (r *Router) SetRateLimit(rps float64, burst int) {
	r.rateLimitRPS = rps
	r.rateBurst = burst
}

// Use 追加全局中间件（如链路追踪）；须在 Build 之前调用，Build 时先于路由注册
func (r *Router) Use(mw ...app.HandlerFunc) {
	r.extra = append(r.extra, mw...)
}

// Build 创建 Hertz 服务并注册路由，addr 如 ":8080"
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	h := server.Default(append([]config.Option{server.WithHostPorts(addr)}, opts...)...)
	if len(r.extra) > 0 {
		h.Use(r.extra...)
	}
	h.Use(r.middleware.RequestID(), r.middleware.AccessLog())
	if r.cors {
		h.Use(r.middleware.CORS(r.allowOrigins))
	}

	r.limiter = nil
	if r.rateLimitRPS > 0 {
		r.limiter = r.middleware.RateLimit(r.rateLimitRPS, r.rateBurst)
	}

	h.GET("/metrics", r.handler.Metrics)

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)

	stove := api.Group("/stove")
	stove.GET("/status", r.handler.StoveStatus)
	stove.POST("/ignite", r.command(r.handler.StoveIgnite)...)
	stove.POST("/shutdown", r.command(r.handler.StoveShutdown)...)
	stove.POST("/power", r.command(r.handler.StovePower)...)
	stove.POST("/schedule-mode", r.command(r.handler.StoveScheduleMode)...)

	maint := api.Group("/maintenance")
	maint.GET("/:device", r.handler.MaintenanceGet)
	maint.POST("/:device/track", r.handler.MaintenanceTrack)
	maint.POST("/:device/reset", r.command(r.handler.MaintenanceReset)...)
	maint.POST("/:device/target", r.command(r.handler.MaintenanceSetTarget)...)

	return h
}

// command 命令接口的处理链：限流（所有命令共享一个令牌桶）+ 幂等缓存 + handler
func (r *Router) command(handler app.HandlerFunc) []app.HandlerFunc {
	chain := make([]app.HandlerFunc, 0, 3)
	if r.limiter != nil {
		chain = append(chain, r.limiter)
	}
	if r.idempotency != nil {
		chain = append(chain, r.idempotency.Handler())
	}
	return append(chain, handler)
}
