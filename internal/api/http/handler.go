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
	"bytes"
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/go-playground/validator/v10"

	"home-panel/internal/api/http/response"
	"home-panel/internal/device"
	"home-panel/internal/maintenance"
	apperrors "home-panel/pkg/errors"
	"home-panel/pkg/log"
	"home-panel/pkg/metrics"
)

// Handler HTTP 处理器
type Handler struct {
	stove    device.Controller
	tracker  *maintenance.Tracker
	validate *validator.Validate
	logger   *log.Logger
	started  time.Time
}

// NewHandler 创建 HTTP 处理器
func NewHandler(stove device.Controller, tracker *maintenance.Tracker, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Nop()
	}
	return &Handler{
		stove:    stove,
		tracker:  tracker,
		validate: validator.New(),
		logger:   logger.Component("handler"),
		started:  time.Now(),
	}
}

type powerRequest struct {
	Level int `json:"level" validate:"required,min=1,max=5"`
}

type scheduleModeRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type trackRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type targetRequest struct {
	TargetHours float64 `json:"targetHours" validate:"required,gt=0"`
}

// bind 解析并校验请求体；失败时已写入 VALIDATION_ERROR
func (h *Handler) bind(c *app.RequestContext, req any) bool {
	if err := c.BindJSON(req); err != nil {
		response.Error(c, apperrors.New(apperrors.KindValidation,
			apperrors.WithMessage("请求体不是合法的 JSON"), apperrors.WithCause(err)))
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		details := map[string]any{}
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		response.Error(c, apperrors.New(apperrors.KindValidation,
			apperrors.WithMessage("请求参数无效"), apperrors.WithDetails(details), apperrors.WithCause(err)))
		return false
	}
	return true
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	response.Success(c, consts.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"service":   "home-panel-api",
	}, "")
}

// Metrics Prometheus 文本格式
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		response.Error(c, err)
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// StoveIgnite 点火；需要清洁时拒绝（MAINTENANCE_REQUIRED）。点火后重新锚定计数器，熄火期间不计时
// POST /api/stove/ignite
func (h *Handler) StoveIgnite(ctx context.Context, c *app.RequestContext) {
	if err := h.tracker.EnsureServiceable(ctx, h.stove.ID()); err != nil {
		response.Error(c, err)
		return
	}
	st, err := h.stove.Ignite(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.observe(ctx, maintenance.Observation{Active: false})
	response.Success(c, consts.StatusOK, map[string]any{"stove": st}, "壁炉已点火")
}

// StoveShutdown 熄火；熄火前记录最后一段运行时长
// POST /api/stove/shutdown
func (h *Handler) StoveShutdown(ctx context.Context, c *app.RequestContext) {
	st, err := h.stove.Shutdown(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.observe(ctx, maintenance.Observation{Active: true})
	response.Success(c, consts.StatusOK, map[string]any{"stove": st}, "壁炉已熄火")
}

// StovePower 设置功率档位
// POST /api/stove/power {level: 1..5}
func (h *Handler) StovePower(ctx context.Context, c *app.RequestContext) {
	var req powerRequest
	if !h.bind(c, &req) {
		return
	}
	st, err := h.stove.SetPower(ctx, req.Level)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, consts.StatusOK, map[string]any{"stove": st}, "功率已设置")
}

// StoveScheduleMode 开关定时模式
// POST /api/stove/schedule-mode {enabled: bool}
func (h *Handler) StoveScheduleMode(ctx context.Context, c *app.RequestContext) {
	var req scheduleModeRequest
	if !h.bind(c, &req) {
		return
	}
	st, err := h.stove.SetScheduleMode(ctx, *req.Enabled)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, consts.StatusOK, map[string]any{"stove": st}, "")
}

// StoveStatus 壁炉状态与维护计数
// GET /api/stove/status
func (h *Handler) StoveStatus(ctx context.Context, c *app.RequestContext) {
	st, err := h.stove.Status(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	rec, err := h.tracker.Get(ctx, h.stove.ID())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, consts.StatusOK, map[string]any{
		"stove":       st,
		"maintenance": maintenanceView(rec),
	}, "")
}

// MaintenanceGet 读取计数器
// GET /api/maintenance/:device
func (h *Handler) MaintenanceGet(ctx context.Context, c *app.RequestContext) {
	deviceID := c.Param("device")
	rec, err := h.tracker.Get(ctx, deviceID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, consts.StatusOK, map[string]any{
		"device":      deviceID,
		"maintenance": maintenanceView(rec),
	}, "")
}

// MaintenanceTrack 记录一次采样；采样过密时 tracked=false，不是错误
// POST /api/maintenance/:device/track {active: bool}
func (h *Handler) MaintenanceTrack(ctx context.Context, c *app.RequestContext) {
	var req trackRequest
	if !h.bind(c, &req) {
		return
	}
	deviceID := c.Param("device")
	out, err := h.tracker.Track(ctx, deviceID, maintenance.Observation{Active: *req.Active})
	if err != nil {
		response.Error(c, err)
		return
	}
	if !out.Tracked {
		response.Success(c, consts.StatusOK, map[string]any{
			"device":  deviceID,
			"tracked": false,
			"reason":  out.Reason,
		}, "采样过于频繁，本次未计入")
		return
	}
	response.Success(c, consts.StatusOK, map[string]any{
		"device":      deviceID,
		"tracked":     true,
		"addedHours":  out.AddedHours,
		"maintenance": maintenanceView(out.Record),
	}, "")
}

// MaintenanceReset 确认已完成清洁
// POST /api/maintenance/:device/reset
func (h *Handler) MaintenanceReset(ctx context.Context, c *app.RequestContext) {
	deviceID := c.Param("device")
	rec, err := h.tracker.Reset(ctx, deviceID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, consts.StatusOK, map[string]any{
		"device":      deviceID,
		"maintenance": maintenanceView(rec),
	}, "维护计数已重置")
}

// MaintenanceSetTarget 修改清洁周期
// POST /api/maintenance/:device/target {targetHours: >0}
func (h *Handler) MaintenanceSetTarget(ctx context.Context, c *app.RequestContext) {
	var req targetRequest
	if !h.bind(c, &req) {
		return
	}
	deviceID := c.Param("device")
	rec, err := h.tracker.SetTarget(ctx, deviceID, req.TargetHours)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, consts.StatusOK, map[string]any{
		"device":      deviceID,
		"maintenance": maintenanceView(rec),
	}, "")
}

// observe 命令成功后的计数器采样；失败只记录日志，不影响命令结果
func (h *Handler) observe(ctx context.Context, obs maintenance.Observation) {
	out, err := h.tracker.Track(ctx, h.stove.ID(), obs)
	if err != nil {
		h.logger.Warn("维护计数采样失败", "device", h.stove.ID(), "error", err)
		return
	}
	if !out.Tracked {
		h.logger.Debug("维护计数采样跳过", "device", h.stove.ID(), "reason", out.Reason)
	}
}

func maintenanceView(rec maintenance.Record) map[string]any {
	return map[string]any{
		"currentHours":          rec.CurrentHours,
		"targetHours":           rec.TargetHours,
		"lastUpdatedAt":         rec.LastUpdatedAt,
		"needsCleaning":         rec.NeedsCleaning,
		"lastNotificationLevel": rec.LastNotificationLevel,
		"progress":              rec.Progress(),
	}
}
