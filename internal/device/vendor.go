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
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	apperrors "home-panel/pkg/errors"
	"home-panel/pkg/log"
	"home-panel/pkg/metrics"
)

// VendorOptions 厂商云 API 客户端参数
type VendorOptions struct {
	DeviceID     string
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	RateLimitRPS float64 // <=0 不限流
	Burst        int
}

// VendorClient 通过厂商云 API 控制壁炉：限流、超时，错误按分类体系归一
type VendorClient struct {
	id      string
	client  *resty.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// vendorStatus 厂商 API 的状态表示
type vendorStatus struct {
	Status       string `json:"status"`
	Power        int    `json:"power"`
	ScheduleMode bool   `json:"scheduleMode"`
	Online       bool   `json:"online"`
}

type vendorError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewVendorClient 创建厂商 API 客户端
func NewVendorClient(opts VendorOptions, logger *log.Logger) *VendorClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.Nop()
	}
	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")
	if opts.APIKey != "" {
		client.SetAuthToken(opts.APIKey)
	}
	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}
	return &VendorClient{
		id:      opts.DeviceID,
		client:  client,
		limiter: limiter,
		logger:  logger.Component("stove-vendor"),
	}
}

// ID 设备 ID
func (v *VendorClient) ID() string { return v.id }

// Ignite 点火
func (v *VendorClient) Ignite(ctx context.Context) (Status, error) {
	return v.command(ctx, "ignite", map[string]any{"command": "ignite"})
}

// Shutdown 熄火
func (v *VendorClient) Shutdown(ctx context.Context) (Status, error) {
	return v.command(ctx, "shutdown", map[string]any{"command": "shutdown"})
}

// SetPower 设置功率档位
func (v *VendorClient) SetPower(ctx context.Context, level int) (Status, error) {
	if err := ValidatePower(level); err != nil {
		return Status{}, err
	}
	return v.command(ctx, "power", map[string]any{"command": "power", "level": level})
}

// SetScheduleMode 开关定时模式
func (v *VendorClient) SetScheduleMode(ctx context.Context, enabled bool) (Status, error) {
	return v.command(ctx, "schedule-mode", map[string]any{"command": "schedule", "enabled": enabled})
}

// Status 读取状态
func (v *VendorClient) Status(ctx context.Context) (Status, error) {
	return v.call(ctx, "status", http.MethodGet, nil)
}

func (v *VendorClient) command(ctx context.Context, action string, body map[string]any) (Status, error) {
	return v.call(ctx, action, http.MethodPost, body)
}

func (v *VendorClient) call(ctx context.Context, action, method string, body any) (Status, error) {
	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return Status{}, apperrors.New(apperrors.KindRateLimited, apperrors.WithCause(err))
		}
	}
	start := time.Now()
	defer func() {
		metrics.DeviceCallDuration.WithLabelValues(v.id, action).Observe(time.Since(start).Seconds())
	}()

	path := "/stoves/" + v.id
	if method == http.MethodGet {
		path += "/status"
	} else {
		path += "/commands"
	}
	var out vendorStatus
	req := v.client.R().SetContext(ctx).SetResult(&out)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		v.logger.Warn("厂商 API 调用失败", "action", action, "error", err)
		return Status{}, mapTransportError(err)
	}
	if resp.IsError() {
		appErr := mapVendorResponse(resp.StatusCode(), resp.Body())
		v.logger.Warn("厂商 API 返回错误", "action", action, "status", resp.StatusCode(), "code", appErr.Kind)
		return Status{}, appErr
	}
	return Status{
		DeviceID:     v.id,
		State:        State(out.Status),
		Power:        out.Power,
		ScheduleMode: out.ScheduleMode,
		Online:       out.Online,
		UpdatedAt:    time.Now(),
	}, nil
}

// mapTransportError 网络层错误：超时 → STOVE_TIMEOUT，其余 → STOVE_OFFLINE
func mapTransportError(err error) *apperrors.AppError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.New(apperrors.KindStoveTimeout, apperrors.WithCause(err))
	}
	return apperrors.New(apperrors.KindStoveOffline, apperrors.WithCause(err))
}

// mapVendorResponse 厂商错误响应：先按 code/消息文本的遗留规则识别，再按状态码兜底
func mapVendorResponse(status int, body []byte) *apperrors.AppError {
	var ve vendorError
	_ = json.Unmarshal(body, &ve)
	if ve.Code != "" || ve.Error != "" {
		appErr := apperrors.FromMessage(ve.Code + " " + ve.Error)
		if appErr.Kind != apperrors.KindInternal {
			return appErr
		}
	}
	cause := fmt.Errorf("vendor status %s: %s", strconv.Itoa(status), ve.Error)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.New(apperrors.KindDeviceReconnect, apperrors.WithCause(cause))
	case status == http.StatusNotFound:
		return apperrors.New(apperrors.KindDeviceNotConnected, apperrors.WithCause(cause))
	case status == http.StatusTooManyRequests:
		return apperrors.New(apperrors.KindRateLimited, apperrors.WithCause(cause))
	case status == http.StatusGatewayTimeout:
		return apperrors.New(apperrors.KindStoveTimeout, apperrors.WithCause(cause))
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable:
		return apperrors.New(apperrors.KindStoveOffline, apperrors.WithCause(cause))
	case status >= 500:
		return apperrors.New(apperrors.KindStoveError, apperrors.WithCause(cause))
	default:
		return apperrors.New(apperrors.KindValidation, apperrors.WithMessage(ve.Error), apperrors.WithCause(cause))
	}
}
