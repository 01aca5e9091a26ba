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

package errors

import "net/http"

// Kind 错误类型（封闭集合），线上以 code 字段出现
type Kind string

const (
	KindValidation      Kind = "VALIDATION_ERROR"
	KindUnauthorized    Kind = "UNAUTHORIZED"
	KindForbidden       Kind = "FORBIDDEN"
	KindNotFound        Kind = "NOT_FOUND"
	KindIdempotencyConf Kind = "IDEMPOTENCY_CONFLICT"
	KindMaintenance     Kind = "MAINTENANCE_REQUIRED"
	KindRateLimited     Kind = "RATE_LIMITED"
	KindInternal        Kind = "INTERNAL_ERROR"
	KindUnavailable     Kind = "SERVICE_UNAVAILABLE"
	KindTimeout         Kind = "TIMEOUT"

	KindDeviceOffline      Kind = "DEVICE_OFFLINE"
	KindDeviceNotConnected Kind = "DEVICE_NOT_CONNECTED"
	KindDeviceReconnect    Kind = "DEVICE_RECONNECT_REQUIRED"

	// 设备专属变体
	KindStoveOffline        Kind = "STOVE_OFFLINE"
	KindStoveTimeout        Kind = "STOVE_TIMEOUT"
	KindStoveError          Kind = "STOVE_ERROR"
	KindThermostatReconnect Kind = "THERMOSTAT_RECONNECT_REQUIRED"
	KindRouterOffline       Kind = "ROUTER_OFFLINE"
)

type kindInfo struct {
	status    int
	message   string
	retryable bool
	reconnect bool
}

var kinds = map[Kind]kindInfo{
	KindValidation:      {http.StatusBadRequest, "请求参数无效", false, false},
	KindUnauthorized:    {http.StatusUnauthorized, "未授权", false, false},
	KindForbidden:       {http.StatusForbidden, "无权执行该操作", false, false},
	KindNotFound:        {http.StatusNotFound, "资源不存在", false, false},
	KindIdempotencyConf: {http.StatusConflict, "幂等键已用于不同的请求内容", false, false},
	KindMaintenance:     {http.StatusLocked, "设备需要维护，请先完成清洁", false, false},
	KindRateLimited:     {http.StatusTooManyRequests, "请求过于频繁，请稍后再试", true, false},
	KindInternal:        {http.StatusInternalServerError, "服务内部错误", true, false},
	KindUnavailable:     {http.StatusServiceUnavailable, "服务暂不可用", true, false},
	KindTimeout:         {http.StatusGatewayTimeout, "请求超时", true, false},

	KindDeviceOffline:      {http.StatusGatewayTimeout, "设备离线", true, false},
	KindDeviceNotConnected: {http.StatusServiceUnavailable, "设备尚未连接", false, false},
	KindDeviceReconnect:    {http.StatusUnauthorized, "设备授权已失效，请重新连接", false, true},

	KindStoveOffline:        {http.StatusGatewayTimeout, "壁炉离线", true, false},
	KindStoveTimeout:        {http.StatusGatewayTimeout, "壁炉响应超时", true, false},
	KindStoveError:          {http.StatusBadGateway, "壁炉报告故障", false, false},
	KindThermostatReconnect: {http.StatusUnauthorized, "温控器授权已失效，请重新连接", false, true},
	KindRouterOffline:       {http.StatusGatewayTimeout, "路由器离线", true, false},
}

func lookup(k Kind) kindInfo {
	if info, ok := kinds[k]; ok {
		return info
	}
	return kinds[KindInternal]
}

// Known 是否为已登记的 kind
func (k Kind) Known() bool {
	_, ok := kinds[k]
	return ok
}

// Status 默认 HTTP 状态码
func (k Kind) Status() int { return lookup(k).status }

// Message 默认用户提示
func (k Kind) Message() string { return lookup(k).message }

// Retryable 传输层是否可重试
func (k Kind) Retryable() bool { return lookup(k).retryable }

// Reconnect 是否提示重新连接流程
func (k Kind) Reconnect() bool { return lookup(k).reconnect }
