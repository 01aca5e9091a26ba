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

import (
	"context"
	"errors"
	"strings"
)

// legacyRule 按消息子串升级遗留错误；顺序即优先级，越具体越靠前
type legacyRule struct {
	substr     string
	ignoreCase bool
	kind       Kind
}

var legacyRules = []legacyRule{
	{"STOVE_TIMEOUT", false, KindStoveTimeout},
	{"STOVE_OFFLINE", false, KindStoveOffline},
	{"STOVE_ERROR", false, KindStoveError},
	{"MAINTENANCE_REQUIRED", false, KindMaintenance},
	{"THERMOSTAT_RECONNECT", false, KindThermostatReconnect},
	{"ROUTER_OFFLINE", false, KindRouterOffline},
	{"token expired", true, KindDeviceReconnect},
	{"invalid_grant", true, KindDeviceReconnect},
	{"RECONNECT_REQUIRED", false, KindDeviceReconnect},
	{"NOT_CONNECTED", false, KindDeviceNotConnected},
	{"TIMEOUT", false, KindTimeout},
	{"deadline exceeded", true, KindTimeout},
	{"OFFLINE", false, KindDeviceOffline},
	{"too many requests", true, KindRateLimited},
	{"unauthorized", true, KindUnauthorized},
	{"forbidden", true, KindForbidden},
	{"not found", true, KindNotFound},
}

// FromLegacy 将任意 error 归类为 *AppError；已是 AppError 的原样返回，无法识别的归为 INTERNAL_ERROR 并保留原消息
func FromLegacy(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(KindTimeout, WithCause(err))
	}
	if errors.Is(err, ErrNotFound) {
		return New(KindNotFound, WithCause(err))
	}
	if errors.Is(err, ErrInvalidArg) {
		return New(KindValidation, WithMessage(err.Error()), WithCause(err))
	}
	appErr := FromMessage(err.Error())
	appErr.Err = err
	return appErr
}

// FromMessage 仅凭消息文本分类（如遗留调用方抛出的字符串）
func FromMessage(msg string) *AppError {
	lower := strings.ToLower(msg)
	for _, r := range legacyRules {
		hit := false
		if r.ignoreCase {
			hit = strings.Contains(lower, strings.ToLower(r.substr))
		} else {
			hit = strings.Contains(msg, r.substr)
		}
		if hit {
			return New(r.kind)
		}
	}
	return New(KindInternal, WithMessage(msg))
}
