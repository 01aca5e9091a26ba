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
// Package response 统一的 HTTP 响应形状：
// 成功 {success:true, ...payload, message?}；失败 {success:false, error, code, details?, reconnect?}
package response

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"

	apperrors "home-panel/pkg/errors"
)

// Success 写入成功响应；payload 字段平铺到顶层
func Success(c *app.RequestContext, status int, payload map[string]any, message string) {
	body := utils.H{"success": true}
	for k, v := range payload {
		if k == "success" {
			continue
		}
		body[k] = v
	}
	if message != "" {
		body["message"] = message
	}
	c.JSON(status, body)
}

// Error 写入错误响应；任意 error 先经遗留映射归类
func Error(c *app.RequestContext, err error) {
	appErr := apperrors.FromLegacy(err)
	if appErr == nil {
		appErr = apperrors.New(apperrors.KindInternal)
	}
	c.JSON(appErr.Status, ErrorBody(appErr))
}

// ErrorBody 错误响应体
func ErrorBody(appErr *apperrors.AppError) utils.H {
	wire := appErr.Response()
	body := utils.H{
		"success": false,
		"error":   wire.Error,
		"code":    wire.Code,
	}
	if len(wire.Details) > 0 {
		body["details"] = wire.Details
	}
	if appErr.Reconnect() {
		body["reconnect"] = true
	}
	return body
}

// Abort 写入错误响应并终止后续 handler
func Abort(c *app.RequestContext, err error) {
	Error(c, err)
	c.Abort()
}
