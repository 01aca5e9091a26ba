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
	"encoding/json"
	"net/http"
)

// KindForStatus 仅知道状态码时的兜底分类
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest:
		return KindValidation
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusLocked:
		return KindMaintenance
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable:
		return KindUnavailable
	case status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindInternal
	default:
		return KindValidation
	}
}

// wireBody 服务端错误响应 {success:false, error, code, details?, reconnect?}
type wireBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// FromResponse 将非 2xx 响应还原为 AppError：body 带已登记的 code 时以 code 为准，否则按状态码兜底
func FromResponse(status int, body []byte) *AppError {
	var wb wireBody
	_ = json.Unmarshal(body, &wb)

	kind := Kind(wb.Code)
	if !kind.Known() {
		kind = KindForStatus(status)
	}
	msg := wb.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	return New(kind, WithStatus(status), WithMessage(msg), WithDetails(wb.Details))
}
