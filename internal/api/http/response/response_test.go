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
package response

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "home-panel/pkg/errors"
)

func perform(t *testing.T, handler app.HandlerFunc) (int, map[string]any) {
	t.Helper()
	h := server.Default(server.WithHostPorts(":0"))
	h.GET("/x", handler)
	w := ut.PerformRequest(h.Engine, "GET", "/x", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	resp := w.Result()
	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	return resp.StatusCode(), body
}

func TestSuccess(t *testing.T) {
	status, body := perform(t, func(ctx context.Context, c *app.RequestContext) {
		Success(c, 200, map[string]any{"status": "igniting", "success": "ignored"}, "已点火")
	})
	assert.Equal(t, 200, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "igniting", body["status"])
	assert.Equal(t, "已点火", body["message"])
}

func TestError_Taxonomy(t *testing.T) {
	status, body := perform(t, func(ctx context.Context, c *app.RequestContext) {
		Error(c, apperrors.New(apperrors.KindMaintenance, apperrors.WithDetails(map[string]any{"currentHours": 50.2})))
	})
	assert.Equal(t, 423, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "MAINTENANCE_REQUIRED", body["code"])
	assert.NotEmpty(t, body["error"])
	assert.Contains(t, body, "details")
	assert.NotContains(t, body, "reconnect")
}

func TestError_LegacyAndReconnect(t *testing.T) {
	status, body := perform(t, func(ctx context.Context, c *app.RequestContext) {
		Error(c, errors.New("upstream: STOVE_TIMEOUT"))
	})
	assert.Equal(t, 504, status)
	assert.Equal(t, "STOVE_TIMEOUT", body["code"])

	status, body = perform(t, func(ctx context.Context, c *app.RequestContext) {
		Error(c, errors.New("oauth: invalid_grant"))
	})
	assert.Equal(t, 401, status)
	assert.Equal(t, true, body["reconnect"])
}

func TestError_UnknownKeepsMessage(t *testing.T) {
	status, body := perform(t, func(ctx context.Context, c *app.RequestContext) {
		Error(c, errors.New("disk on fire"))
	})
	assert.Equal(t, 500, status)
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
	assert.Equal(t, "disk on fire", body["error"])
}
