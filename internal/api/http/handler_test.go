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
	"encoding/json"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"

	"home-panel/internal/api/http/middleware"
	"home-panel/internal/device"
	"home-panel/internal/maintenance"
	"home-panel/internal/storage/cache"
	apperrors "home-panel/pkg/errors"
)

type testEnv struct {
	server *server.Hertz
	stove  *device.Simulator
	store  *maintenance.MemoryStore
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		stove: device.NewSimulator("stove"),
		store: maintenance.NewMemoryStore(0),
		now:   time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC),
	}
	tracker := maintenance.NewTracker(env.store, maintenance.DefaultPolicy(),
		maintenance.WithClock(func() time.Time { return env.now }))
	handler := NewHandler(env.stove, tracker, nil)
	idem := middleware.NewIdempotency(cache.NewMemoryStore(), time.Hour, nil)
	r := NewRouter(handler, middleware.NewMiddleware(nil), idem)
	env.server = r.Build(":0")
	return env
}

func (e *testEnv) do(method, path, body string, headers ...ut.Header) (int, map[string]any, *ut.ResponseRecorder) {
	b := []byte(body)
	w := ut.PerformRequest(e.server.Engine, method, path, &ut.Body{Body: bytes.NewReader(b), Len: len(b)}, headers...)
	resp := w.Result()
	var out map[string]any
	_ = json.Unmarshal(resp.Body(), &out)
	return resp.StatusCode(), out, w
}

func idemKey(v string) ut.Header {
	return ut.Header{Key: middleware.IdempotencyHeader, Value: v}
}

func jsonHeader() ut.Header {
	return ut.Header{Key: "Content-Type", Value: "application/json"}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	status, body, _ := env.do("GET", "/api/health", "")
	if status != 200 {
		t.Fatalf("HealthCheck status: got %d", status)
	}
	if body["success"] != true || body["status"] != "ok" {
		t.Errorf("HealthCheck body: %v", body)
	}
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.do("POST", "/api/stove/ignite", "", idemKey("idem_metrics"))
	_, _, w := env.do("GET", "/metrics", "")
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("metrics status: got %d", got)
	}
	if !bytes.Contains(w.Result().Body(), []byte("home_panel_idempotency_lookups_total")) {
		t.Errorf("metrics body missing idempotency counter")
	}
}

func TestStoveIgnite_ReplayedForSameKey(t *testing.T) {
	env := newTestEnv(t)

	status, first, w1 := env.do("POST", "/api/stove/ignite", "", idemKey("idem_ignite"))
	if status != 200 || first["success"] != true {
		t.Fatalf("ignite: status=%d body=%v", status, first)
	}
	firstRaw := append([]byte(nil), w1.Result().Body()...)

	status, _, w2 := env.do("POST", "/api/stove/ignite", "", idemKey("idem_ignite"))
	if status != 200 {
		t.Fatalf("replay status: got %d", status)
	}
	if got := string(w2.Result().Header.Peek(middleware.ReplayedHeader)); got != "true" {
		t.Errorf("replay header: got %q", got)
	}
	if !bytes.Equal(firstRaw, w2.Result().Body()) {
		t.Errorf("replay body differs:\n%s\n%s", firstRaw, w2.Result().Body())
	}
	if n := env.stove.Calls("ignite"); n != 1 {
		t.Errorf("stove ignited %d times, want 1", n)
	}

	// 无幂等头时每次都执行
	env.do("POST", "/api/stove/ignite", "")
	if n := env.stove.Calls("ignite"); n != 2 {
		t.Errorf("stove ignited %d times, want 2", n)
	}
}

func TestStoveIgnite_MaintenanceRequired(t *testing.T) {
	env := newTestEnv(t)
	last := env.now.Add(-time.Hour)
	_, err := env.store.Transact(context.Background(), maintenance.CounterKey("stove"), func(*maintenance.Record) maintenance.Decision {
		return maintenance.Applied(maintenance.Record{CurrentHours: 50.2, TargetHours: 50, NeedsCleaning: true, LastUpdatedAt: &last})
	})
	if err != nil {
		t.Fatalf("seed counter: %v", err)
	}

	status, body, _ := env.do("POST", "/api/stove/ignite", "", idemKey("idem_m"))
	if status != 423 {
		t.Fatalf("status: got %d, want 423", status)
	}
	if body["success"] != false || body["code"] != string(apperrors.KindMaintenance) {
		t.Errorf("body: %v", body)
	}
	if env.stove.Calls("ignite") != 0 {
		t.Error("stove must not ignite while cleaning is required")
	}

	if status, _, _ := env.do("POST", "/api/maintenance/stove/reset", "", idemKey("idem_reset")); status != 200 {
		t.Fatalf("reset status: got %d", status)
	}
	// 失败结果未被缓存，同一 key 重试得到新的执行
	if status, _, _ := env.do("POST", "/api/stove/ignite", "", idemKey("idem_m")); status != 200 {
		t.Fatalf("ignite after reset: got %d", status)
	}
}

func TestStovePower_Validation(t *testing.T) {
	env := newTestEnv(t)

	status, body, _ := env.do("POST", "/api/stove/power", `{"level":9}`, jsonHeader(), idemKey("idem_p"))
	if status != 400 || body["code"] != string(apperrors.KindValidation) {
		t.Fatalf("invalid level: status=%d body=%v", status, body)
	}

	status, body, _ = env.do("POST", "/api/stove/power", `{"level":3}`, jsonHeader(), idemKey("idem_p2"))
	if status != 200 {
		t.Fatalf("valid level: status=%d body=%v", status, body)
	}
	stove, _ := body["stove"].(map[string]any)
	if stove["power"] != float64(3) {
		t.Errorf("power: got %v", stove["power"])
	}

	status, body, _ = env.do("POST", "/api/stove/power", `{"level":4}`, jsonHeader(), idemKey("idem_p2"))
	if status != 409 || body["code"] != string(apperrors.KindIdempotencyConf) {
		t.Errorf("reused key with different body: status=%d body=%v", status, body)
	}
}

func TestStoveCommand_DeviceErrorNotCached(t *testing.T) {
	env := newTestEnv(t)
	env.stove.FailNext(apperrors.New(apperrors.KindStoveOffline))

	status, body, _ := env.do("POST", "/api/stove/shutdown", "", idemKey("idem_s"))
	if status != 504 || body["code"] != string(apperrors.KindStoveOffline) {
		t.Fatalf("offline: status=%d body=%v", status, body)
	}
	status, _, w := env.do("POST", "/api/stove/shutdown", "", idemKey("idem_s"))
	if status != 200 {
		t.Fatalf("retry: status=%d", status)
	}
	if len(w.Result().Header.Peek(middleware.ReplayedHeader)) != 0 {
		t.Error("retry after failure must execute, not replay")
	}
}

func TestStoveScheduleMode(t *testing.T) {
	env := newTestEnv(t)
	status, _, _ := env.do("POST", "/api/stove/schedule-mode", `{}`, jsonHeader())
	if status != 400 {
		t.Fatalf("missing enabled: got %d", status)
	}
	status, body, _ := env.do("POST", "/api/stove/schedule-mode", `{"enabled":true}`, jsonHeader())
	if status != 200 {
		t.Fatalf("schedule-mode: status=%d body=%v", status, body)
	}
	status, body, _ = env.do("GET", "/api/stove/status", "")
	if status != 200 {
		t.Fatalf("status: got %d", status)
	}
	stove, _ := body["stove"].(map[string]any)
	if stove["scheduleMode"] != true {
		t.Errorf("scheduleMode: got %v", stove["scheduleMode"])
	}
	if _, ok := body["maintenance"]; !ok {
		t.Error("status should include maintenance counter")
	}
}

func TestMaintenanceEndpoints(t *testing.T) {
	env := newTestEnv(t)

	status, body, _ := env.do("POST", "/api/maintenance/stove/track", `{"active":true}`, jsonHeader())
	if status != 200 || body["tracked"] != true {
		t.Fatalf("first track: status=%d body=%v", status, body)
	}

	env.now = env.now.Add(10 * time.Second)
	status, body, _ = env.do("POST", "/api/maintenance/stove/track", `{"active":true}`, jsonHeader())
	if status != 200 || body["tracked"] != false || body["reason"] != "too_soon" {
		t.Fatalf("too soon: status=%d body=%v", status, body)
	}

	env.now = env.now.Add(110 * time.Second)
	status, body, _ = env.do("POST", "/api/maintenance/stove/track", `{"active":true}`, jsonHeader())
	if status != 200 || body["tracked"] != true {
		t.Fatalf("accumulate: status=%d body=%v", status, body)
	}

	status, body, _ = env.do("GET", "/api/maintenance/stove", "")
	if status != 200 {
		t.Fatalf("get: status=%d", status)
	}
	m, _ := body["maintenance"].(map[string]any)
	if h, _ := m["currentHours"].(float64); h < 0.033 || h > 0.034 {
		t.Errorf("currentHours: got %v", m["currentHours"])
	}

	if status, _, _ := env.do("POST", "/api/maintenance/stove/target", `{"targetHours":0}`, jsonHeader()); status != 400 {
		t.Errorf("zero target: got %d", status)
	}
	status, body, _ = env.do("POST", "/api/maintenance/stove/target", `{"targetHours":80}`, jsonHeader())
	m, _ = body["maintenance"].(map[string]any)
	if status != 200 || m["targetHours"] != float64(80) {
		t.Errorf("target: status=%d body=%v", status, body)
	}

	status, body, _ = env.do("POST", "/api/maintenance/stove/reset", "")
	m, _ = body["maintenance"].(map[string]any)
	if status != 200 || m["currentHours"] != float64(0) {
		t.Errorf("reset: status=%d body=%v", status, body)
	}
}
