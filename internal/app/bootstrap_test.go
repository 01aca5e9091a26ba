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
package app

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"home-panel/internal/device"
	"home-panel/internal/maintenance"
	"home-panel/internal/storage/cache"
	"home-panel/pkg/config"
	"home-panel/pkg/log"
)

func TestNewBootstrap_Defaults(t *testing.T) {
	b, err := NewBootstrap(nil)
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.Redis)
	assert.Nil(t, b.Postgres)
	assert.IsType(t, &cache.MemoryStore{}, b.ResultCache)
	assert.IsType(t, &maintenance.MemoryStore{}, b.Counters)
	assert.IsType(t, &device.Simulator{}, b.Stove)
	assert.Equal(t, "stove", b.Stove.ID())

	rec, err := b.Tracker.Get(context.Background(), "stove")
	require.NoError(t, err)
	assert.Equal(t, maintenance.DefaultTargetHours, rec.TargetHours)
}

func TestNewBootstrap_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Redis:       config.RedisConfig{Addr: mr.Addr()},
		Idempotency: config.IdempotencyConfig{Store: "redis"},
		Maintenance: config.MaintenanceConfig{Store: "redis", TargetHours: 40},
	}
	b, err := NewBootstrap(cfg)
	require.NoError(t, err)
	defer b.Close()

	require.NotNil(t, b.Redis)
	assert.IsType(t, &cache.RedisStore{}, b.ResultCache)
	assert.IsType(t, &maintenance.RedisStore{}, b.Counters)

	rec, err := b.Tracker.SetTarget(context.Background(), "stove", 45)
	require.NoError(t, err)
	assert.Equal(t, 45.0, rec.TargetHours)
	assert.True(t, mr.Exists(maintenance.CounterKey("stove")))
}

func TestNewBootstrap_Errors(t *testing.T) {
	_, err := NewBootstrap(&config.Config{Maintenance: config.MaintenanceConfig{Store: "etcd"}})
	assert.Error(t, err)

	_, err = NewBootstrap(&config.Config{Device: config.DeviceConfig{Stove: config.StoveConfig{Driver: "vendor"}}})
	assert.Error(t, err)

	_, err = NewBootstrap(&config.Config{Secrets: config.SecretsConfig{Provider: "kms"}})
	assert.Error(t, err)
}

func TestAlertLogger(t *testing.T) {
	var buf bytes.Buffer
	n := AlertLogger(log.New(&buf, slog.LevelDebug, true))
	n.NotifyMaintenance(maintenance.Alert{DeviceID: "stove", Level: 1, Record: maintenance.Record{CurrentHours: 41, TargetHours: 50}})
	n.NotifyMaintenance(maintenance.Alert{DeviceID: "stove", Level: 2, Record: maintenance.Record{CurrentHours: 50, TargetHours: 50, NeedsCleaning: true}})

	out := buf.String()
	assert.Contains(t, out, "设备即将需要清洁")
	assert.Contains(t, out, "设备需要清洁")
}
