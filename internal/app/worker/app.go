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
package worker

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"home-panel/internal/app"
	"home-panel/internal/device"
	"home-panel/internal/maintenance"
	"home-panel/pkg/config"
	"home-panel/pkg/log"
	"home-panel/pkg/tracing"
)

// DefaultSampleInterval 运行时长采样周期
const DefaultSampleInterval = time.Minute

// App Worker 应用：周期读取设备状态，把运行/熄火采样写入维护计数器
type App struct {
	bootstrap *app.Bootstrap
	logger    *log.Logger
	tracker   *maintenance.Tracker
	devices   []device.Controller
	interval  time.Duration
	tracer    *sdktrace.TracerProvider
	now       func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApp 创建 Worker 应用
func NewApp(cfg *config.Config) (*App, error) {
	bootstrap, err := app.NewBootstrap(cfg)
	if err != nil {
		return nil, err
	}
	a := newApp(bootstrap)

	t := bootstrap.Config.Monitoring.Tracing
	if t.Enable && t.ExportEndpoint != "" {
		serviceName := t.ServiceName
		if serviceName == "" {
			serviceName = "home-panel-worker"
		}
		tp, err := tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    serviceName,
			ExportEndpoint: t.ExportEndpoint,
			Insecure:       t.Insecure,
		})
		if err != nil {
			_ = bootstrap.Close()
			return nil, fmt.Errorf("初始化链路追踪失败: %w", err)
		}
		a.tracer = tp
	}
	return a, nil
}

func newApp(b *app.Bootstrap) *App {
	a := &App{
		bootstrap: b,
		logger:    b.Logger.Component("worker"),
		tracker:   b.Tracker,
		interval:  config.ParseDuration(b.Config.Worker.SampleInterval, DefaultSampleInterval),
		now:       time.Now,
	}
	// devices 为空时采样全部已配置设备
	for _, c := range []device.Controller{b.Stove} {
		if c == nil {
			continue
		}
		if ids := b.Config.Worker.Devices; len(ids) > 0 && !slices.Contains(ids, c.ID()) {
			continue
		}
		a.devices = append(a.devices, c)
	}
	return a
}

// Start 启动采样循环
func (a *App) Start() error {
	if len(a.devices) == 0 {
		return fmt.Errorf("没有需要采样的设备")
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.wg.Add(1)
	go a.loop(ctx)
	a.logger.Info("worker 应用启动成功", "interval", a.interval, "devices", len(a.devices))
	return nil
}

func (a *App) loop(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.SampleOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.SampleOnce(ctx)
		}
	}
}

// SampleOnce 对每台设备采样一次，返回计入计数器的设备数。
// 状态读取失败的设备跳过本轮，恢复后由最大采样间隔规则重新锚定
func (a *App) SampleOnce(ctx context.Context) int {
	tracked := 0
	for _, c := range a.devices {
		st, err := c.Status(ctx)
		if err != nil {
			a.logger.Warn("读取设备状态失败", "device", c.ID(), "error", err)
			continue
		}
		out, err := a.tracker.Track(ctx, c.ID(), maintenance.Observation{At: a.now(), Active: st.Active()})
		if err != nil {
			a.logger.Error("维护计数采样失败", "device", c.ID(), "error", err)
			continue
		}
		if !out.Tracked {
			a.logger.Debug("维护计数采样跳过", "device", c.ID(), "reason", out.Reason)
			continue
		}
		tracked++
	}
	return tracked
}

// Shutdown 关闭应用
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("关闭 worker 应用")
	if a.cancel != nil {
		a.cancel()
	}
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Error("关闭链路追踪失败", "error", err)
		}
	}
	return a.bootstrap.Close()
}
