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
package maintenance

import (
	"context"
	"time"

	"home-panel/pkg/config"
	apperrors "home-panel/pkg/errors"
	"home-panel/pkg/log"
	"home-panel/pkg/metrics"
	"home-panel/pkg/tracing"
)

// Outcome Track 的结果；Tracked=false 且 Reason 非空表示采样被拒绝（预期情况，不是错误）
type Outcome struct {
	Tracked     bool
	Reason      Reason
	Record      Record
	AddedHours  float64
	LevelRaised bool
}

// Alert 提醒档位上升后发出的维护提醒
type Alert struct {
	DeviceID string
	Level    int
	Record   Record
	At       time.Time
}

// AlertNotifier 维护提醒投递
type AlertNotifier interface {
	NotifyMaintenance(a Alert)
}

// AlertNotifierFunc 函数适配器
type AlertNotifierFunc func(a Alert)

// NotifyMaintenance 实现 AlertNotifier
func (f AlertNotifierFunc) NotifyMaintenance(a Alert) { f(a) }

// Tracker 设备运行时长跟踪：把采样、清洁确认、目标调整转换为计数器事务
type Tracker struct {
	store    Store
	policy   Policy
	notifier AlertNotifier
	logger   *log.Logger
	now      func() time.Time
}

// TrackerOption Tracker 可选配置
type TrackerOption func(*Tracker)

// WithAlertNotifier 指定维护提醒投递
func WithAlertNotifier(n AlertNotifier) TrackerOption {
	return func(t *Tracker) { t.notifier = n }
}

// WithTrackerLogger 指定日志
func WithTrackerLogger(l *log.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = l }
}

// WithClock 指定时钟（测试用）
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// NewTracker 创建 Tracker
func NewTracker(store Store, policy Policy, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:  store,
		policy: policy.withDefaults(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = log.Nop()
	}
	t.logger = t.logger.Component("maintenance")
	return t
}

// PolicyFromConfig 将配置转换为 Policy
func PolicyFromConfig(cfg config.MaintenanceConfig) Policy {
	p := DefaultPolicy()
	if cfg.TargetHours > 0 {
		p.TargetHours = cfg.TargetHours
	}
	p.MinSampleInterval = config.ParseDuration(cfg.MinSampleInterval, DefaultMinSampleInterval)
	p.MaxSampleGap = config.ParseOptionalDuration(cfg.MaxSampleGap, DefaultMaxSampleGap)
	if len(cfg.NotifyThresholds) > 0 {
		p.NotifyThresholds = append([]float64(nil), cfg.NotifyThresholds...)
	}
	p.Saturate = cfg.Saturate
	return p
}

// Policy 生效的计数规则
func (t *Tracker) Policy() Policy { return t.policy }

// Track 记录一次采样；obs.At 为零时取当前时间
func (t *Tracker) Track(ctx context.Context, deviceID string, obs Observation) (Outcome, error) {
	if obs.At.IsZero() {
		obs.At = t.now()
	}
	d, err := t.transact(ctx, "track", deviceID, func(current *Record) Decision {
		return Accumulate(current, obs, t.policy)
	})
	if err != nil {
		return Outcome{}, err
	}
	if reason, rejected := d.Reason(); rejected {
		t.logger.Debug("采样被忽略", "device", deviceID, "reason", reason)
		return Outcome{Tracked: false, Reason: reason}, nil
	}
	rec, _ := d.Record()
	out := Outcome{
		Tracked:     true,
		Record:      rec,
		AddedHours:  d.AddedHours,
		LevelRaised: d.LevelRaised,
	}
	t.alert(deviceID, d)
	return out, nil
}

// Reset 确认清洁完成
func (t *Tracker) Reset(ctx context.Context, deviceID string) (Record, error) {
	now := t.now()
	d, err := t.transact(ctx, "reset", deviceID, func(current *Record) Decision {
		return Reset(current, now, t.policy)
	})
	if err != nil {
		return Record{}, err
	}
	rec, _ := d.Record()
	t.logger.Info("维护计数已重置", "device", deviceID)
	return rec, nil
}

// SetTarget 修改清洁周期
func (t *Tracker) SetTarget(ctx context.Context, deviceID string, hours float64) (Record, error) {
	d, err := t.transact(ctx, "set_target", deviceID, func(current *Record) Decision {
		return SetTarget(current, hours, t.policy)
	})
	if err != nil {
		return Record{}, err
	}
	if _, rejected := d.Reason(); rejected {
		return Record{}, apperrors.New(apperrors.KindValidation,
			apperrors.WithMessage("targetHours 必须大于 0"),
			apperrors.WithDetails(map[string]any{"targetHours": hours}))
	}
	rec, _ := d.Record()
	t.alert(deviceID, d)
	return rec, nil
}

// Get 读取计数器；从未采样过的设备返回按默认目标初始化的记录
func (t *Tracker) Get(ctx context.Context, deviceID string) (Record, error) {
	rec, err := t.store.Get(ctx, CounterKey(deviceID))
	if err != nil {
		return Record{}, err
	}
	if rec == nil {
		return Record{TargetHours: t.policy.TargetHours}, nil
	}
	if rec.TargetHours <= 0 {
		rec.TargetHours = t.policy.TargetHours
	}
	return *rec, nil
}

// EnsureServiceable 需要清洁时返回 MAINTENANCE_REQUIRED
func (t *Tracker) EnsureServiceable(ctx context.Context, deviceID string) error {
	rec, err := t.Get(ctx, deviceID)
	if err != nil {
		return err
	}
	if rec.NeedsCleaning {
		return apperrors.New(apperrors.KindMaintenance, apperrors.WithDetails(map[string]any{
			"device":       deviceID,
			"currentHours": rec.CurrentHours,
			"targetHours":  rec.TargetHours,
		}))
	}
	return nil
}

func (t *Tracker) transact(ctx context.Context, op, deviceID string, fn TxFunc) (Decision, error) {
	key := CounterKey(deviceID)
	ctx, span := tracing.StartCounterSpan(ctx, op, key)
	d, err := t.store.Transact(ctx, key, fn)
	tracing.EndSpan(span, err)

	switch {
	case err != nil:
		metrics.CounterTxTotal.WithLabelValues(op, "error").Inc()
		t.logger.Error("计数器事务失败", "device", deviceID, "op", op, "error", err)
	case d.IsApplied():
		metrics.CounterTxTotal.WithLabelValues(op, "applied").Inc()
	default:
		metrics.CounterTxTotal.WithLabelValues(op, "rejected").Inc()
	}
	return d, err
}

// alert 提交成功后再投递，冲突重试期间不会重复提醒
func (t *Tracker) alert(deviceID string, d Decision) {
	if !d.LevelRaised {
		return
	}
	rec, _ := d.Record()
	t.logger.Warn("维护提醒", "device", deviceID, "level", rec.LastNotificationLevel,
		"current_hours", rec.CurrentHours, "target_hours", rec.TargetHours)
	if t.notifier != nil {
		t.notifier.NotifyMaintenance(Alert{
			DeviceID: deviceID,
			Level:    rec.LastNotificationLevel,
			Record:   rec,
			At:       t.now(),
		})
	}
}
