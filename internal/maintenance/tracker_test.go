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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"home-panel/pkg/config"
	apperrors "home-panel/pkg/errors"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestTracker(policy Policy) (*Tracker, *clock, *[]Alert) {
	c := &clock{now: t0}
	alerts := &[]Alert{}
	tr := NewTracker(NewMemoryStore(0), policy,
		WithClock(c.Now),
		WithAlertNotifier(AlertNotifierFunc(func(a Alert) { *alerts = append(*alerts, a) })),
	)
	return tr, c, alerts
}

func TestTracker_TrackLifecycle(t *testing.T) {
	ctx := context.Background()
	tr, c, _ := newTestTracker(DefaultPolicy())

	out, err := tr.Track(ctx, "stove", Observation{Active: true})
	require.NoError(t, err)
	assert.True(t, out.Tracked)
	assert.Equal(t, 0.0, out.Record.CurrentHours)

	c.Advance(10 * time.Second)
	out, err = tr.Track(ctx, "stove", Observation{Active: true})
	require.NoError(t, err, "too soon is not an error")
	assert.False(t, out.Tracked)
	assert.Equal(t, ReasonTooSoon, out.Reason)

	c.Advance(5 * time.Minute)
	out, err = tr.Track(ctx, "stove", Observation{Active: true})
	require.NoError(t, err)
	assert.True(t, out.Tracked)
	assert.InDelta(t, 310.0/3600, out.AddedHours, 1e-9)

	rec, err := tr.Get(ctx, "stove")
	require.NoError(t, err)
	assert.InDelta(t, 310.0/3600, rec.CurrentHours, 1e-9)
}

func TestTracker_AlertsOncePerLevel(t *testing.T) {
	ctx := context.Background()
	p := DefaultPolicy()
	p.TargetHours = 1
	p.MaxSampleGap = 0
	tr, c, alerts := newTestTracker(p)

	_, _ = tr.Track(ctx, "stove", Observation{Active: true})
	for i := 0; i < 14; i++ {
		c.Advance(5 * time.Minute)
		_, err := tr.Track(ctx, "stove", Observation{Active: true})
		require.NoError(t, err)
	}
	// 70 分钟：跨过 80% 与 100% 各一次
	require.Len(t, *alerts, 2)
	assert.Equal(t, 1, (*alerts)[0].Level)
	assert.Equal(t, 2, (*alerts)[1].Level)
	assert.Equal(t, "stove", (*alerts)[1].DeviceID)

	err := tr.EnsureServiceable(ctx, "stove")
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindMaintenance, appErr.Kind)

	rec, err := tr.Reset(ctx, "stove")
	require.NoError(t, err)
	assert.False(t, rec.NeedsCleaning)
	assert.Equal(t, 0, rec.LastNotificationLevel)
	assert.NoError(t, tr.EnsureServiceable(ctx, "stove"))
}

func TestTracker_SetTarget(t *testing.T) {
	ctx := context.Background()
	tr, _, _ := newTestTracker(DefaultPolicy())

	_, err := tr.SetTarget(ctx, "stove", -1)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindValidation, appErr.Kind)

	rec, err := tr.SetTarget(ctx, "stove", 80)
	require.NoError(t, err)
	assert.Equal(t, 80.0, rec.TargetHours)

	got, _ := tr.Get(ctx, "stove")
	assert.Equal(t, 80.0, got.TargetHours)
}

func TestTracker_GetUnknownDevice(t *testing.T) {
	tr, _, _ := newTestTracker(DefaultPolicy())
	rec, err := tr.Get(context.Background(), "router")
	require.NoError(t, err)
	assert.Equal(t, DefaultTargetHours, rec.TargetHours)
	assert.Nil(t, rec.LastUpdatedAt)
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFromConfig(config.MaintenanceConfig{
		TargetHours:       40,
		MinSampleInterval: "1m",
		NotifyThresholds:  []float64{0.5, 0.9, 1.0},
		Saturate:          true,
	})
	assert.Equal(t, 40.0, p.TargetHours)
	assert.Equal(t, time.Minute, p.MinSampleInterval)
	assert.Equal(t, time.Duration(0), p.MaxSampleGap)
	assert.Equal(t, []float64{0.5, 0.9, 1.0}, p.NotifyThresholds)
	assert.True(t, p.Saturate)

	d := PolicyFromConfig(config.MaintenanceConfig{})
	assert.Equal(t, DefaultTargetHours, d.TargetHours)
	assert.Equal(t, DefaultMinSampleInterval, d.MinSampleInterval)

	assert.Equal(t, 10*time.Minute, PolicyFromConfig(config.MaintenanceConfig{MaxSampleGap: "10m"}).MaxSampleGap)
	assert.Equal(t, time.Duration(0), PolicyFromConfig(config.MaintenanceConfig{MaxSampleGap: "0"}).MaxSampleGap)
}
