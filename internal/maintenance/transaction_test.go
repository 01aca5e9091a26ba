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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

func recordAt(hours, target float64, last time.Time) *Record {
	return &Record{CurrentHours: hours, TargetHours: target, LastUpdatedAt: &last}
}

func TestAccumulate_FirstObservationAnchors(t *testing.T) {
	d := Accumulate(nil, Observation{At: t0, Active: true}, DefaultPolicy())
	rec, ok := d.Record()
	require.True(t, ok)
	assert.True(t, d.Anchored)
	assert.Equal(t, 0.0, rec.CurrentHours)
	assert.Equal(t, DefaultTargetHours, rec.TargetHours)
	require.NotNil(t, rec.LastUpdatedAt)
	assert.True(t, rec.LastUpdatedAt.Equal(t0))
}

func TestAccumulate_TooSoon(t *testing.T) {
	current := recordAt(10, 50, t0)
	d := Accumulate(current, Observation{At: at(10 * time.Second), Active: true}, DefaultPolicy())
	reason, rejected := d.Reason()
	require.True(t, rejected)
	assert.Equal(t, ReasonTooSoon, reason)
	assert.Equal(t, 10.0, current.CurrentHours, "input record untouched")
}

func TestAccumulate_ClockSkew(t *testing.T) {
	d := Accumulate(recordAt(10, 50, t0), Observation{At: at(-time.Minute), Active: true}, DefaultPolicy())
	reason, rejected := d.Reason()
	require.True(t, rejected)
	assert.Equal(t, ReasonClockSkew, reason)
}

func TestAccumulate_AddsElapsedHours(t *testing.T) {
	current := recordAt(10, 50, t0)
	d := Accumulate(current, Observation{At: at(2 * time.Minute), Active: true}, DefaultPolicy())
	rec, ok := d.Record()
	require.True(t, ok)
	assert.InDelta(t, 2.0/60, d.AddedHours, 1e-9)
	assert.Greater(t, rec.CurrentHours, 10.0)
	assert.Less(t, rec.CurrentHours, 10.05)
	assert.True(t, rec.LastUpdatedAt.Equal(at(2*time.Minute)))
	assert.False(t, rec.NeedsCleaning)
	assert.True(t, current.LastUpdatedAt.Equal(t0), "pure: input pointer not advanced")
}

func TestAccumulate_ThresholdCrossing(t *testing.T) {
	d := Accumulate(recordAt(49.98, 50, t0), Observation{At: at(2 * time.Minute), Active: true}, DefaultPolicy())
	rec, ok := d.Record()
	require.True(t, ok)
	assert.True(t, rec.NeedsCleaning)
	assert.GreaterOrEqual(t, rec.CurrentHours, 50.0)
	assert.Equal(t, 2, rec.LastNotificationLevel)
	assert.True(t, d.LevelRaised)
}

func TestAccumulate_Saturate(t *testing.T) {
	p := DefaultPolicy()
	p.Saturate = true
	rec, _ := Accumulate(recordAt(49.98, 50, t0), Observation{At: at(5 * time.Minute), Active: true}, p).Record()
	assert.Equal(t, 50.0, rec.CurrentHours)
	assert.True(t, rec.NeedsCleaning)
}

func TestAccumulate_NotificationLevelMonotonic(t *testing.T) {
	current := recordAt(40.5, 50, t0)
	d := Accumulate(current, Observation{At: at(time.Minute), Active: true}, DefaultPolicy())
	rec, _ := d.Record()
	assert.Equal(t, 1, rec.LastNotificationLevel)
	assert.True(t, d.LevelRaised)

	// 档位不随目标调高而回退
	d = SetTarget(&rec, 100, DefaultPolicy())
	rec, _ = d.Record()
	assert.Equal(t, 1, rec.LastNotificationLevel)
	assert.False(t, d.LevelRaised)

	d = Accumulate(&rec, Observation{At: at(2 * time.Minute), Active: true}, DefaultPolicy())
	rec, _ = d.Record()
	assert.Equal(t, 1, rec.LastNotificationLevel)
	assert.False(t, d.LevelRaised)
}

func TestAccumulate_InactiveReanchors(t *testing.T) {
	d := Accumulate(recordAt(10, 50, t0), Observation{At: at(time.Hour), Active: false}, DefaultPolicy())
	rec, ok := d.Record()
	require.True(t, ok)
	assert.True(t, d.Anchored)
	assert.Equal(t, 10.0, rec.CurrentHours)
	assert.True(t, rec.LastUpdatedAt.Equal(at(time.Hour)))
}

func TestAccumulate_LongGapReanchors(t *testing.T) {
	p := DefaultPolicy()
	p.MaxSampleGap = 10 * time.Minute
	d := Accumulate(recordAt(10, 50, t0), Observation{At: at(3 * time.Hour), Active: true}, p)
	rec, _ := d.Record()
	assert.True(t, d.Anchored)
	assert.Equal(t, 10.0, rec.CurrentHours)

	p.MaxSampleGap = 0
	rec, _ = Accumulate(recordAt(10, 50, t0), Observation{At: at(3 * time.Hour), Active: true}, p).Record()
	assert.InDelta(t, 13.0, rec.CurrentHours, 1e-9)
}

func TestAccumulate_DefaultPolicyCountsCommandSpacedSamples(t *testing.T) {
	// 无周期采样时，两次命令间隔 15 分钟且一直运行，应累计 0.25 小时
	d := Accumulate(recordAt(10, 50, t0), Observation{At: at(15 * time.Minute), Active: true}, DefaultPolicy())
	rec, ok := d.Record()
	require.True(t, ok)
	assert.False(t, d.Anchored)
	assert.InDelta(t, 10.25, rec.CurrentHours, 1e-9)
}

func TestAccumulate_CustomMinInterval(t *testing.T) {
	p := DefaultPolicy()
	p.MinSampleInterval = 5 * time.Second
	_, ok := Accumulate(recordAt(0, 50, t0), Observation{At: at(10 * time.Second), Active: true}, p).Record()
	assert.True(t, ok)
}

func TestReset(t *testing.T) {
	current := recordAt(51, 60, t0)
	current.NeedsCleaning = true
	current.LastNotificationLevel = 2
	rec, ok := Reset(current, at(time.Hour), DefaultPolicy()).Record()
	require.True(t, ok)
	assert.Equal(t, 0.0, rec.CurrentHours)
	assert.Equal(t, 60.0, rec.TargetHours)
	assert.False(t, rec.NeedsCleaning)
	assert.Equal(t, 0, rec.LastNotificationLevel)
	assert.True(t, rec.LastUpdatedAt.Equal(at(time.Hour)))
}

func TestSetTarget(t *testing.T) {
	_, rejected := SetTarget(nil, 0, DefaultPolicy()).Reason()
	assert.True(t, rejected)

	d := SetTarget(recordAt(45, 50, t0), 40, DefaultPolicy())
	rec, ok := d.Record()
	require.True(t, ok)
	assert.Equal(t, 40.0, rec.TargetHours)
	assert.True(t, rec.NeedsCleaning)
	assert.Equal(t, 2, rec.LastNotificationLevel)
	assert.True(t, d.LevelRaised)
}

func TestPolicyLevel(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 0, p.Level(0.5))
	assert.Equal(t, 1, p.Level(0.8))
	assert.Equal(t, 2, p.Level(1.2))
}
