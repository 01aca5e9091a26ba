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
// Package maintenance 维护计数器：累计设备运行时长，达到清洁周期后要求维护。
// 每次变更都是纯函数事务（Accumulate/Reset/SetTarget），由 Store 在乐观并发下提交，冲突时可能被重复调用。
package maintenance

import (
	"time"
)

// 业务常量，均可通过配置覆盖
const (
	// DefaultTargetHours 清洁周期（运行小时）
	DefaultTargetHours = 50.0
	// DefaultMinSampleInterval 两次采样的最小间隔，更密集的采样视为重复调用
	DefaultMinSampleInterval = 30 * time.Second
	// DefaultMaxSampleGap 默认不限制采样间隔；周期采样方可开启，超过该值只重新锚定不累计
	DefaultMaxSampleGap time.Duration = 0
	// DefaultNotifyThreshold 第一档提醒比例
	DefaultNotifyThreshold = 0.8
)

// DefaultNotifyThresholds 提醒档位：80%、100%
var DefaultNotifyThresholds = []float64{DefaultNotifyThreshold, 1.0}

// Record 单个设备的计数器
type Record struct {
	CurrentHours          float64    `json:"currentHours"`
	TargetHours           float64    `json:"targetHours"`
	LastUpdatedAt         *time.Time `json:"lastUpdatedAt"`
	NeedsCleaning         bool       `json:"needsCleaning"`
	LastNotificationLevel int        `json:"lastNotificationLevel"`
}

// Clone 深拷贝
func (r Record) Clone() Record {
	if r.LastUpdatedAt != nil {
		t := *r.LastUpdatedAt
		r.LastUpdatedAt = &t
	}
	return r
}

// Progress 当前时长占清洁周期的比例
func (r Record) Progress() float64 {
	if r.TargetHours <= 0 {
		return 0
	}
	return r.CurrentHours / r.TargetHours
}

// Observation 一次采样：At 时刻设备是否处于运行状态
type Observation struct {
	At     time.Time
	Active bool
}

// Policy 计数规则
type Policy struct {
	TargetHours       float64
	MinSampleInterval time.Duration
	MaxSampleGap      time.Duration // <=0 不限制
	NotifyThresholds  []float64     // 升序
	Saturate          bool          // 达到目标后封顶
}

// DefaultPolicy 默认规则
func DefaultPolicy() Policy {
	return Policy{
		TargetHours:       DefaultTargetHours,
		MinSampleInterval: DefaultMinSampleInterval,
		MaxSampleGap:      DefaultMaxSampleGap,
		NotifyThresholds:  append([]float64(nil), DefaultNotifyThresholds...),
	}
}

func (p Policy) withDefaults() Policy {
	if p.TargetHours <= 0 {
		p.TargetHours = DefaultTargetHours
	}
	if p.MinSampleInterval < 0 {
		p.MinSampleInterval = 0
	}
	if p.NotifyThresholds == nil {
		p.NotifyThresholds = DefaultNotifyThresholds
	}
	return p
}

// Level progress 跨过的提醒档位数
func (p Policy) Level(progress float64) int {
	n := 0
	for _, t := range p.NotifyThresholds {
		if progress >= t {
			n++
		}
	}
	return n
}
