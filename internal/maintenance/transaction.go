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
	"time"
)

// Reason 事务被拒绝的原因
type Reason string

const (
	// ReasonTooSoon 距上次采样不足最小间隔
	ReasonTooSoon Reason = "too_soon"
	// ReasonClockSkew 采样时间早于上次更新时间
	ReasonClockSkew Reason = "clock_skew"
	// ReasonInvalid 参数无效（如目标时长 <= 0）
	ReasonInvalid Reason = "invalid"
)

// Decision 事务结果：Applied(record) 或 Rejected(reason)，二者必居其一
type Decision struct {
	applied bool
	record  Record
	reason  Reason

	// AddedHours 本次累加的小时数
	AddedHours float64
	// Anchored 本次只移动了 LastUpdatedAt 而未累加
	Anchored bool
	// LevelRaised 提醒档位上升
	LevelRaised bool
}

// Applied 构造提交结果
func Applied(r Record) Decision {
	return Decision{applied: true, record: r}
}

// Rejected 构造拒绝结果；存储层不会写入
func Rejected(reason Reason) Decision {
	return Decision{reason: reason}
}

// Record 返回待提交的记录；ok=false 表示事务被拒绝
func (d Decision) Record() (Record, bool) {
	return d.record, d.applied
}

// Reason 返回拒绝原因；ok=false 表示事务已提交
func (d Decision) Reason() (Reason, bool) {
	return d.reason, !d.applied
}

// IsApplied 是否需要提交
func (d Decision) IsApplied() bool { return d.applied }

// TxFunc 纯事务函数：current 为 nil 表示记录不存在。不得有副作用，可能被多次调用。
type TxFunc func(current *Record) Decision

// Accumulate 将一次采样累加到计数器
func Accumulate(current *Record, obs Observation, policy Policy) Decision {
	p := policy.withDefaults()
	rec := initial(current, p)
	at := obs.At

	if rec.LastUpdatedAt == nil {
		rec.LastUpdatedAt = &at
		d := Applied(rec)
		d.Anchored = true
		return d
	}

	elapsed := at.Sub(*rec.LastUpdatedAt)
	if elapsed < 0 {
		return Rejected(ReasonClockSkew)
	}
	if elapsed < p.MinSampleInterval {
		return Rejected(ReasonTooSoon)
	}
	if !obs.Active || (p.MaxSampleGap > 0 && elapsed > p.MaxSampleGap) {
		rec.LastUpdatedAt = &at
		d := Applied(rec)
		d.Anchored = true
		return d
	}

	added := elapsed.Hours()
	rec.CurrentHours += added
	rec.LastUpdatedAt = &at
	if rec.CurrentHours >= rec.TargetHours {
		rec.NeedsCleaning = true
		if p.Saturate {
			rec.CurrentHours = rec.TargetHours
		}
	}
	raised := false
	if level := p.Level(rec.Progress()); level > rec.LastNotificationLevel {
		rec.LastNotificationLevel = level
		raised = true
	}

	d := Applied(rec)
	d.AddedHours = added
	d.LevelRaised = raised
	return d
}

// Reset 确认已完成清洁：清零计数、清除标记与提醒档位，保留目标时长，以 now 重新锚定
func Reset(current *Record, now time.Time, policy Policy) Decision {
	p := policy.withDefaults()
	rec := initial(current, p)
	rec.CurrentHours = 0
	rec.NeedsCleaning = false
	rec.LastNotificationLevel = 0
	rec.LastUpdatedAt = &now
	return Applied(rec)
}

// SetTarget 修改清洁周期；按新目标重新计算标记，提醒档位不回退
func SetTarget(current *Record, hours float64, policy Policy) Decision {
	if hours <= 0 {
		return Rejected(ReasonInvalid)
	}
	p := policy.withDefaults()
	rec := initial(current, p)
	rec.TargetHours = hours
	rec.NeedsCleaning = rec.NeedsCleaning || rec.CurrentHours >= hours
	d := Applied(rec)
	if level := p.Level(rec.Progress()); level > rec.LastNotificationLevel {
		rec.LastNotificationLevel = level
		d = Applied(rec)
		d.LevelRaised = true
	}
	return d
}

func initial(current *Record, p Policy) Record {
	if current == nil {
		return Record{TargetHours: p.TargetHours}
	}
	rec := current.Clone()
	if rec.TargetHours <= 0 {
		rec.TargetHours = p.TargetHours
	}
	return rec
}
