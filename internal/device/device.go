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
// Package device 设备边界：HTTP handler 与采样 worker 只依赖 Controller，
// 具体实现为厂商云 API（VendorClient）或进程内模拟器（Simulator）。
package device

import (
	"context"
	"fmt"
	"time"

	apperrors "home-panel/pkg/errors"
)

// 功率档位范围
const (
	MinPower = 1
	MaxPower = 5
)

// State 壁炉运行状态
type State string

const (
	StateOff          State = "off"
	StateIgniting     State = "igniting"
	StateOn           State = "on"
	StateShuttingDown State = "shutting_down"
	StateError        State = "error"
)

// Status 设备状态快照
type Status struct {
	DeviceID     string    `json:"deviceId"`
	State        State     `json:"state"`
	Power        int       `json:"power"`
	ScheduleMode bool      `json:"scheduleMode"`
	Online       bool      `json:"online"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Active 是否在燃烧（计入运行时长）
func (s Status) Active() bool {
	return s.State == StateIgniting || s.State == StateOn
}

// Controller 壁炉控制接口
type Controller interface {
	ID() string
	Ignite(ctx context.Context) (Status, error)
	Shutdown(ctx context.Context) (Status, error)
	SetPower(ctx context.Context, level int) (Status, error)
	SetScheduleMode(ctx context.Context, enabled bool) (Status, error)
	Status(ctx context.Context) (Status, error)
}

// ValidatePower 功率档位校验
func ValidatePower(level int) error {
	if level < MinPower || level > MaxPower {
		return apperrors.New(apperrors.KindValidation,
			apperrors.WithMessage(fmt.Sprintf("功率档位需在 %d-%d 之间", MinPower, MaxPower)),
			apperrors.WithDetails(map[string]any{"level": level}))
	}
	return nil
}
