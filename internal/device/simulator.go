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
package device

import (
	"context"
	"sync"
	"time"

	apperrors "home-panel/pkg/errors"
)

// Simulator 进程内壁炉，用于开发环境与测试；Ignite/Shutdown 立即进入稳定状态
type Simulator struct {
	mu       sync.Mutex
	status   Status
	failNext []error
	calls    map[string]int
	now      func() time.Time
}

// NewSimulator 创建处于关闭状态、在线的模拟壁炉
func NewSimulator(id string) *Simulator {
	s := &Simulator{
		calls: make(map[string]int),
		now:   time.Now,
	}
	s.status = Status{DeviceID: id, State: StateOff, Power: MinPower, Online: true, UpdatedAt: s.now()}
	return s
}

// ID 设备 ID
func (s *Simulator) ID() string { return s.status.DeviceID }

// FailNext 之后的调用依次返回给定错误（每个错误消费一次）
func (s *Simulator) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = append(s.failNext, errs...)
}

// SetOnline 模拟设备掉线/恢复
func (s *Simulator) SetOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Online = online
}

// Calls 某个动作被执行（成功改变状态）的次数
func (s *Simulator) Calls(action string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[action]
}

// Ignite 点火
func (s *Simulator) Ignite(ctx context.Context) (Status, error) {
	return s.apply("ignite", func(st *Status) { st.State = StateOn })
}

// Shutdown 熄火
func (s *Simulator) Shutdown(ctx context.Context) (Status, error) {
	return s.apply("shutdown", func(st *Status) { st.State = StateOff })
}

// SetPower 设置功率档位
func (s *Simulator) SetPower(ctx context.Context, level int) (Status, error) {
	if err := ValidatePower(level); err != nil {
		return Status{}, err
	}
	return s.apply("power", func(st *Status) { st.Power = level })
}

// SetScheduleMode 开关定时模式
func (s *Simulator) SetScheduleMode(ctx context.Context, enabled bool) (Status, error) {
	return s.apply("schedule-mode", func(st *Status) { st.ScheduleMode = enabled })
}

// Status 读取状态
func (s *Simulator) Status(ctx context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return Status{}, err
	}
	return s.status, nil
}

func (s *Simulator) apply(action string, mutate func(st *Status)) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return Status{}, err
	}
	mutate(&s.status)
	s.status.UpdatedAt = s.now()
	s.calls[action]++
	return s.status, nil
}

func (s *Simulator) checkLocked() error {
	if len(s.failNext) > 0 {
		err := s.failNext[0]
		s.failNext = s.failNext[1:]
		return err
	}
	if !s.status.Online {
		return apperrors.New(apperrors.KindStoveOffline)
	}
	return nil
}
