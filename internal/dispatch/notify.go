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

package dispatch

import (
	"context"
	"time"

	"home-panel/pkg/log"
)

// NotificationKind 通知类型
type NotificationKind string

const (
	// NotifyFailed 命令最终失败，常驻提示并附带「重试」动作
	NotifyFailed NotificationKind = "failed"
	// NotifyRecovered 之前失败的命令已成功
	NotifyRecovered NotificationKind = "recovered"
)

// Action 通知上可触发的动作
type Action struct {
	Label string
	Run   func(ctx context.Context) *Response
}

// Notification Dispatcher 产出的通知值；如何展示由 Notifier 决定
type Notification struct {
	Kind         NotificationKind
	OperationKey string
	Message      string
	Err          error
	Persistent   bool
	Action       *Action
	At           time.Time
}

// Notifier 通知投递
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc 函数适配器
type NotifierFunc func(n Notification)

// Notify 实现 Notifier
func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier 将通知写入日志
type LogNotifier struct {
	Logger *log.Logger
}

// Notify 实现 Notifier
func (l LogNotifier) Notify(n Notification) {
	if l.Logger == nil {
		return
	}
	switch n.Kind {
	case NotifyFailed:
		l.Logger.Error("命令执行失败", "operation", n.OperationKey, "message", n.Message, "error", n.Err)
	default:
		l.Logger.Info("命令已恢复", "operation", n.OperationKey, "message", n.Message)
	}
}

// Fanout 依次投递给多个 Notifier
type Fanout []Notifier

// Notify 实现 Notifier
func (f Fanout) Notify(n Notification) {
	for _, x := range f {
		if x != nil {
			x.Notify(n)
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}
