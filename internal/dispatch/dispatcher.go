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
	"sync"
	"time"

	apperrors "home-panel/pkg/errors"
	"home-panel/pkg/log"
	"home-panel/pkg/metrics"
	"home-panel/pkg/tracing"
)

// IdempotencyHeader 携带幂等 token 的请求头
const IdempotencyHeader = "Idempotency-Key"

// Command 一次用户命令
type Command struct {
	Device string
	Action string
	Method string
	URL    string
	Body   any
	Header map[string]string
}

// OperationKey 命令的去重 key
func (c Command) OperationKey() string {
	return OperationKey(c.Device, c.Action)
}

// State 可观察的派发状态快照
type State struct {
	IsExecuting  bool
	IsRetrying   bool
	AttemptCount int
	LastError    error
}

// Dispatcher 客户端命令派发器：去重 → 幂等 token → 有限重试 → 状态与通知。
// Execute/Retry 从不返回错误，失败记录在 State().LastError 中。
type Dispatcher struct {
	guard     *Guard
	tokens    *TokenManager
	transport *Transport
	notifier  Notifier
	logger    *log.Logger
	now       func() time.Time

	mu        sync.Mutex
	state     State
	executing int
	last      *Command
}

// Option Dispatcher 可选配置
type Option func(*Dispatcher)

// WithGuard 指定去重表（多个 Dispatcher 可共享）
func WithGuard(g *Guard) Option {
	return func(d *Dispatcher) { d.guard = g }
}

// WithTokenManager 指定 token 管理器
func WithTokenManager(m *TokenManager) Option {
	return func(d *Dispatcher) { d.tokens = m }
}

// WithNotifier 指定通知投递
func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) { d.notifier = n }
}

// WithLogger 指定日志
func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// settleMargin 派发最长耗时之外的余量
const settleMargin = 10 * time.Second

// SettleWindow 按传输参数估算一次派发从开始到结束的上限：每次尝试的超时加上退避总预算，再留余量。
// 去重标记与幂等 token 的过期时间都不应短于它。
func SettleWindow(o TransportOptions) time.Duration {
	o = o.withDefaults()
	return time.Duration(o.MaxAttempts)*o.AttemptTimeout + o.MaxTotalWait + settleMargin
}

func atLeast(d, floor time.Duration) time.Duration {
	if d < floor {
		return floor
	}
	return d
}

// NewDispatcher 创建 Dispatcher；未指定的组件使用默认实现
func NewDispatcher(transport *Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport: transport,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.transport == nil {
		d.transport = NewTransport(nil, TransportOptions{}, d.logger)
	}
	settle := SettleWindow(d.transport.Options())
	if d.guard == nil {
		d.guard = NewGuard(atLeast(DefaultDedupTTL, settle))
	}
	if d.tokens == nil {
		d.tokens = NewTokenManager(atLeast(DefaultTokenWindow, settle), TokenDeterministic)
	}
	if d.notifier == nil {
		d.notifier = nopNotifier{}
	}
	if d.logger == nil {
		d.logger = log.Nop()
	}
	d.logger = d.logger.Component("dispatcher")
	return d
}

// Execute 执行命令；同一操作已在途时返回 nil 且不发起调用，失败时也返回 nil（见 State）
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) *Response {
	return d.run(ctx, cmd, false)
}

// Retry 以完全相同的参数重新执行上一次命令；从未执行过时返回 nil
func (d *Dispatcher) Retry(ctx context.Context) *Response {
	d.mu.Lock()
	last := d.last
	d.mu.Unlock()
	if last == nil {
		return nil
	}
	return d.run(ctx, *last, true)
}

// ClearError 重置 LastError、AttemptCount、IsRetrying，不发起调用
func (d *Dispatcher) ClearError() {
	d.mu.Lock()
	d.state.LastError = nil
	d.state.AttemptCount = 0
	d.state.IsRetrying = false
	d.mu.Unlock()
}

// State 返回当前状态快照
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dispatcher) run(ctx context.Context, cmd Command, retrying bool) *Response {
	key := cmd.OperationKey()
	gen, ok := d.guard.Acquire(key)
	if !ok {
		metrics.DispatchTotal.WithLabelValues(key, "suppressed").Inc()
		d.logger.Debug("重复命令已忽略", "operation", key)
		return nil
	}
	metrics.DedupMarks.Set(float64(d.guard.Len()))
	defer func() {
		d.guard.Release(key, gen)
		metrics.DedupMarks.Set(float64(d.guard.Len()))
	}()

	d.begin(cmd, retrying)
	metrics.DispatchInFlight.Inc()
	defer metrics.DispatchInFlight.Dec()

	token, release, err := d.tokens.Hold(cmd.URL, cmd.Body)
	if err != nil {
		d.fail(cmd, apperrors.New(apperrors.KindValidation, apperrors.WithMessage("命令参数无法序列化"), apperrors.WithCause(err)))
		return nil
	}
	metrics.IdempotencyTokens.Set(float64(d.tokens.Len()))
	defer release()

	header := make(map[string]string, len(cmd.Header)+1)
	for k, v := range cmd.Header {
		header[k] = v
	}
	header[IdempotencyHeader] = token

	ctx, span := tracing.StartDispatchSpan(ctx, key, token)
	resp, err := d.transport.Do(ctx, Request{
		Method: cmd.Method,
		URL:    cmd.URL,
		Header: header,
		Body:   cmd.Body,
	}, func(attempt int) {
		d.guard.Touch(key, gen)
		d.setAttempt(attempt)
	})
	tracing.EndSpan(span, err)

	if err != nil {
		d.fail(cmd, err)
		return nil
	}
	d.succeed(key)
	return resp
}

func (d *Dispatcher) begin(cmd Command, retrying bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := cmd
	d.last = &c
	d.executing++
	d.state.IsExecuting = true
	d.state.IsRetrying = retrying
	d.state.AttemptCount = 0
}

func (d *Dispatcher) setAttempt(n int) {
	d.mu.Lock()
	d.state.AttemptCount = n
	d.mu.Unlock()
}

// finish 结束一次执行，返回执行前是否存在 LastError
func (d *Dispatcher) finish(err error) (hadError bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	hadError = d.state.LastError != nil
	d.state.LastError = err
	d.executing--
	d.state.IsExecuting = d.executing > 0
	d.state.IsRetrying = false
	return hadError
}

func (d *Dispatcher) succeed(key string) {
	hadError := d.finish(nil)
	metrics.DispatchTotal.WithLabelValues(key, "success").Inc()
	if hadError {
		d.notifier.Notify(Notification{
			Kind:         NotifyRecovered,
			OperationKey: key,
			Message:      "操作已成功完成",
			At:           d.now(),
		})
	}
}

// fail 记录失败并通知；通知里的重试动作绑定到失败的这条命令
func (d *Dispatcher) fail(cmd Command, err error) {
	key := cmd.OperationKey()
	d.finish(err)
	metrics.DispatchTotal.WithLabelValues(key, "failed").Inc()
	d.logger.Warn("命令执行失败", "operation", key, "error", err)
	retry := func(ctx context.Context) *Response { return d.run(ctx, cmd, true) }
	d.notifier.Notify(Notification{
		Kind:         NotifyFailed,
		OperationKey: key,
		Message:      apperrors.FromLegacy(err).Message,
		Err:          err,
		Persistent:   true,
		Action:       &Action{Label: "重试", Run: retry},
		At:           d.now(),
	})
}
