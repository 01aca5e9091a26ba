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
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "home-panel/pkg/errors"
	"home-panel/pkg/log"
	"home-panel/pkg/metrics"
)

// 传输层默认值
const (
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = time.Second
	DefaultMaxDelay       = 8 * time.Second
	DefaultMaxTotalWait   = 20 * time.Second
	DefaultAttemptTimeout = 10 * time.Second
	DefaultJitterRatio    = 0.3
)

// Request 一次逻辑 HTTP 调用
type Request struct {
	Method string
	URL    string
	Header map[string]string
	Body   any
}

// Response 成功（或致命失败）时的响应快照
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
}

// RetryError 所有尝试均失败；Cause 为最后一次失败原因
type RetryError struct {
	Message  string
	Attempts int
	Cause    error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %v", e.Message, e.Attempts, e.Cause)
}

func (e *RetryError) Unwrap() error { return e.Cause }

// StatusError 非 2xx 响应；App 为按分类还原的错误
type StatusError struct {
	Response *Response
	App      *apperrors.AppError
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %v", e.Response.StatusCode, e.App)
}

func (e *StatusError) Unwrap() error { return e.App }

// TransportOptions 重试参数；零值字段使用默认值
type TransportOptions struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	MaxTotalWait   time.Duration
	AttemptTimeout time.Duration
	JitterRatio    float64
}

func (o TransportOptions) withDefaults() TransportOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.MaxTotalWait <= 0 {
		o.MaxTotalWait = DefaultMaxTotalWait
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = DefaultAttemptTimeout
	}
	if o.JitterRatio < 0 {
		o.JitterRatio = 0
	}
	return o
}

// Transport 带有限重试、指数退避与抖动的 HTTP 调用；不触碰任何幂等/去重状态
type Transport struct {
	client *resty.Client
	opts   TransportOptions
	logger *log.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// NewTransport 基于 resty 客户端创建 Transport；client 为 nil 时新建
func NewTransport(client *resty.Client, opts TransportOptions, logger *log.Logger) *Transport {
	if client == nil {
		client = resty.New()
	}
	if logger == nil {
		logger = log.Nop()
	}
	client.SetRetryCount(0)
	return &Transport{
		client: client,
		opts:   opts.withDefaults(),
		logger: logger.Component("transport"),
		sleep:  sleepContext,
		jitter: rand.Float64,
	}
}

// Options 生效的参数
func (t *Transport) Options() TransportOptions { return t.opts }

// Do 执行 req：网络错误、超时、5xx、429 重试；其他 4xx 或不可重试的错误码立即以 *StatusError 返回；
// 用尽次数或超过总等待上限时返回 *RetryError。onAttempt 可为 nil，每次尝试前以尝试序号调用。
func (t *Transport) Do(ctx context.Context, req Request, onAttempt func(attempt int)) (*Response, error) {
	var waited time.Duration
	for attempt := 1; ; attempt++ {
		if onAttempt != nil {
			onAttempt(attempt)
		}

		resp, err := t.once(ctx, req)
		var cause error
		var retryAfter time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, &RetryError{Message: "request cancelled", Attempts: attempt, Cause: ctx.Err()}
			}
			metrics.TransportAttempts.WithLabelValues("retryable").Inc()
			cause = err
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			metrics.TransportAttempts.WithLabelValues("ok").Inc()
			resp.Attempts = attempt
			return resp, nil
		default:
			resp.Attempts = attempt
			appErr := apperrors.FromResponse(resp.StatusCode, resp.Body)
			statusErr := &StatusError{Response: resp, App: appErr}
			if !retryableStatus(resp.StatusCode, appErr) {
				metrics.TransportAttempts.WithLabelValues("fatal").Inc()
				return resp, statusErr
			}
			metrics.TransportAttempts.WithLabelValues("retryable").Inc()
			cause = statusErr
			retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		}

		if attempt >= t.opts.MaxAttempts {
			return nil, &RetryError{Message: "retries exhausted", Attempts: attempt, Cause: cause}
		}
		delay := t.backoff(attempt, retryAfter)
		if waited+delay > t.opts.MaxTotalWait {
			return nil, &RetryError{Message: "retry wait budget exceeded", Attempts: attempt, Cause: cause}
		}
		t.logger.Debug("transport retry", "url", req.URL, "attempt", attempt, "delay", delay, "error", cause)
		if err := t.sleep(ctx, delay); err != nil {
			return nil, &RetryError{Message: "request cancelled", Attempts: attempt, Cause: err}
		}
		waited += delay
	}
}

// once 单次尝试，带独立超时
func (t *Transport) once(ctx context.Context, req Request) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, t.opts.AttemptTimeout)
	defer cancel()

	r := t.client.R().SetContext(attemptCtx)
	for k, v := range req.Header {
		r.SetHeader(k, v)
	}
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json")
		r.SetBody(req.Body)
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	resp, err := r.Execute(method, req.URL)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}

// backoff base*2^(attempt-1) + [0, base*jitterRatio) 的抖动，Retry-After 作为下限，MaxDelay 封顶
func (t *Transport) backoff(attempt int, retryAfter time.Duration) time.Duration {
	d := t.opts.BaseDelay << uint(attempt-1)
	if d <= 0 || d > t.opts.MaxDelay {
		d = t.opts.MaxDelay
	}
	if t.opts.JitterRatio > 0 {
		d += time.Duration(t.jitter() * t.opts.JitterRatio * float64(t.opts.BaseDelay))
	}
	if retryAfter > d {
		d = retryAfter
	}
	if d > t.opts.MaxDelay {
		d = t.opts.MaxDelay
	}
	return d
}

func retryableStatus(status int, appErr *apperrors.AppError) bool {
	if status != http.StatusTooManyRequests && status < 500 {
		return false
	}
	return appErr.Retryable()
}

func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
