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

// Package errors 统一错误分类：Kind → HTTP 状态码 → 是否可重试 → 默认提示。
// 客户端（dispatch）与服务端（api/http）都只通过本包判断错误语义。
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")
)

// AppError 带分类的错误值
type AppError struct {
	Kind    Kind
	Status  int
	Message string
	Details map[string]any
	Err     error
}

// Option New 的可选参数
type Option func(*AppError)

// WithMessage 覆盖默认提示
func WithMessage(msg string) Option {
	return func(e *AppError) {
		if msg != "" {
			e.Message = msg
		}
	}
}

// WithStatus 覆盖默认状态码
func WithStatus(status int) Option {
	return func(e *AppError) {
		if status > 0 {
			e.Status = status
		}
	}
}

// WithDetails 附加结构化细节
func WithDetails(details map[string]any) Option {
	return func(e *AppError) {
		if len(details) > 0 {
			e.Details = details
		}
	}
}

// WithCause 记录底层错误，供 errors.Is/As 使用
func WithCause(err error) Option {
	return func(e *AppError) {
		e.Err = err
	}
}

// New 按 kind 创建 AppError；未知 kind 退化为 INTERNAL_ERROR 的状态与提示
func New(kind Kind, opts ...Option) *AppError {
	info := lookup(kind)
	e := &AppError{
		Kind:    kind,
		Status:  info.status,
		Message: info.message,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Newf 以格式化消息创建 AppError
func Newf(kind Kind, format string, args ...any) *AppError {
	return New(kind, WithMessage(fmt.Sprintf(format, args...)))
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 同 Kind 的 AppError 视为相等，便于 errors.Is(err, New(KindTimeout))
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable 传输层是否应重试
func (e *AppError) Retryable() bool {
	return e.Kind.Retryable()
}

// Reconnect 是否需要用户重新授权设备
func (e *AppError) Reconnect() bool {
	return e.Kind.Reconnect()
}

// Body 错误的线上表示 {error, code, details?}
type Body struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// Response 序列化为 Body
func (e *AppError) Response() Body {
	return Body{
		Error:   e.Message,
		Code:    string(e.Kind),
		Details: e.Details,
	}
}

// As 取出错误链中的 *AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsRetryable err 为 nil 时返回 false；未分类错误按遗留规则映射后判断
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return FromLegacy(err).Retryable()
}

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
