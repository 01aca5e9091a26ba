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
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"home-panel/internal/dispatch"
	"home-panel/pkg/config"
	apperrors "home-panel/pkg/errors"
	"home-panel/pkg/log"
)

// session 一次 CLI 调用的派发上下文
type session struct {
	dispatcher *dispatch.Dispatcher
	out        io.Writer
	errOut     io.Writer
	in         *bufio.Reader
	prompt     bool

	failure *dispatch.Notification
}

func newSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := config.LoadCLIConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.BaseURL != "" {
		cfg.Dispatcher.BaseURL = opts.BaseURL
	}
	level := slog.LevelError
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := log.New(cmd.ErrOrStderr(), level, true)

	s := &session{
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		in:     bufio.NewReader(cmd.InOrStdin()),
		prompt: opts.Prompt,
	}
	notifier := dispatch.Fanout{dispatch.LogNotifier{Logger: logger}, dispatch.NotifierFunc(s.notify)}
	s.dispatcher = dispatch.NewFromConfig(cfg.Dispatcher, notifier, logger)
	return s, nil
}

func (s *session) notify(n dispatch.Notification) {
	switch n.Kind {
	case dispatch.NotifyFailed:
		s.failure = &n
		fmt.Fprintf(s.errOut, "✗ %s 失败: %s\n", n.OperationKey, n.Message)
		if appErr := apperrors.FromLegacy(n.Err); appErr.Reconnect() {
			fmt.Fprintln(s.errOut, "  设备授权已失效，请在面板中重新连接")
		}
	case dispatch.NotifyRecovered:
		fmt.Fprintf(s.errOut, "✓ %s %s\n", n.OperationKey, n.Message)
	}
}

// run 派发命令；失败时按通知上的动作询问重试，直到成功或放弃
func (s *session) run(ctx context.Context, cmd dispatch.Command) error {
	resp := s.dispatcher.Execute(ctx, cmd)
	for resp == nil {
		lastErr := s.dispatcher.State().LastError
		if lastErr == nil {
			return nil
		}
		if s.failure == nil || s.failure.Action == nil || !s.confirm(s.failure.Action.Label) {
			return lastErr
		}
		resp = s.failure.Action.Run(ctx)
	}
	return s.print(resp)
}

func (s *session) confirm(label string) bool {
	if !s.prompt {
		return false
	}
	fmt.Fprintf(s.errOut, "%s? [y/N] ", label)
	line, err := s.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(s.errOut)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (s *session) print(resp *dispatch.Response) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, resp.Body, "", "  "); err != nil {
		_, err = s.out.Write(resp.Body)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(s.out)
	return err
}

// dispatchRunE 构造命令并派发
func dispatchRunE(opts *RootOptions, build func(args []string) (dispatch.Command, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		command, err := build(args)
		if err != nil {
			return err
		}
		s, err := newSession(opts, cmd)
		if err != nil {
			return err
		}
		return s.run(cmd.Context(), command)
	}
}
