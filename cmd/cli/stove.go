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
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"home-panel/internal/device"
	"home-panel/internal/dispatch"
)

const stoveDevice = "stove"

func stoveCommand(action, method string, body any) dispatch.Command {
	path := "/api/stove/" + action
	return dispatch.Command{Device: stoveDevice, Action: action, Method: method, URL: path, Body: body}
}

func newStoveCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stove",
		Short: "壁炉控制",
	}

	simple := func(action, short string) *cobra.Command {
		return &cobra.Command{
			Use:   action,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: dispatchRunE(opts, func([]string) (dispatch.Command, error) {
				return stoveCommand(action, http.MethodPost, nil), nil
			}),
		}
	}
	cmd.AddCommand(simple("ignite", "点火"))
	cmd.AddCommand(simple("shutdown", "熄火"))

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "读取壁炉状态与维护计数",
		Args:  cobra.NoArgs,
		RunE: dispatchRunE(opts, func([]string) (dispatch.Command, error) {
			return stoveCommand("status", http.MethodGet, nil), nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "power <level>",
		Short: fmt.Sprintf("设置功率档位（%d-%d）", device.MinPower, device.MaxPower),
		Args:  cobra.ExactArgs(1),
		RunE: dispatchRunE(opts, func(args []string) (dispatch.Command, error) {
			level, err := strconv.Atoi(args[0])
			if err != nil {
				return dispatch.Command{}, fmt.Errorf("无效的功率档位 %q", args[0])
			}
			if err := device.ValidatePower(level); err != nil {
				return dispatch.Command{}, err
			}
			return stoveCommand("power", http.MethodPost, map[string]any{"level": level}), nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "schedule-mode <on|off>",
		Short:     "开关定时模式",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: dispatchRunE(opts, func(args []string) (dispatch.Command, error) {
			var enabled bool
			switch args[0] {
			case "on":
				enabled = true
			case "off":
			default:
				return dispatch.Command{}, fmt.Errorf("schedule-mode 只接受 on 或 off")
			}
			return stoveCommand("schedule-mode", http.MethodPost, map[string]any{"enabled": enabled}), nil
		}),
	})
	return cmd
}
