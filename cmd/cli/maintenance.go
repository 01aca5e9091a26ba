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
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"home-panel/internal/dispatch"
)

func maintenanceCommand(deviceID, action, method string, body any) dispatch.Command {
	path := "/api/maintenance/" + url.PathEscape(deviceID)
	if action != "get" {
		path += "/" + action
	}
	return dispatch.Command{Device: deviceID, Action: "maintenance." + action, Method: method, URL: path, Body: body}
}

func newMaintenanceCommand(opts *RootOptions) *cobra.Command {
	var deviceID string
	var active bool

	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "维护计数（运行时长与清洁提醒）",
	}
	cmd.PersistentFlags().StringVarP(&deviceID, "device", "d", stoveDevice, "设备 ID")

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "读取维护计数",
		Args:  cobra.NoArgs,
		RunE: dispatchRunE(opts, func([]string) (dispatch.Command, error) {
			return maintenanceCommand(deviceID, "get", http.MethodGet, nil), nil
		}),
	})

	track := &cobra.Command{
		Use:   "track",
		Short: "手动记录一次运行/熄火采样",
		Args:  cobra.NoArgs,
		RunE: dispatchRunE(opts, func([]string) (dispatch.Command, error) {
			return maintenanceCommand(deviceID, "track", http.MethodPost, map[string]any{"active": active}), nil
		}),
	}
	track.Flags().BoolVar(&active, "active", true, "采样时设备是否在运行")
	cmd.AddCommand(track)

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "确认已完成清洁，计数归零",
		Args:  cobra.NoArgs,
		RunE: dispatchRunE(opts, func([]string) (dispatch.Command, error) {
			return maintenanceCommand(deviceID, "reset", http.MethodPost, nil), nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "target <hours>",
		Short: "设置清洁周期（小时）",
		Args:  cobra.ExactArgs(1),
		RunE: dispatchRunE(opts, func(args []string) (dispatch.Command, error) {
			hours, err := strconv.ParseFloat(args[0], 64)
			if err != nil || hours <= 0 {
				return dispatch.Command{}, fmt.Errorf("清洁周期必须为正数: %q", args[0])
			}
			return maintenanceCommand(deviceID, "target", http.MethodPost, map[string]any{"targetHours": hours}), nil
		}),
	})
	return cmd
}
