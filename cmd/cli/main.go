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
// panelctl 家庭面板命令行：经由 Dispatcher 向 API 发送壁炉与维护命令，失败时可交互重试
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// RootOptions 全局参数
type RootOptions struct {
	ConfigPath string
	BaseURL    string
	Verbose    bool
	Prompt     bool
}

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

// NewRootCommand 创建 panelctl 根命令
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "panelctl",
		Short:         "家庭面板命令行",
		Long:          "向 home-panel API 发送壁炉控制与维护命令；同一命令在重试间复用幂等 token。",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "配置文件（默认 configs/cli.yaml 或 $HOME_PANEL_CONFIG）")
	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", "", "API 地址，覆盖 dispatcher.base_url")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "输出调试日志")
	cmd.PersistentFlags().BoolVar(&opts.Prompt, "prompt", true, "失败时询问是否重试")

	cmd.AddCommand(newStoveCommand(opts))
	cmd.AddCommand(newMaintenanceCommand(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "显示版本",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "panelctl", version)
		},
	})
	return cmd
}
