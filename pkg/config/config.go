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

package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigEnv 指定配置文件路径的环境变量，优先于默认路径
const ConfigEnv = "HOME_PANEL_CONFIG"

// Config 应用配置结构体
type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Device      DeviceConfig      `mapstructure:"device"`
	Dispatcher  DispatcherConfig  `mapstructure:"dispatcher"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Secrets     SecretsConfig     `mapstructure:"secrets"`
	Log         LogConfig         `mapstructure:"log"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int        `mapstructure:"port"`
	Host    string     `mapstructure:"host"`
	Timeout string     `mapstructure:"timeout"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// RedisConfig 共享存储（幂等结果、计数器）使用的 Redis
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PostgresConfig 计数器存储 type=postgres 时使用
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// IdempotencyConfig 服务端幂等缓存
type IdempotencyConfig struct {
	Store     string `mapstructure:"store"`     // memory | redis
	Retention string `mapstructure:"retention"` // 逻辑过期时间，默认 1h
}

// MaintenanceConfig 运行时长计数器
type MaintenanceConfig struct {
	Store             string    `mapstructure:"store"`               // memory | redis | postgres
	TargetHours       float64   `mapstructure:"target_hours"`        // 清洁周期，<=0 默认 50
	MinSampleInterval string    `mapstructure:"min_sample_interval"` // 最小采样间隔，默认 30s
	MaxSampleGap      string    `mapstructure:"max_sample_gap"`      // 超过此间隔只重置锚点不累计，默认 0（关闭）
	NotifyThresholds  []float64 `mapstructure:"notify_thresholds"`   // 通知边界（占目标比例），默认 [0.8, 1.0]
	Saturate          bool      `mapstructure:"saturate"`            // 达到目标后是否封顶
	MaxTxRetries      int       `mapstructure:"max_tx_retries"`      // 乐观事务冲突重试上限，默认 10
}

// DeviceConfig 设备适配器
type DeviceConfig struct {
	Stove StoveConfig `mapstructure:"stove"`
}

// StoveConfig 壁炉厂商 API
type StoveConfig struct {
	Driver       string  `mapstructure:"driver"` // vendor | simulator
	ID           string  `mapstructure:"id"`
	BaseURL      string  `mapstructure:"base_url"`
	APIKeySecret string  `mapstructure:"api_key_secret"` // secrets store 中的 key
	Timeout      string  `mapstructure:"timeout"`
	RateLimitRPS float64 `mapstructure:"rate_limit_rps"`
	Burst        int     `mapstructure:"burst"`
}

// DispatcherConfig 客户端命令派发
type DispatcherConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	MaxAttempts    int     `mapstructure:"max_attempts"`
	BaseDelay      string  `mapstructure:"base_delay"`
	MaxDelay       string  `mapstructure:"max_delay"`
	MaxTotalWait   string  `mapstructure:"max_total_wait"`
	AttemptTimeout string  `mapstructure:"attempt_timeout"`
	JitterRatio    float64 `mapstructure:"jitter_ratio"`
	TokenWindow    string  `mapstructure:"token_window"`
	TokenMode      string  `mapstructure:"token_mode"` // deterministic | random
	DedupTTL       string  `mapstructure:"dedup_ttl"`
}

// WorkerConfig 运行时长采样 Worker
type WorkerConfig struct {
	SampleInterval string   `mapstructure:"sample_interval"`
	Devices        []string `mapstructure:"devices"`
}

// SecretsConfig secret store
type SecretsConfig struct {
	Provider  string      `mapstructure:"provider"` // env | memory | vault
	EnvPrefix string      `mapstructure:"env_prefix"`
	Vault     VaultConfig `mapstructure:"vault"`
}

// VaultConfig Vault 连接配置
type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	PathPrefix string `mapstructure:"path_prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("idempotency.store", "memory")
	v.SetDefault("idempotency.retention", "1h")
	v.SetDefault("maintenance.store", "memory")
	v.SetDefault("maintenance.target_hours", 50.0)
	v.SetDefault("maintenance.min_sample_interval", "30s")
	v.SetDefault("maintenance.notify_thresholds", []float64{0.8, 1.0})
	v.SetDefault("maintenance.max_tx_retries", 10)
	v.SetDefault("device.stove.driver", "simulator")
	v.SetDefault("device.stove.id", "stove")
	v.SetDefault("device.stove.timeout", "10s")
	v.SetDefault("device.stove.api_key_secret", "STOVE_API_KEY")
	v.SetDefault("dispatcher.base_url", "http://localhost:8080")
	v.SetDefault("dispatcher.max_attempts", 3)
	v.SetDefault("dispatcher.base_delay", "1s")
	v.SetDefault("dispatcher.max_delay", "8s")
	v.SetDefault("dispatcher.max_total_wait", "20s")
	v.SetDefault("dispatcher.attempt_timeout", "10s")
	v.SetDefault("dispatcher.jitter_ratio", 0.3)
	v.SetDefault("dispatcher.token_window", "60s")
	v.SetDefault("dispatcher.token_mode", "deterministic")
	v.SetDefault("dispatcher.dedup_ttl", "60s")
	v.SetDefault("worker.sample_interval", "1m")
	v.SetDefault("secrets.provider", "env")
	v.SetDefault("secrets.env_prefix", "HOME_PANEL_")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig 加载配置文件；configPath 为空时只使用默认值与环境变量
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("无法读取配置文件: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// replaceEnvVars 将 ${VAR} 形式的值替换为环境变量
func replaceEnvVars(config *Config) {
	for _, p := range []*string{
		&config.Redis.Password,
		&config.Postgres.DSN,
		&config.Secrets.Vault.Token,
		&config.Device.Stove.BaseURL,
	} {
		*p = expandEnv(*p)
	}
}

func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return s
	}
	envVar := strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}")
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return s
}

// loadWithFallback 优先使用 HOME_PANEL_CONFIG，其次默认路径；默认文件不存在时仅用默认值
func loadWithFallback(defaultPath string) (*Config, error) {
	if p := os.Getenv(ConfigEnv); p != "" {
		return LoadConfig(p)
	}
	if _, err := os.Stat(defaultPath); err != nil {
		log.Printf("[config] 未找到 %s，使用默认配置", defaultPath)
		return LoadConfig("")
	}
	return LoadConfig(defaultPath)
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return loadWithFallback("configs/api.yaml")
}

// LoadWorkerConfig 加载 Worker 配置（configs/worker.yaml）
func LoadWorkerConfig() (*Config, error) {
	return loadWithFallback("configs/worker.yaml")
}

// LoadCLIConfig 加载 CLI 配置；path 非空时直接使用
func LoadCLIConfig(path string) (*Config, error) {
	if path != "" {
		return LoadConfig(path)
	}
	return loadWithFallback("configs/cli.yaml")
}

// ParseDuration 解析时长字符串，无效或空时返回 defaultVal
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// ParseOptionalDuration 同 ParseDuration，但 "0" 等非正值表示关闭并返回 0
func ParseOptionalDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	if d < 0 {
		return 0
	}
	return d
}
