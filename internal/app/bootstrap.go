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
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"home-panel/internal/device"
	"home-panel/internal/maintenance"
	"home-panel/internal/storage/cache"
	"home-panel/pkg/config"
	"home-panel/pkg/log"
	"home-panel/pkg/secrets"
)

// initTimeout 外部依赖（Redis/Postgres/Vault）初始化的超时
const initTimeout = 10 * time.Second

// Bootstrap 统一初始化：供 api 与 worker 复用，避免在 cmd 内写装配逻辑
type Bootstrap struct {
	Config      *config.Config
	Logger      *log.Logger
	Redis       redis.UniversalClient
	Postgres    *pgxpool.Pool
	Secrets     secrets.Store
	ResultCache cache.Store
	Counters    maintenance.Store
	Tracker     *maintenance.Tracker
	Stove       device.Controller
}

// NewBootstrap 根据配置创建 Bootstrap（Logger/Redis/Postgres/Secrets/Stores/Device）
func NewBootstrap(cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	b := &Bootstrap{Config: cfg, Logger: logger}
	if err := b.init(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bootstrap) init(ctx context.Context) error {
	cfg := b.Config

	if cfg.Idempotency.Store == "redis" || cfg.Maintenance.Store == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.Redis = rdb
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("连接 Redis 失败: %w", err)
		}
	}

	if cfg.Maintenance.Store == "postgres" {
		pool, err := maintenance.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("连接 Postgres 失败: %w", err)
		}
		b.Postgres = pool
	}

	store, err := secrets.NewStore(secrets.Config{
		Provider:  cfg.Secrets.Provider,
		EnvPrefix: cfg.Secrets.EnvPrefix,
		Vault: secrets.VaultConfig{
			Address:    cfg.Secrets.Vault.Address,
			Token:      cfg.Secrets.Vault.Token,
			PathPrefix: cfg.Secrets.Vault.PathPrefix,
		},
	})
	if err != nil {
		return fmt.Errorf("初始化 secret store 失败: %w", err)
	}
	b.Secrets = store

	b.ResultCache, err = cache.NewStore(cfg.Idempotency, b.Redis)
	if err != nil {
		return fmt.Errorf("初始化幂等结果缓存失败: %w", err)
	}

	b.Counters, err = maintenance.NewStore(cfg.Maintenance, b.Redis, b.Postgres)
	if err != nil {
		return fmt.Errorf("初始化维护计数存储失败: %w", err)
	}
	if pg, ok := b.Counters.(*maintenance.PostgresStore); ok {
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("初始化维护计数表失败: %w", err)
		}
	}
	b.Tracker = maintenance.NewTracker(b.Counters, maintenance.PolicyFromConfig(cfg.Maintenance),
		maintenance.WithTrackerLogger(b.Logger),
		maintenance.WithAlertNotifier(AlertLogger(b.Logger)),
	)

	b.Stove, err = device.NewStove(ctx, cfg.Device.Stove, b.Secrets, b.Logger)
	if err != nil {
		return fmt.Errorf("初始化壁炉控制器失败: %w", err)
	}

	b.Logger.Info("初始化完成",
		"idempotency_store", storeName(cfg.Idempotency.Store),
		"maintenance_store", storeName(cfg.Maintenance.Store),
		"stove_driver", cfg.Device.Stove.Driver,
	)
	return nil
}

// Close 释放存储与连接
func (b *Bootstrap) Close() error {
	var errs []error
	if b.ResultCache != nil {
		errs = append(errs, b.ResultCache.Close())
	}
	if b.Counters != nil {
		errs = append(errs, b.Counters.Close())
	}
	if b.Redis != nil {
		errs = append(errs, b.Redis.Close())
	}
	if b.Postgres != nil {
		b.Postgres.Close()
	}
	return errors.Join(errs...)
}

// AlertLogger 维护提醒写入日志
func AlertLogger(logger *log.Logger) maintenance.AlertNotifier {
	return maintenance.AlertNotifierFunc(func(a maintenance.Alert) {
		if a.Record.NeedsCleaning {
			logger.Warn("设备需要清洁", "device", a.DeviceID, "level", a.Level,
				"current_hours", a.Record.CurrentHours, "target_hours", a.Record.TargetHours)
			return
		}
		logger.Info("设备即将需要清洁", "device", a.DeviceID, "level", a.Level,
			"progress", a.Record.Progress())
	})
}

func storeName(s string) string {
	if s == "" {
		return "memory"
	}
	return s
}
