// Copyright 2026 fanjia1024
// Secret Store 抽象：设备厂商 API Key 等敏感配置的统一读取入口

package secrets

import (
	"context"
	"errors"
	"fmt"
)

// ErrSecretNotFound secret 不存在
var ErrSecretNotFound = errors.New("secret not found")

// Store Secret 读写接口
type Store interface {
	// Get 读取 secret 值，不存在时返回包装 ErrSecretNotFound 的错误
	Get(ctx context.Context, key string) (string, error)

	// Set 写入 secret 值
	Set(ctx context.Context, key string, value string) error

	// Delete 删除 secret
	Delete(ctx context.Context, key string) error
}

// Config Secret Store 配置
type Config struct {
	Provider  string // env | memory | vault
	EnvPrefix string // env provider 的变量前缀
	Vault     VaultConfig
}

// NewStore 创建 Secret Store；空 provider 视为 env
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "", "env":
		return NewEnvStore(config.EnvPrefix), nil
	case "memory":
		return NewMemoryStore(nil), nil
	case "vault":
		return NewVaultStore(config.Vault)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Provider)
	}
}

// Resolve 读取 key；key 为空时返回空串，便于可选凭证
func Resolve(ctx context.Context, s Store, key string) (string, error) {
	if s == nil || key == "" {
		return "", nil
	}
	return s.Get(ctx, key)
}
