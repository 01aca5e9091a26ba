// Copyright 2026 fanjia1024
// Environment variable based secret store

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultEnvPrefix 环境变量 secret 的默认前缀
const DefaultEnvPrefix = "HOME_PANEL_"

var envKeyReplacer = strings.NewReplacer("-", "_", ".", "_", "/", "_")

type envStore struct {
	prefix string
}

// NewEnvStore 创建环境变量 secret store；key 规范化为大写下划线，Get 先查 prefix+KEY 再查 KEY
func NewEnvStore(prefix string) Store {
	return &envStore{prefix: prefix}
}

func (e *envStore) names(key string) []string {
	k := strings.ToUpper(envKeyReplacer.Replace(key))
	if e.prefix == "" {
		return []string{k}
	}
	return []string{e.prefix + k, k}
}

func (e *envStore) Get(ctx context.Context, key string) (string, error) {
	names := e.names(key)
	for _, name := range names {
		if value := os.Getenv(name); value != "" {
			return value, nil
		}
	}
	return "", fmt.Errorf("environment variable %s: %w", names[0], ErrSecretNotFound)
}

func (e *envStore) Set(ctx context.Context, key string, value string) error {
	return os.Setenv(e.names(key)[0], value)
}

func (e *envStore) Delete(ctx context.Context, key string) error {
	for _, name := range e.names(key) {
		if err := os.Unsetenv(name); err != nil {
			return err
		}
	}
	return nil
}
