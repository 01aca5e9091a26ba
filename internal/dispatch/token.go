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
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTokenWindow 同一 (url, body) 复用同一幂等 token 的本地窗口
const DefaultTokenWindow = 60 * time.Second

// TokenMode token 生成方式
type TokenMode string

const (
	// TokenDeterministic 由 (url, body, 时间窗) 派生，进程重启后同窗口内得到相同 token
	TokenDeterministic TokenMode = "deterministic"
	// TokenRandom 随机 UUID，仅在本进程窗口内复用
	TokenRandom TokenMode = "random"
)

type tokenEntry struct {
	token     string
	createdAt time.Time
	holds     int
}

// TokenManager 为逻辑请求分配幂等 token；不访问服务端，只决定请求头里带什么
type TokenManager struct {
	mu      sync.Mutex
	entries map[string]tokenEntry
	window  time.Duration
	mode    TokenMode
	now     func() time.Time
}

// NewTokenManager 创建 TokenManager；window<=0 使用默认窗口，未知 mode 按 deterministic 处理
func NewTokenManager(window time.Duration, mode TokenMode) *TokenManager {
	if window <= 0 {
		window = DefaultTokenWindow
	}
	if mode != TokenRandom {
		mode = TokenDeterministic
	}
	return &TokenManager{
		entries: make(map[string]tokenEntry),
		window:  window,
		mode:    mode,
		now:     time.Now,
	}
}

// RegisterKey 返回 (url, body) 对应的 token：窗口内已有则复用，否则新建。
// 内容相同的两次请求在窗口内有意折叠为同一 token，因为其效果相同。
func (m *TokenManager) RegisterKey(url string, body any) (string, error) {
	token, _, err := m.register(url, body, false)
	return token, err
}

// Hold 同 RegisterKey，但在 release 之前 token 不会过期；release 后窗口从释放时刻重新计算
func (m *TokenManager) Hold(url string, body any) (token string, release func(), err error) {
	token, fp, err := m.register(url, body, true)
	if err != nil {
		return "", nil, err
	}
	var once sync.Once
	return token, func() { once.Do(func() { m.unhold(fp) }) }, nil
}

func (m *TokenManager) register(url string, body any, hold bool) (string, string, error) {
	normalized, err := normalizeBody(body)
	if err != nil {
		return "", "", fmt.Errorf("normalize body: %w", err)
	}
	fp := fingerprint(url, normalized)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.pruneLocked(now)
	e, ok := m.entries[fp]
	if !ok {
		e = tokenEntry{token: m.mint(fp, now), createdAt: now}
	}
	if hold {
		e.holds++
	}
	m.entries[fp] = e
	return e.token, fp, nil
}

func (m *TokenManager) mint(fp string, now time.Time) string {
	if m.mode == TokenRandom {
		return "idem_" + uuid.NewString()
	}
	bucket := now.UnixNano() / int64(m.window)
	sum := sha256.Sum256([]byte(fp + "\n" + strconv.FormatInt(bucket, 10)))
	return "idem_" + hex.EncodeToString(sum[:16])
}

func (m *TokenManager) unhold(fp string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[fp]
	if !ok || e.holds == 0 {
		return
	}
	e.holds--
	e.createdAt = m.now()
	m.entries[fp] = e
}

// Len 当前窗口内的 token 数
func (m *TokenManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(m.now())
	return len(m.entries)
}

func (m *TokenManager) pruneLocked(now time.Time) {
	for fp, e := range m.entries {
		if e.holds == 0 && now.Sub(e.createdAt) >= m.window {
			delete(m.entries, fp)
		}
	}
}

func fingerprint(url string, normalizedBody []byte) string {
	sum := sha256.Sum256(append([]byte(url+"\n"), normalizedBody...))
	return hex.EncodeToString(sum[:])
}

// normalizeBody 将 body 规范化为键有序的 JSON；[]byte/string 先按 JSON 解析，失败则按原文
func normalizeBody(body any) ([]byte, error) {
	var raw []byte
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		raw = b
	case string:
		raw = []byte(b)
	case json.RawMessage:
		raw = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw, nil
	}
	return json.Marshal(v)
}
