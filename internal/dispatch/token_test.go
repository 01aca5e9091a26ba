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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokenManager_SameRequestSameToken(t *testing.T) {
	m := NewTokenManager(time.Minute, TokenDeterministic)
	a, err := m.RegisterKey("/api/stove/power", map[string]any{"level": 3})
	require.NoError(t, err)
	b, err := m.RegisterKey("/api/stove/power", map[string]any{"level": 3})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "idem_"))
}

func TestTokenManager_NormalizesKeyOrder(t *testing.T) {
	m := NewTokenManager(time.Minute, TokenDeterministic)
	a, err := m.RegisterKey("/api/x", []byte(`{"b":2,"a":1}`))
	require.NoError(t, err)
	b, err := m.RegisterKey("/api/x", map[string]int{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTokenManager_DifferentContentDifferentToken(t *testing.T) {
	m := NewTokenManager(time.Minute, TokenDeterministic)
	a, _ := m.RegisterKey("/api/stove/power", map[string]any{"level": 3})
	b, _ := m.RegisterKey("/api/stove/power", map[string]any{"level": 4})
	c, _ := m.RegisterKey("/api/stove/ignite", nil)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestTokenManager_WindowExpiry(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m := NewTokenManager(30*time.Second, TokenDeterministic)
	m.now = fixedClock(base)
	a, _ := m.RegisterKey("/api/stove/ignite", nil)

	m.now = fixedClock(base.Add(10 * time.Second))
	b, _ := m.RegisterKey("/api/stove/ignite", nil)
	assert.Equal(t, a, b)

	m.now = fixedClock(base.Add(31 * time.Second))
	c, _ := m.RegisterKey("/api/stove/ignite", nil)
	assert.NotEqual(t, a, c)
}

func TestTokenManager_DeterministicAcrossRestart(t *testing.T) {
	at := time.Date(2026, 1, 1, 10, 0, 5, 0, time.UTC)
	first := NewTokenManager(30*time.Second, TokenDeterministic)
	first.now = fixedClock(at)
	second := NewTokenManager(30*time.Second, TokenDeterministic)
	second.now = fixedClock(at.Add(3 * time.Second))

	a, _ := first.RegisterKey("/api/stove/shutdown", nil)
	b, _ := second.RegisterKey("/api/stove/shutdown", nil)
	assert.Equal(t, a, b)
}

func TestTokenManager_RandomMode(t *testing.T) {
	m := NewTokenManager(time.Minute, TokenRandom)
	a, _ := m.RegisterKey("/api/stove/ignite", nil)
	b, _ := m.RegisterKey("/api/stove/ignite", nil)
	assert.Equal(t, a, b, "reused inside the window")

	other := NewTokenManager(time.Minute, TokenRandom)
	c, _ := other.RegisterKey("/api/stove/ignite", nil)
	assert.NotEqual(t, a, c)
	assert.Equal(t, 1, m.Len())
}

func TestTokenManager_HeldTokenOutlivesWindow(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m := NewTokenManager(30*time.Second, TokenRandom)
	m.now = fixedClock(base)

	held, release, err := m.Hold("/api/stove/ignite", nil)
	require.NoError(t, err)

	m.now = fixedClock(base.Add(90 * time.Second))
	again, err := m.RegisterKey("/api/stove/ignite", nil)
	require.NoError(t, err)
	assert.Equal(t, held, again)

	release()
	release()
	m.now = fixedClock(base.Add(110 * time.Second))
	afterRelease, _ := m.RegisterKey("/api/stove/ignite", nil)
	assert.Equal(t, held, afterRelease, "window restarts at release")

	m.now = fixedClock(base.Add(121 * time.Second))
	fresh, _ := m.RegisterKey("/api/stove/ignite", nil)
	assert.NotEqual(t, held, fresh)
	assert.Equal(t, 1, m.Len())
}
