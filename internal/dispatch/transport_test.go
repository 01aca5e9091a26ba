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
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "home-panel/pkg/errors"
)

// newTestTransport 不真正睡眠，记录每次退避时长
func newTestTransport(baseURL string, opts TransportOptions) (*Transport, *[]time.Duration) {
	tr := NewTransport(resty.New().SetBaseURL(baseURL), opts, nil)
	delays := &[]time.Duration{}
	tr.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	tr.jitter = func() float64 { return 0 }
	return tr, delays
}

// scriptedServer 按顺序返回给定状态码，用尽后固定返回最后一个
func scriptedServer(t *testing.T, statuses []int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&hits, 1))
		status := statuses[len(statuses)-1]
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 200 && status < 300 {
			_, _ = w.Write([]byte(`{"success":true}`))
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestTransport_RetryThenSuccess(t *testing.T) {
	srv, hits := scriptedServer(t, []int{503, 503, 200}, "")
	tr, delays := newTestTransport(srv.URL, TransportOptions{})

	var seen []int
	resp, err := tr.Do(context.Background(), Request{URL: "/api/stove/ignite"}, func(n int) { seen = append(seen, n) })
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)
}

func TestTransport_ExhaustsAttempts(t *testing.T) {
	srv, hits := scriptedServer(t, []int{500}, "")
	tr, _ := newTestTransport(srv.URL, TransportOptions{})

	resp, err := tr.Do(context.Background(), Request{URL: "/api/stove/ignite"}, nil)
	assert.Nil(t, resp)
	var retryErr *RetryError
	require.True(t, errors.As(err, &retryErr))
	assert.Equal(t, 3, retryErr.Attempts)
	assert.Equal(t, "retries exhausted", retryErr.Message)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Response.StatusCode)
}

func TestTransport_ClientErrorIsFatal(t *testing.T) {
	srv, hits := scriptedServer(t, []int{400}, `{"success":false,"error":"level out of range","code":"VALIDATION_ERROR"}`)
	tr, delays := newTestTransport(srv.URL, TransportOptions{})

	resp, err := tr.Do(context.Background(), Request{URL: "/api/stove/power", Body: map[string]int{"level": 9}}, nil)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, apperrors.KindValidation, statusErr.App.Kind)
	assert.Equal(t, "level out of range", statusErr.App.Message)
	assert.Equal(t, 1, resp.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.Empty(t, *delays)
}

func TestTransport_NonRetryableCodeOn5xx(t *testing.T) {
	srv, hits := scriptedServer(t, []int{503}, `{"success":false,"error":"not connected","code":"DEVICE_NOT_CONNECTED"}`)
	tr, _ := newTestTransport(srv.URL, TransportOptions{})

	_, err := tr.Do(context.Background(), Request{URL: "/api/stove/ignite"}, nil)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, apperrors.KindDeviceNotConnected, statusErr.App.Kind)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestTransport_RateLimitedHonoursRetryAfter(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	tr, delays := newTestTransport(srv.URL, TransportOptions{})

	resp, err := tr.Do(context.Background(), Request{URL: "/x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, []time.Duration{5 * time.Second}, *delays)
}

func TestTransport_WaitBudget(t *testing.T) {
	srv, hits := scriptedServer(t, []int{503}, "")
	tr, _ := newTestTransport(srv.URL, TransportOptions{
		MaxAttempts:  5,
		BaseDelay:    time.Second,
		MaxDelay:     8 * time.Second,
		MaxTotalWait: 2 * time.Second,
	})

	_, err := tr.Do(context.Background(), Request{URL: "/x"}, nil)
	var retryErr *RetryError
	require.True(t, errors.As(err, &retryErr))
	assert.Equal(t, "retry wait budget exceeded", retryErr.Message)
	assert.Equal(t, 2, retryErr.Attempts)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestTransport_NetworkErrorRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	tr, delays := newTestTransport(url, TransportOptions{})

	_, err := tr.Do(context.Background(), Request{URL: "/x"}, nil)
	var retryErr *RetryError
	require.True(t, errors.As(err, &retryErr))
	assert.Equal(t, 3, retryErr.Attempts)
	assert.Len(t, *delays, 2)
}

func TestTransport_Backoff(t *testing.T) {
	tr, _ := newTestTransport("http://unused", TransportOptions{})
	assert.Equal(t, time.Second, tr.backoff(1, 0))
	assert.Equal(t, 2*time.Second, tr.backoff(2, 0))
	assert.Equal(t, 4*time.Second, tr.backoff(3, 0))
	assert.Equal(t, 8*time.Second, tr.backoff(4, 0))
	assert.Equal(t, 8*time.Second, tr.backoff(10, 0))
	assert.Equal(t, 8*time.Second, tr.backoff(1, time.Minute), "Retry-After is capped")

	tr.jitter = func() float64 { return 0.5 }
	assert.InDelta(t, float64(time.Second+150*time.Millisecond), float64(tr.backoff(1, 0)), float64(time.Millisecond))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Duration(0), parseRetryAfter("", now))
	assert.Equal(t, 3*time.Second, parseRetryAfter("3", now))
	assert.Equal(t, 10*time.Second, parseRetryAfter(now.Add(10*time.Second).Format(http.TimeFormat), now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon", now))
}
