package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeVault 最小 KV v2 读写，路径即 key
func fakeVault(t *testing.T) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	data := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "test-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			v, ok := data[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"errors":[]}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"data": map[string]any{"value": v}},
			})
		case http.MethodPut, http.MethodPost:
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			data[r.URL.Path], _ = body["value"].(string)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			delete(data, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVaultStore(t *testing.T) {
	srv := fakeVault(t)
	ctx := context.Background()

	s, err := NewVaultStore(VaultConfig{Address: srv.URL, Token: "test-token", PathPrefix: "secret/home-panel"})
	if err != nil {
		t.Fatalf("NewVaultStore: %v", err)
	}

	if _, err := s.Get(ctx, "STOVE_API_KEY"); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("missing secret: got %v, want ErrSecretNotFound", err)
	}
	if err := s.Set(ctx, "STOVE_API_KEY", "vendor-key"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "STOVE_API_KEY")
	if err != nil || got != "vendor-key" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if err := s.Delete(ctx, "STOVE_API_KEY"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "STOVE_API_KEY"); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("after delete: got %v", err)
	}
}

func TestVaultStore_Forbidden(t *testing.T) {
	srv := fakeVault(t)
	s, err := NewVaultStore(VaultConfig{Address: srv.URL, Token: "wrong"})
	if err != nil {
		t.Fatalf("NewVaultStore: %v", err)
	}
	if _, err := s.Get(context.Background(), "k"); err == nil || errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("forbidden read should surface a vault error, got %v", err)
	}
}
