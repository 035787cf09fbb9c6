package secrets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		name        string
		provider    string
		wantErr     bool
		errContains string
	}{
		{name: "memory", provider: "memory", wantErr: false},
		{name: "env", provider: "env", wantErr: false},
		{name: "default is env", provider: "", wantErr: false},
		{name: "unknown provider", provider: "unknown", wantErr: true, errContains: "unsupported secret provider"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewStore(Config{Provider: tc.provider})
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if tc.errContains != "" && !strings.Contains(err.Error(), tc.errContains) {
					t.Fatalf("error = %q, want contains %q", err.Error(), tc.errContains)
				}
				if store != nil {
					t.Fatalf("store should be nil when error occurs")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if store == nil {
				t.Fatalf("store should not be nil")
			}
		})
	}
}

func TestMemoryAndEnvStoreBasicContract(t *testing.T) {
	ctx := context.Background()
	stores := []Store{NewMemoryStore(), NewEnvStore()}

	for _, s := range stores {
		if err := s.Set(ctx, "secret_test_key", "value"); err != nil {
			t.Fatalf("set secret failed: %v", err)
		}
		got, err := s.Get(ctx, "secret_test_key")
		if err != nil {
			t.Fatalf("get secret failed: %v", err)
		}
		if got != "value" {
			t.Fatalf("get secret = %q, want value", got)
		}
		if err := s.Delete(ctx, "secret_test_key"); err != nil {
			t.Fatalf("delete secret failed: %v", err)
		}
		_, err = s.Get(ctx, "secret_test_key")
		if err == nil {
			t.Fatalf("expected error after delete")
		}
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "planner_api_key"), []byte("sk-abc\n"), 0600); err != nil {
		t.Fatalf("write secret file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "geocoder_api_key"), []byte("gk-xyz"), 0600); err != nil {
		t.Fatalf("write secret file: %v", err)
	}

	s, err := NewFileStore(FileConfig{Dir: dir})
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	got, err := s.Get(ctx, "planner_api_key")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "sk-abc" {
		t.Errorf("trailing newline should be stripped, got %q", got)
	}

	keys, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("list: got %d keys, want 2", len(keys))
	}

	if _, err := s.Get(ctx, "missing_key"); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestFileStore_MissingDir(t *testing.T) {
	if _, err := NewFileStore(FileConfig{Dir: "/nonexistent/secret/mount"}); err == nil {
		t.Fatal("expected error for missing mount dir")
	}
}
