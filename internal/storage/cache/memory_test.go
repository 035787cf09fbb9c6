package cache

import (
	"context"
	"testing"
	"time"

	"drive-blocks/pkg/config"
)

func TestMemoryStore_Set_Get_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Set(ctx, "k1", "v1", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var v string
	if err := s.Get(ctx, "k1", &v); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "v1" {
		t.Errorf("Get: got %q", v)
	}
	if err := s.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Get(ctx, "k1", &v); !IsMiss(err) {
		t.Errorf("Get after Delete: want miss, got %v", err)
	}
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	var v string
	err := s.Get(ctx, "missing", &v)
	if !IsMiss(err) {
		t.Errorf("Get missing: want ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_Expiration(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Set(ctx, "k", "v", time.Nanosecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	var v string
	if err := s.Get(ctx, "k", &v); !IsMiss(err) {
		t.Errorf("Get expired: want miss, got %v", err)
	}
	ok, err := s.Exists(ctx, "k")
	if err != nil || ok {
		t.Errorf("Exists expired: ok=%v err=%v", ok, err)
	}
}

func TestMemoryStore_NoExpiration(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Set(ctx, "coord_32.896800_-97.038000", map[string]float64{"lat": 32.8968}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var v map[string]float64
	if err := s.Get(ctx, "coord_32.896800_-97.038000", &v); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v["lat"] != 32.8968 {
		t.Errorf("Get: got %v", v)
	}
}

func TestMemoryStore_Exists(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ok, err := s.Exists(ctx, "k")
	if err != nil || ok {
		t.Errorf("Exists missing: ok=%v err=%v", ok, err)
	}
	_ = s.Set(ctx, "k", "v", 0)
	ok, err = s.Exists(ctx, "k")
	if err != nil || !ok {
		t.Errorf("Exists present: ok=%v err=%v", ok, err)
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, "k1", "v1", 0)
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	var v string
	if !IsMiss(s.Get(ctx, "k1", &v)) {
		t.Error("Get after Clear should be a miss")
	}
}

func TestNewCache_UnsupportedType(t *testing.T) {
	if _, err := NewCache(config.CacheConfig{Type: "bolt"}); err == nil {
		t.Fatal("expected error for unsupported cache type")
	}
	s, err := NewCache(config.CacheConfig{})
	if err != nil {
		t.Fatalf("NewCache default: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("default cache should be memory, got %T", s)
	}
}
