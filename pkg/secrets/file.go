// Copyright 2026 fanjia1024
// Mounted-file secret store (docker/k8s secret mounts)

package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileConfig 挂载文件 secret 配置
type FileConfig struct {
	// Dir 是 secret 文件挂载目录，每个文件名即 key，内容即值。
	// 默认 /run/secrets（docker secrets 的标准挂载点）。
	Dir string `mapstructure:"dir"`
}

type fileStore struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]string
}

// NewFileStore 创建挂载文件 secret store
func NewFileStore(config FileConfig) (Store, error) {
	dir := "/run/secrets"
	if config.Dir != "" {
		dir = config.Dir
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("secret mount dir not found: %s", dir)
	}

	return &fileStore{
		dir:   dir,
		cache: make(map[string]string),
	}, nil
}

func (f *fileStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.RLock()
	if val, ok := f.cache[key]; ok {
		f.mu.RUnlock()
		return val, nil
	}
	f.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(f.dir, key))
	if err != nil {
		return "", fmt.Errorf("secret not found: %s", key)
	}
	value := strings.TrimRight(string(data), "\n")

	f.mu.Lock()
	f.cache[key] = value
	f.mu.Unlock()
	return value, nil
}

// Set 挂载目录在容器内只读，仅写入进程内缓存
func (f *fileStore) Set(ctx context.Context, key string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache[key] = value
	return nil
}

func (f *fileStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cache, key)
	return nil
}

func (f *fileStore) List(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list secret mount dir: %w", err)
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key := e.Name()
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
