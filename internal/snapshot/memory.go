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

package snapshot

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore 内存快照存储
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]*Snapshot
}

// NewMemoryStore 创建内存快照存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Snapshot)}
}

// Create 持久化快照
func (m *MemoryStore) Create(ctx context.Context, s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[s.ID]; exists {
		return fmt.Errorf("snapshot already exists: %s", s.ID)
	}
	cp := *s
	m.byID[s.ID] = &cp
	return nil
}

// Get 按 ID 读取；不存在返回 nil, nil
func (m *MemoryStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// Close 关闭存储连接
func (m *MemoryStore) Close() error {
	return nil
}
