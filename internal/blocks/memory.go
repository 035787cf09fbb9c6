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

package blocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore 内存实现。工件入库即序列化为 JSON 字节，
// 读取从同一份字节反解，保证重读字节稳定。
type MemoryStore struct {
	mu           sync.RWMutex
	keepAttempts bool
	// bySnapshot 按 attempt 升序保存的序列化工件
	bySnapshot map[string][][]byte
}

// NewMemoryStore 创建内存工件存储
func NewMemoryStore(keepAttempts bool) *MemoryStore {
	return &MemoryStore{
		keepAttempts: keepAttempts,
		bySnapshot:   make(map[string][][]byte),
	}
}

// Put 持久化工件；keep_attempts=false 时覆盖同快照历史
func (s *MemoryStore) Put(_ context.Context, a *Artifact) error {
	if a == nil || a.SnapshotID == "" {
		return fmt.Errorf("artifact missing snapshot id")
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("序列化工件 failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keepAttempts {
		s.bySnapshot[a.SnapshotID] = append(s.bySnapshot[a.SnapshotID], raw)
	} else {
		s.bySnapshot[a.SnapshotID] = [][]byte{raw}
	}
	return nil
}

// Latest 取最近一次写入的工件；不存在返回 nil, nil
func (s *MemoryStore) Latest(_ context.Context, snapshotID string) (*Artifact, error) {
	s.mu.RLock()
	attempts := s.bySnapshot[snapshotID]
	s.mu.RUnlock()
	if len(attempts) == 0 {
		return nil, nil
	}
	var a Artifact
	if err := json.Unmarshal(attempts[len(attempts)-1], &a); err != nil {
		return nil, fmt.Errorf("反序列化工件 failed: %w", err)
	}
	return &a, nil
}

// Close 实现 Store 接口
func (s *MemoryStore) Close() error {
	return nil
}
