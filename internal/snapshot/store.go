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

	"drive-blocks/pkg/config"
)

// Store 快照存储接口
type Store interface {
	// Create 持久化快照；同 ID 重复写入返回错误
	Create(ctx context.Context, s *Snapshot) error
	// Get 按 ID 读取；不存在返回 nil, nil
	Get(ctx context.Context, id string) (*Snapshot, error)
	// Close 关闭存储连接
	Close() error
}

// NewStore 根据配置创建快照存储
func NewStore(ctx context.Context, cfg config.MetadataConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPgStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported snapshot store type: %s", cfg.Type)
	}
}
