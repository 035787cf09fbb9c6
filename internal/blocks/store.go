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
	"fmt"

	"drive-blocks/pkg/config"
)

// Store 工件存储接口。工件写入一次后不可变，重读字节稳定。
type Store interface {
	// Put 持久化成功 Job 的工件。keep_attempts=false 时覆盖同 snapshot 的历史 attempt。
	Put(ctx context.Context, a *Artifact) error
	// Latest 取快照最近一次成功的工件；不存在返回 nil, nil
	Latest(ctx context.Context, snapshotID string) (*Artifact, error)
	// Close 关闭存储连接
	Close() error
}

// NewStore 根据配置创建工件存储；keepAttempts 对应 jobs.keep_attempts
func NewStore(ctx context.Context, cfg config.MetadataConfig, keepAttempts bool) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(keepAttempts), nil
	case "postgres":
		return NewPgStore(ctx, cfg.DSN, keepAttempts)
	default:
		return nil, fmt.Errorf("unsupported artifact store type: %s", cfg.Type)
	}
}
