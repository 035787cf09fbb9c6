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

package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"drive-blocks/pkg/config"
)

// DefaultRetryCooldown 幂等重入冷却默认值
const DefaultRetryCooldown = 30 * time.Second

var (
	// ErrNotFound job 不存在
	ErrNotFound = errors.New("job: not found")
	// ErrConflict 更新谓词不满足：当前状态/阶段不是期望的前驱。
	// 终态转换单写者靠它保证，不靠锁。
	ErrConflict = errors.New("job: state conflict")
)

// Registry Job 注册表。
// Enqueue 幂等：同快照已有非终态 Job 或冷却期内的终态 Job 时原样返回既有句柄；
// 终态且过冷却才 upsert 出新 attempt。
type Registry interface {
	// Enqueue 幂等入队；created 为 true 表示新建或翻新了 attempt
	Enqueue(ctx context.Context, snapshotID string) (j *Job, created bool, err error)
	// Advance 阶段推进；from 必须是 to 的合法前驱，否则 ErrConflict
	Advance(ctx context.Context, jobID string, to Phase) (*Job, error)
	// Complete 写终态；仅 pending/in_progress 可转，重复写终态返回 ErrConflict
	Complete(ctx context.Context, jobID string, outcome Outcome) (*Job, error)
	// Read 按 job id 读取
	Read(ctx context.Context, jobID string) (*Job, error)
	// ReadBySnapshot 按 snapshot id 读取
	ReadBySnapshot(ctx context.Context, snapshotID string) (*Job, error)
	// Close 关闭底层连接
	Close() error
}

// NewRegistry 根据配置创建注册表
func NewRegistry(ctx context.Context, storeCfg config.MetadataConfig, jobsCfg config.JobsConfig) (Registry, error) {
	cooldown := config.Duration(jobsCfg.RetryCooldown, DefaultRetryCooldown)
	switch storeCfg.Type {
	case "", "memory":
		return NewMemoryRegistry(cooldown), nil
	case "postgres":
		return NewPgRegistry(ctx, storeCfg.DSN, cooldown)
	default:
		return nil, fmt.Errorf("unsupported job registry type: %s", storeCfg.Type)
	}
}
