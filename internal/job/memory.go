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
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRegistry 内存实现；单进程内并发 Enqueue 靠互斥锁保证恰好一行
type MemoryRegistry struct {
	mu         sync.Mutex
	jobs       map[string]*Job
	bySnapshot map[string]string // snapshot_id -> job_id
	cooldown   time.Duration
}

// NewMemoryRegistry 创建内存注册表
func NewMemoryRegistry(cooldown time.Duration) *MemoryRegistry {
	if cooldown <= 0 {
		cooldown = DefaultRetryCooldown
	}
	return &MemoryRegistry{
		jobs:       make(map[string]*Job),
		bySnapshot: make(map[string]string),
		cooldown:   cooldown,
	}
}

// Enqueue 幂等入队
func (r *MemoryRegistry) Enqueue(ctx context.Context, snapshotID string) (*Job, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if id, ok := r.bySnapshot[snapshotID]; ok {
		j := r.jobs[id]
		if !j.Status.Terminal() || now.Sub(j.UpdatedAt) < r.cooldown {
			return j.clone(), false, nil
		}
		// 终态且过冷却：翻新 attempt，同一 job 行
		j.Attempt++
		j.Status = StatusPending
		j.Phase = PhaseIdle
		j.CorrelationID = "corr-" + uuid.New().String()
		j.PhaseTimings = nil
		j.PhaseStartedAt = time.Time{}
		j.ErrorCode = ""
		j.ErrorMessage = ""
		j.UpdatedAt = now
		return j.clone(), true, nil
	}

	j := &Job{
		ID:            "job-" + uuid.New().String(),
		SnapshotID:    snapshotID,
		Status:        StatusPending,
		Phase:         PhaseIdle,
		Attempt:       1,
		CorrelationID: "corr-" + uuid.New().String(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.jobs[j.ID] = j
	r.bySnapshot[snapshotID] = j.ID
	return j.clone(), true, nil
}

// Advance 阶段推进；结算上一阶段耗时
func (r *MemoryRegistry) Advance(ctx context.Context, jobID string, to Phase) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	if j.Status.Terminal() || !CanAdvance(j.Phase, to) {
		return nil, ErrConflict
	}

	now := time.Now().UTC()
	if !j.PhaseStartedAt.IsZero() {
		if j.PhaseTimings == nil {
			j.PhaseTimings = make(map[Phase]int64)
		}
		j.PhaseTimings[j.Phase] = now.Sub(j.PhaseStartedAt).Milliseconds()
	}
	j.Phase = to
	j.PhaseStartedAt = now
	j.Status = StatusInProgress
	j.UpdatedAt = now
	return j.clone(), nil
}

// Complete 写终态
func (r *MemoryRegistry) Complete(ctx context.Context, jobID string, outcome Outcome) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	if j.Status.Terminal() || !outcome.Status.Terminal() {
		return nil, ErrConflict
	}

	now := time.Now().UTC()
	if !j.PhaseStartedAt.IsZero() {
		if j.PhaseTimings == nil {
			j.PhaseTimings = make(map[Phase]int64)
		}
		j.PhaseTimings[j.Phase] = now.Sub(j.PhaseStartedAt).Milliseconds()
	}
	j.Status = outcome.Status
	j.ErrorCode = outcome.Code
	j.ErrorMessage = outcome.Message
	j.UpdatedAt = now
	return j.clone(), nil
}

// Read 按 job id 读取
func (r *MemoryRegistry) Read(ctx context.Context, jobID string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return j.clone(), nil
}

// ReadBySnapshot 按 snapshot id 读取
func (r *MemoryRegistry) ReadBySnapshot(ctx context.Context, snapshotID string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.bySnapshot[snapshotID]
	if !ok {
		return nil, ErrNotFound
	}
	return r.jobs[id].clone(), nil
}

// Close 无资源可关
func (r *MemoryRegistry) Close() error { return nil }
