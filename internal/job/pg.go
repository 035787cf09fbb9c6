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
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"drive-blocks/pkg/errors"
)

// PgRegistry PostgreSQL 实现：jobs 表，snapshot_id 唯一键。
// 瞬时失败（写冲突、连接抖动）指数退避重试至多三次，仍失败映射 storage_unavailable。
type PgRegistry struct {
	pool     *pgxpool.Pool
	cooldown time.Duration
}

// NewPgRegistry 创建 PostgreSQL 注册表
func NewPgRegistry(ctx context.Context, dsn string, cooldown time.Duration) (*PgRegistry, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if cooldown <= 0 {
		cooldown = DefaultRetryCooldown
	}
	return &PgRegistry{pool: pool, cooldown: cooldown}, nil
}

// Close 关闭连接池
func (r *PgRegistry) Close() error {
	r.pool.Close()
	return nil
}

// withRetry 指数退避重试，至多 3 次尝试；业务冲突（ErrConflict/ErrNotFound）不重试
func withRetry(ctx context.Context, op func() error) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	err := backoff.Retry(func() error {
		err := op()
		if stderrors.Is(err, ErrConflict) || stderrors.Is(err, ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
	if err != nil && !stderrors.Is(err, ErrConflict) && !stderrors.Is(err, ErrNotFound) {
		return errors.WithCode(err, errors.CodeStorageUnavailable)
	}
	return err
}

const jobColumns = `id, snapshot_id, status, phase, attempt, correlation_id, phase_timings, phase_started_at, error_code, error_message, created_at, updated_at`

// Enqueue 幂等入队：先 INSERT ON CONFLICT DO NOTHING；冲突则尝试冷却翻新，否则原样返回
func (r *PgRegistry) Enqueue(ctx context.Context, snapshotID string) (*Job, bool, error) {
	var out *Job
	var created bool
	err := withRetry(ctx, func() error {
		now := time.Now().UTC()
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
		tag, err := r.pool.Exec(ctx,
			`INSERT INTO jobs (id, snapshot_id, status, phase, attempt, correlation_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (snapshot_id) DO NOTHING`,
			j.ID, j.SnapshotID, j.Status, j.Phase, j.Attempt, j.CorrelationID, j.CreatedAt, j.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			out, created = j, true
			return nil
		}

		// 已有行：终态且过冷却才翻新 attempt
		row := r.pool.QueryRow(ctx,
			`UPDATE jobs SET attempt = attempt + 1, status = 'pending', phase = 'idle',
			        correlation_id = $2, phase_timings = NULL, phase_started_at = NULL,
			        error_code = NULL, error_message = NULL, updated_at = $3
			 WHERE snapshot_id = $1
			   AND status IN ('succeeded', 'failed', 'cancelled')
			   AND updated_at < $4
			 RETURNING `+jobColumns,
			snapshotID, "corr-"+uuid.New().String(), now, now.Add(-r.cooldown))
		refreshed, err := scanJob(row)
		if err == nil {
			out, created = refreshed, true
			return nil
		}
		if !stderrors.Is(err, pgx.ErrNoRows) {
			return err
		}

		existing, err := r.readBySnapshot(ctx, snapshotID)
		if err != nil {
			return err
		}
		out, created = existing, false
		return nil
	})
	return out, created, err
}

// Advance 阶段推进；谓词含期望前驱阶段，保证单写者与只进不退
func (r *PgRegistry) Advance(ctx context.Context, jobID string, to Phase) (*Job, error) {
	var out *Job
	err := withRetry(ctx, func() error {
		now := time.Now().UTC()
		row := r.pool.QueryRow(ctx,
			`UPDATE jobs SET phase = $2, status = 'in_progress',
			        phase_timings = CASE WHEN phase_started_at IS NULL THEN phase_timings
			            ELSE COALESCE(phase_timings, '{}'::jsonb) ||
			                 jsonb_build_object(phase::text, (EXTRACT(EPOCH FROM ($3::timestamptz - phase_started_at)) * 1000)::bigint) END,
			        phase_started_at = $3, updated_at = $3
			 WHERE id = $1 AND phase = $4
			   AND status IN ('pending', 'in_progress')
			 RETURNING `+jobColumns,
			jobID, to, now, to.prev())
		j, err := scanJob(row)
		if err != nil {
			if stderrors.Is(err, pgx.ErrNoRows) {
				return r.conflictOrMissing(ctx, jobID)
			}
			return err
		}
		out = j
		return nil
	})
	return out, err
}

// Complete 写终态；谓词排除已终态行
func (r *PgRegistry) Complete(ctx context.Context, jobID string, outcome Outcome) (*Job, error) {
	if !outcome.Status.Terminal() {
		return nil, ErrConflict
	}
	var out *Job
	err := withRetry(ctx, func() error {
		now := time.Now().UTC()
		row := r.pool.QueryRow(ctx,
			`UPDATE jobs SET status = $2, error_code = NULLIF($3, ''), error_message = NULLIF($4, ''),
			        phase_timings = CASE WHEN phase_started_at IS NULL THEN phase_timings
			            ELSE COALESCE(phase_timings, '{}'::jsonb) ||
			                 jsonb_build_object(phase::text, (EXTRACT(EPOCH FROM ($5::timestamptz - phase_started_at)) * 1000)::bigint) END,
			        updated_at = $5
			 WHERE id = $1 AND status IN ('pending', 'in_progress')
			 RETURNING `+jobColumns,
			jobID, outcome.Status, string(outcome.Code), outcome.Message, now)
		j, err := scanJob(row)
		if err != nil {
			if stderrors.Is(err, pgx.ErrNoRows) {
				return r.conflictOrMissing(ctx, jobID)
			}
			return err
		}
		out = j
		return nil
	})
	return out, err
}

// Read 按 job id 读取
func (r *PgRegistry) Read(ctx context.Context, jobID string) (*Job, error) {
	var out *Job
	err := withRetry(ctx, func() error {
		row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
		j, err := scanJob(row)
		if err != nil {
			if stderrors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		out = j
		return nil
	})
	return out, err
}

// ReadBySnapshot 按 snapshot id 读取
func (r *PgRegistry) ReadBySnapshot(ctx context.Context, snapshotID string) (*Job, error) {
	var out *Job
	err := withRetry(ctx, func() error {
		j, err := r.readBySnapshot(ctx, snapshotID)
		if err != nil {
			return err
		}
		out = j
		return nil
	})
	return out, err
}

func (r *PgRegistry) readBySnapshot(ctx context.Context, snapshotID string) (*Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE snapshot_id = $1`, snapshotID)
	j, err := scanJob(row)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return j, err
}

// conflictOrMissing UPDATE 无命中时区分行不存在与谓词不满足
func (r *PgRegistry) conflictOrMissing(ctx context.Context, jobID string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, jobID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	var timingsJSON []byte
	var phaseStartedAt *time.Time
	var errCode, errMsg *string
	if err := row.Scan(&j.ID, &j.SnapshotID, &j.Status, &j.Phase, &j.Attempt, &j.CorrelationID,
		&timingsJSON, &phaseStartedAt, &errCode, &errMsg, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	if len(timingsJSON) > 0 {
		var m map[Phase]int64
		if err := json.Unmarshal(timingsJSON, &m); err == nil {
			j.PhaseTimings = m
		}
	}
	if phaseStartedAt != nil {
		j.PhaseStartedAt = phaseStartedAt.UTC()
	}
	if errCode != nil {
		j.ErrorCode = errors.Code(*errCode)
	}
	if errMsg != nil {
		j.ErrorMessage = *errMsg
	}
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	return &j, nil
}
