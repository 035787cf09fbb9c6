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
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore PostgreSQL 实现：artifacts 表，payload 存完整序列化字节。
// 主键 (snapshot_id, attempt)；keep_attempts=false 时写入前清掉历史行。
type PgStore struct {
	pool         *pgxpool.Pool
	keepAttempts bool
}

// NewPgStore 创建基于 PostgreSQL 的工件存储
func NewPgStore(ctx context.Context, dsn string, keepAttempts bool) (*PgStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PgStore{pool: pool, keepAttempts: keepAttempts}, nil
}

// Close 关闭连接池
func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}

// Put 持久化工件
func (s *PgStore) Put(ctx context.Context, a *Artifact) error {
	if a == nil || a.SnapshotID == "" {
		return fmt.Errorf("artifact missing snapshot id")
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("序列化工件 failed: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if !s.keepAttempts {
		if _, err := tx.Exec(ctx,
			`DELETE FROM artifacts WHERE snapshot_id = $1`, a.SnapshotID); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO artifacts (snapshot_id, attempt, job_id, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (snapshot_id, attempt) DO UPDATE SET job_id = $3, payload = $4, created_at = $5`,
		a.SnapshotID, a.Attempt, a.JobID, raw, a.CreatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Latest 取最大 attempt 的工件；不存在返回 nil, nil
func (s *PgStore) Latest(ctx context.Context, snapshotID string) (*Artifact, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM artifacts WHERE snapshot_id = $1 ORDER BY attempt DESC LIMIT 1`,
		snapshotID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("反序列化工件 failed: %w", err)
	}
	return &a, nil
}
