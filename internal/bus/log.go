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

package bus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// 每个 job 的日志保留上限；超出丢最旧的（追加式、有界）
const maxEventsPerJob = 256

// EventLog 追加式事件日志：SSE 重连时补发总线已丢掉的事件。
// Append 尽力而为，失败不影响在线路径。
type EventLog interface {
	Append(ev Event)
	// After 返回序号 > afterSeq 的事件，按序
	After(jobID string, afterSeq int64) []Event
}

// MemoryEventLog 内存环形日志
type MemoryEventLog struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// NewMemoryEventLog 创建内存事件日志
func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{events: make(map[string][]Event)}
}

// Append 追加事件；超界丢序号最小的。
// 发布方在总线锁外落盘，到达顺序不保证；按 Seq 插入，After 始终有序。
func (l *MemoryEventLog) Append(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	evs := l.events[ev.JobID]
	i := len(evs)
	for i > 0 && evs[i-1].Seq > ev.Seq {
		i--
	}
	evs = append(evs, Event{})
	copy(evs[i+1:], evs[i:])
	evs[i] = ev
	if len(evs) > maxEventsPerJob {
		evs = evs[len(evs)-maxEventsPerJob:]
	}
	l.events[ev.JobID] = evs
}

// After 返回序号 > afterSeq 的事件
func (l *MemoryEventLog) After(jobID string, afterSeq int64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for _, ev := range l.events[jobID] {
		if ev.Seq > afterSeq {
			out = append(out, ev)
		}
	}
	return out
}

// PgEventLog PostgreSQL 实现：job_events 追加表；写失败只记数不报错
type PgEventLog struct {
	pool *pgxpool.Pool
}

// NewPgEventLog 创建 PostgreSQL 事件日志（共享既有连接池）
func NewPgEventLog(pool *pgxpool.Pool) *PgEventLog {
	return &PgEventLog{pool: pool}
}

// Append 追加事件并裁剪超界旧行
func (l *PgEventLog) Append(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = l.pool.Exec(ctx,
		`INSERT INTO job_events (job_id, seq, payload, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (job_id, seq) DO NOTHING`,
		ev.JobID, ev.Seq, payload, ev.At)
	_, _ = l.pool.Exec(ctx,
		`DELETE FROM job_events WHERE job_id = $1 AND seq <= (
		     SELECT COALESCE(MAX(seq), 0) - $2 FROM job_events WHERE job_id = $1)`,
		ev.JobID, maxEventsPerJob)
}

// After 返回序号 > afterSeq 的事件
func (l *PgEventLog) After(jobID string, afterSeq int64) []Event {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rows, err := l.pool.Query(ctx,
		`SELECT payload FROM job_events WHERE job_id = $1 AND seq > $2 ORDER BY seq`,
		jobID, afterSeq)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			continue
		}
		var ev Event
		if err := json.Unmarshal(payload, &ev); err == nil {
			out = append(out, ev)
		}
	}
	return out
}
