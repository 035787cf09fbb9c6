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

// Package bus 进程内按 job_id 分主题的发布订阅。
// 每个 job 的事件携带单调递增序号；慢订阅者被丢事件并计数，发布方绝不阻塞。
package bus

import (
	"sync"
	"time"

	"drive-blocks/pkg/metrics"
)

// 订阅者缓冲大小；满了就丢，publisher 不等
const subscriberBuffer = 16

// EventType 事件类型
type EventType string

const (
	EventPhaseChange   EventType = "phase_change"
	EventStageComplete EventType = "stage_complete"
	EventJobSucceeded  EventType = "job_succeeded"
	EventJobFailed     EventType = "job_failed"
	EventJobCancelled  EventType = "job_cancelled"
)

// Terminal 是否终态事件；终态之后该 job 不再发布
func (t EventType) Terminal() bool {
	return t == EventJobSucceeded || t == EventJobFailed || t == EventJobCancelled
}

// Event 进度事件；Seq 按 job 单调递增，SSE 断线重连用它续传
type Event struct {
	JobID   string    `json:"job_id"`
	Seq     int64     `json:"seq"`
	Type    EventType `json:"type"`
	Phase   string    `json:"phase,omitempty"`
	Stage   string    `json:"stage,omitempty"`
	Attempt int       `json:"attempt,omitempty"`
	Code    string    `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

type subscriber struct {
	ch     chan Event
	closed bool
}

type topic struct {
	seq  int64
	subs map[*subscriber]struct{}
	done bool
}

// Bus 进程内事件总线
type Bus struct {
	mu     sync.Mutex
	topics map[string]*topic
	// logger 可选的追加式事件日志；总线是热路径，落盘尽力而为
	log EventLog
}

// New 创建总线；log 可为 nil（不落盘，断线重连只能拿到在线事件）
func New(log EventLog) *Bus {
	return &Bus{
		topics: make(map[string]*topic),
		log:    log,
	}
}

// Publish 发布事件：补齐 Seq 与时间戳，推给所有订阅者，慢订阅者丢弃计数。
// 返回分配的序号。终态事件发布后主题标记关闭并断开订阅者。
func (b *Bus) Publish(ev Event) int64 {
	b.mu.Lock()
	t, ok := b.topics[ev.JobID]
	if !ok {
		t = &topic{subs: make(map[*subscriber]struct{})}
		b.topics[ev.JobID] = t
	}
	if t.done {
		b.mu.Unlock()
		return t.seq
	}
	t.seq++
	ev.Seq = t.seq
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	for s := range t.subs {
		select {
		case s.ch <- ev:
		default:
			metrics.BusDroppedTotal.Inc()
		}
	}
	if ev.Type.Terminal() {
		t.done = true
		for s := range t.subs {
			if !s.closed {
				s.closed = true
				close(s.ch)
			}
		}
		t.subs = make(map[*subscriber]struct{})
	}
	b.mu.Unlock()

	if b.log != nil {
		b.log.Append(ev)
	}
	return ev.Seq
}

// Subscribe 订阅某 job 的后续事件；返回只读通道与取消函数。
// 主题已终态时返回已关闭的通道。历史事件经 Replay 取。
func (b *Bus) Subscribe(jobID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[jobID]
	if !ok {
		t = &topic{subs: make(map[*subscriber]struct{})}
		b.topics[jobID] = t
	}
	s := &subscriber{ch: make(chan Event, subscriberBuffer)}
	if t.done {
		s.closed = true
		close(s.ch)
		return s.ch, func() {}
	}
	t.subs[s] = struct{}{}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := t.subs[s]; ok {
			delete(t.subs, s)
			if !s.closed {
				s.closed = true
				close(s.ch)
			}
		}
	}
	return s.ch, cancel
}

// Replay 返回该 job 序号大于 afterSeq 的历史事件（来自事件日志）
func (b *Bus) Replay(jobID string, afterSeq int64) []Event {
	if b.log == nil {
		return nil
	}
	return b.log.After(jobID, afterSeq)
}

// LastSeq 当前已分配的最大序号
func (b *Bus) LastSeq(jobID string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.topics[jobID]; ok {
		return t.seq
	}
	return 0
}

// Forget 释放已终态 job 的主题（内存回收；事件日志不受影响）
func (b *Bus) Forget(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.topics[jobID]; ok && t.done {
		delete(b.topics, jobID)
	}
}
