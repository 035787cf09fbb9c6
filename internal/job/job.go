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

// Package job Job 注册表：快照与 Job 一对一，幂等入队，终态单写者。
package job

import (
	"time"

	"drive-blocks/pkg/errors"
)

// Status Job 状态
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal 是否终态
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Phase TRIAD 管线阶段
type Phase string

const (
	PhaseIdle Phase = "idle"
	PhaseP1   Phase = "p1"
	PhaseP2   Phase = "p2"
	PhaseP3   Phase = "p3"
	PhaseDone Phase = "done"
)

// prev 阶段的合法前驱；状态机只进不退
func (p Phase) prev() Phase {
	switch p {
	case PhaseP1:
		return PhaseIdle
	case PhaseP2:
		return PhaseP1
	case PhaseP3:
		return PhaseP2
	case PhaseDone:
		return PhaseP3
	}
	return ""
}

// CanAdvance from 是否为 to 的合法前驱
func CanAdvance(from, to Phase) bool {
	return to.prev() == from
}

// Job 快照派生的编排单元；snapshot_id 唯一键，同快照重复提交走 upsert
type Job struct {
	ID            string `json:"job_id"`
	SnapshotID    string `json:"snapshot_id"`
	Status        Status `json:"status"`
	Phase         Phase  `json:"phase"`
	Attempt       int    `json:"attempt"`
	CorrelationID string `json:"correlation_id"`

	// PhaseTimings 各阶段耗时（毫秒），阶段 join 点写入
	PhaseTimings map[Phase]int64 `json:"phase_timings,omitempty"`
	// phaseStartedAt 当前阶段开始时刻；Advance 时结算上一阶段耗时
	PhaseStartedAt time.Time `json:"phase_started_at,omitempty"`

	ErrorCode    errors.Code `json:"error_code,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Outcome 终态结果
type Outcome struct {
	Status  Status
	Code    errors.Code
	Message string
}

// clone 深拷贝，内存实现防外部修改
func (j *Job) clone() *Job {
	c := *j
	if j.PhaseTimings != nil {
		c.PhaseTimings = make(map[Phase]int64, len(j.PhaseTimings))
		for k, v := range j.PhaseTimings {
			c.PhaseTimings[k] = v
		}
	}
	return &c
}
