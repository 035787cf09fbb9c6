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

package geo

import "time"

// TriggerKind 策略触发类型
type TriggerKind string

const (
	// TriggerManual 用户显式请求（POST /blocks-fast）
	TriggerManual TriggerKind = "manual"
	// TriggerRelocation 位移触发：与上次定位的距离超过阈值
	TriggerRelocation TriggerKind = "relocation"
	// TriggerStale 时效触发：上一份策略超过有效窗口
	TriggerStale TriggerKind = "stale"
)

// TriggerDescriptor 触发描述符：位置校验方与策略触发检测方共享的值类型。
// 只含数据，不含行为；双方各自解释。
type TriggerDescriptor struct {
	Kind       TriggerKind `json:"kind"`
	At         Point       `json:"at"`
	ObservedAt time.Time   `json:"observed_at"`
	// MovedM 距上次定位的位移（米）；Kind 非 relocation 时为 0
	MovedM float64 `json:"moved_m,omitempty"`
}

// ShouldRefresh 是否应当触发一次新的策略计算；阈值由调用方给定
func (d TriggerDescriptor) ShouldRefresh(relocationThresholdM float64, staleAfter time.Duration, lastRun time.Time) bool {
	switch d.Kind {
	case TriggerManual:
		return true
	case TriggerRelocation:
		return d.MovedM >= relocationThresholdM
	case TriggerStale:
		return lastRun.IsZero() || d.ObservedAt.Sub(lastRun) >= staleAfter
	}
	return false
}
