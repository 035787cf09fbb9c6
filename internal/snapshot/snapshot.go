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
	"time"

	"drive-blocks/internal/enrich"
	"drive-blocks/pkg/errors"
	"drive-blocks/pkg/geo"
)

// Snapshot 司机 GPS+上下文的不可变记录。写入一次，只读，绝不更新；
// 其他实体通过 snapshot_id 引用。
type Snapshot struct {
	ID         string          `json:"snapshot_id"`
	Coords     geo.Point       `json:"coords"`     // 六位小数精度（≈11cm）
	CoordsKey  string          `json:"coords_key"` // 规范缓存键 lat_lng
	CapturedAt time.Time       `json:"captured_at"` // UTC
	DeviceID   string          `json:"device_id,omitempty"`
	Context    string          `json:"context,omitempty"`

	// 地理编码解析产物
	PlaceID  string `json:"place_id"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`  // ISO 3166-1 alpha-2
	Timezone string `json:"timezone"` // IANA，如 America/Chicago

	Weather   *enrich.Weather `json:"weather,omitempty"` // 可选，拿不到不等
	CreatedAt time.Time       `json:"created_at"`
}

// Validate 校验快照输入；越界坐标返回 invalid_input
func (s *Snapshot) Validate() error {
	if !s.Coords.Valid() {
		return errors.Codef(errors.CodeInvalidInput,
			"coordinates out of range: lat=%.6f lng=%.6f", s.Coords.Lat, s.Coords.Lng)
	}
	if s.CapturedAt.IsZero() {
		return errors.Codef(errors.CodeInvalidInput, "captured_at is required")
	}
	return nil
}

// Location 返回快照时区的 *time.Location；时区解析失败退回 UTC
func (s *Snapshot) Location() *time.Location {
	if s.Timezone != "" {
		if loc, err := time.LoadLocation(s.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}

// LocalTime 快照捕获时刻的当地时间
func (s *Snapshot) LocalTime() time.Time {
	return s.CapturedAt.In(s.Location())
}
