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

package enrich

import (
	"context"
	"time"

	"drive-blocks/pkg/geo"
)

// Address 反向地理编码结果
type Address struct {
	PlaceID   string `json:"place_id"`
	Formatted string `json:"formatted"`
	City      string `json:"city"`
	Region    string `json:"region"`
	Country   string `json:"country"` // ISO 3166-1 alpha-2
	Timezone  string `json:"timezone"`
}

// DayHours 单日营业时间；Closed 为 true 时 Open/Close 无意义
type DayHours struct {
	Open   string `json:"open"`  // "HH:MM" 当地时间
	Close  string `json:"close"` // "HH:MM"；跨夜写 "24:00" 以内的值并由次日段承接
	Closed bool   `json:"closed"`
}

// BusinessHours 按星期结构化的营业时间。index 0 = Sunday（与 time.Weekday 对齐）。
// 营业时间只能来自 places provider；provider 没有就保持 unknown，绝不生成。
type BusinessHours struct {
	Weekday  [7]DayHours `json:"weekday"`
	CachedAt time.Time   `json:"cached_at"`
}

// Place 地点元数据
type Place struct {
	PlaceID        string         `json:"place_id"`
	DisplayName    string         `json:"display_name"`
	Formatted      string         `json:"formatted"`
	BusinessStatus string         `json:"business_status"` // operational | closed_temporarily | closed_permanently
	Hours          *BusinessHours `json:"hours,omitempty"`  // nil = hours unknown
	Coords         geo.Point      `json:"coords"`
	CachedAt       time.Time      `json:"cached_at"`
}

// RouteLeg 单条路线结果
type RouteLeg struct {
	DistanceM        int64 `json:"distance_m"`
	DurationS        int64 `json:"duration_s"`
	TrafficDurationS int64 `json:"traffic_duration_s"`
}

// Weather 天气快照（可选，绝不阻塞 snapshot 写入）
type Weather struct {
	TempC      float64   `json:"temp_c"`
	Condition  string    `json:"condition"`
	WindKph    float64   `json:"wind_kph"`
	ObservedAt time.Time `json:"observed_at"`
}

// EventItem 场地附带的活动条目；EndTime 过期判定用快照时区、闭区间算过去
type EventItem struct {
	Title   string    `json:"title"`
	EndTime time.Time `json:"end_time"`
}

// VenueCandidate Planner 产出的候选场地，富化阶段就地补全。
// 非用户可见的中间结构，装配后以 Block 形式对外。
type VenueCandidate struct {
	Name          string      `json:"name"`
	Coords        geo.Point   `json:"coords"`
	Staging       geo.Point   `json:"staging"` // 司机停靠点；零值时用 Coords
	Category      string      `json:"category"`
	EarningsHint  string      `json:"earnings_hint"`
	Rationale     string      `json:"rationale"`
	Reliability   float64     `json:"reliability"` // 目录命中时 0..1，否则 0
	District      string      `json:"district"`
	Events        []EventItem `json:"events,omitempty"`

	// 富化产物
	PlaceID       string         `json:"place_id"`
	DisplayName   string         `json:"display_name"`
	Address       string         `json:"address"`
	Hours         *BusinessHours `json:"hours,omitempty"`
	HoursUnknown  bool           `json:"hours_unknown"`
	DriveTimeS    int64          `json:"drive_time_s"`
	DriveDistM    int64          `json:"drive_dist_m"`
	EnrichFailed  bool           `json:"enrich_failed"`
}

// Geocoder 反向地理编码
type Geocoder interface {
	ReverseGeocode(ctx context.Context, pt geo.Point) (*Address, error)
}

// PlacesProvider 地点元数据查询
type PlacesProvider interface {
	Details(ctx context.Context, placeID string) (*Place, error)
}

// RouteProvider 路线矩阵查询
type RouteProvider interface {
	Matrix(ctx context.Context, origin geo.Point, dests []geo.Point, departure time.Time) ([]RouteLeg, error)
}

// WeatherProvider 天气快照查询
type WeatherProvider interface {
	Current(ctx context.Context, pt geo.Point) (*Weather, error)
}

// HolidaySource 节假日查询
type HolidaySource interface {
	IsHoliday(ctx context.Context, date time.Time, country string) (bool, string, error)
}
