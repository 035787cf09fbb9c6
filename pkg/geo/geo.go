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

// Package geo 叶子包：坐标值类型、六位小数 Key、大圆距离与触发描述符。
// snapshot 校验与策略触发检测双方都依赖本包，互相不 import（打破环依赖）。
package geo

import (
	"fmt"
	"math"
)

// earthRadiusM 地球平均半径（米），Haversine 用
const earthRadiusM = 6371000.0

// Point 坐标点；六位小数精度（约 11cm），存取全程保留
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid 校验坐标范围：lat ∈ [-90,90]，lng ∈ [-180,180]；(0,0) 是合法输入
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Key 六位小数坐标键 "lat_lng"，全仓唯一的 coords_key 实现；缓存与去重都用它
func (p Point) Key() string {
	return fmt.Sprintf("%.6f_%.6f", p.Lat, p.Lng)
}

// String 同 Key，便于日志
func (p Point) String() string {
	return p.Key()
}

// DistanceM 两点大圆距离（米），Haversine；跨洲坐标不会溢出或报错
func DistanceM(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// 浮点误差可能让 h 略超 1，Clamp 以保证 Asin 定义域
	if h > 1 {
		h = 1
	}
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

// DistanceKm 两点大圆距离（公里）
func DistanceKm(a, b Point) float64 {
	return DistanceM(a, b) / 1000
}
