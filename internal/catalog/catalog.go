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

// Package catalog 人工维护的场地目录与近邻过滤。
// 大圆距离过滤先于任何打分；空目录合法，表示由 Planner 自行生成场地。
package catalog

import (
	"sort"
	"sync"

	"drive-blocks/pkg/geo"
)

// DefaultMaxDistanceKm 近邻过滤硬上限；目录没覆盖的城市返回空短名单而不是远郊噪声
const DefaultMaxDistanceKm = 100.0

// Venue 目录场地
type Venue struct {
	Name        string    `mapstructure:"name" json:"name"`
	Coords      geo.Point `mapstructure:"coords" json:"coords"`
	Staging     geo.Point `mapstructure:"staging" json:"staging"`
	Category    string    `mapstructure:"category" json:"category"`
	Reliability float64   `mapstructure:"reliability" json:"reliability"` // 0..1
	District    string    `mapstructure:"district" json:"district"`
}

// Shortlisted 带距离的短名单条目
type Shortlisted struct {
	Venue
	DistanceKm float64 `json:"distance_km"`
}

// Catalog 只读为主的场地目录；种子加载是唯一写路径
type Catalog struct {
	mu            sync.RWMutex
	venues        []Venue
	maxDistanceKm float64
}

// New 创建目录；maxDistanceKm <= 0 用默认 100
func New(maxDistanceKm float64) *Catalog {
	if maxDistanceKm <= 0 {
		maxDistanceKm = DefaultMaxDistanceKm
	}
	return &Catalog{maxDistanceKm: maxDistanceKm}
}

// Load 整体替换目录内容（种子加载/重载用）
func (c *Catalog) Load(venues []Venue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.venues = append([]Venue(nil), venues...)
}

// Size 目录规模
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.venues)
}

// Shortlist 按大圆距离过滤后的短名单，近的在前，同距离可靠分高的在前。
// limit <= 0 不限数量。跨洲坐标安全：过滤结果为空即是答案。
func (c *Catalog) Shortlist(origin geo.Point, limit int) []Shortlisted {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Shortlisted
	for _, v := range c.venues {
		d := geo.DistanceKm(origin, v.Coords)
		if d > c.maxDistanceKm {
			continue
		}
		out = append(out, Shortlisted{Venue: v, DistanceKm: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].Reliability > out[j].Reliability
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
