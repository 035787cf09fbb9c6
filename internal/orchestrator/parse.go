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

package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"drive-blocks/internal/enrich"
	"drive-blocks/pkg/geo"
)

// Planner 候选数量约束
const (
	minVenues = 3
	maxVenues = 7
)

type plannerEvent struct {
	Title   string `json:"title"`
	EndTime string `json:"end_time"`
}

type plannerVenue struct {
	Name         string         `json:"name"`
	Coords       geo.Point      `json:"coords"`
	Staging      *geo.Point     `json:"staging,omitempty"`
	Category     string         `json:"category"`
	EarningsHint string         `json:"earnings_hint"`
	Rationale    string         `json:"rationale"`
	Events       []plannerEvent `json:"events,omitempty"`
}

type plannerPayload struct {
	Venues []plannerVenue `json:"venues"`
}

// parsePlannerVenues 解析 Planner 的 JSON 产物。
// JSON-mode 下仍可能裹 code fence，先剥壳。少于 3 个算 Planner 失职；
// 多于 7 个截断到 7（排序由 Planner 决定，前面的更优）。
func parsePlannerVenues(text string) ([]enrich.VenueCandidate, error) {
	raw := stripFences(text)

	var payload plannerPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("planner JSON 解析 failed: %w", err)
	}
	if len(payload.Venues) < minVenues {
		return nil, fmt.Errorf("planner returned %d venues, need at least %d", len(payload.Venues), minVenues)
	}
	if len(payload.Venues) > maxVenues {
		payload.Venues = payload.Venues[:maxVenues]
	}

	out := make([]enrich.VenueCandidate, 0, len(payload.Venues))
	for i, pv := range payload.Venues {
		if pv.Name == "" {
			return nil, fmt.Errorf("venue %d missing name", i+1)
		}
		if !pv.Coords.Valid() {
			return nil, fmt.Errorf("venue %q coordinates out of range", pv.Name)
		}
		v := enrich.VenueCandidate{
			Name:         pv.Name,
			Coords:       pv.Coords,
			Category:     pv.Category,
			EarningsHint: pv.EarningsHint,
			Rationale:    pv.Rationale,
		}
		if pv.Staging != nil && pv.Staging.Valid() {
			v.Staging = *pv.Staging
		}
		for _, ev := range pv.Events {
			if ev.Title == "" || ev.EndTime == "" {
				continue
			}
			end, err := time.Parse(time.RFC3339, ev.EndTime)
			if err != nil {
				// 坏时间戳丢条目不丢场地
				continue
			}
			v.Events = append(v.Events, enrich.EventItem{Title: ev.Title, EndTime: end})
		}
		out = append(out, v)
	}
	return out, nil
}

// validatorVerdict Validator 的结构裁决
type validatorVerdict struct {
	Valid   bool     `json:"valid"`
	Reasons []string `json:"reasons"`
}

func parseValidatorVerdict(text string) (*validatorVerdict, error) {
	var v validatorVerdict
	if err := json.Unmarshal([]byte(stripFences(text)), &v); err != nil {
		return nil, fmt.Errorf("validator JSON 解析 failed: %w", err)
	}
	return &v, nil
}

// stripFences 剥掉 ```json ... ``` 包裹，没有就原样返回
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
