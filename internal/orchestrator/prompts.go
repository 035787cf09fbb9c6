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
	"fmt"
	"strings"

	"drive-blocks/internal/catalog"
	"drive-blocks/internal/snapshot"
	"drive-blocks/pkg/utils"
)

// promptVersion 随 prompt 文案变更递增；工件溯源字段
const promptVersion = "triad-v3"

// 整合视野
const (
	horizonToday     = "today"
	horizonImmediate = "next_2_hours"
)

const strategistSystemPrompt = `You advise rideshare drivers on where to position in the next 30-90 minutes.
Write a short, concrete narrative. No venue lists, no markdown, no headings.
Never state business hours; hours come from a separate data source.`

const brieferSystemPrompt = `You brief a rideshare strategist. Summarize likely weather, traffic and
notable demand drivers for the given place and local time in at most 5 short lines.`

const consolidatorSystemPrompt = `You consolidate strategy context for a rideshare driver into a single
"strategy for now" paragraph for the given time horizon. Plain text only.`

const plannerSystemPrompt = `You produce staging venue recommendations for a rideshare driver as JSON.
Respond with exactly one JSON object: {"venues": [...]}, 3 to 7 items.
Each venue: {"name", "coords": {"lat","lng"}, "staging": {"lat","lng"}?,
"category", "earnings_hint", "rationale", "events": [{"title","end_time"}]?}.
end_time is RFC 3339. Do not output business hours. Prefer catalog venues when provided.`

const validatorSystemPrompt = `You are a structural validator. Given {"narrative", "venues"} decide whether
the recommendation set is structurally sound: 3-7 venues, coordinates plausible,
rationales non-empty, no invented business hours.
Respond with exactly {"valid": bool, "reasons": [string]}.`

func buildStrategistPrompt(snap *snapshot.Snapshot, shortlist []catalog.Shortlisted) string {
	var b strings.Builder
	writeSnapshotContext(&b, snap)
	if len(shortlist) > 0 {
		fmt.Fprintf(&b, "Known nearby staging venues (closest first):\n")
		for _, s := range shortlist {
			fmt.Fprintf(&b, "- %s (%s, %.1f km, reliability %.2f)\n", s.Name, s.Category, s.DistanceKm, s.Reliability)
		}
	} else {
		b.WriteString("No curated venues near this position; reason from the locality itself.\n")
	}
	b.WriteString("What should this driver do in the next 30-90 minutes?")
	return b.String()
}

func buildBrieferPrompt(snap *snapshot.Snapshot) string {
	var b strings.Builder
	writeSnapshotContext(&b, snap)
	b.WriteString("Brief the strategist on conditions that move rideshare demand right now.")
	return b.String()
}

func buildConsolidatorPrompt(snap *snapshot.Snapshot, p1 *phase1Out, horizon string) string {
	var b strings.Builder
	writeSnapshotContext(&b, snap)
	fmt.Fprintf(&b, "Time horizon: %s\n", horizon)
	fmt.Fprintf(&b, "Strategist narrative:\n%s\n", p1.narrative.Text)
	if p1.briefing != "" {
		fmt.Fprintf(&b, "Briefing:\n%s\n", p1.briefing)
	}
	if p1.holiday != "" {
		fmt.Fprintf(&b, "Today is a holiday: %s\n", p1.holiday)
	}
	b.WriteString("Consolidate into one strategy-for-now paragraph.")
	return b.String()
}

func buildPlannerPrompt(snap *snapshot.Snapshot, shortlist []catalog.Shortlisted, p1 *phase1Out, p2 *phase2Out) string {
	var b strings.Builder
	writeSnapshotContext(&b, snap)
	fmt.Fprintf(&b, "Daily strategy: %s\n", p2.daily.Text)
	fmt.Fprintf(&b, "Immediate strategy: %s\n", p2.immediate.Text)
	if p1.holiday != "" {
		fmt.Fprintf(&b, "Holiday today: %s\n", p1.holiday)
	}
	if len(shortlist) > 0 {
		b.WriteString("Catalog venues (use exact names when recommending these):\n")
		for _, s := range shortlist {
			fmt.Fprintf(&b, "- %s | %s | %.6f,%.6f | %.1f km | reliability %.2f\n",
				s.Name, s.Category, s.Coords.Lat, s.Coords.Lng, s.DistanceKm, s.Reliability)
		}
	} else {
		b.WriteString("Catalog is empty here: generate venues from scratch for this locality.\n")
	}
	b.WriteString("Produce the venue recommendation JSON.")
	return b.String()
}

func writeSnapshotContext(b *strings.Builder, snap *snapshot.Snapshot) {
	fmt.Fprintf(b, "Driver position: %.6f,%.6f\n", snap.Coords.Lat, snap.Coords.Lng)
	if snap.City != "" {
		loc := snap.City
		if snap.Region != "" {
			loc += ", " + snap.Region
		}
		if snap.Country != "" {
			loc += ", " + utils.CountryDisplayName(snap.Country)
		}
		fmt.Fprintf(b, "Locality: %s\n", loc)
	}
	fmt.Fprintf(b, "Local time: %s\n", snap.LocalTime().Format("Mon 2006-01-02 15:04 MST"))
	if snap.Weather != nil {
		fmt.Fprintf(b, "Weather: %s, %.0f°C, wind %.0f kph\n",
			snap.Weather.Condition, snap.Weather.TempC, snap.Weather.WindKph)
	}
	if snap.Context != "" {
		fmt.Fprintf(b, "Caller context: %s\n", snap.Context)
	}
}
