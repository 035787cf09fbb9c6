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

package blocks

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"drive-blocks/internal/enrich"
	"drive-blocks/pkg/geo"
)

func testVenue() enrich.VenueCandidate {
	return enrich.VenueCandidate{
		Name:         "DFW Terminal C",
		Coords:       geo.Point{Lat: 32.897480, Lng: -97.040443},
		Staging:      geo.Point{Lat: 32.898010, Lng: -97.041200},
		Rationale:    "International arrivals wave lands 21:30-22:15.",
		EarningsHint: "Surge 1.4x expected",
		HoursUnknown: true,
		DriveTimeS:   540,
	}
}

func TestAssembleOrderDense(t *testing.T) {
	got := Assemble(Assembly{
		Title:     "Tonight's plan",
		Narrative: "Airport waves dominate until midnight.",
		Venues:    []enrich.VenueCandidate{testVenue()},
		Now:       time.Now(),
	})
	if err := Validate(got); err != nil {
		t.Fatalf("装配产物未过校验门: %v", err)
	}
	for i, b := range got {
		if b.Order != i+1 {
			t.Fatalf("order 不稠密: index %d order %d", i, b.Order)
		}
	}
	if got[0].Type != TypeHeader || got[0].Level != 2 {
		t.Errorf("首块应为 level-2 header，得到 %+v", got[0])
	}
	if got[len(got)-1].Type != TypeDivider {
		t.Errorf("末块应为 divider")
	}
}

func TestAssembleHoursUnknownNeverInvented(t *testing.T) {
	v := testVenue()
	v.Hours = nil
	got := Assemble(Assembly{Narrative: "n", Venues: []enrich.VenueCandidate{v}, Now: time.Now()})

	var found bool
	for _, b := range got {
		if b.Type != TypeList {
			continue
		}
		for _, item := range b.Items {
			if item == enrich.HoursUnknownLabel {
				found = true
			}
			if strings.Contains(item, "Open") || strings.Contains(item, "Closes") {
				t.Errorf("hours 缺失却出现营业时间文案: %q", item)
			}
		}
	}
	if !found {
		t.Errorf("缺少 %q 条目", enrich.HoursUnknownLabel)
	}
}

func TestAssembleStaleEventsOmitted(t *testing.T) {
	now := time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC)
	v := testVenue()
	v.Events = []enrich.EventItem{
		{Title: "Concert", EndTime: now.Add(-time.Hour)},
		{Title: "EndsExactlyNow", EndTime: now},
	}
	got := Assemble(Assembly{Narrative: "n", Venues: []enrich.VenueCandidate{v}, Now: now})

	var lists int
	for _, b := range got {
		if b.Type == TypeList {
			lists++
			for _, item := range b.Items {
				if strings.Contains(item, "Concert") || strings.Contains(item, "EndsExactlyNow") {
					t.Errorf("过期活动不应出现在条目: %q", item)
				}
			}
		}
	}
	// 全部活动过期时活动列表整块省略，只剩 hours/车程/收益 一块
	if lists != 1 {
		t.Errorf("list 块数 = %d, 期望 1", lists)
	}
}

func TestAssembleLiveEventListed(t *testing.T) {
	now := time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC)
	v := testVenue()
	v.Events = []enrich.EventItem{{Title: "Mavs game", EndTime: now.Add(30 * time.Minute)}}
	got := Assemble(Assembly{Narrative: "n", Venues: []enrich.VenueCandidate{v}, Now: now})

	var found bool
	for _, b := range got {
		if b.Type != TypeList {
			continue
		}
		for _, item := range b.Items {
			if strings.Contains(item, "Mavs game") && strings.Contains(item, "22:30") {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("未过期活动应出现在活动列表")
	}
}

func TestAssembleStagingCTA(t *testing.T) {
	v := testVenue()
	got := Assemble(Assembly{Narrative: "n", Venues: []enrich.VenueCandidate{v}, Now: time.Now()})

	var cta *Block
	for i := range got {
		if got[i].Type == TypeCTA {
			cta = &got[i]
		}
	}
	if cta == nil {
		t.Fatal("有停靠点的场地应带 cta 块")
	}
	if !strings.HasPrefix(cta.Action, "navigate:") || cta.Variant != "primary" {
		t.Errorf("cta 字段不符: %+v", cta)
	}
}

func TestAssembleNFCNormalized(t *testing.T) {
	// U+0065 U+0301 (e + combining acute) 应规范化为 U+00E9
	v := testVenue()
	v.DisplayName = "Café Central"
	got := Assemble(Assembly{Narrative: "n", Venues: []enrich.VenueCandidate{v}, Now: time.Now()})

	var found bool
	for _, b := range got {
		if b.Type == TypeHeader && b.Level == 3 {
			if strings.Contains(b.Text, "é") && !strings.Contains(b.Text, "́") {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("场地名未做 NFC 规范化")
	}
}

func TestValidateRejectsGaps(t *testing.T) {
	bs := []Block{
		{ID: "blk-1", Type: TypeHeader, Order: 1, Text: "t"},
		{ID: "blk-3", Type: TypeDivider, Order: 3},
	}
	if err := Validate(bs); err == nil {
		t.Error("order 有洞应报 validation_failed")
	}
}

func TestValidateVariantSchemas(t *testing.T) {
	cases := []struct {
		name string
		b    Block
		ok   bool
	}{
		{"list-empty", Block{Type: TypeList}, false},
		{"cta-no-action", Block{Type: TypeCTA, Label: "Go"}, false},
		{"quote-no-author", Block{Type: TypeQuote, Text: "q"}, false},
		{"image-no-url", Block{Type: TypeImage}, false},
		{"header-level-4", Block{Type: TypeHeader, Text: "t", Level: 4}, false},
		{"unknown-type", Block{Type: "table"}, false},
		{"divider", Block{Type: TypeDivider}, true},
		{"list-number", Block{Type: TypeList, Items: []string{"a"}, Style: "number"}, true},
	}
	for _, tc := range cases {
		tc.b.ID = "blk-1"
		tc.b.Order = 1
		err := Validate([]Block{tc.b})
		if tc.ok && err != nil {
			t.Errorf("%s: 不应报错: %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s: 应报 validation_failed", tc.name)
		}
	}
}

func TestMemoryStoreOverwriteDefault(t *testing.T) {
	s := NewMemoryStore(false)
	ctx := context.Background()

	a1 := &Artifact{JobID: "job-1", SnapshotID: "snap-1", Attempt: 1, CreatedAt: time.Now().UTC()}
	a2 := &Artifact{JobID: "job-1", SnapshotID: "snap-1", Attempt: 2, CreatedAt: time.Now().UTC()}
	if err := s.Put(ctx, a1); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, a2); err != nil {
		t.Fatal(err)
	}

	got, err := s.Latest(ctx, "snap-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Attempt != 2 {
		t.Errorf("默认覆盖后应只剩 attempt 2，得到 %d", got.Attempt)
	}
}

func TestMemoryStoreByteStableReread(t *testing.T) {
	s := NewMemoryStore(true)
	ctx := context.Background()

	a := &Artifact{
		JobID:      "job-1",
		SnapshotID: "snap-1",
		Attempt:    1,
		Strategy:   Strategy{Narrative: "stay near DFW", ModelID: "gpt-5"},
		Blocks: Assemble(Assembly{
			Narrative: "n",
			Venues:    []enrich.VenueCandidate{testVenue()},
			Now:       time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC),
		}),
		CreatedAt: time.Date(2026, 3, 14, 22, 1, 0, 0, time.UTC),
	}
	if err := s.Put(ctx, a); err != nil {
		t.Fatal(err)
	}

	first, err := s.Latest(ctx, "snap-1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Latest(ctx, "snap-1")
	if err != nil {
		t.Fatal(err)
	}
	b1, _ := json.Marshal(first)
	b2, _ := json.Marshal(second)
	if string(b1) != string(b2) {
		t.Error("重读工件字节不稳定")
	}
}

func TestMemoryStoreLatestMissing(t *testing.T) {
	s := NewMemoryStore(false)
	got, err := s.Latest(context.Background(), "snap-none")
	if err != nil || got != nil {
		t.Errorf("缺失快照应返回 nil, nil，得到 %v, %v", got, err)
	}
}
