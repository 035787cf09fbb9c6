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
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	"drive-blocks/internal/enrich"
)

// Assembly 装配输入
type Assembly struct {
	Title     string
	Narrative string
	Venues    []enrich.VenueCandidate
	// Now 快照时区下的当前时刻；hours 文案与活动过滤都用它
	Now time.Time
}

// Assemble 把 Planner 的结构化产物装配成块序列。顺序确定：
// 标题 header → 策略 paragraph → divider →（每场地：header3、rationale、
// hours/车程/收益 list、可选活动 list、可选 cta）→ 收尾 divider。
// 文本一律 UTF-8 NFC，换行保留，不产 HTML。Order 稠密自 1 起。
func Assemble(in Assembly) []Block {
	var out []Block
	add := func(b Block) {
		b.Order = len(out) + 1
		b.ID = fmt.Sprintf("blk-%d", b.Order)
		out = append(out, b)
	}

	title := in.Title
	if title == "" {
		title = "Where to stage right now"
	}
	add(Block{Type: TypeHeader, Text: nfc(title), Level: 2})
	add(Block{Type: TypeParagraph, Text: nfc(in.Narrative)})
	add(Block{Type: TypeDivider})

	for _, v := range in.Venues {
		name := v.DisplayName
		if name == "" {
			name = v.Name
		}
		add(Block{Type: TypeHeader, Text: nfc(name), Level: 3})
		if v.Rationale != "" {
			add(Block{Type: TypeParagraph, Text: nfc(v.Rationale)})
		}

		items := venueItems(v, in.Now)
		add(Block{Type: TypeList, Items: items, Style: "bullet"})

		if evItems := eventItems(v.Events, in.Now); len(evItems) > 0 {
			// 活动列表单独成块；全部过期时整块省略
			add(Block{Type: TypeList, Items: evItems, Style: "bullet"})
		}

		if v.Staging.Valid() && (v.Staging.Lat != 0 || v.Staging.Lng != 0) {
			add(Block{
				Type:    TypeCTA,
				Label:   "Navigate to staging spot",
				Action:  fmt.Sprintf("navigate:%s", v.Staging.Key()),
				Variant: "primary",
			})
		}
	}

	add(Block{Type: TypeDivider})
	return out
}

// venueItems hours + 车程 + 收益提示；hours 缺失保持 unknown，绝不编造
func venueItems(v enrich.VenueCandidate, now time.Time) []string {
	items := make([]string, 0, 3)
	if v.Hours != nil {
		items = append(items, nfc(enrich.HoursLine(v.Hours, now)))
	} else {
		items = append(items, enrich.HoursUnknownLabel)
	}
	if v.DriveTimeS > 0 {
		items = append(items, fmt.Sprintf("%d min drive", (v.DriveTimeS+59)/60))
	}
	if v.EarningsHint != "" {
		items = append(items, nfc(v.EarningsHint))
	}
	return items
}

// eventItems 过滤过期活动后的条目；end time ≤ now 算过去（闭区间）
func eventItems(events []enrich.EventItem, now time.Time) []string {
	var items []string
	for _, ev := range events {
		if !ev.EndTime.After(now) {
			continue
		}
		items = append(items, fmt.Sprintf("%s · until %s", nfc(ev.Title), ev.EndTime.In(now.Location()).Format("15:04")))
	}
	return items
}

func nfc(s string) string {
	return norm.NFC.String(s)
}
