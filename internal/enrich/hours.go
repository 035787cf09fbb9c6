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
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HoursUnknownLabel hours 缺失时 list 条目文案；绝不编造营业时间
const HoursUnknownLabel = "Hours unknown"

// HoursFresh 判断 hours 是否仍在 TTL 内
func HoursFresh(h *BusinessHours, now time.Time, ttl time.Duration) bool {
	if h == nil {
		return false
	}
	if ttl <= 0 {
		ttl = defaultHoursTTL
	}
	return now.Sub(h.CachedAt) <= ttl
}

// IsOpenAt 判断 t 时刻（须已换算到快照时区）是否营业。
// known 为 false 表示没有结构化 hours 可判断。
func IsOpenAt(h *BusinessHours, t time.Time) (open bool, known bool) {
	if h == nil {
		return false, false
	}

	minutes := t.Hour()*60 + t.Minute()

	// 当天窗口
	today := h.Weekday[int(t.Weekday())]
	if !today.Closed {
		o, okO := parseClock(today.Open)
		c, okC := parseClock(today.Close)
		if okO && okC {
			if c > o {
				if minutes >= o && minutes < c {
					return true, true
				}
			} else if c < o {
				// 跨夜：18:00–02:00，当天 18:00 后算营业
				if minutes >= o {
					return true, true
				}
			}
		}
	}

	// 前一天跨夜窗口延伸到今天凌晨
	yesterday := h.Weekday[(int(t.Weekday())+6)%7]
	if !yesterday.Closed {
		o, okO := parseClock(yesterday.Open)
		c, okC := parseClock(yesterday.Close)
		if okO && okC && c < o && minutes < c {
			return true, true
		}
	}

	return false, true
}

// HoursLine 生成 list block 的 hours 条目文案
func HoursLine(h *BusinessHours, t time.Time) string {
	open, known := IsOpenAt(h, t)
	if !known {
		return HoursUnknownLabel
	}
	today := h.Weekday[int(t.Weekday())]
	if open {
		if today.Close != "" {
			return fmt.Sprintf("Open until %s", today.Close)
		}
		return "Open now"
	}
	if !today.Closed && today.Open != "" {
		if o, ok := parseClock(today.Open); ok && t.Hour()*60+t.Minute() < o {
			return fmt.Sprintf("Closed now · opens %s", today.Open)
		}
	}
	// 往后找最近的营业日
	for i := 1; i <= 7; i++ {
		d := h.Weekday[(int(t.Weekday())+i)%7]
		if !d.Closed && d.Open != "" {
			day := time.Weekday((int(t.Weekday()) + i) % 7)
			return fmt.Sprintf("Closed now · opens %s %s", day.String()[:3], d.Open)
		}
	}
	return "Closed"
}

// parseClock "HH:MM" → 当日分钟数
func parseClock(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hh, err1 := strconv.Atoi(parts[0])
	mm, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hh < 0 || hh > 24 || mm < 0 || mm > 59 {
		return 0, false
	}
	return hh*60 + mm, true
}
