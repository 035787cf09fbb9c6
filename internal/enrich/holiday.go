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
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"drive-blocks/pkg/log"
)

// HolidayTable 内置确定性节假日表。外部日历可选，查不到时落回这里；
// 两边都没有命中按非节假日处理（缺节假日信号只降级 prompt，不致命）。
type HolidayTable struct {
	external *holidayCalendarClient
	logger   *log.Logger
}

// NewHolidayTable 创建节假日查询；baseURL 为空则只用内置表
func NewHolidayTable(baseURL, apiKey string, timeout time.Duration, logger *log.Logger) *HolidayTable {
	t := &HolidayTable{logger: logger}
	if baseURL != "" {
		t.external = newHolidayCalendarClient(baseURL, apiKey, timeout)
	}
	return t
}

// IsHoliday 判断 date（按其所在时区的年月日）在 country 是否为节假日
func (t *HolidayTable) IsHoliday(ctx context.Context, date time.Time, country string) (bool, string, error) {
	if t.external != nil {
		ok, name, err := t.external.lookup(ctx, date, country)
		if err == nil {
			return ok, name, nil
		}
		if t.logger != nil {
			t.logger.Warn("holiday calendar lookup failed, falling back to builtin table", "country", country, "error", err)
		}
	}
	name := builtinHoliday(date, country)
	return name != "", name, nil
}

// builtinHoliday 确定性表：按国家返回 date 对应的节假日名，非节假日返回空串
func builtinHoliday(date time.Time, country string) string {
	m, d := date.Month(), date.Day()

	// 跨国通用
	if m == time.January && d == 1 {
		return "New Year's Day"
	}
	if m == time.December && d == 25 {
		return "Christmas Day"
	}

	switch country {
	case "US":
		switch {
		case m == time.January && isNthWeekday(date, 3, time.Monday):
			return "Martin Luther King Jr. Day"
		case m == time.February && isNthWeekday(date, 3, time.Monday):
			return "Presidents' Day"
		case m == time.May && isLastWeekday(date, time.Monday):
			return "Memorial Day"
		case m == time.June && d == 19:
			return "Juneteenth"
		case m == time.July && d == 4:
			return "Independence Day"
		case m == time.September && isNthWeekday(date, 1, time.Monday):
			return "Labor Day"
		case m == time.November && isNthWeekday(date, 4, time.Thursday):
			return "Thanksgiving"
		}
	case "FR":
		switch {
		case m == time.May && d == 1:
			return "Fête du Travail"
		case m == time.May && d == 8:
			return "Victoire 1945"
		case m == time.July && d == 14:
			return "Fête Nationale"
		case m == time.August && d == 15:
			return "Assomption"
		case m == time.November && d == 1:
			return "Toussaint"
		case m == time.November && d == 11:
			return "Armistice 1918"
		}
	case "GB":
		if m == time.December && d == 26 {
			return "Boxing Day"
		}
	case "CA":
		switch {
		case m == time.July && d == 1:
			return "Canada Day"
		case m == time.September && isNthWeekday(date, 1, time.Monday):
			return "Labour Day"
		}
	case "DE":
		switch {
		case m == time.May && d == 1:
			return "Tag der Arbeit"
		case m == time.October && d == 3:
			return "Tag der Deutschen Einheit"
		case m == time.December && d == 26:
			return "Zweiter Weihnachtstag"
		}
	case "MX":
		switch {
		case m == time.September && d == 16:
			return "Día de la Independencia"
		case m == time.May && d == 5:
			return "Cinco de Mayo"
		}
	}
	return ""
}

// isNthWeekday date 是否为当月第 n 个 weekday
func isNthWeekday(date time.Time, n int, weekday time.Weekday) bool {
	if date.Weekday() != weekday {
		return false
	}
	return (date.Day()-1)/7+1 == n
}

// isLastWeekday date 是否为当月最后一个 weekday
func isLastWeekday(date time.Time, weekday time.Weekday) bool {
	if date.Weekday() != weekday {
		return false
	}
	return date.Day()+7 > daysInMonth(date)
}

func daysInMonth(date time.Time) int {
	return time.Date(date.Year(), date.Month()+1, 0, 0, 0, 0, 0, date.Location()).Day()
}

// holidayCalendarClient 外部节假日日历
type holidayCalendarClient struct {
	baseURL string
	apiKey  string
	client  *resty.Client
}

func newHolidayCalendarClient(baseURL, apiKey string, timeout time.Duration) *holidayCalendarClient {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	return &holidayCalendarClient{baseURL: baseURL, apiKey: apiKey, client: client}
}

func (c *holidayCalendarClient) lookup(ctx context.Context, date time.Time, country string) (bool, string, error) {
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetQueryParam("date", date.Format("2006-01-02")).
		SetQueryParam("country", country).
		Get(c.baseURL + "/holidays")
	if err != nil {
		return false, "", fmt.Errorf("调用 holiday calendar failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return false, "", fmt.Errorf("holiday calendar 返回错误: %d", response.StatusCode())
	}

	var result struct {
		IsHoliday bool   `json:"is_holiday"`
		Name      string `json:"name"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return false, "", fmt.Errorf("解析 holiday calendar 响应failed: %w", err)
	}
	return result.IsHoliday, result.Name, nil
}
