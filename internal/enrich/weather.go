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
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"drive-blocks/pkg/geo"
)

// WeatherClient 天气快照客户端。快照写入路径上与地理编码并行取数，
// 取不到就丢弃，绝不拖慢 put。
type WeatherClient struct {
	baseURL string
	apiKey  string
	client  *resty.Client
}

// NewWeatherClient 创建天气客户端
func NewWeatherClient(baseURL, apiKey string, timeout time.Duration) *WeatherClient {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	return &WeatherClient{baseURL: baseURL, apiKey: apiKey, client: client}
}

// Current 当前坐标的天气快照
func (w *WeatherClient) Current(ctx context.Context, pt geo.Point) (*Weather, error) {
	response, err := w.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+w.apiKey).
		SetQueryParam("lat", strconv.FormatFloat(pt.Lat, 'f', 6, 64)).
		SetQueryParam("lng", strconv.FormatFloat(pt.Lng, 'f', 6, 64)).
		Get(w.baseURL + "/current")
	if err != nil {
		return nil, fmt.Errorf("调用 weather failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("weather 返回错误: %d", response.StatusCode())
	}

	var result struct {
		TempC     float64 `json:"temp_c"`
		Condition string  `json:"condition"`
		WindKph   float64 `json:"wind_kph"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 weather 响应failed: %w", err)
	}
	return &Weather{
		TempC:      result.TempC,
		Condition:  result.Condition,
		WindKph:    result.WindKph,
		ObservedAt: time.Now().UTC(),
	}, nil
}
