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

	"drive-blocks/pkg/geo"
	"drive-blocks/pkg/log"
	"drive-blocks/pkg/metrics"
)

// departureLead provider 要求出发时刻在未来，统一 now + 30s
const departureLead = 30 * time.Second

// RoutesClient 交通感知路线矩阵客户端
type RoutesClient struct {
	baseURL string
	apiKey  string
	client  *resty.Client
	limiter *ProviderLimiter
	logger  *log.Logger
}

// NewRoutesClient 创建路线矩阵客户端
func NewRoutesClient(baseURL, apiKey string, timeout time.Duration, limiter *ProviderLimiter, logger *log.Logger) *RoutesClient {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)

	return &RoutesClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  client,
		limiter: limiter,
		logger:  logger,
	}
}

type matrixRequest struct {
	Origin        [2]float64   `json:"origin"` // [lat, lng]
	Destinations  [][2]float64 `json:"destinations"`
	DepartureTime string       `json:"departure_time"` // RFC 3339
}

type matrixResponse struct {
	Rows []struct {
		DistanceM        int64 `json:"distance_m"`
		DurationS        int64 `json:"duration_s"`
		TrafficDurationS int64 `json:"traffic_duration_s"`
	} `json:"rows"`
}

// Matrix (origin, destinations, departure) → 每个目的地一条 RouteLeg。
// departure 零值时取 now + 30s 满足 provider 的未来出发约束。
func (r *RoutesClient) Matrix(ctx context.Context, origin geo.Point, dests []geo.Point, departure time.Time) ([]RouteLeg, error) {
	if len(dests) == 0 {
		return nil, nil
	}
	if departure.IsZero() {
		departure = time.Now().Add(departureLead)
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, "routes"); err != nil {
			return nil, err
		}
		defer r.limiter.Release("routes")
	}

	req := matrixRequest{
		Origin:        [2]float64{origin.Lat, origin.Lng},
		DepartureTime: departure.UTC().Format(time.RFC3339),
	}
	for _, d := range dests {
		req.Destinations = append(req.Destinations, [2]float64{d.Lat, d.Lng})
	}

	start := time.Now()
	response, err := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+r.apiKey).
		SetBody(req).
		Post(r.baseURL + "/matrix")
	metrics.EnrichDuration.WithLabelValues("routes").Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, fmt.Errorf("调用 routes failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("routes 返回错误: %d %s", response.StatusCode(), response.String())
	}

	var result matrixResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 routes 响应failed: %w", err)
	}
	if len(result.Rows) != len(dests) {
		return nil, fmt.Errorf("routes 返回行数不匹配: got %d, want %d", len(result.Rows), len(dests))
	}

	legs := make([]RouteLeg, len(result.Rows))
	for i, row := range result.Rows {
		legs[i] = RouteLeg{
			DistanceM:        row.DistanceM,
			DurationS:        row.DurationS,
			TrafficDurationS: row.TrafficDurationS,
		}
	}
	return legs, nil
}
