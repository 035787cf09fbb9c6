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

	"drive-blocks/internal/storage/cache"
	"drive-blocks/pkg/geo"
	"drive-blocks/pkg/log"
	"drive-blocks/pkg/metrics"
)

const defaultHoursTTL = 24 * time.Hour

// PlacesClient 地点元数据客户端。
// 营业时间缓存 24h；place 身份与坐标不变，过期只刷新 hours。
// 营业时间只能来自这里，LLM 生成的 hours 一律不落地。
type PlacesClient struct {
	baseURL  string
	apiKey   string
	hoursTTL time.Duration
	client   *resty.Client
	cache    cache.Store
	limiter  *ProviderLimiter
	logger   *log.Logger
}

// NewPlacesClient 创建地点元数据客户端
func NewPlacesClient(baseURL, apiKey string, timeout, hoursTTL time.Duration, store cache.Store, limiter *ProviderLimiter, logger *log.Logger) *PlacesClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if hoursTTL <= 0 {
		hoursTTL = defaultHoursTTL
	}
	client := resty.New()
	client.SetTimeout(timeout)

	return &PlacesClient{
		baseURL:  baseURL,
		apiKey:   apiKey,
		hoursTTL: hoursTTL,
		client:   client,
		cache:    store,
		limiter:  limiter,
		logger:   logger,
	}
}

// placeResponse provider 返回的地点详情
type placeResponse struct {
	PlaceID          string  `json:"place_id"`
	DisplayName      string  `json:"display_name"`
	FormattedAddress string  `json:"formatted_address"`
	BusinessStatus   string  `json:"business_status"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	OpeningHours     []struct {
		Day    int    `json:"day"` // 0 = Sunday
		Open   string `json:"open"`
		Close  string `json:"close"`
		Closed bool   `json:"closed"`
	} `json:"opening_hours"`
}

// Details place id → 展示名/地址/营业状态/结构化 hours。
// provider 无 hours 时 Place.Hours 为 nil，调用方据此打 hours-unknown 标记。
func (p *PlacesClient) Details(ctx context.Context, placeID string) (*Place, error) {
	cacheKey := "place_" + placeID

	if p.cache != nil {
		var cached Place
		err := p.cache.Get(ctx, cacheKey, &cached)
		if err == nil {
			metrics.CacheRequestTotal.WithLabelValues("place", "hit").Inc()
			return &cached, nil
		}
		if cache.IsMiss(err) {
			metrics.CacheRequestTotal.WithLabelValues("place", "miss").Inc()
		} else {
			metrics.CacheRequestTotal.WithLabelValues("place", "error").Inc()
			if p.logger != nil {
				p.logger.Warn("place cache degraded, fetching direct", "key", cacheKey, "error", err)
			}
		}
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, "places"); err != nil {
			return nil, err
		}
		defer p.limiter.Release("places")
	}

	start := time.Now()
	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+p.apiKey).
		Get(p.baseURL + "/places/" + placeID)
	metrics.EnrichDuration.WithLabelValues("places").Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, fmt.Errorf("调用 places failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("places 返回错误: %d %s", response.StatusCode(), response.String())
	}

	var result placeResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 places 响应failed: %w", err)
	}

	place := &Place{
		PlaceID:        result.PlaceID,
		DisplayName:    result.DisplayName,
		Formatted:      result.FormattedAddress,
		BusinessStatus: result.BusinessStatus,
		Coords:         geo.Point{Lat: result.Lat, Lng: result.Lng},
		CachedAt:       time.Now().UTC(),
	}

	if len(result.OpeningHours) > 0 {
		hours := &BusinessHours{CachedAt: place.CachedAt}
		for i := range hours.Weekday {
			hours.Weekday[i] = DayHours{Closed: true}
		}
		for _, oh := range result.OpeningHours {
			if oh.Day < 0 || oh.Day > 6 {
				continue
			}
			hours.Weekday[oh.Day] = DayHours{Open: oh.Open, Close: oh.Close, Closed: oh.Closed}
		}
		place.Hours = hours
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, cacheKey, place, p.hoursTTL); err != nil && p.logger != nil {
			p.logger.Warn("place cache write failed", "key", cacheKey, "error", err)
		}
	}
	return place, nil
}
