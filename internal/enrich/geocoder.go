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

	"drive-blocks/internal/storage/cache"
	"drive-blocks/pkg/geo"
	"drive-blocks/pkg/log"
	"drive-blocks/pkg/metrics"
	"drive-blocks/pkg/utils"
)

// GeocoderClient 反向地理编码客户端。
// place id 稳定，坐标键缓存不设 TTL；缓存后端故障只降级不阻断。
type GeocoderClient struct {
	baseURL string
	apiKey  string
	client  *resty.Client
	cache   cache.Store
	limiter *ProviderLimiter
	logger  *log.Logger
}

// NewGeocoderClient 创建反向地理编码客户端
func NewGeocoderClient(baseURL, apiKey string, timeout time.Duration, store cache.Store, limiter *ProviderLimiter, logger *log.Logger) *GeocoderClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)

	return &GeocoderClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  client,
		cache:   store,
		limiter: limiter,
		logger:  logger,
	}
}

// geocodeResponse provider 返回的反向地理编码结果
type geocodeResponse struct {
	PlaceID          string `json:"place_id"`
	FormattedAddress string `json:"formatted_address"`
	City             string `json:"city"`
	Region           string `json:"region"`
	Country          string `json:"country"`
	Timezone         string `json:"timezone"`
}

// ReverseGeocode 坐标 → place id + 地址。命中坐标缓存直接返回。
func (g *GeocoderClient) ReverseGeocode(ctx context.Context, pt geo.Point) (*Address, error) {
	cacheKey := "coord_" + pt.Key()

	if g.cache != nil {
		var cached Address
		err := g.cache.Get(ctx, cacheKey, &cached)
		if err == nil {
			metrics.CacheRequestTotal.WithLabelValues("coord", "hit").Inc()
			return &cached, nil
		}
		if cache.IsMiss(err) {
			metrics.CacheRequestTotal.WithLabelValues("coord", "miss").Inc()
		} else {
			metrics.CacheRequestTotal.WithLabelValues("coord", "error").Inc()
			if g.logger != nil {
				g.logger.Warn("coord cache degraded, fetching direct", "key", cacheKey, "error", err)
			}
		}
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, "geocoder"); err != nil {
			return nil, err
		}
		defer g.limiter.Release("geocoder")
	}

	start := time.Now()
	response, err := g.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+g.apiKey).
		SetQueryParam("lat", strconv.FormatFloat(pt.Lat, 'f', 6, 64)).
		SetQueryParam("lng", strconv.FormatFloat(pt.Lng, 'f', 6, 64)).
		Get(g.baseURL + "/reverse")
	metrics.EnrichDuration.WithLabelValues("geocode").Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, fmt.Errorf("调用 geocoder failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("geocoder 返回错误: %d %s", response.StatusCode(), response.String())
	}

	var result geocodeResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 geocoder 响应failed: %w", err)
	}
	if result.PlaceID == "" {
		return nil, fmt.Errorf("geocoder 没有返回 place id")
	}

	addr := &Address{
		PlaceID:   result.PlaceID,
		Formatted: result.FormattedAddress,
		City:      result.City,
		Region:    result.Region,
		Country:   utils.NormalizeCountry(result.Country),
		Timezone:  result.Timezone,
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, cacheKey, addr, 0); err != nil && g.logger != nil {
			g.logger.Warn("coord cache write failed", "key", cacheKey, "error", err)
		}
	}
	return addr, nil
}
