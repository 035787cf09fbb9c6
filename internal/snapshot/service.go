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

package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"drive-blocks/internal/enrich"
	"drive-blocks/pkg/errors"
	"drive-blocks/pkg/geo"
	"drive-blocks/pkg/log"
	"drive-blocks/pkg/utils"
)

// geocodeBudget 同步地理编码上限；超时对本次写入致命
const geocodeBudget = 2 * time.Second

// CaptureRequest 快照写入请求
type CaptureRequest struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	CapturedAt time.Time `json:"captured_at"`
	DeviceID   string    `json:"device,omitempty"`
	Context    string    `json:"context,omitempty"`
}

// Service 快照服务：校验 → 同步地理编码（2s 上限）→ 持久化。
// 天气与地理编码并行取数，join 时没到就丢，绝不拖慢写入。
type Service struct {
	store    Store
	geocoder enrich.Geocoder
	weather  enrich.WeatherProvider // 可为 nil
	logger   *log.Logger
}

// NewService 创建快照服务；weather 传 nil 表示禁用天气
func NewService(store Store, geocoder enrich.Geocoder, weather enrich.WeatherProvider, logger *log.Logger) *Service {
	return &Service{
		store:    store,
		geocoder: geocoder,
		weather:  weather,
		logger:   logger,
	}
}

// Capture 校验并持久化一条快照。
// 地理编码失败不落库，返回 geocode_failed；存储失败返回 storage_unavailable。
func (s *Service) Capture(ctx context.Context, req CaptureRequest) (*Snapshot, error) {
	capturedAt := req.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	snap := &Snapshot{
		ID:         "snap-" + uuid.New().String(),
		Coords:     geo.Point{Lat: req.Lat, Lng: req.Lng},
		CapturedAt: capturedAt.UTC(),
		DeviceID:   req.DeviceID,
		Context:    req.Context,
		CreatedAt:  time.Now().UTC(),
	}
	snap.CoordsKey = snap.Coords.Key()

	if err := snap.Validate(); err != nil {
		return nil, err
	}

	geoCtx, cancel := context.WithTimeout(ctx, geocodeBudget)
	defer cancel()

	// 天气并行取，join 点非阻塞收取
	var weatherCh chan *enrich.Weather
	if s.weather != nil {
		weatherCh = make(chan *enrich.Weather, 1)
		go func(pt geo.Point) {
			w, err := s.weather.Current(geoCtx, pt)
			if err != nil {
				if s.logger != nil {
					s.logger.Debug("weather fetch skipped", "snapshot_id", snap.ID, "error", err)
				}
				weatherCh <- nil
				return
			}
			weatherCh <- w
		}(snap.Coords)
	}

	addr, err := s.geocoder.ReverseGeocode(geoCtx, snap.Coords)
	if err != nil {
		return nil, errors.WithCode(errors.Wrap(err, "resolve snapshot address"), errors.CodeGeocodeFailed)
	}

	snap.PlaceID = addr.PlaceID
	snap.Address = addr.Formatted
	snap.City = addr.City
	snap.Region = addr.Region
	snap.Country = utils.NormalizeCountry(addr.Country)
	snap.Timezone = addr.Timezone

	if weatherCh != nil {
		select {
		case w := <-weatherCh:
			snap.Weather = w
		default:
			// 天气还没回来，不等
		}
	}

	if err := s.store.Create(ctx, snap); err != nil {
		return nil, errors.WithCode(errors.Wrap(err, "persist snapshot"), errors.CodeStorageUnavailable)
	}

	if s.logger != nil {
		s.logger.Info("snapshot captured",
			"snapshot_id", snap.ID,
			"coords_key", snap.CoordsKey,
			"city", snap.City,
			"country", snap.Country,
			"timezone", snap.Timezone,
		)
	}
	return snap, nil
}

// Get 按 ID 读取快照；不存在返回 ErrNotFound
func (s *Service) Get(ctx context.Context, id string) (*Snapshot, error) {
	snap, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, errors.WithCode(errors.Wrap(err, "read snapshot"), errors.CodeStorageUnavailable)
	}
	if snap == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "snapshot %s", id)
	}
	return snap, nil
}
