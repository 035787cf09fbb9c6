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
	"time"

	"drive-blocks/pkg/errors"
	"drive-blocks/pkg/geo"
	"drive-blocks/pkg/log"
)

// Enricher 单个候选场地的富化门面：反向地理编码 → hours → 交通感知车程。
// 单场地失败可恢复（该场地被丢弃），是否整单失败由调用方按比例裁决。
type Enricher struct {
	geocoder Geocoder
	places   PlacesProvider
	routes   RouteProvider
	logger   *log.Logger
}

// NewEnricher 创建富化门面
func NewEnricher(geocoder Geocoder, places PlacesProvider, routes RouteProvider, logger *log.Logger) *Enricher {
	return &Enricher{
		geocoder: geocoder,
		places:   places,
		routes:   routes,
		logger:   logger,
	}
}

// EnrichVenue 就地补全候选场地。origin 是司机快照坐标。
// hours 缺失不算失败（打 hours-unknown）；geocode/route 失败返回 enrichment_failed。
func (e *Enricher) EnrichVenue(ctx context.Context, v *VenueCandidate, origin geo.Point) error {
	if !v.Coords.Valid() {
		return errors.Codef(errors.CodeEnrichmentFailed, "venue %q has invalid coordinates", v.Name)
	}

	addr, err := e.geocoder.ReverseGeocode(ctx, v.Coords)
	if err != nil {
		return errors.WithCode(errors.Wrapf(err, "reverse geocode venue %q", v.Name), errors.CodeEnrichmentFailed)
	}
	v.PlaceID = addr.PlaceID
	v.Address = addr.Formatted

	place, err := e.places.Details(ctx, addr.PlaceID)
	if err != nil {
		// hours 属于增强信息：places 失败降级为 hours-unknown，不丢场地
		if e.logger != nil {
			e.logger.Warn("places lookup failed, marking hours unknown", "venue", v.Name, "place_id", addr.PlaceID, "error", err)
		}
		v.HoursUnknown = true
	} else {
		if place.DisplayName != "" {
			v.DisplayName = place.DisplayName
		}
		if place.Formatted != "" {
			v.Address = place.Formatted
		}
		if place.Hours != nil {
			v.Hours = place.Hours
		} else {
			v.HoursUnknown = true
		}
	}
	if v.DisplayName == "" {
		v.DisplayName = v.Name
	}

	dest := v.Staging
	if !dest.Valid() || (dest.Lat == 0 && dest.Lng == 0) {
		dest = v.Coords
	}
	legs, err := e.routes.Matrix(ctx, origin, []geo.Point{dest}, time.Time{})
	if err != nil {
		return errors.WithCode(errors.Wrapf(err, "route venue %q", v.Name), errors.CodeEnrichmentFailed)
	}
	if len(legs) > 0 {
		leg := legs[0]
		v.DriveDistM = leg.DistanceM
		v.DriveTimeS = leg.DurationS
		if leg.TrafficDurationS > 0 {
			v.DriveTimeS = leg.TrafficDurationS
		}
	}
	return nil
}
