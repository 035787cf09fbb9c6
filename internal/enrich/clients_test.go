// Copyright 2026 fanjia1024
// Tests for enrichment provider clients

package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drive-blocks/internal/storage/cache"
	"drive-blocks/pkg/geo"
)

func TestGeocoderClient_ReverseGeocode(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "32.896800", r.URL.Query().Get("lat"))
		assert.Equal(t, "-97.038000", r.URL.Query().Get("lng"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"place_id":          "pid-dfw-1",
			"formatted_address": "2400 Aviation Dr, DFW Airport, TX",
			"city":              "Dallas",
			"region":            "TX",
			"country":           "United States",
			"timezone":          "America/Chicago",
		})
	}))
	defer srv.Close()

	store := cache.NewMemoryStore()
	g := NewGeocoderClient(srv.URL, "key", 2*time.Second, store, nil, nil)
	pt := geo.Point{Lat: 32.8968, Lng: -97.038}

	addr, err := g.ReverseGeocode(context.Background(), pt)
	require.NoError(t, err)
	assert.Equal(t, "pid-dfw-1", addr.PlaceID)
	assert.Equal(t, "US", addr.Country, "country must be normalized to alpha-2")
	assert.Equal(t, "America/Chicago", addr.Timezone)

	// 第二次命中坐标缓存，不再打 provider
	addr2, err := g.ReverseGeocode(context.Background(), pt)
	require.NoError(t, err)
	assert.Equal(t, addr.PlaceID, addr2.PlaceID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGeocoderClient_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewGeocoderClient(srv.URL, "key", 2*time.Second, nil, nil, nil)
	_, err := g.ReverseGeocode(context.Background(), geo.Point{Lat: 1, Lng: 2})
	require.Error(t, err)
}

func TestPlacesClient_Details(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places/pid-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"place_id":          "pid-1",
			"display_name":      "Founders Plaza",
			"formatted_address": "N Airfield Dr, DFW",
			"business_status":   "operational",
			"lat":               32.9,
			"lng":               -97.04,
			"opening_hours": []map[string]any{
				{"day": 1, "open": "08:00", "close": "20:00"},
				{"day": 0, "closed": true},
			},
		})
	}))
	defer srv.Close()

	p := NewPlacesClient(srv.URL, "key", 2*time.Second, time.Hour, cache.NewMemoryStore(), nil, nil)
	place, err := p.Details(context.Background(), "pid-1")
	require.NoError(t, err)
	assert.Equal(t, "Founders Plaza", place.DisplayName)
	require.NotNil(t, place.Hours)
	assert.Equal(t, "08:00", place.Hours.Weekday[time.Monday].Open)
	assert.True(t, place.Hours.Weekday[time.Sunday].Closed)
	// 未出现的 weekday 默认 closed，不会被当成营业
	assert.True(t, place.Hours.Weekday[time.Tuesday].Closed)
	assert.False(t, place.CachedAt.IsZero())
}

func TestPlacesClient_NoHours(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"place_id":     "pid-2",
			"display_name": "Mystery Lot",
		})
	}))
	defer srv.Close()

	p := NewPlacesClient(srv.URL, "key", 2*time.Second, time.Hour, nil, nil, nil)
	place, err := p.Details(context.Background(), "pid-2")
	require.NoError(t, err)
	assert.Nil(t, place.Hours, "missing provider hours must stay unknown")
}

func TestRoutesClient_Matrix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req matrixRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		dep, err := time.Parse(time.RFC3339, req.DepartureTime)
		require.NoError(t, err)
		assert.True(t, dep.After(time.Now()), "departure must be in the future")
		assert.Len(t, req.Destinations, 2)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"rows": []map[string]int64{
				{"distance_m": 5200, "duration_s": 420, "traffic_duration_s": 510},
				{"distance_m": 9100, "duration_s": 700, "traffic_duration_s": 0},
			},
		})
	}))
	defer srv.Close()

	rc := NewRoutesClient(srv.URL, "key", 2*time.Second, nil, nil)
	legs, err := rc.Matrix(context.Background(), geo.Point{Lat: 32.9, Lng: -97.0},
		[]geo.Point{{Lat: 32.91, Lng: -97.01}, {Lat: 32.95, Lng: -97.05}}, time.Time{})
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.Equal(t, int64(5200), legs[0].DistanceM)
	assert.Equal(t, int64(510), legs[0].TrafficDurationS)
}

func TestRoutesClient_RowCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"rows": []map[string]int64{}})
	}))
	defer srv.Close()

	rc := NewRoutesClient(srv.URL, "key", 2*time.Second, nil, nil)
	_, err := rc.Matrix(context.Background(), geo.Point{Lat: 1, Lng: 1}, []geo.Point{{Lat: 2, Lng: 2}}, time.Time{})
	require.Error(t, err)
}

func TestRoutesClient_EmptyDestinations(t *testing.T) {
	rc := NewRoutesClient("http://unused", "key", time.Second, nil, nil)
	legs, err := rc.Matrix(context.Background(), geo.Point{Lat: 1, Lng: 1}, nil, time.Time{})
	require.NoError(t, err)
	assert.Nil(t, legs)
}
