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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"drive-blocks/internal/enrich"
	"drive-blocks/pkg/geo"
)

// PgStore PostgreSQL 实现：snapshots 表
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore 创建基于 PostgreSQL 的快照存储；dsn 为连接串
func NewPgStore(ctx context.Context, dsn string) (*PgStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PgStore{pool: pool}, nil
}

// Close 关闭连接池
func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}

func nullStr(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

// Create 持久化快照；主键冲突映射为已存在错误
func (s *PgStore) Create(ctx context.Context, snap *Snapshot) error {
	var weatherJSON interface{}
	if snap.Weather != nil {
		b, err := json.Marshal(snap.Weather)
		if err != nil {
			return fmt.Errorf("marshal weather: %w", err)
		}
		weatherJSON = b
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO snapshots (id, lat, lng, coords_key, captured_at, device_id, context, place_id, address, city, region, country, timezone, weather, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		snap.ID, snap.Coords.Lat, snap.Coords.Lng, snap.CoordsKey, snap.CapturedAt,
		nullStr(snap.DeviceID), nullStr(snap.Context), nullStr(snap.PlaceID), nullStr(snap.Address),
		nullStr(snap.City), nullStr(snap.Region), nullStr(snap.Country), nullStr(snap.Timezone),
		weatherJSON, snap.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("snapshot already exists: %s", snap.ID)
		}
		return err
	}
	return nil
}

// Get 按 ID 读取；不存在返回 nil, nil
func (s *PgStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	var snap Snapshot
	var deviceID, context_, placeID, address, city, region, country, timezone *string
	var weatherJSON []byte
	var capturedAt, createdAt time.Time
	var lat, lng float64

	err := s.pool.QueryRow(ctx,
		`SELECT id, lat, lng, coords_key, captured_at, device_id, context, place_id, address, city, region, country, timezone, weather, created_at
		 FROM snapshots WHERE id = $1`,
		id).Scan(&snap.ID, &lat, &lng, &snap.CoordsKey, &capturedAt,
		&deviceID, &context_, &placeID, &address, &city, &region, &country, &timezone,
		&weatherJSON, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	snap.Coords = geo.Point{Lat: lat, Lng: lng}
	snap.CapturedAt = capturedAt.UTC()
	snap.CreatedAt = createdAt.UTC()
	if deviceID != nil {
		snap.DeviceID = *deviceID
	}
	if context_ != nil {
		snap.Context = *context_
	}
	if placeID != nil {
		snap.PlaceID = *placeID
	}
	if address != nil {
		snap.Address = *address
	}
	if city != nil {
		snap.City = *city
	}
	if region != nil {
		snap.Region = *region
	}
	if country != nil {
		snap.Country = *country
	}
	if timezone != nil {
		snap.Timezone = *timezone
	}
	if len(weatherJSON) > 0 {
		var w enrich.Weather
		if err := json.Unmarshal(weatherJSON, &w); err == nil {
			snap.Weather = &w
		}
	}
	return &snap, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
