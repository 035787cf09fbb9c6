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

// migrate 建表工具：storage.metadata.type=postgres 时先跑一次。
// 使用：go run ./cmd/migrate [-dsn postgres://...]；默认读 configs/api.yaml。
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"drive-blocks/pkg/config"
)

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		id          TEXT PRIMARY KEY,
		lat         DOUBLE PRECISION NOT NULL,
		lng         DOUBLE PRECISION NOT NULL,
		coords_key  TEXT NOT NULL,
		captured_at TIMESTAMPTZ NOT NULL,
		device_id   TEXT,
		context     TEXT,
		place_id    TEXT,
		address     TEXT,
		city        TEXT,
		region      TEXT,
		country     TEXT,
		timezone    TEXT,
		weather     JSONB,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_coords_key ON snapshots (coords_key)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id               TEXT PRIMARY KEY,
		snapshot_id      TEXT NOT NULL UNIQUE,
		status           TEXT NOT NULL,
		phase            TEXT NOT NULL,
		attempt          INTEGER NOT NULL,
		correlation_id   TEXT NOT NULL,
		phase_timings    JSONB,
		phase_started_at TIMESTAMPTZ,
		error_code       TEXT,
		error_message    TEXT,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS artifacts (
		snapshot_id TEXT NOT NULL,
		attempt     INTEGER NOT NULL,
		job_id      TEXT NOT NULL,
		payload     JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (snapshot_id, attempt)
	)`,
	`CREATE TABLE IF NOT EXISTS job_events (
		job_id     TEXT NOT NULL,
		seq        BIGINT NOT NULL,
		payload    JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (job_id, seq)
	)`,
}

func main() {
	dsnFlag := flag.String("dsn", "", "PostgreSQL 连接串；空则读 configs/api.yaml 的 storage.metadata.dsn")
	flag.Parse()

	dsn := *dsnFlag
	if dsn == "" {
		cfg, err := config.LoadAPIConfig()
		if err != nil {
			log.Fatalf("加载配置 failed: %v", err)
		}
		if cfg.Storage.Metadata.Type != "postgres" {
			log.Fatalf("storage.metadata.type=%q，无需迁移", cfg.Storage.Metadata.Type)
		}
		dsn = cfg.Storage.Metadata.DSN
	}
	if dsn == "" {
		log.Fatal("缺 DSN：传 -dsn 或在配置中填 storage.metadata.dsn")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("连接数据库 failed: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("数据库不可达: %v", err)
	}

	for _, stmt := range ddl {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			log.Fatalf("执行 DDL failed: %v\n%s", err, stmt)
		}
	}
	log.Println("迁移完成: snapshots / jobs / artifacts / job_events")
}
