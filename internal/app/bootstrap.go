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

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"drive-blocks/internal/blocks"
	"drive-blocks/internal/bus"
	"drive-blocks/internal/catalog"
	"drive-blocks/internal/enrich"
	"drive-blocks/internal/job"
	"drive-blocks/internal/model"
	"drive-blocks/internal/model/llm"
	"drive-blocks/internal/orchestrator"
	"drive-blocks/internal/snapshot"
	"drive-blocks/internal/storage/cache"
	"drive-blocks/pkg/config"
	"drive-blocks/pkg/log"
	"drive-blocks/pkg/secrets"
	"drive-blocks/pkg/utils"
)

// Bootstrap 统一初始化：存储、富化客户端、模型注册表与编排器在此装配，
// cmd 层只拿装配好的组件，不碰业务构造。
type Bootstrap struct {
	Config *config.Config
	Logger *log.Logger

	Cache         cache.Store
	SnapshotStore snapshot.Store
	Snapshots     *snapshot.Service
	Jobs          job.Registry
	Artifacts     blocks.Store
	Bus           *bus.Bus
	Enricher      *enrich.Enricher
	Holiday       enrich.HolidaySource
	Models        *model.Registry
	Catalog       *catalog.Catalog
	Orchestrator  *orchestrator.Orchestrator

	eventPool *pgxpool.Pool // 事件日志独享的连接池；其余存储各自持池
}

// NewBootstrap 根据配置装配全部组件。
// 持久层任一后端不可达即整体失败，让进程在启动期就暴露问题。
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	logCfg := &log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志 failed: %w", err)
	}

	if err := resolveSecrets(ctx, cfg); err != nil {
		return nil, fmt.Errorf("解析凭据 failed: %w", err)
	}

	cacheStore, err := cache.NewCache(cfg.Storage.Cache)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存 failed: %w", err)
	}

	// 富化 provider 限流：geocoder/places/routes 共享一套 provider 维度配置
	enrichLimits := make(map[string]enrich.ProviderLimitConfig, len(cfg.RateLimits.Enrich))
	for name, lc := range cfg.RateLimits.Enrich {
		enrichLimits[name] = enrich.ProviderLimitConfig{
			RequestsPerMinute: lc.RequestsPerMinute,
			MaxConcurrent:     lc.MaxConcurrent,
		}
	}
	limiter := enrich.NewProviderLimiter(enrichLimits, enrich.ProviderLimitConfig{})

	geocoder := enrich.NewGeocoderClient(
		cfg.Enrich.Geocoder.BaseURL, cfg.Enrich.Geocoder.APIKey,
		config.Duration(cfg.Enrich.Geocoder.Timeout, 5*time.Second),
		cacheStore, limiter, logger)
	places := enrich.NewPlacesClient(
		cfg.Enrich.Places.BaseURL, cfg.Enrich.Places.APIKey,
		config.Duration(cfg.Enrich.Places.Timeout, 5*time.Second),
		config.Duration(cfg.Enrich.Places.HoursTTL, 24*time.Hour),
		cacheStore, limiter, logger)
	routes := enrich.NewRoutesClient(
		cfg.Enrich.Routes.BaseURL, cfg.Enrich.Routes.APIKey,
		config.Duration(cfg.Enrich.Routes.Timeout, 5*time.Second),
		limiter, logger)

	var weather enrich.WeatherProvider
	if cfg.Enrich.Weather.Enable {
		weather = enrich.NewWeatherClient(
			cfg.Enrich.Weather.BaseURL, cfg.Enrich.Weather.APIKey,
			config.Duration(cfg.Enrich.Weather.Timeout, 3*time.Second))
	}

	var holiday enrich.HolidaySource
	if cfg.Enrich.Holiday.Enable {
		holiday = enrich.NewHolidayTable(
			cfg.Enrich.Holiday.BaseURL, cfg.Enrich.Holiday.APIKey,
			config.Duration(cfg.Enrich.Holiday.Timeout, 3*time.Second), logger)
	} else {
		// 外部日历关掉也保留内置表，Briefer 仍能拿到主要市场的节假日
		holiday = enrich.NewHolidayTable("", "", 0, logger)
	}

	snapStore, err := snapshot.NewStore(ctx, cfg.Storage.Metadata)
	if err != nil {
		return nil, fmt.Errorf("初始化快照存储 failed: %w", err)
	}
	snapshots := snapshot.NewService(snapStore, geocoder, weather, logger)

	jobs, err := job.NewRegistry(ctx, cfg.Storage.Metadata, cfg.Jobs)
	if err != nil {
		return nil, fmt.Errorf("初始化 Job 注册表 failed: %w", err)
	}

	artifacts, err := blocks.NewStore(ctx, cfg.Storage.Metadata, cfg.Jobs.KeepAttempts)
	if err != nil {
		return nil, fmt.Errorf("初始化工件存储 failed: %w", err)
	}

	var eventLog bus.EventLog
	var eventPool *pgxpool.Pool
	if cfg.Storage.Metadata.Type == "postgres" {
		poolCfg, perr := pgxpool.ParseConfig(cfg.Storage.Metadata.DSN)
		if perr != nil {
			return nil, fmt.Errorf("解析事件日志 DSN failed: %w", perr)
		}
		eventPool, perr = pgxpool.NewWithConfig(ctx, poolCfg)
		if perr != nil {
			return nil, fmt.Errorf("初始化事件日志连接池 failed: %w", perr)
		}
		if perr = eventPool.Ping(ctx); perr != nil {
			eventPool.Close()
			return nil, fmt.Errorf("事件日志数据库不可达: %w", perr)
		}
		eventLog = bus.NewPgEventLog(eventPool)
	} else {
		eventLog = bus.NewMemoryEventLog()
	}
	eventBus := bus.New(eventLog)

	llmLimits := make(map[string]llm.LimitConfig, len(cfg.RateLimits.LLM))
	for name, lc := range cfg.RateLimits.LLM {
		llmLimits[name] = llm.LimitConfig{
			RequestsPerMinute: lc.RequestsPerMinute,
			MaxConcurrent:     lc.MaxConcurrent,
		}
	}
	models, err := model.NewRegistryFromConfig(cfg, llm.NewRateLimiter(llmLimits, llm.LimitConfig{}), logger)
	if err != nil {
		return nil, fmt.Errorf("初始化模型注册表 failed: %w", err)
	}

	cat := catalog.New(utils.DefaultFloat(cfg.Catalog.MaxDistanceKm, catalog.DefaultMaxDistanceKm))
	if cfg.Catalog.SeedPath != "" {
		if err := catalog.LoadSeed(cat, cfg.Catalog.SeedPath); err != nil {
			return nil, fmt.Errorf("加载场地种子 failed: %w", err)
		}
	}

	enricher := enrich.NewEnricher(geocoder, places, routes, logger)
	orch := orchestrator.New(orchestrator.Deps{
		Jobs:      jobs,
		Models:    models,
		Enricher:  enricher,
		Holiday:   holiday,
		Catalog:   cat,
		Bus:       eventBus,
		Artifacts: artifacts,
	}, cfg.Orchestrator, logger)

	return &Bootstrap{
		Config:        cfg,
		Logger:        logger,
		Cache:         cacheStore,
		SnapshotStore: snapStore,
		Snapshots:     snapshots,
		Jobs:          jobs,
		Artifacts:     artifacts,
		Bus:           eventBus,
		Enricher:      enricher,
		Holiday:       holiday,
		Models:        models,
		Catalog:       cat,
		Orchestrator:  orch,
		eventPool:     eventPool,
	}, nil
}

// secretRefPrefix 配置里引用 Secret Store 的前缀；env 提供方时即环境变量名
const secretRefPrefix = "secret://"

// resolveSecrets 把配置中 secret:// 形式的凭据换成真实值。
// 没有任何引用时不建 Store，避免无谓的 Vault 连接。
func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	refs := false
	keys := []*string{
		&cfg.Enrich.Geocoder.APIKey, &cfg.Enrich.Places.APIKey, &cfg.Enrich.Routes.APIKey,
		&cfg.Enrich.Holiday.APIKey, &cfg.Enrich.Weather.APIKey,
	}
	for _, k := range keys {
		if strings.HasPrefix(*k, secretRefPrefix) {
			refs = true
		}
	}
	for _, rc := range cfg.Model.Roles {
		if strings.HasPrefix(rc.APIKey, secretRefPrefix) {
			refs = true
		}
	}
	if !refs {
		return nil
	}

	store, err := secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Vault: secrets.VaultConfig{
			Address:    cfg.Secrets.Vault.Address,
			Token:      cfg.Secrets.Vault.Token,
			PathPrefix: cfg.Secrets.Vault.PathPrefix,
		},
	})
	if err != nil {
		return err
	}

	resolve := func(v string) (string, error) {
		if !strings.HasPrefix(v, secretRefPrefix) {
			return v, nil
		}
		return store.Get(ctx, strings.TrimPrefix(v, secretRefPrefix))
	}
	for _, k := range keys {
		if *k, err = resolve(*k); err != nil {
			return err
		}
	}
	for role, rc := range cfg.Model.Roles {
		if rc.APIKey, err = resolve(rc.APIKey); err != nil {
			return err
		}
		cfg.Model.Roles[role] = rc
	}
	return nil
}

// Close 释放持久层资源；编排器需先由调用方 Shutdown 排空
func (b *Bootstrap) Close() error {
	var firstErr error
	if b.SnapshotStore != nil {
		if err := b.SnapshotStore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.Jobs != nil {
		if err := b.Jobs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.Artifacts != nil {
		if err := b.Artifacts.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.Cache != nil {
		if err := b.Cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.eventPool != nil {
		b.eventPool.Close()
	}
	return firstErr
}
