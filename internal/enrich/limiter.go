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
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"drive-blocks/pkg/metrics"
)

// ProviderLimitConfig 富化 provider 限流配置
type ProviderLimitConfig struct {
	RequestsPerMinute float64 // 每分钟请求数
	MaxConcurrent     int     // 最大并发请求数（geocoder 默认 32）
}

// ProviderLimiter provider 维度的限流器：RPS + 并发槽。
// 连接池进程级共享，并发上限按 provider 单独配置。
type ProviderLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*providerLimiter
	defaults ProviderLimitConfig
}

type providerLimiter struct {
	requestLimiter *rate.Limiter
	semaphore      chan struct{}
}

// NewProviderLimiter 创建富化限流器
func NewProviderLimiter(configs map[string]ProviderLimitConfig, defaults ProviderLimitConfig) *ProviderLimiter {
	if defaults.MaxConcurrent <= 0 {
		defaults.MaxConcurrent = 32
	}
	l := &ProviderLimiter{
		limiters: make(map[string]*providerLimiter),
		defaults: defaults,
	}
	for provider, cfg := range configs {
		l.addProvider(provider, cfg)
	}
	return l
}

func (l *ProviderLimiter) addProvider(provider string, cfg ProviderLimitConfig) {
	pl := &providerLimiter{}
	if cfg.RequestsPerMinute > 0 {
		rps := cfg.RequestsPerMinute / 60.0
		burst := int(rps * 2)
		if burst < 1 {
			burst = 1
		}
		pl.requestLimiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if cfg.MaxConcurrent > 0 {
		pl.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}
	l.mu.Lock()
	l.limiters[provider] = pl
	l.mu.Unlock()
}

// Wait 阻塞直到获取执行许可
func (l *ProviderLimiter) Wait(ctx context.Context, provider string) error {
	l.mu.RLock()
	pl, exists := l.limiters[provider]
	l.mu.RUnlock()

	if !exists {
		l.addProvider(provider, l.defaults)
		l.mu.RLock()
		pl = l.limiters[provider]
		l.mu.RUnlock()
	}

	start := time.Now()
	if pl.requestLimiter != nil {
		if err := pl.requestLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	if pl.semaphore != nil {
		select {
		case pl.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		metrics.RateLimitWaitSeconds.WithLabelValues("enrich", provider).Observe(waited.Seconds())
	}
	return nil
}

// Release 释放并发槽（调用完成后）
func (l *ProviderLimiter) Release(provider string) {
	l.mu.RLock()
	pl, exists := l.limiters[provider]
	l.mu.RUnlock()

	if exists && pl.semaphore != nil {
		select {
		case <-pl.semaphore:
		default:
		}
	}
}
