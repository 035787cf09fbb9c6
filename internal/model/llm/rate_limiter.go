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

package llm

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// LimitConfig LLM provider 限流配置
type LimitConfig struct {
	RequestsPerMinute float64 // 每分钟请求数
	MaxConcurrent     int     // 最大并发请求数（Planner provider 默认 16）
}

// RateLimiter provider 维度的限流器：RPS + 并发槽。
// 连接池进程级共享；并发上限按 provider 单独配置。
type RateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*callerLimiter
	defaults LimitConfig
}

type callerLimiter struct {
	requestLimiter *rate.Limiter
	semaphore      chan struct{}
}

// NewRateLimiter 创建 LLM 限流器
func NewRateLimiter(configs map[string]LimitConfig, defaults LimitConfig) *RateLimiter {
	if defaults.MaxConcurrent <= 0 {
		defaults.MaxConcurrent = 16
	}
	l := &RateLimiter{
		limiters: make(map[string]*callerLimiter),
		defaults: defaults,
	}
	for provider, cfg := range configs {
		l.addProvider(provider, cfg)
	}
	return l
}

func (l *RateLimiter) addProvider(provider string, cfg LimitConfig) {
	cl := &callerLimiter{}
	if cfg.RequestsPerMinute > 0 {
		rps := cfg.RequestsPerMinute / 60.0
		burst := int(rps * 2)
		if burst < 1 {
			burst = 1
		}
		cl.requestLimiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if cfg.MaxConcurrent > 0 {
		cl.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}
	l.mu.Lock()
	l.limiters[provider] = cl
	l.mu.Unlock()
}

// Wait 获取执行许可，阻塞直到 RPS 与并发槽都满足；ctx 取消时返回其错误
func (l *RateLimiter) Wait(ctx context.Context, provider string) error {
	l.mu.RLock()
	cl, ok := l.limiters[provider]
	l.mu.RUnlock()
	if !ok {
		l.addProvider(provider, l.defaults)
		l.mu.RLock()
		cl = l.limiters[provider]
		l.mu.RUnlock()
	}

	if cl.requestLimiter != nil {
		if err := cl.requestLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("llm rate limit wait (%s): %w", provider, err)
		}
	}
	if cl.semaphore != nil {
		select {
		case cl.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release 归还并发槽；与 Wait 成对调用
func (l *RateLimiter) Release(provider string) {
	l.mu.RLock()
	cl, ok := l.limiters[provider]
	l.mu.RUnlock()
	if !ok || cl.semaphore == nil {
		return
	}
	select {
	case <-cl.semaphore:
	default:
	}
}
