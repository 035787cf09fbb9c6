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
	"time"

	"drive-blocks/pkg/metrics"
)

// RateLimitedCaller 包装任意 RoleCaller，在真实调用前执行限流控制。
type RateLimitedCaller struct {
	inner       RoleCaller
	rateLimiter *RateLimiter
}

// NewRateLimitedCaller 创建带限流的角色调用器。rateLimiter 为 nil 时退化为直接调用。
func NewRateLimitedCaller(inner RoleCaller, rateLimiter *RateLimiter) *RateLimitedCaller {
	return &RateLimitedCaller{inner: inner, rateLimiter: rateLimiter}
}

// Call 实现 RoleCaller.Call，调用前获取许可，返回后归还并发槽。
func (c *RateLimitedCaller) Call(ctx context.Context, req Request) (*Response, error) {
	if c.rateLimiter != nil {
		provider := c.inner.Provider()
		start := time.Now()
		if err := c.rateLimiter.Wait(ctx, provider); err != nil {
			return nil, err
		}
		if waited := time.Since(start); waited > 100*time.Millisecond {
			metrics.RateLimitWaitSeconds.WithLabelValues("llm", provider).Observe(waited.Seconds())
		}
		defer c.rateLimiter.Release(provider)
	}
	return c.inner.Call(ctx, req)
}

// ModelID 返回底层调用器的 model id
func (c *RateLimitedCaller) ModelID() string { return c.inner.ModelID() }

// Provider 返回底层调用器的提供商名称
func (c *RateLimitedCaller) Provider() string { return c.inner.Provider() }
