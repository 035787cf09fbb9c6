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

	"drive-blocks/pkg/errors"
	"drive-blocks/pkg/log"
	"drive-blocks/pkg/metrics"
	"drive-blocks/pkg/utils"
)

// Meta 调用维度字段，随 ctx 传递；每条模型调用日志都要带齐
type Meta struct {
	Phase         string
	SnapshotID    string
	CorrelationID string
}

type metaKey struct{}

// WithMeta 将调用维度字段写入 ctx
func WithMeta(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

// MetaFrom 从 ctx 取调用维度字段；没有则零值
func MetaFrom(ctx context.Context) Meta {
	if m, ok := ctx.Value(metaKey{}).(Meta); ok {
		return m
	}
	return Meta{}
}

// RoleClient 角色客户端：RoleCaller + 角色预算 + reasoning-effort + 日志与错误码映射。
// Orchestrator 持有的就是这一层，不直接碰方言。
type RoleClient struct {
	role    Role
	caller  RoleCaller
	timeout time.Duration
	effort  string
	// maxTokens 角色级输出上限；0 用方言默认
	maxTokens int
	logger    *log.Logger
}

// NewRoleClient 创建角色客户端
func NewRoleClient(role Role, caller RoleCaller, timeout time.Duration, effort string, maxTokens int, logger *log.Logger) *RoleClient {
	return &RoleClient{
		role:      role,
		caller:    caller,
		timeout:   timeout,
		effort:    effort,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Role 返回角色名
func (c *RoleClient) Role() Role { return c.role }

// ModelID 返回配置的 model id
func (c *RoleClient) ModelID() string { return c.caller.ModelID() }

// Call 执行角色调用：套角色预算、补 reasoning-effort、记日志与指标、映射错误码。
// throttle 只在 Planner 角色映射为 planner_throttled；其余角色按角色失败处理。
func (c *RoleClient) Call(ctx context.Context, req Request) (*Response, error) {
	req.ReasoningEffort = utils.CoalesceString(req.ReasoningEffort, c.effort)
	req.MaxTokens = utils.DefaultInt(req.MaxTokens, c.maxTokens)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.caller.Call(ctx, req)
	latencyMS := time.Since(start).Milliseconds()

	meta := MetaFrom(ctx)
	if c.logger != nil {
		args := []interface{}{
			"phase", meta.Phase,
			"role", string(c.role),
			"model_id", c.caller.ModelID(),
			"reasoning_effort", req.ReasoningEffort,
			"snapshot_id", meta.SnapshotID,
			"correlation_id", meta.CorrelationID,
			"latency_ms", latencyMS,
		}
		if err != nil {
			c.logger.Error("model call failed", append(args, "error", err)...)
		} else {
			c.logger.Info("model call", args...)
		}
	}
	metrics.ModelCallDuration.WithLabelValues(string(c.role)).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, c.mapError(err)
	}
	metrics.ModelTokensTotal.WithLabelValues(string(c.role), "input").Add(float64(resp.Usage.InputTokens))
	metrics.ModelTokensTotal.WithLabelValues(string(c.role), "output").Add(float64(resp.Usage.OutputTokens))
	resp.LatencyMS = latencyMS
	return resp, nil
}

func (c *RoleClient) mapError(err error) error {
	switch {
	case errors.Is(err, ErrModelMismatch):
		return errors.WithCode(err, errors.CodeModelMismatch)
	case errors.Is(err, ErrThrottled) && c.role == RolePlanner:
		return errors.WithCode(err, errors.CodePlannerThrottled)
	}
	switch c.role {
	case RoleStrategist, RoleBriefer:
		return errors.WithCode(err, errors.CodeStrategistFailed)
	case RolePlanner:
		return errors.WithCode(err, errors.CodePlannerFailed)
	case RoleValidator:
		return errors.WithCode(err, errors.CodeValidatorFailed)
	}
	return err
}
