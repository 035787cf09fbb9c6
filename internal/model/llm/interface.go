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
	"errors"
	"fmt"
)

// Role 三角色管线的角色名；briefer 复用 strategist 的 provider 家族
type Role string

const (
	RoleStrategist Role = "strategist"
	RolePlanner    Role = "planner"
	RoleValidator  Role = "validator"
	RoleBriefer    Role = "briefer"
)

// 适配器层哨兵错误；调用方用 errors.Is 判别后映射为角色错误码
var (
	// ErrThrottled provider 返回 429/503；阶段内不重试，快速失败
	ErrThrottled = errors.New("llm: provider throttled")
	// ErrModelMismatch provider 回显的 model id 与配置不一致；绝不静默换模型
	ErrModelMismatch = errors.New("llm: provider returned a different model id")
)

// Request 一次角色调用
type Request struct {
	System string `json:"system"`
	User   string `json:"user"`
	// JSONMode 要求 provider 输出严格 JSON（Planner 用）
	JSONMode bool `json:"json_mode"`
	// ReasoningEffort 推理深度拨盘（low|medium|high）；provider 不支持时忽略
	ReasoningEffort string `json:"reasoning_effort,omitempty"`
	MaxTokens       int    `json:"max_tokens,omitempty"`
}

// Usage token 用量
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response 角色调用结果；ModelID 为 provider 回显值，已通过一致性校验
type Response struct {
	Text      string `json:"text"`
	ModelID   string `json:"model_id"`
	Usage     Usage  `json:"usage"`
	LatencyMS int64  `json:"latency_ms"`
}

// RoleCaller 统一角色调用契约：三个 provider 家族各一份实现。
// 适配器内部没有降级链；配置的 model id 与回显不一致即失败。
type RoleCaller interface {
	// Call 执行一次角色调用；ctx 承载阶段 deadline 与取消
	Call(ctx context.Context, req Request) (*Response, error)
	// ModelID 返回配置的 model id
	ModelID() string
	// Provider 返回提供商名称
	Provider() string
}

// NewCaller 按 provider 创建角色调用器。未知 provider 是配置错误（进程退出码 1 的来源之一）。
func NewCaller(provider, modelID, apiKey, baseURL string) (RoleCaller, error) {
	switch provider {
	case "openai":
		return NewOpenAICaller(modelID, apiKey, baseURL), nil
	case "anthropic":
		return NewAnthropicCaller(modelID, apiKey, baseURL), nil
	case "gemini":
		return NewGeminiCaller(modelID, apiKey, baseURL), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}
