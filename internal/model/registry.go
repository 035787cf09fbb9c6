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

// Package model 模型注册表：三个角色各持一个句柄，启动期装配完成后只读。
// 角色之间没有降级链；briefer 缺省复用 strategist 的 provider 配置。
package model

import (
	"fmt"
	"sync"
	"time"

	"drive-blocks/internal/model/llm"
	"drive-blocks/pkg/config"
	"drive-blocks/pkg/log"
)

// 角色默认预算；model.yaml 可覆盖
var defaultTimeouts = map[llm.Role]time.Duration{
	llm.RoleStrategist: 12 * time.Second,
	llm.RolePlanner:    45 * time.Second,
	llm.RoleValidator:  15 * time.Second,
	llm.RoleBriefer:    12 * time.Second,
}

// Registry 角色 → RoleClient；启动期写入，运行期只读
type Registry struct {
	mu      sync.RWMutex
	clients map[llm.Role]*llm.RoleClient
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{clients: make(map[llm.Role]*llm.RoleClient)}
}

// Register 注册角色客户端
func (r *Registry) Register(role llm.Role, c *llm.RoleClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[role] = c
}

// Get 按角色取客户端；未注册返回错误
func (r *Registry) Get(role llm.Role) (*llm.RoleClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[role]
	if !ok {
		return nil, fmt.Errorf("role not registered: %s", role)
	}
	return c, nil
}

// Strategist 取 Strategist 句柄
func (r *Registry) Strategist() (*llm.RoleClient, error) { return r.Get(llm.RoleStrategist) }

// Planner 取 Planner 句柄
func (r *Registry) Planner() (*llm.RoleClient, error) { return r.Get(llm.RolePlanner) }

// Validator 取 Validator 句柄
func (r *Registry) Validator() (*llm.RoleClient, error) { return r.Get(llm.RoleValidator) }

// Briefer 取 Briefer 句柄；未单独配置时是 strategist 配置的另一实例
func (r *Registry) Briefer() (*llm.RoleClient, error) { return r.Get(llm.RoleBriefer) }

// NewRegistryFromConfig 按 model.yaml 装配三个角色（+ briefer）。
// Planner 的 reasoning-effort 固定拉到最高档；配置写低了也不降。
func NewRegistryFromConfig(cfg *config.Config, limiter *llm.RateLimiter, logger *log.Logger) (*Registry, error) {
	reg := NewRegistry()
	for _, role := range []llm.Role{llm.RoleStrategist, llm.RolePlanner, llm.RoleValidator, llm.RoleBriefer} {
		rc, ok := cfg.Model.Roles[string(role)]
		if !ok {
			if role == llm.RoleBriefer {
				rc, ok = cfg.Model.Roles[string(llm.RoleStrategist)]
			}
			if !ok {
				return nil, fmt.Errorf("model.roles.%s 缺失", role)
			}
		}

		caller, err := llm.NewCaller(rc.Provider, rc.Name, rc.APIKey, rc.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("装配角色 %s: %w", role, err)
		}
		var wrapped llm.RoleCaller = caller
		if limiter != nil {
			wrapped = llm.NewRateLimitedCaller(caller, limiter)
		}

		effort := rc.ReasoningEffort
		if role == llm.RolePlanner {
			effort = "high"
		}
		timeout := config.Duration(rc.Timeout, defaultTimeouts[role])
		reg.Register(role, llm.NewRoleClient(role, wrapped, timeout, effort, rc.MaxTokens, logger))
	}
	return reg, nil
}
