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
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

// AnthropicCaller Anthropic messages 方言的角色调用器
type AnthropicCaller struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// NewAnthropicCaller 创建 Anthropic 调用器；baseURL 为空时用默认或 ANTHROPIC_BASE_URL
func NewAnthropicCaller(model, apiKey, baseURL string) *AnthropicCaller {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
		if envURL := os.Getenv("ANTHROPIC_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}
	return &AnthropicCaller{
		provider: "anthropic",
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   resty.New(),
	}
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Call 执行一次角色调用。JSONMode 通过 system 指令实现（messages API 无 response_format）。
func (c *AnthropicCaller) Call(ctx context.Context, req Request) (*Response, error) {
	system := req.System
	if req.JSONMode {
		system += "\nRespond with a single valid JSON object and nothing else."
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	body := map[string]interface{}{
		"model":      c.model,
		"max_tokens": maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": req.User},
		},
	}
	if system != "" {
		body["system"] = system
	}
	if req.ReasoningEffort == "high" {
		// thinking 预算是本方言的 reasoning-effort 表达
		body["thinking"] = map[string]interface{}{"type": "enabled", "budget_tokens": 2048}
	}

	start := time.Now()
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", "2023-06-01").
		SetBody(body).
		Post(c.baseURL + "/messages")
	if err != nil {
		return nil, fmt.Errorf("调用 Anthropic API failed: %w", err)
	}

	if code := response.StatusCode(); code != http.StatusOK {
		if code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable {
			return nil, fmt.Errorf("%w: anthropic status %d", ErrThrottled, code)
		}
		return nil, fmt.Errorf("Anthropic API 返回错误 %d: %s", code, response.String())
	}

	var result anthropicResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 Anthropic 响应failed: %w", err)
	}
	if result.Model != "" && result.Model != c.model {
		return nil, fmt.Errorf("%w: want %s got %s", ErrModelMismatch, c.model, result.Model)
	}

	text := ""
	for _, block := range result.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, fmt.Errorf("Anthropic API 没有返回结果")
	}

	return &Response{
		Text:    text,
		ModelID: c.model,
		Usage: Usage{
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
		},
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

// ModelID 返回配置的 model id
func (c *AnthropicCaller) ModelID() string {
	return c.model
}

// Provider 返回提供商名称
func (c *AnthropicCaller) Provider() string {
	return c.provider
}
