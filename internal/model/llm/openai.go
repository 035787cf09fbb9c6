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

// OpenAICaller OpenAI 兼容端点的角色调用器（chat completions 方言）
type OpenAICaller struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// NewOpenAICaller 创建 OpenAI 兼容调用器；baseURL 为空时用默认或 OPENAI_BASE_URL。
// 超时由调用方 ctx 控制（角色预算在上层配置），客户端自身不重试：
// 阶段内不重试是 Orchestrator 的契约，throttle 要原样透出。
func NewOpenAICaller(model, apiKey, baseURL string) *OpenAICaller {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
		if envURL := os.Getenv("OPENAI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}
	return &OpenAICaller{
		provider: "openai",
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   resty.New(),
	}
}

type openaiChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Call 执行一次角色调用
func (c *OpenAICaller) Call(ctx context.Context, req Request) (*Response, error) {
	messages := make([]map[string]string, 0, 2)
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.User})

	body := map[string]interface{}{
		"model":    c.model,
		"messages": messages,
	}
	if req.MaxTokens > 0 {
		body["max_completion_tokens"] = req.MaxTokens
	}
	if req.JSONMode {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	if req.ReasoningEffort != "" {
		body["reasoning_effort"] = req.ReasoningEffort
	}

	start := time.Now()
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(body).
		Post(c.baseURL + "/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("调用 OpenAI API failed: %w", err)
	}

	if code := response.StatusCode(); code != http.StatusOK {
		if code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable {
			return nil, fmt.Errorf("%w: openai status %d", ErrThrottled, code)
		}
		return nil, fmt.Errorf("OpenAI API 返回错误 %d: %s", code, response.String())
	}

	var result openaiChatResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 OpenAI 响应failed: %w", err)
	}
	if result.Model != "" && result.Model != c.model {
		return nil, fmt.Errorf("%w: want %s got %s", ErrModelMismatch, c.model, result.Model)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI API 没有返回结果")
	}

	return &Response{
		Text:    result.Choices[0].Message.Content,
		ModelID: c.model,
		Usage: Usage{
			InputTokens:  result.Usage.PromptTokens,
			OutputTokens: result.Usage.CompletionTokens,
		},
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

// ModelID 返回配置的 model id
func (c *OpenAICaller) ModelID() string {
	return c.model
}

// Provider 返回提供商名称
func (c *OpenAICaller) Provider() string {
	return c.provider
}
