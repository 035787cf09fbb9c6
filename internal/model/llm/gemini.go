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
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// GeminiCaller Gemini generateContent 方言的角色调用器
type GeminiCaller struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// NewGeminiCaller 创建 Gemini 调用器；baseURL 为空时用默认或 GEMINI_BASE_URL
func NewGeminiCaller(model, apiKey, baseURL string) *GeminiCaller {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
		if envURL := os.Getenv("GEMINI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}
	return &GeminiCaller{
		provider: "gemini",
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   resty.New(),
	}
}

type geminiResponse struct {
	ModelVersion string `json:"modelVersion"`
	Candidates   []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Call 执行一次角色调用
func (c *GeminiCaller) Call(ctx context.Context, req Request) (*Response, error) {
	genConfig := map[string]interface{}{}
	if req.MaxTokens > 0 {
		genConfig["maxOutputTokens"] = req.MaxTokens
	}
	if req.JSONMode {
		genConfig["responseMimeType"] = "application/json"
	}

	body := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"role": "user", "parts": []map[string]string{{"text": req.User}}},
		},
	}
	if req.System != "" {
		body["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]string{{"text": req.System}},
		}
	}
	if len(genConfig) > 0 {
		body["generationConfig"] = genConfig
	}

	start := time.Now()
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.baseURL + "/models/" + c.model + ":generateContent?key=" + c.apiKey)
	if err != nil {
		return nil, fmt.Errorf("调用 Gemini API failed: %w", err)
	}

	if code := response.StatusCode(); code != http.StatusOK {
		if code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable {
			return nil, fmt.Errorf("%w: gemini status %d", ErrThrottled, code)
		}
		return nil, fmt.Errorf("Gemini API 返回错误 %d: %s", code, response.String())
	}

	var result geminiResponse
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 Gemini 响应failed: %w", err)
	}
	// modelVersion 回显带修订后缀（如 -001），前缀一致即认同一模型
	if result.ModelVersion != "" && !strings.HasPrefix(result.ModelVersion, c.model) {
		return nil, fmt.Errorf("%w: want %s got %s", ErrModelMismatch, c.model, result.ModelVersion)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("Gemini API 没有返回结果")
	}

	text := ""
	for _, part := range result.Candidates[0].Content.Parts {
		text += part.Text
	}

	return &Response{
		Text:    text,
		ModelID: c.model,
		Usage: Usage{
			InputTokens:  result.UsageMetadata.PromptTokenCount,
			OutputTokens: result.UsageMetadata.CandidatesTokenCount,
		},
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

// ModelID 返回配置的 model id
func (c *GeminiCaller) ModelID() string {
	return c.model
}

// Provider 返回提供商名称
func (c *GeminiCaller) Provider() string {
	return c.provider
}
