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
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func openaiBody(model, content string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"model": model,
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5},
	})
	return string(b)
}

func TestOpenAICallerEchoesConfiguredModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(openaiBody("gpt-test", "hello driver")))
	}))
	defer srv.Close()

	c := NewOpenAICaller("gpt-test", "key", srv.URL)
	resp, err := c.Call(context.Background(), Request{User: "hi"})
	if err != nil {
		t.Fatalf("Call 失败: %v", err)
	}
	if resp.Text != "hello driver" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.ModelID != "gpt-test" {
		t.Errorf("ModelID = %q", resp.ModelID)
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 5 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
}

func TestOpenAICallerModelMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(openaiBody("gpt-other", "substituted")))
	}))
	defer srv.Close()

	c := NewOpenAICaller("gpt-test", "key", srv.URL)
	_, err := c.Call(context.Background(), Request{User: "hi"})
	if !errors.Is(err, ErrModelMismatch) {
		t.Fatalf("想要 ErrModelMismatch，得到 %v", err)
	}
}

func TestOpenAICallerThrottled(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		c := NewOpenAICaller("gpt-test", "key", srv.URL)
		_, err := c.Call(context.Background(), Request{User: "hi"})
		srv.Close()
		if !errors.Is(err, ErrThrottled) {
			t.Errorf("status %d: 想要 ErrThrottled，得到 %v", status, err)
		}
	}
}

func TestOpenAICallerJSONModeAndEffort(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(openaiBody("gpt-test", `{"ok":true}`)))
	}))
	defer srv.Close()

	c := NewOpenAICaller("gpt-test", "key", srv.URL)
	_, err := c.Call(context.Background(), Request{User: "plan", JSONMode: true, ReasoningEffort: "high"})
	if err != nil {
		t.Fatalf("Call 失败: %v", err)
	}
	rf, ok := captured["response_format"].(map[string]interface{})
	if !ok || rf["type"] != "json_object" {
		t.Errorf("response_format 未传递: %v", captured["response_format"])
	}
	if captured["reasoning_effort"] != "high" {
		t.Errorf("reasoning_effort = %v", captured["reasoning_effort"])
	}
}

func TestAnthropicCallerModelMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := json.Marshal(map[string]interface{}{
			"model":   "claude-other",
			"content": []map[string]string{{"type": "text", "text": "verdict"}},
		})
		w.Write(b)
	}))
	defer srv.Close()

	c := NewAnthropicCaller("claude-test", "key", srv.URL)
	_, err := c.Call(context.Background(), Request{User: "validate"})
	if !errors.Is(err, ErrModelMismatch) {
		t.Fatalf("想要 ErrModelMismatch，得到 %v", err)
	}
}

func TestGeminiCallerAcceptsRevisionSuffix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := json.Marshal(map[string]interface{}{
			"modelVersion": "gemini-test-001",
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": "briefing"}},
				}},
			},
		})
		w.Write(b)
	}))
	defer srv.Close()

	c := NewGeminiCaller("gemini-test", "key", srv.URL)
	resp, err := c.Call(context.Background(), Request{User: "brief"})
	if err != nil {
		t.Fatalf("Call 失败: %v", err)
	}
	if resp.Text != "briefing" {
		t.Errorf("Text = %q", resp.Text)
	}
}
