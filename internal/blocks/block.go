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

// Package blocks 最终工件的块模型：装配（C8）与校验门（C9）。
// Job 终态后块不可变。
package blocks

import (
	"time"

	"drive-blocks/internal/model/llm"
)

// 块类型（tagged variant）
const (
	TypeHeader    = "header"
	TypeParagraph = "paragraph"
	TypeList      = "list"
	TypeImage     = "image"
	TypeQuote     = "quote"
	TypeCTA       = "cta"
	TypeDivider   = "divider"
)

// Block 工件中的一个块。Order 自 1 起稠密连续；
// 变体字段按 Type 取用，校验门保证必填字段齐全。
type Block struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Order int    `json:"order"`

	// header / paragraph / quote
	Text string `json:"text,omitempty"`
	// header: 1|2|3，缺省 2
	Level int `json:"level,omitempty"`

	// list
	Items []string `json:"items,omitempty"`
	// list: bullet|number
	Style string `json:"style,omitempty"`

	// image
	URL     string `json:"url,omitempty"`
	Caption string `json:"caption,omitempty"`

	// quote
	Author string `json:"author,omitempty"`

	// cta
	Label  string `json:"label,omitempty"`
	Action string `json:"action,omitempty"`
	// cta: primary|secondary
	Variant string `json:"variant,omitempty"`
}

// Strategy Phase 2 产物：给司机的当下策略叙事及其模型溯源
type Strategy struct {
	Narrative     string `json:"narrative"`
	ModelID       string `json:"model_id"`
	ParamsDigest  string `json:"params_digest"`
	PromptVersion string `json:"prompt_version"`
	LatencyMS     int64  `json:"latency_ms"`
}

// Artifact 一次成功 Job 的最终工件；重读字节稳定
type Artifact struct {
	JobID      string    `json:"job_id"`
	SnapshotID string    `json:"snapshot_id"`
	Attempt    int       `json:"attempt"`
	Strategy   Strategy  `json:"strategy"`
	Blocks     []Block   `json:"blocks"`
	// Degraded 被局部吸收的可恢复失败的注记（可选富化缺失等）
	Degraded  []string  `json:"degraded,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewStrategy 从角色响应构造策略工件
func NewStrategy(narrative, promptVersion string, resp *llm.Response) Strategy {
	s := Strategy{
		Narrative:     narrative,
		PromptVersion: promptVersion,
	}
	if resp != nil {
		s.ModelID = resp.ModelID
		s.LatencyMS = resp.LatencyMS
	}
	return s
}
