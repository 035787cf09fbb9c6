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

package blocks

import (
	"time"

	"drive-blocks/internal/enrich"
	"drive-blocks/pkg/errors"
)

// Validate 校验门（C9）第一检查：每块满足其变体 schema，Order 构成 1..N 稠密排列。
// 第一条失败规则进错误文本；违规即 validation_failed，工件不得转 succeeded。
func Validate(bs []Block) error {
	if len(bs) == 0 {
		return errors.Codef(errors.CodeValidationFailed, "artifact has no blocks")
	}
	for i, b := range bs {
		if b.Order != i+1 {
			return errors.Codef(errors.CodeValidationFailed,
				"block order must be dense 1..N: index %d has order %d", i, b.Order)
		}
		if b.ID == "" {
			return errors.Codef(errors.CodeValidationFailed, "block %d: missing id", b.Order)
		}
		if err := validateVariant(b); err != nil {
			return err
		}
	}
	return nil
}

func validateVariant(b Block) error {
	switch b.Type {
	case TypeHeader:
		if b.Text == "" {
			return errors.Codef(errors.CodeValidationFailed, "header block %d: missing text", b.Order)
		}
		if b.Level != 0 && (b.Level < 1 || b.Level > 3) {
			return errors.Codef(errors.CodeValidationFailed, "header block %d: level %d out of range", b.Order, b.Level)
		}
	case TypeParagraph:
		if b.Text == "" {
			return errors.Codef(errors.CodeValidationFailed, "paragraph block %d: missing text", b.Order)
		}
	case TypeList:
		if len(b.Items) == 0 {
			return errors.Codef(errors.CodeValidationFailed, "list block %d: empty items", b.Order)
		}
		if b.Style != "" && b.Style != "bullet" && b.Style != "number" {
			return errors.Codef(errors.CodeValidationFailed, "list block %d: style %q invalid", b.Order, b.Style)
		}
	case TypeImage:
		if b.URL == "" {
			return errors.Codef(errors.CodeValidationFailed, "image block %d: missing url", b.Order)
		}
	case TypeQuote:
		if b.Text == "" || b.Author == "" {
			return errors.Codef(errors.CodeValidationFailed, "quote block %d: missing text or author", b.Order)
		}
	case TypeCTA:
		if b.Label == "" || b.Action == "" {
			return errors.Codef(errors.CodeValidationFailed, "cta block %d: missing label or action", b.Order)
		}
		if b.Variant != "" && b.Variant != "primary" && b.Variant != "secondary" {
			return errors.Codef(errors.CodeValidationFailed, "cta block %d: variant %q invalid", b.Order, b.Variant)
		}
	case TypeDivider:
		// 无额外字段
	default:
		return errors.Codef(errors.CodeValidationFailed, "block %d: unknown type %q", b.Order, b.Type)
	}
	return nil
}

// FilterStaleEvents 校验门第二检查的前置：按快照时区的 now 丢弃过期活动。
// end time 恰等于 now 也算过期（对过去闭区间）。场地就地修改。
func FilterStaleEvents(venues []enrich.VenueCandidate, now time.Time) []enrich.VenueCandidate {
	for i := range venues {
		if len(venues[i].Events) == 0 {
			continue
		}
		kept := venues[i].Events[:0]
		for _, ev := range venues[i].Events {
			if ev.EndTime.After(now) {
				kept = append(kept, ev)
			}
		}
		venues[i].Events = kept
	}
	return venues
}
