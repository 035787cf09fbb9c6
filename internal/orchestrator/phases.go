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

package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"drive-blocks/internal/blocks"
	"drive-blocks/internal/catalog"
	"drive-blocks/internal/enrich"
	"drive-blocks/internal/job"
	"drive-blocks/internal/model/llm"
	"drive-blocks/internal/snapshot"
	"drive-blocks/pkg/errors"
	"drive-blocks/pkg/tracing"
)

// phase1Out 上下文装配产物。Narrative 必有；briefing/holiday 可缺，
// 缺了降 prompt 质量，在 degraded 里留痕。
type phase1Out struct {
	narrative *llm.Response
	briefing  string
	holiday   string
	degraded  []string

	// 每条子任务只写自己的槽位，join 后合并，避免并发追加
	brieferLost bool
	holidayLost bool
}

// phase2Out 双整合产物
type phase2Out struct {
	daily     *llm.Response
	immediate *llm.Response
}

// pipelineOut 管线终产物
type pipelineOut struct {
	artifact *blocks.Artifact
}

// runPipeline 顺序执行 p1→p2→p3，阶段间严格 happens-before
func (o *Orchestrator) runPipeline(ctx context.Context, snap *snapshot.Snapshot, j *job.Job) (*pipelineOut, error) {
	shortlist := o.deps.Catalog.Shortlist(snap.Coords, 12)

	if err := o.advance(j, job.PhaseP1, time.Time{}); err != nil {
		return nil, err
	}
	p1Start := time.Now()
	p1, err := o.runPhase1(ctx, snap, j, shortlist)
	if err != nil {
		return nil, err
	}

	if err := o.advance(j, job.PhaseP2, p1Start); err != nil {
		return nil, err
	}
	p2Start := time.Now()
	p2, err := o.runPhase2(ctx, snap, j, p1)
	if err != nil {
		return nil, err
	}

	if err := o.advance(j, job.PhaseP3, p2Start); err != nil {
		return nil, err
	}
	p3Start := time.Now()
	artifact, err := o.runPhase3(ctx, snap, j, shortlist, p1, p2)
	if err != nil {
		return nil, err
	}
	artifact.Degraded = p1.degraded

	if err := o.deps.Artifacts.Put(ctx, artifact); err != nil {
		return nil, errors.WithCode(errors.Wrap(err, "persist artifact"), errors.CodeStorageUnavailable)
	}
	o.stageDone(j, job.PhaseP3, "artifact")

	if err := o.advance(j, job.PhaseDone, p3Start); err != nil {
		return nil, err
	}
	return &pipelineOut{artifact: artifact}, nil
}

// runPhase1 三路扇出：Strategist + Briefer + Holiday。
// join 规则：全部完成或 30s 截止。Strategist 缺失致命；其余缺失可降级。
func (o *Orchestrator) runPhase1(ctx context.Context, snap *snapshot.Snapshot, j *job.Job, shortlist []catalog.Shortlisted) (*phase1Out, error) {
	p1Ctx, cancel := context.WithTimeout(ctx, o.phase1Deadline)
	defer cancel()
	p1Ctx, span := tracing.StartPhaseSpan(p1Ctx, j.ID, string(job.PhaseP1))
	defer span.End()
	p1Ctx = llm.WithMeta(p1Ctx, llm.Meta{
		Phase:         string(job.PhaseP1),
		SnapshotID:    snap.ID,
		CorrelationID: j.CorrelationID,
	})

	out := &phase1Out{}
	g, gctx := errgroup.WithContext(p1Ctx)

	g.Go(func() error {
		strategist, err := o.deps.Models.Strategist()
		if err != nil {
			return errors.WithCode(err, errors.CodeStrategistFailed)
		}
		resp, err := strategist.Call(gctx, llm.Request{
			System: strategistSystemPrompt,
			User:   buildStrategistPrompt(snap, shortlist),
		})
		if err != nil {
			return err
		}
		out.narrative = resp
		o.stageDone(j, job.PhaseP1, "strategist")
		return nil
	})

	g.Go(func() error {
		briefer, err := o.deps.Models.Briefer()
		if err != nil {
			out.brieferLost = true
			return nil
		}
		resp, err := briefer.Call(gctx, llm.Request{
			System: brieferSystemPrompt,
			User:   buildBrieferPrompt(snap),
		})
		if err != nil {
			// briefing 可选：吸收失败，留痕
			out.brieferLost = true
			return nil
		}
		out.briefing = resp.Text
		o.stageDone(j, job.PhaseP1, "briefer")
		return nil
	})

	g.Go(func() error {
		if o.deps.Holiday == nil {
			return nil
		}
		ok, name, err := o.deps.Holiday.IsHoliday(gctx, snap.LocalTime(), snap.Country)
		if err != nil {
			out.holidayLost = true
			return nil
		}
		if ok {
			out.holiday = name
		}
		o.stageDone(j, job.PhaseP1, "holiday")
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if out.narrative == nil || out.narrative.Text == "" {
		return nil, errors.Codef(errors.CodeStrategistFailed, "strategist returned empty narrative")
	}
	if out.brieferLost {
		out.degraded = append(out.degraded, "briefing unavailable")
	}
	if out.holidayLost {
		out.degraded = append(out.degraded, "holiday signal unavailable")
	}
	return out, nil
}

// runPhase2 双整合：当日视野 + 未来两小时视野，两个都必须成功
func (o *Orchestrator) runPhase2(ctx context.Context, snap *snapshot.Snapshot, j *job.Job, p1 *phase1Out) (*phase2Out, error) {
	p2Ctx, cancel := context.WithTimeout(ctx, o.phase2Deadline)
	defer cancel()
	p2Ctx, span := tracing.StartPhaseSpan(p2Ctx, j.ID, string(job.PhaseP2))
	defer span.End()
	p2Ctx = llm.WithMeta(p2Ctx, llm.Meta{
		Phase:         string(job.PhaseP2),
		SnapshotID:    snap.ID,
		CorrelationID: j.CorrelationID,
	})

	planner, err := o.deps.Models.Planner()
	if err != nil {
		return nil, errors.WithCode(err, errors.CodePlannerFailed)
	}

	out := &phase2Out{}
	g, gctx := errgroup.WithContext(p2Ctx)

	g.Go(func() error {
		resp, err := planner.Call(gctx, llm.Request{
			System: consolidatorSystemPrompt,
			User:   buildConsolidatorPrompt(snap, p1, horizonToday),
		})
		if err != nil {
			return err
		}
		out.daily = resp
		o.stageDone(j, job.PhaseP2, "consolidate_daily")
		return nil
	})

	g.Go(func() error {
		resp, err := planner.Call(gctx, llm.Request{
			System: consolidatorSystemPrompt,
			User:   buildConsolidatorPrompt(snap, p1, horizonImmediate),
		})
		if err != nil {
			return err
		}
		out.immediate = resp
		o.stageDone(j, job.PhaseP2, "consolidate_immediate")
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// runPhase3 战术规划与富化：Planner 出 3–7 个候选场地 → 富化池（宽度 4）→
// Validator 结构裁决 → 装配 → 校验门。过半富化失败整单 enrichment_failed。
func (o *Orchestrator) runPhase3(ctx context.Context, snap *snapshot.Snapshot, j *job.Job, shortlist []catalog.Shortlisted, p1 *phase1Out, p2 *phase2Out) (*blocks.Artifact, error) {
	p3Ctx, cancel := context.WithTimeout(ctx, o.phase3Deadline)
	defer cancel()
	p3Ctx, span := tracing.StartPhaseSpan(p3Ctx, j.ID, string(job.PhaseP3))
	defer span.End()
	p3Ctx = llm.WithMeta(p3Ctx, llm.Meta{
		Phase:         string(job.PhaseP3),
		SnapshotID:    snap.ID,
		CorrelationID: j.CorrelationID,
	})

	planner, err := o.deps.Models.Planner()
	if err != nil {
		return nil, errors.WithCode(err, errors.CodePlannerFailed)
	}
	resp, err := planner.Call(p3Ctx, llm.Request{
		System:   plannerSystemPrompt,
		User:     buildPlannerPrompt(snap, shortlist, p1, p2),
		JSONMode: true,
	})
	if err != nil {
		return nil, err
	}
	venues, err := parsePlannerVenues(resp.Text)
	if err != nil {
		return nil, errors.WithCode(errors.Wrap(err, "parse planner response"), errors.CodePlannerFailed)
	}
	mergeCatalogFields(venues, shortlist)
	o.stageDone(j, job.PhaseP3, "planner")

	venues, err = o.enrichAll(p3Ctx, snap, venues)
	if err != nil {
		return nil, err
	}
	o.stageDone(j, job.PhaseP3, "enrich")

	now := time.Now().In(snap.Location())
	venues = blocks.FilterStaleEvents(venues, now)

	if err := o.validateArtifact(p3Ctx, p2, venues); err != nil {
		return nil, err
	}
	o.stageDone(j, job.PhaseP3, "validator")

	assembled := blocks.Assemble(blocks.Assembly{
		Narrative: p2.immediate.Text,
		Venues:    venues,
		Now:       now,
	})
	if err := blocks.Validate(assembled); err != nil {
		return nil, err
	}

	artifact := &blocks.Artifact{
		JobID:      j.ID,
		SnapshotID: snap.ID,
		Attempt:    j.Attempt,
		Strategy:   blocks.NewStrategy(p2.immediate.Text, promptVersion, p1.narrative),
		Blocks:     assembled,
		CreatedAt:  time.Now().UTC(),
	}
	return artifact, nil
}

// enrichAll 有界工作池（宽度 enrichWorkers）并发富化。
// 单场地失败可恢复（丢场地）；失败过半则 enrichment_failed 整单失败。
func (o *Orchestrator) enrichAll(ctx context.Context, snap *snapshot.Snapshot, venues []enrich.VenueCandidate) ([]enrich.VenueCandidate, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.enrichWorkers)

	for i := range venues {
		v := &venues[i]
		g.Go(func() error {
			if err := o.deps.Enricher.EnrichVenue(gctx, v, snap.Coords); err != nil {
				// ctx 死了要向上冒，否则取消/预算被吞成 enrichment 统计
				if gctx.Err() != nil {
					return gctx.Err()
				}
				v.EnrichFailed = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := venues[:0]
	failed := 0
	for _, v := range venues {
		if v.EnrichFailed {
			failed++
			continue
		}
		kept = append(kept, v)
	}
	if failed*2 > len(venues) {
		return nil, errors.Codef(errors.CodeEnrichmentFailed,
			"%d of %d venue enrichments failed", failed, len(venues))
	}
	if len(kept) == 0 {
		return nil, errors.Codef(errors.CodeEnrichmentFailed, "no venue survived enrichment")
	}
	return kept, nil
}

// validateArtifact Validator 结构裁决；裁决为 invalid 映射 validation_failed
func (o *Orchestrator) validateArtifact(ctx context.Context, p2 *phase2Out, venues []enrich.VenueCandidate) error {
	validator, err := o.deps.Models.Validator()
	if err != nil {
		return errors.WithCode(err, errors.CodeValidatorFailed)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"narrative": p2.immediate.Text,
		"venues":    venues,
	})
	if err != nil {
		return errors.WithCode(err, errors.CodeValidatorFailed)
	}
	resp, err := validator.Call(ctx, llm.Request{
		System:   validatorSystemPrompt,
		User:     string(payload),
		JSONMode: true,
	})
	if err != nil {
		return err
	}

	verdict, err := parseValidatorVerdict(resp.Text)
	if err != nil {
		return errors.WithCode(errors.Wrap(err, "parse validator verdict"), errors.CodeValidatorFailed)
	}
	if !verdict.Valid {
		reason := "artifact rejected by validator"
		if len(verdict.Reasons) > 0 {
			reason = verdict.Reasons[0]
		}
		return errors.Codef(errors.CodeValidationFailed, "%s", reason)
	}
	return nil
}

// mergeCatalogFields 目录命中的场地回填可靠分/行政区/停靠点
func mergeCatalogFields(venues []enrich.VenueCandidate, shortlist []catalog.Shortlisted) {
	if len(shortlist) == 0 {
		return
	}
	byName := make(map[string]catalog.Shortlisted, len(shortlist))
	for _, s := range shortlist {
		byName[s.Name] = s
	}
	for i := range venues {
		s, ok := byName[venues[i].Name]
		if !ok {
			continue
		}
		venues[i].Reliability = s.Reliability
		if venues[i].District == "" {
			venues[i].District = s.District
		}
		if venues[i].Staging.Lat == 0 && venues[i].Staging.Lng == 0 {
			venues[i].Staging = s.Staging
		}
	}
}
