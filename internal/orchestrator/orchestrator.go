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

// Package orchestrator TRIAD 三阶段并发调度。
// 每个 Job 独占一条逻辑任务：p1 三路扇出（Strategist/Briefer/Holiday）、
// p2 双整合、p3 Planner→富化池→Validator→装配。阶段各有截止时间，
// 全程受总预算与层级取消约束；阶段内不重试，失败快速定型。
package orchestrator

import (
	"context"
	"sync"
	"time"

	"drive-blocks/internal/blocks"
	"drive-blocks/internal/bus"
	"drive-blocks/internal/catalog"
	"drive-blocks/internal/enrich"
	"drive-blocks/internal/job"
	"drive-blocks/internal/model"
	"drive-blocks/internal/snapshot"
	"drive-blocks/pkg/config"
	"drive-blocks/pkg/errors"
	"drive-blocks/pkg/log"
	"drive-blocks/pkg/metrics"
	"drive-blocks/pkg/tracing"
)

// 默认预算；api.yaml 可覆盖
const (
	defaultTotalBudget    = 90 * time.Second
	defaultPhase1Deadline = 30 * time.Second
	defaultPhase2Deadline = 20 * time.Second
	defaultPhase3Deadline = 40 * time.Second
	defaultEnrichWorkers  = 4
)

// Deps Orchestrator 的运行依赖；启动期装配，运行期只读
type Deps struct {
	Jobs      job.Registry
	Models    *model.Registry
	Enricher  *enrich.Enricher
	Holiday   enrich.HolidaySource
	Catalog   *catalog.Catalog
	Bus       *bus.Bus
	Artifacts blocks.Store
}

// Orchestrator TRIAD 调度器。持有每个在跑 Job 的取消句柄；
// 终态写入走 Job 注册表的单写者谓词，取消与完成竞争时只有一方落盘。
type Orchestrator struct {
	deps   Deps
	logger *log.Logger

	totalBudget    time.Duration
	phase1Deadline time.Duration
	phase2Deadline time.Duration
	phase3Deadline time.Duration
	enrichWorkers  int

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// New 创建调度器
func New(deps Deps, cfg config.OrchestratorConfig, logger *log.Logger) *Orchestrator {
	workers := cfg.EnrichWorkers
	if workers <= 0 {
		workers = defaultEnrichWorkers
	}
	return &Orchestrator{
		deps:           deps,
		logger:         logger,
		totalBudget:    config.Duration(cfg.TotalBudget, defaultTotalBudget),
		phase1Deadline: config.Duration(cfg.Phase1Deadline, defaultPhase1Deadline),
		phase2Deadline: config.Duration(cfg.Phase2Deadline, defaultPhase2Deadline),
		phase3Deadline: config.Duration(cfg.Phase3Deadline, defaultPhase3Deadline),
		enrichWorkers:  workers,
	}
}

// Start 异步启动 Job。同一 Job 已在跑则幂等返回。
// 调用方先 Enqueue 拿到句柄；这里只负责驱动管线。
func (o *Orchestrator) Start(snap *snapshot.Snapshot, j *job.Job) {
	o.mu.Lock()
	if _, running := o.cancels[j.ID]; running {
		o.mu.Unlock()
		return
	}
	// 管线生命周期不挂在请求 ctx 上；外部取消走 Cancel
	cancelCtx, cancel := context.WithCancel(context.Background())
	if o.cancels == nil {
		o.cancels = make(map[string]context.CancelFunc)
	}
	o.cancels[j.ID] = cancel
	o.wg.Add(1)
	o.mu.Unlock()

	go o.run(cancelCtx, snap, j)
}

// Cancel 外部取消；返回是否命中在跑的 Job。
// 1 秒内取消信号传到所有在飞子任务（ctx 层级传播）。
func (o *Orchestrator) Cancel(jobID string) bool {
	o.mu.Lock()
	cancel, ok := o.cancels[jobID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Running jobID 是否在跑
func (o *Orchestrator) Running(jobID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.cancels[jobID]
	return ok
}

// Shutdown 取消所有在跑 Job 并等待收尾；ctx 超时则放弃等待
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	for _, cancel := range o.cancels {
		cancel()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) release(jobID string) {
	o.mu.Lock()
	if cancel, ok := o.cancels[jobID]; ok {
		cancel()
		delete(o.cancels, jobID)
	}
	o.mu.Unlock()
	o.wg.Done()
}

// run 驱动一个 Job 走完三阶段。cancelCtx 只响应外部取消；
// budgetCtx 在其上叠加总预算。错误定型优先级：取消 > 预算 > 阶段错误码。
func (o *Orchestrator) run(cancelCtx context.Context, snap *snapshot.Snapshot, j *job.Job) {
	defer o.release(j.ID)

	budgetCtx, cancelBudget := context.WithTimeout(cancelCtx, o.totalBudget)
	defer cancelBudget()

	budgetCtx, span := tracing.StartJobSpan(budgetCtx, j.ID, snap.ID)
	defer span.End()

	started := time.Now()
	logger := o.logger.WithJob(j.ID, snap.ID, j.CorrelationID)

	out, err := o.runPipeline(budgetCtx, snap, j)
	if err != nil {
		o.fail(cancelCtx, budgetCtx, j, err, logger)
		metrics.JobDuration.Observe(time.Since(started).Seconds())
		return
	}

	if _, err := o.deps.Jobs.Complete(context.Background(), j.ID, job.Outcome{Status: job.StatusSucceeded}); err != nil {
		// 取消和完成赛跑输了：对方已写终态，按取消收尾
		logger.Warn("terminal write lost the race", "error", err)
		return
	}

	o.deps.Bus.Publish(bus.Event{
		JobID:   j.ID,
		Type:    bus.EventJobSucceeded,
		Phase:   string(job.PhaseDone),
		Attempt: j.Attempt,
	})
	metrics.JobTotal.WithLabelValues(string(job.StatusSucceeded)).Inc()
	metrics.JobDuration.Observe(time.Since(started).Seconds())
	logger.Info("job succeeded",
		"blocks", len(out.artifact.Blocks),
		"duration_ms", time.Since(started).Milliseconds())
}

// fail 把错误定型为终态。取消与预算耗尽优先于阶段自身的错误码。
func (o *Orchestrator) fail(cancelCtx, budgetCtx context.Context, j *job.Job, cause error, logger *log.Logger) {
	status := job.StatusFailed
	code := errors.CodeOf(cause)

	switch {
	case cancelCtx.Err() != nil:
		status = job.StatusCancelled
		code = errors.CodeCancelled
	case budgetCtx.Err() == context.DeadlineExceeded:
		code = errors.CodeBudgetExhausted
	case code == errors.CodeNone:
		// 没带码的错误不猜来源，按内部错误定型
		code = errors.CodeInternal
	}

	outcome := job.Outcome{Status: status, Code: code, Message: cause.Error()}
	if status == job.StatusCancelled {
		outcome.Message = "cancelled by caller"
	}
	if _, err := o.deps.Jobs.Complete(context.Background(), j.ID, outcome); err != nil {
		logger.Warn("terminal write lost the race", "error", err)
		return
	}

	evType := bus.EventJobFailed
	if status == job.StatusCancelled {
		evType = bus.EventJobCancelled
	}
	o.deps.Bus.Publish(bus.Event{
		JobID:   j.ID,
		Type:    evType,
		Attempt: j.Attempt,
		Code:    string(code),
		Message: outcome.Message,
	})
	metrics.JobTotal.WithLabelValues(string(status)).Inc()
	logger.Error("job finished with error", "status", string(status), "code", string(code), "error", cause)
}

// advance 注册表推进 + phase_change 事件 + 阶段耗时指标
func (o *Orchestrator) advance(j *job.Job, to job.Phase, prevStart time.Time) error {
	if !prevStart.IsZero() {
		metrics.PhaseDuration.WithLabelValues(string(j.Phase)).Observe(time.Since(prevStart).Seconds())
	}
	updated, err := o.deps.Jobs.Advance(context.Background(), j.ID, to)
	if err != nil {
		return errors.WithCode(errors.Wrapf(err, "advance to %s", to), errors.CodeStorageUnavailable)
	}
	*j = *updated
	o.deps.Bus.Publish(bus.Event{
		JobID:   j.ID,
		Type:    bus.EventPhaseChange,
		Phase:   string(to),
		Attempt: j.Attempt,
	})
	return nil
}

func (o *Orchestrator) stageDone(j *job.Job, phase job.Phase, stage string) {
	o.deps.Bus.Publish(bus.Event{
		JobID:   j.ID,
		Type:    bus.EventStageComplete,
		Phase:   string(phase),
		Stage:   stage,
		Attempt: j.Attempt,
	})
}
