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

// Package http HTTP 入口：snapshot 写入、blocks-fast 入队、策略读取、
// Job 取消、SSE 进度流与系统端点。错误码即 pkg/errors 分类法，body 直接透出。
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"drive-blocks/internal/blocks"
	"drive-blocks/internal/bus"
	"drive-blocks/internal/job"
	"drive-blocks/internal/orchestrator"
	"drive-blocks/internal/snapshot"
	"drive-blocks/pkg/errors"
	"drive-blocks/pkg/geo"
	"drive-blocks/pkg/log"
	"drive-blocks/pkg/metrics"
)

// Handler HTTP 处理器
type Handler struct {
	snapshots *snapshot.Service
	jobs      job.Registry
	orch      *orchestrator.Orchestrator
	artifacts blocks.Store
	bus       *bus.Bus
	logger    *log.Logger
	startedAt time.Time
}

// NewHandler 创建 HTTP 处理器
func NewHandler(snapshots *snapshot.Service, jobs job.Registry, orch *orchestrator.Orchestrator, artifacts blocks.Store, b *bus.Bus, logger *log.Logger) *Handler {
	return &Handler{
		snapshots: snapshots,
		jobs:      jobs,
		orch:      orch,
		artifacts: artifacts,
		bus:       b,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// errorStatus 错误码 → HTTP 状态
func errorStatus(code errors.Code) int {
	switch code {
	case errors.CodeInvalidInput:
		return consts.StatusBadRequest
	case errors.CodeGeocodeFailed:
		return consts.StatusBadGateway
	case errors.CodeStorageUnavailable:
		return consts.StatusServiceUnavailable
	case errors.CodePlannerThrottled:
		return consts.StatusTooManyRequests
	default:
		return consts.StatusInternalServerError
	}
}

func writeError(ctx *app.RequestContext, err error) {
	code := errors.CodeOf(err)
	ctx.JSON(errorStatus(code), map[string]interface{}{
		"code":  string(code),
		"error": err.Error(),
	})
}

// CreateSnapshot 落一条 GPS 快照，内部同步地理编码
// POST /snapshot
func (h *Handler) CreateSnapshot(c context.Context, ctx *app.RequestContext) {
	var req snapshot.CaptureRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]interface{}{
			"code":  string(errors.CodeInvalidInput),
			"error": "invalid request body",
		})
		return
	}

	snap, err := h.snapshots.Capture(c, req)
	if err != nil {
		hlog.CtxErrorf(c, "snapshot capture failed: %v", err)
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]interface{}{
		"snapshot_id": snap.ID,
		"timezone":    snap.Timezone,
		"city":        snap.City,
	})
}

// 非 manual 触发的刷新门槛：位移不足或上份策略还新鲜时直接复用既有句柄
const (
	relocationThresholdM = 500
	strategyStaleAfter   = 20 * time.Minute
)

// EnqueueBlocksFast 幂等入队并启动 TRIAD 管线。
// 请求可带 trigger（manual/relocation/stale，缺省 manual）；
// manual 永远入队，其余两类先过 ShouldRefresh 门槛。
// POST /blocks-fast
func (h *Handler) EnqueueBlocksFast(c context.Context, ctx *app.RequestContext) {
	var req struct {
		SnapshotID string  `json:"snapshot_id"`
		Trigger    string  `json:"trigger,omitempty"`
		MovedM     float64 `json:"moved_m,omitempty"`
	}
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil || req.SnapshotID == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]interface{}{
			"code":  string(errors.CodeInvalidInput),
			"error": "snapshot_id is required",
		})
		return
	}

	kind := geo.TriggerKind(req.Trigger)
	if kind == "" {
		kind = geo.TriggerManual
	}
	switch kind {
	case geo.TriggerManual, geo.TriggerRelocation, geo.TriggerStale:
	default:
		ctx.JSON(consts.StatusBadRequest, map[string]interface{}{
			"code":  string(errors.CodeInvalidInput),
			"error": "unknown trigger: " + req.Trigger,
		})
		return
	}

	snap, err := h.snapshots.Get(c, req.SnapshotID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			ctx.JSON(consts.StatusNotFound, map[string]interface{}{
				"code":  string(errors.CodeInvalidInput),
				"error": "snapshot not found: " + req.SnapshotID,
			})
			return
		}
		writeError(ctx, err)
		return
	}

	desc := geo.TriggerDescriptor{
		Kind:       kind,
		At:         snap.Coords,
		ObservedAt: time.Now().UTC(),
		MovedM:     req.MovedM,
	}
	if kind != geo.TriggerManual {
		existing, rerr := h.jobs.ReadBySnapshot(c, snap.ID)
		// 没有历史 Job 时首次计算照常入队
		if rerr == nil && !desc.ShouldRefresh(relocationThresholdM, strategyStaleAfter, existing.UpdatedAt) {
			ctx.JSON(consts.StatusOK, map[string]interface{}{
				"job_id":    existing.ID,
				"status":    string(existing.Status),
				"attempt":   existing.Attempt,
				"refreshed": false,
			})
			return
		}
	}

	j, created, err := h.jobs.Enqueue(c, snap.ID)
	if err != nil {
		hlog.CtxErrorf(c, "enqueue failed for snapshot %s: %v", snap.ID, err)
		writeError(ctx, err)
		return
	}
	// 新建/翻新的 attempt 才启动管线；既有句柄原样返回（幂等）
	if created {
		h.orch.Start(snap, j)
	}

	ctx.JSON(consts.StatusOK, map[string]interface{}{
		"job_id":  j.ID,
		"status":  string(j.Status),
		"attempt": j.Attempt,
	})
}

// GetStrategy 读取成功 Job 的最终工件；未终态返回当前阶段
// GET /blocks/strategy/:snapshot_id
func (h *Handler) GetStrategy(c context.Context, ctx *app.RequestContext) {
	snapshotID := ctx.Param("snapshot_id")

	j, err := h.jobs.ReadBySnapshot(c, snapshotID)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			ctx.JSON(consts.StatusNotFound, map[string]interface{}{
				"error": "no job for snapshot " + snapshotID,
			})
			return
		}
		writeError(ctx, err)
		return
	}

	if j.Status != job.StatusSucceeded {
		body := map[string]interface{}{
			"job_id":  j.ID,
			"status":  string(j.Status),
			"phase":   string(j.Phase),
			"attempt": j.Attempt,
		}
		if j.Status == job.StatusFailed {
			body["code"] = string(j.ErrorCode)
			body["message"] = j.ErrorMessage
		}
		ctx.JSON(consts.StatusOK, body)
		return
	}

	art, err := h.artifacts.Latest(c, snapshotID)
	if err != nil {
		writeError(ctx, errors.WithCode(err, errors.CodeStorageUnavailable))
		return
	}
	if art == nil {
		ctx.JSON(consts.StatusNotFound, map[string]interface{}{
			"error": "artifact missing for snapshot " + snapshotID,
		})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]interface{}{
		"snapshot_id": snapshotID,
		"strategy":    art.Strategy,
		"blocks":      art.Blocks,
		"attempt":     art.Attempt,
		"degraded":    art.Degraded,
	})
}

// GetJob 读取 Job 当前状态
// GET /jobs/:job_id
func (h *Handler) GetJob(c context.Context, ctx *app.RequestContext) {
	j, err := h.jobs.Read(c, ctx.Param("job_id"))
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			ctx.JSON(consts.StatusNotFound, map[string]interface{}{"error": "job not found"})
			return
		}
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, j)
}

// CancelJob 外部取消；1s 内传播到在飞子任务
// POST /jobs/:job_id/cancel
func (h *Handler) CancelJob(c context.Context, ctx *app.RequestContext) {
	jobID := ctx.Param("job_id")

	hit := h.orch.Cancel(jobID)
	if !hit {
		// 不在跑：可能已终态，也可能不存在
		j, err := h.jobs.Read(c, jobID)
		if err != nil {
			ctx.JSON(consts.StatusNotFound, map[string]interface{}{"error": "job not found"})
			return
		}
		ctx.JSON(consts.StatusOK, map[string]interface{}{
			"cancelled": false,
			"status":    string(j.Status),
		})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]interface{}{"cancelled": true})
}

// SystemStatus 系统状态
// GET /api/system/status
func (h *Handler) SystemStatus(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]interface{}{
		"status":         "ok",
		"service":        "drive-blocks",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"timestamp":      time.Now().Unix(),
	})
}

// SystemMetrics Prometheus 文本格式指标
// GET /api/system/metrics
func (h *Handler) SystemMetrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4", buf.Bytes())
}
