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

package http

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/sse"

	"drive-blocks/internal/bus"
	"drive-blocks/internal/job"
	"drive-blocks/pkg/metrics"
)

// heartbeatInterval SSE 心跳间隔
const heartbeatInterval = 15 * time.Second

// StreamEvents Job 进度的长连接流。
// 连接先回放当前状态与 Last-Event-ID 之后的历史事件，再转订阅总线；
// 终态事件后流结束。断线重连带 Last-Event-ID 续传，不重复不丢。
// GET /events?job_id=...
func (h *Handler) StreamEvents(c context.Context, ctx *app.RequestContext) {
	jobID := ctx.Query("job_id")
	if jobID == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "job_id is required"})
		return
	}

	j, err := h.jobs.Read(c, jobID)
	if err != nil {
		ctx.JSON(consts.StatusNotFound, map[string]interface{}{"error": "job not found"})
		return
	}

	var lastSeq int64
	if raw := sse.GetLastEventID(ctx); raw != "" {
		if n, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			lastSeq = n
		}
	}

	metrics.SSESubscribers.Inc()
	defer metrics.SSESubscribers.Dec()

	h.streamJob(c, sse.NewStream(ctx), j, lastSeq)
}

// eventStream SSE 下行的最小面；*sse.Stream 直接满足
type eventStream interface {
	Publish(event *sse.Event) error
}

// streamJob 回放加订阅的主循环；终态事件或客户端断开时返回
func (h *Handler) streamJob(c context.Context, stream eventStream, j *job.Job, lastSeq int64) {
	// 先订阅后回放：两段之间不丢事件，重放段按 seq 去重
	ch, unsubscribe := h.bus.Subscribe(j.ID)
	defer unsubscribe()

	if err := publishState(stream, j); err != nil {
		return
	}
	replayed := h.bus.Replay(j.ID, lastSeq)
	for _, ev := range replayed {
		if err := publishEvent(stream, ev); err != nil {
			return
		}
		lastSeq = ev.Seq
		if ev.Type.Terminal() {
			return
		}
	}
	if j.Status.Terminal() && len(replayed) == 0 {
		// 日志没存到终态事件（如重启后）：合成一条收尾
		_ = publishEvent(stream, terminalEvent(j))
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Seq <= lastSeq {
				continue
			}
			if err := publishEvent(stream, ev); err != nil {
				hlog.CtxInfof(c, "sse client gone for job %s: %v", j.ID, err)
				return
			}
			lastSeq = ev.Seq
			if ev.Type.Terminal() {
				return
			}
		case <-heartbeat.C:
			if err := stream.Publish(&sse.Event{Event: "heartbeat", Data: []byte("{}")}); err != nil {
				return
			}
		case <-c.Done():
			return
		}
	}
}

// publishState 连接伊始回放 Job 当前状态
func publishState(stream eventStream, j *job.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return stream.Publish(&sse.Event{Event: "state", Data: data})
}

func publishEvent(stream eventStream, ev bus.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return stream.Publish(&sse.Event{
		Event: string(ev.Type),
		ID:    strconv.FormatInt(ev.Seq, 10),
		Data:  data,
	})
}

// terminalEvent 由 Job 终态合成的收尾事件（事件日志缺失时兜底）
func terminalEvent(j *job.Job) bus.Event {
	t := bus.EventJobSucceeded
	switch j.Status {
	case job.StatusFailed:
		t = bus.EventJobFailed
	case job.StatusCancelled:
		t = bus.EventJobCancelled
	}
	return bus.Event{
		JobID:   j.ID,
		Seq:     1,
		Type:    t,
		Attempt: j.Attempt,
		Code:    string(j.ErrorCode),
		Message: j.ErrorMessage,
		At:      j.UpdatedAt,
	}
}
