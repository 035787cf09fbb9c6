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
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	hzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"

	"drive-blocks/internal/blocks"
	"drive-blocks/internal/bus"
	"drive-blocks/internal/catalog"
	"drive-blocks/internal/enrich"
	"drive-blocks/internal/job"
	"drive-blocks/internal/model"
	"drive-blocks/internal/model/llm"
	"drive-blocks/internal/orchestrator"
	"drive-blocks/internal/snapshot"
	"drive-blocks/pkg/config"
	"drive-blocks/pkg/geo"
	"drive-blocks/pkg/log"
)

type fakeCaller struct {
	model string
	fn    func(ctx context.Context, req llm.Request) (*llm.Response, error)
}

func (f *fakeCaller) Call(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return f.fn(ctx, req)
}
func (f *fakeCaller) ModelID() string  { return f.model }
func (f *fakeCaller) Provider() string { return "fake" }

type fakeGeocoder struct{}

func (fakeGeocoder) ReverseGeocode(_ context.Context, pt geo.Point) (*enrich.Address, error) {
	return &enrich.Address{
		PlaceID:   "place-" + pt.Key(),
		Formatted: "2400 Aviation Dr, DFW Airport, TX",
		City:      "Grapevine",
		Region:    "TX",
		Country:   "US",
		Timezone:  "America/Chicago",
	}, nil
}

type fakePlaces struct{}

func (fakePlaces) Details(_ context.Context, placeID string) (*enrich.Place, error) {
	return &enrich.Place{PlaceID: placeID, DisplayName: "Resolved venue", BusinessStatus: "operational"}, nil
}

type fakeRoutes struct{}

func (fakeRoutes) Matrix(_ context.Context, _ geo.Point, dests []geo.Point, _ time.Time) ([]enrich.RouteLeg, error) {
	legs := make([]enrich.RouteLeg, len(dests))
	for i := range legs {
		legs[i] = enrich.RouteLeg{DistanceM: 5000, DurationS: 420}
	}
	return legs, nil
}

const testPlannerJSON = `{"venues": [
  {"name": "DFW Terminal C", "coords": {"lat": 32.897480, "lng": -97.040443}, "category": "airport", "earnings_hint": "Surge", "rationale": "Arrivals."},
  {"name": "Grapevine Main St", "coords": {"lat": 32.934300, "lng": -97.078100}, "category": "dining", "earnings_hint": "Steady", "rationale": "Dinner."},
  {"name": "Downtown Dallas", "coords": {"lat": 32.779200, "lng": -96.808900}, "category": "nightlife", "earnings_hint": "Later", "rationale": "Events."}
]}`

type fixture struct {
	engine  *route.Engine
	jobs    job.Registry
	bus     *bus.Bus
	handler *Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, err := log.NewLogger(&log.Config{Level: "error"})
	if err != nil {
		t.Fatal(err)
	}

	strategist := &fakeCaller{model: "s", fn: func(_ context.Context, _ llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: "Stage near arrivals.", ModelID: "s"}, nil
	}}
	planner := &fakeCaller{model: "p", fn: func(_ context.Context, req llm.Request) (*llm.Response, error) {
		if req.JSONMode {
			return &llm.Response{Text: testPlannerJSON, ModelID: "p"}, nil
		}
		return &llm.Response{Text: "Work the airport for two hours.", ModelID: "p"}, nil
	}}
	validator := &fakeCaller{model: "v", fn: func(_ context.Context, _ llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: `{"valid": true}`, ModelID: "v"}, nil
	}}

	reg := model.NewRegistry()
	reg.Register(llm.RoleStrategist, llm.NewRoleClient(llm.RoleStrategist, strategist, 5*time.Second, "", 0, nil))
	reg.Register(llm.RoleBriefer, llm.NewRoleClient(llm.RoleBriefer, strategist, 5*time.Second, "", 0, nil))
	reg.Register(llm.RolePlanner, llm.NewRoleClient(llm.RolePlanner, planner, 5*time.Second, "high", 0, nil))
	reg.Register(llm.RoleValidator, llm.NewRoleClient(llm.RoleValidator, validator, 5*time.Second, "", 0, nil))

	jobs := job.NewMemoryRegistry(time.Minute)
	artifacts := blocks.NewMemoryStore(false)
	b := bus.New(bus.NewMemoryEventLog())
	snapshots := snapshot.NewService(snapshot.NewMemoryStore(), fakeGeocoder{}, nil, logger)

	orch := orchestrator.New(orchestrator.Deps{
		Jobs:      jobs,
		Models:    reg,
		Enricher:  enrich.NewEnricher(fakeGeocoder{}, fakePlaces{}, fakeRoutes{}, logger),
		Catalog:   catalog.New(0),
		Bus:       b,
		Artifacts: artifacts,
	}, config.OrchestratorConfig{}, logger)

	h := NewHandler(snapshots, jobs, orch, artifacts, b, logger)
	engine := route.NewEngine(hzconfig.NewOptions(nil))
	if err := RegisterRoutes(engine, h, config.APIConfig{}); err != nil {
		t.Fatal(err)
	}
	return &fixture{engine: engine, jobs: jobs, bus: b, handler: h}
}

func (f *fixture) post(t *testing.T, path, body string) (int, map[string]interface{}) {
	t.Helper()
	w := ut.PerformRequest(f.engine, "POST", path,
		&ut.Body{Body: bytes.NewBufferString(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	resp := w.Result()
	var m map[string]interface{}
	_ = json.Unmarshal(resp.Body(), &m)
	return resp.StatusCode(), m
}

func (f *fixture) get(t *testing.T, path string) (int, map[string]interface{}) {
	t.Helper()
	w := ut.PerformRequest(f.engine, "GET", path, nil)
	resp := w.Result()
	var m map[string]interface{}
	_ = json.Unmarshal(resp.Body(), &m)
	return resp.StatusCode(), m
}

func TestSnapshotThenBlocksFastEndToEnd(t *testing.T) {
	f := newFixture(t)

	code, body := f.post(t, "/snapshot", `{"lat": 32.896800, "lng": -97.038000, "captured_at": "2026-01-16T14:00:00Z"}`)
	if code != 200 {
		t.Fatalf("POST /snapshot = %d %v", code, body)
	}
	snapID, _ := body["snapshot_id"].(string)
	if snapID == "" {
		t.Fatal("缺 snapshot_id")
	}
	if body["timezone"] != "America/Chicago" {
		t.Errorf("timezone = %v", body["timezone"])
	}

	code, body = f.post(t, "/blocks-fast", `{"snapshot_id": "`+snapID+`"}`)
	if code != 200 {
		t.Fatalf("POST /blocks-fast = %d %v", code, body)
	}
	jobID, _ := body["job_id"].(string)
	if jobID == "" {
		t.Fatal("缺 job_id")
	}

	// 幂等：冷却期内重复入队返回同一 job_id
	_, body2 := f.post(t, "/blocks-fast", `{"snapshot_id": "`+snapID+`"}`)
	if body2["job_id"] != jobID {
		t.Errorf("重复入队 job_id 变了: %v != %s", body2["job_id"], jobID)
	}

	// 等管线收尾后读策略
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		j, err := f.jobs.Read(context.Background(), jobID)
		if err != nil {
			t.Fatal(err)
		}
		if j.Status.Terminal() {
			if j.Status != job.StatusSucceeded {
				t.Fatalf("job %s: %s", j.Status, j.ErrorMessage)
			}
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	code, body = f.get(t, "/blocks/strategy/"+snapID)
	if code != 200 {
		t.Fatalf("GET strategy = %d %v", code, body)
	}
	if _, ok := body["blocks"].([]interface{}); !ok {
		t.Errorf("strategy 响应缺 blocks: %v", body)
	}
}

func TestSnapshotRejectsOutOfRange(t *testing.T) {
	f := newFixture(t)
	code, body := f.post(t, "/snapshot", `{"lat": 123.0, "lng": 0.0, "captured_at": "2026-01-16T14:00:00Z"}`)
	if code != 400 {
		t.Fatalf("越界坐标应 400，得到 %d", code)
	}
	if body["code"] != "invalid_input" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestBlocksFastUnknownSnapshot(t *testing.T) {
	f := newFixture(t)
	code, _ := f.post(t, "/blocks-fast", `{"snapshot_id": "snap-nope"}`)
	if code != 404 {
		t.Errorf("未知快照应 404，得到 %d", code)
	}
}

func TestBlocksFastTriggerGate(t *testing.T) {
	f := newFixture(t)

	_, body := f.post(t, "/snapshot", `{"lat": 32.896800, "lng": -97.038000, "captured_at": "2026-01-16T14:00:00Z"}`)
	snapID, _ := body["snapshot_id"].(string)
	if snapID == "" {
		t.Fatal("缺 snapshot_id")
	}

	// 首次 relocation 触发没有历史 Job，照常入队
	code, body := f.post(t, "/blocks-fast", `{"snapshot_id": "`+snapID+`", "trigger": "relocation", "moved_m": 120}`)
	if code != 200 {
		t.Fatalf("首次 relocation 入队 = %d %v", code, body)
	}
	jobID, _ := body["job_id"].(string)
	if jobID == "" {
		t.Fatal("缺 job_id")
	}

	// 位移低于门槛：复用既有句柄，refreshed=false
	code, body = f.post(t, "/blocks-fast", `{"snapshot_id": "`+snapID+`", "trigger": "relocation", "moved_m": 120}`)
	if code != 200 {
		t.Fatalf("门槛内 relocation = %d %v", code, body)
	}
	if body["job_id"] != jobID || body["refreshed"] != false {
		t.Errorf("门槛内应复用句柄: %v", body)
	}

	// 位移越过门槛：绕过门槛走幂等入队（冷却期内仍是同一 attempt）
	code, body = f.post(t, "/blocks-fast", `{"snapshot_id": "`+snapID+`", "trigger": "relocation", "moved_m": 800}`)
	if code != 200 {
		t.Fatalf("越门槛 relocation = %d %v", code, body)
	}
	if _, gated := body["refreshed"]; gated {
		t.Errorf("越门槛不应被挡: %v", body)
	}

	// stale 触发：刚跑完不到有效窗口，也被挡
	code, body = f.post(t, "/blocks-fast", `{"snapshot_id": "`+snapID+`", "trigger": "stale"}`)
	if code != 200 {
		t.Fatalf("stale = %d %v", code, body)
	}
	if body["refreshed"] != false {
		t.Errorf("新鲜策略的 stale 触发应被挡: %v", body)
	}

	if code, _ := f.post(t, "/blocks-fast", `{"snapshot_id": "`+snapID+`", "trigger": "geofence"}`); code != 400 {
		t.Errorf("未知 trigger 应 400，得到 %d", code)
	}
}

func TestStrategyBeforeTerminalReturnsPhase(t *testing.T) {
	f := newFixture(t)
	// 不经 orchestrator，直接造一个 pending job
	j, _, err := f.jobs.Enqueue(context.Background(), "snap-pending")
	if err != nil {
		t.Fatal(err)
	}
	code, body := f.get(t, "/blocks/strategy/snap-pending")
	if code != 200 {
		t.Fatalf("GET strategy = %d", code)
	}
	if body["status"] != "pending" || body["job_id"] != j.ID {
		t.Errorf("非终态应回当前状态: %v", body)
	}
	if _, ok := body["blocks"]; ok {
		t.Error("非终态不应暴露 blocks")
	}
}

func TestCancelUnknownJob(t *testing.T) {
	f := newFixture(t)
	code, _ := f.post(t, "/jobs/job-nope/cancel", "")
	if code != 404 {
		t.Errorf("未知 job 取消应 404，得到 %d", code)
	}
}

func TestSystemEndpoints(t *testing.T) {
	f := newFixture(t)
	if code, body := f.get(t, "/api/system/status"); code != 200 || body["status"] != "ok" {
		t.Errorf("status 端点异常: %d %v", code, body)
	}
	w := ut.PerformRequest(f.engine, "GET", "/api/system/metrics", nil)
	if w.Result().StatusCode() != 200 {
		t.Errorf("metrics 端点 = %d", w.Result().StatusCode())
	}
}
