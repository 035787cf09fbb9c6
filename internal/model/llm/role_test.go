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
	"fmt"
	"testing"
	"time"

	"drive-blocks/pkg/errors"
)

type stubCaller struct {
	model string
	resp  *Response
	err   error
	// lastReq 记录最近一次请求，校验 effort 注入
	lastReq Request
}

func (s *stubCaller) Call(ctx context.Context, req Request) (*Response, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	if s.resp != nil {
		return s.resp, nil
	}
	return &Response{Text: "ok", ModelID: s.model}, nil
}

func (s *stubCaller) ModelID() string  { return s.model }
func (s *stubCaller) Provider() string { return "stub" }

func TestRoleClientInjectsEffortAndBudget(t *testing.T) {
	stub := &stubCaller{model: "m1"}
	c := NewRoleClient(RolePlanner, stub, 45*time.Second, "high", 2048, nil)
	if _, err := c.Call(context.Background(), Request{User: "plan"}); err != nil {
		t.Fatalf("Call 失败: %v", err)
	}
	if stub.lastReq.ReasoningEffort != "high" {
		t.Errorf("ReasoningEffort = %q", stub.lastReq.ReasoningEffort)
	}
	if stub.lastReq.MaxTokens != 2048 {
		t.Errorf("MaxTokens = %d", stub.lastReq.MaxTokens)
	}
}

func TestRoleClientErrorCodes(t *testing.T) {
	cases := []struct {
		role Role
		err  error
		want errors.Code
	}{
		{RoleStrategist, fmt.Errorf("boom"), errors.CodeStrategistFailed},
		{RoleBriefer, fmt.Errorf("boom"), errors.CodeStrategistFailed},
		{RolePlanner, fmt.Errorf("boom"), errors.CodePlannerFailed},
		{RoleValidator, fmt.Errorf("boom"), errors.CodeValidatorFailed},
		{RolePlanner, fmt.Errorf("wrap: %w", ErrThrottled), errors.CodePlannerThrottled},
		// throttle 只在 Planner 映射为 planner_throttled
		{RoleStrategist, fmt.Errorf("wrap: %w", ErrThrottled), errors.CodeStrategistFailed},
		{RolePlanner, fmt.Errorf("wrap: %w", ErrModelMismatch), errors.CodeModelMismatch},
	}
	for _, tc := range cases {
		c := NewRoleClient(tc.role, &stubCaller{model: "m", err: tc.err}, time.Second, "", 0, nil)
		_, err := c.Call(context.Background(), Request{User: "x"})
		if err == nil {
			t.Fatalf("role %s: 想要错误", tc.role)
		}
		if got := errors.CodeOf(err); got != tc.want {
			t.Errorf("role %s: code = %s, want %s", tc.role, got, tc.want)
		}
	}
}

func TestRoleClientAppliesTimeout(t *testing.T) {
	slow := &slowCaller{delay: 200 * time.Millisecond}
	c := NewRoleClient(RoleValidator, slow, 20*time.Millisecond, "", 0, nil)
	_, err := c.Call(context.Background(), Request{User: "x"})
	if err == nil {
		t.Fatal("想要超时错误")
	}
	if got := errors.CodeOf(err); got != errors.CodeValidatorFailed {
		t.Errorf("code = %s", got)
	}
}

type slowCaller struct {
	delay time.Duration
}

func (s *slowCaller) Call(ctx context.Context, req Request) (*Response, error) {
	select {
	case <-time.After(s.delay):
		return &Response{Text: "late", ModelID: "m"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *slowCaller) ModelID() string  { return "m" }
func (s *slowCaller) Provider() string { return "slow" }

func TestMetaRoundTrip(t *testing.T) {
	ctx := WithMeta(context.Background(), Meta{Phase: "p1", SnapshotID: "snap-1", CorrelationID: "corr-1"})
	m := MetaFrom(ctx)
	if m.Phase != "p1" || m.SnapshotID != "snap-1" || m.CorrelationID != "corr-1" {
		t.Errorf("Meta = %+v", m)
	}
	if got := MetaFrom(context.Background()); got != (Meta{}) {
		t.Errorf("空 ctx 应返回零值 Meta，得到 %+v", got)
	}
}
