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

package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func TestParseSSELine(t *testing.T) {
	cases := []struct {
		line  string
		field string
		value string
	}{
		{"event: phase_change", "event", "phase_change"},
		{"id: 7", "id", "7"},
		{`data: {"job_id":"job-1"}`, "data", `{"job_id":"job-1"}`},
		{"data:no-space", "data", "no-space"},
		{": comment", "", ""},
		{"retry", "retry", ""},
	}
	for _, c := range cases {
		field, value := parseSSELine(c.line)
		if field != c.field || value != c.value {
			t.Errorf("parseSSELine(%q) = (%q, %q), want (%q, %q)",
				c.line, field, value, c.field, c.value)
		}
	}
}

func TestStreamEventsStopsAtTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" || r.URL.Query().Get("job_id") != "job-1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: state\ndata: {\"status\":\"in_progress\"}\n\n")
		fmt.Fprint(w, "event: phase_change\nid: 1\ndata: {\"phase\":\"p1\"}\n\n")
		fmt.Fprint(w, "event: job_succeeded\nid: 5\ndata: {\"job_id\":\"job-1\"}\n\n")
		// 终态之后的内容不应被回调
		fmt.Fprint(w, "event: phase_change\nid: 6\ndata: {}\n\n")
	}))
	defer srv.Close()
	t.Setenv("DRIVE_BLOCKS_API_URL", srv.URL)

	var got []string
	err := streamEvents("job-1", "", func(eventType, id, data string) {
		got = append(got, eventType)
	})
	if err != nil {
		t.Fatalf("streamEvents: %v", err)
	}
	want := []string{"state", "phase_change", "job_succeeded"}
	if len(got) != len(want) {
		t.Fatalf("事件数 = %d (%v)，want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("事件[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestAPIBaseURLDefault(t *testing.T) {
	old := os.Getenv("DRIVE_BLOCKS_API_URL")
	os.Unsetenv("DRIVE_BLOCKS_API_URL")
	defer os.Setenv("DRIVE_BLOCKS_API_URL", old)
	if apiBaseURL() != "http://localhost:8080" {
		t.Errorf("默认地址 = %s", apiBaseURL())
	}
}
