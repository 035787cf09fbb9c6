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
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"drive-blocks/pkg/utils"
)

func apiBaseURL() string {
	return utils.CoalesceString(os.Getenv("DRIVE_BLOCKS_API_URL"), "http://localhost:8080")
}

func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(apiBaseURL()).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
}

func createSnapshot(lat, lng float64, callerContext string) (map[string]interface{}, error) {
	body := map[string]interface{}{
		"lat":         lat,
		"lng":         lng,
		"captured_at": time.Now().UTC().Format(time.RFC3339),
	}
	if callerContext != "" {
		body["context"] = callerContext
	}
	var out map[string]interface{}
	resp, err := newClient().R().
		SetBody(body).
		SetResult(&out).
		Post("/snapshot")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("POST /snapshot: %s", resp.String())
	}
	return out, nil
}

func enqueueBlocksFast(snapshotID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetBody(map[string]string{"snapshot_id": snapshotID}).
		SetResult(&out).
		Post("/blocks-fast")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("POST /blocks-fast: %s", resp.String())
	}
	return out, nil
}

func getStrategy(snapshotID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/blocks/strategy/" + snapshotID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET strategy: %s", resp.String())
	}
	return out, nil
}

func getJob(jobID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/jobs/" + jobID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /jobs/%s: %s", jobID, resp.String())
	}
	return out, nil
}

func cancelJob(jobID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Post("/jobs/" + jobID + "/cancel")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("POST cancel: %s", resp.String())
	}
	return out, nil
}

// terminalEventTypes 终态事件；流到这些事件后结束
var terminalEventTypes = map[string]bool{
	"job_succeeded": true,
	"job_failed":    true,
	"job_cancelled": true,
}

// streamEvents 跟 SSE 流，逐事件回调；终态事件后返回。
// lastEventID 非空时带 Last-Event-ID 续传。
func streamEvents(jobID, lastEventID string, onEvent func(eventType, id, data string)) error {
	client := resty.New().
		SetBaseURL(apiBaseURL()).
		SetDoNotParseResponse(true)
	req := client.R().SetHeader("Accept", "text/event-stream")
	if lastEventID != "" {
		req.SetHeader("Last-Event-ID", lastEventID)
	}
	resp, err := req.Get("/events?job_id=" + jobID)
	if err != nil {
		return err
	}
	body := resp.RawBody()
	defer body.Close()
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("GET /events: http %d", resp.StatusCode())
	}

	scanner := bufio.NewScanner(body)
	var eventType, id, data string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if data != "" {
				onEvent(eventType, id, data)
				if terminalEventTypes[eventType] {
					return nil
				}
			}
			eventType, id, data = "", "", ""
			continue
		}
		field, value := parseSSELine(line)
		switch field {
		case "event":
			eventType = value
		case "id":
			id = value
		case "data":
			data = value
		}
	}
	return scanner.Err()
}

// parseSSELine 拆一行 SSE 字段；注释行与未知行返回空字段名
func parseSSELine(line string) (field, value string) {
	if strings.HasPrefix(line, ":") {
		return "", ""
	}
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = strings.TrimPrefix(line[idx+1:], " ")
	return field, value
}

func prettyJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
