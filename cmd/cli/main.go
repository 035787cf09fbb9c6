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
	"os"
	"os/exec"
	"strconv"

	"drive-blocks/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("drive-blocks cli 0.1.0")
	case "config":
		runConfig()
	case "server":
		if len(args) > 0 && args[0] == "start" {
			runServerStart()
		} else {
			fmt.Fprintf(os.Stderr, "Usage: driveblocks server start\n")
			os.Exit(1)
		}
	case "snapshot":
		runSnapshot(args)
	case "run":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: driveblocks run <snapshot_id>\n")
			os.Exit(1)
		}
		runBlocksFast(args[0])
	case "strategy":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: driveblocks strategy <snapshot_id>\n")
			os.Exit(1)
		}
		runStrategy(args[0])
	case "job":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: driveblocks job <job_id>\n")
			os.Exit(1)
		}
		runJob(args[0])
	case "events":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: driveblocks events <job_id> [last_event_id]\n")
			os.Exit(1)
		}
		lastID := ""
		if len(args) > 1 {
			lastID = args[1]
		}
		runEvents(args[0], lastID)
	case "cancel":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: driveblocks cancel <job_id>\n")
			os.Exit(1)
		}
		runCancel(args[0])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: driveblocks <command> [args]")
	fmt.Println("  version                     - 显示版本")
	fmt.Println("  config                      - 显示配置概要")
	fmt.Println("  server start                - 启动 API 服务（go run ./cmd/api）")
	fmt.Println("  snapshot <lat> <lng> [ctx]  - 捕获位置快照，返回 snapshot_id")
	fmt.Println("  run <snapshot_id>           - 入队 TRIAD 作业并跟事件流到终态")
	fmt.Println("  strategy <snapshot_id>      - 读取最近一次策略工件")
	fmt.Println("  job <job_id>                - 查询 Job 状态")
	fmt.Println("  events <job_id> [last_id]   - 跟 Job 事件流（可带 Last-Event-ID 续传）")
	fmt.Println("  cancel <job_id>             - 请求取消执行中的 Job")
}

func runConfig() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置 failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("api.port=%d\n", cfg.API.Port)
	fmt.Printf("api.host=%s\n", cfg.API.Host)
	fmt.Printf("storage.metadata.type=%s\n", cfg.Storage.Metadata.Type)
	fmt.Printf("storage.cache.type=%s\n", cfg.Storage.Cache.Type)
}

func runServerStart() {
	c := exec.Command("go", "run", "./cmd/api")
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Dir = "."
	if err := c.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "server start: %v\n", err)
		os.Exit(1)
	}
}

func runSnapshot(args []string) {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: driveblocks snapshot <lat> <lng> [context]\n")
		os.Exit(1)
	}
	lat, errLat := strconv.ParseFloat(args[0], 64)
	lng, errLng := strconv.ParseFloat(args[1], 64)
	if errLat != nil || errLng != nil {
		fmt.Fprintf(os.Stderr, "坐标须为十进制度数: %s %s\n", args[0], args[1])
		os.Exit(1)
	}
	callerContext := ""
	if len(args) > 2 {
		callerContext = args[2]
	}
	out, err := createSnapshot(lat, lng, callerContext)
	if err != nil {
		fmt.Fprintf(os.Stderr, "捕获快照 failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runBlocksFast(snapshotID string) {
	out, err := enqueueBlocksFast(snapshotID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "入队 failed: %v\n", err)
		os.Exit(1)
	}
	jobID, _ := out["job_id"].(string)
	fmt.Printf("Job: %s\n", jobID)
	if jobID == "" {
		return
	}
	if err := streamEvents(jobID, "", printEvent); err != nil {
		fmt.Fprintf(os.Stderr, "事件流中断: %v\n", err)
		os.Exit(1)
	}
}

func runStrategy(snapshotID string) {
	out, err := getStrategy(snapshotID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取策略 failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runJob(jobID string) {
	out, err := getJob(jobID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "查询 failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runEvents(jobID, lastEventID string) {
	if err := streamEvents(jobID, lastEventID, printEvent); err != nil {
		fmt.Fprintf(os.Stderr, "事件流中断: %v\n", err)
		os.Exit(1)
	}
}

func runCancel(jobID string) {
	out, err := cancelJob(jobID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "取消 failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func printEvent(eventType, id, data string) {
	if eventType == "heartbeat" {
		return
	}
	if id != "" {
		fmt.Printf("[%s] %s %s\n", id, eventType, data)
		return
	}
	fmt.Printf("%s %s\n", eventType, data)
}
