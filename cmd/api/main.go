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
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"

	"drive-blocks/internal/app"
	"drive-blocks/internal/app/api"
	"drive-blocks/pkg/config"
	"drive-blocks/pkg/utils"
)

// 退出码：1 配置错误，2 持久层不可达，3 启动期出网探测失败
const (
	exitConfig      = 1
	exitPersistence = 2
	exitEgress      = 3
)

func main() {
	cfg, err := config.LoadAPIConfigWithModel()
	if err != nil {
		log.Printf("加载配置 failed: %v", err)
		os.Exit(exitConfig)
	}
	if err := cfg.ValidateRequired(); err != nil {
		log.Printf("配置校验 failed: %v", err)
		os.Exit(exitConfig)
	}

	if cfg.Startup.EgressCheck {
		if err := probeEgress(cfg); err != nil {
			log.Printf("出网探测 failed: %v", err)
			os.Exit(exitEgress)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	bootstrap, err := app.NewBootstrap(ctx, cfg)
	cancel()
	if err != nil {
		log.Printf("初始化 failed: %v", err)
		os.Exit(exitPersistence)
	}

	application, err := api.NewApp(bootstrap)
	if err != nil {
		log.Printf("创建 API 应用 failed: %v", err)
		os.Exit(exitPersistence)
	}

	addr := ":8080"
	if cfg.API.Port > 0 {
		addr = fmt.Sprintf(":%d", cfg.API.Port)
	}

	go func() {
		if err := application.Run(addr); err != nil {
			log.Printf("API 服务异常退出: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Printf("关闭 failed: %v", err)
	}
	log.Println("API 服务已关闭")
}

// probeEgress 出网探测：优先配置的探测地址，否则打 geocoder 端点。
// 只看连通性，任何 HTTP 状态码都算通。
func probeEgress(cfg *config.Config) error {
	target := utils.CoalesceString(cfg.Startup.EgressProbeURL, cfg.Enrich.Geocoder.BaseURL)
	if target == "" {
		return fmt.Errorf("没有可探测的出网地址")
	}
	client := resty.New().SetTimeout(5 * time.Second)
	if _, err := client.R().Get(target); err != nil {
		return fmt.Errorf("探测 %s: %w", target, err)
	}
	return nil
}
