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

package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cloudwego/hertz/pkg/app/server"
	hzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"drive-blocks/internal/api/http"
	"drive-blocks/internal/app"
	"drive-blocks/pkg/utils"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用：Bootstrap 装配好的组件 + Hertz 服务
type App struct {
	bootstrap    *app.Bootstrap
	handler      *http.Handler
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	handler := http.NewHandler(
		bootstrap.Snapshots,
		bootstrap.Jobs,
		bootstrap.Orchestrator,
		bootstrap.Artifacts,
		bootstrap.Bus,
		bootstrap.Logger,
	)
	return &App{bootstrap: bootstrap, handler: handler}, nil
}

// Run 启动 HTTP 服务，addr 如 ":8080"。阻塞直到服务退出。
func (a *App) Run(addr string) error {
	cfg := a.bootstrap.Config
	a.bootstrap.Logger.Info("API 服务启动", "addr", addr)

	// Hertz 内部日志走 slog 扩展，与 bootstrap 的日志配置对齐
	output := os.Stdout
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件 failed: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	switch cfg.Log.Level {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	serverOpts := []hzconfig.Option{server.WithHostPorts(addr)}

	// 可选：启用链路追踪（OpenTelemetry）
	var tracingCfg *hertztracing.Config
	if cfg.Monitoring.Tracing.Enable {
		serviceName := utils.CoalesceString(cfg.Monitoring.Tracing.ServiceName, "drive-blocks-api")
		exportEndpoint := utils.CoalesceString(
			cfg.Monitoring.Tracing.ExportEndpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
		if exportEndpoint != "" {
			opts := []provider.Option{
				provider.WithServiceName(serviceName),
				provider.WithExportEndpoint(exportEndpoint),
			}
			if cfg.Monitoring.Tracing.Insecure {
				opts = append(opts, provider.WithInsecure())
			}
			a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
			tracerOpt, tCfg := hertztracing.NewServerTracer()
			serverOpts = append(serverOpts, tracerOpt)
			tracingCfg = tCfg
			a.bootstrap.Logger.Info("链路追踪已启用",
				"service_name", serviceName, "endpoint", exportEndpoint)
		}
	}

	a.hertz = server.New(serverOpts...)
	if tracingCfg != nil {
		a.hertz.Use(hertztracing.ServerMiddleware(tracingCfg))
	}
	if err := http.RegisterRoutes(a.hertz.Engine, a.handler, cfg.API); err != nil {
		return fmt.Errorf("注册路由 failed: %w", err)
	}
	return a.hertz.Run()
}

// Shutdown 优雅关闭：先排空在跑的编排，再停 HTTP 与持久层
func (a *App) Shutdown(ctx context.Context) error {
	if a.bootstrap.Orchestrator != nil {
		if err := a.bootstrap.Orchestrator.Shutdown(ctx); err != nil {
			a.bootstrap.Logger.Warn("编排器排空超时", "error", err)
		}
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	return a.bootstrap.Close()
}
