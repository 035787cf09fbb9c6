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
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/route"

	"drive-blocks/internal/api/http/middleware"
	"drive-blocks/pkg/config"
)

// RegisterRoutes 挂路由。auth 开启时写操作走 JWT，读操作与系统端点不拦。
func RegisterRoutes(r *route.Engine, h *Handler, cfg config.APIConfig) error {
	r.Use(middleware.Recovery(), middleware.RequestID())
	if cfg.CORS.Enable {
		r.Use(middleware.CORS())
	}

	var authed []app.HandlerFunc
	if cfg.Middleware.Auth {
		jwtMW, err := middleware.NewJWT(cfg.Middleware)
		if err != nil {
			return err
		}
		authed = append(authed, jwtMW)
	}

	write := r.Group("/", authed...)
	write.POST("/snapshot", h.CreateSnapshot)
	write.POST("/blocks-fast", h.EnqueueBlocksFast)
	write.POST("/jobs/:job_id/cancel", h.CancelJob)

	r.GET("/blocks/strategy/:snapshot_id", h.GetStrategy)
	r.GET("/jobs/:job_id", h.GetJob)
	r.GET("/events", h.StreamEvents)

	system := r.Group("/api/system")
	system.GET("/status", h.SystemStatus)
	system.GET("/metrics", h.SystemMetrics)
	return nil
}
