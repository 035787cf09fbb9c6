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

package middleware

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/jwt"

	"drive-blocks/pkg/config"
)

// IdentityKey 认证后 caller 身份在 ctx 里的键；token 铸造在外部系统
const IdentityKey = "caller"

// NewJWT 构造 JWT 校验中间件；只验签与取 subject，不发 token。
// auth 关闭时调用方不应挂载本中间件。
func NewJWT(cfg config.MiddlewareConfig) (app.HandlerFunc, error) {
	mw, err := jwt.New(&jwt.HertzJWTMiddleware{
		Realm:       "drive-blocks",
		Key:         []byte(cfg.JWTKey),
		Timeout:     config.Duration(cfg.JWTTimeout, time.Hour),
		MaxRefresh:  config.Duration(cfg.JWTMaxRefresh, time.Hour),
		IdentityKey: IdentityKey,
		IdentityHandler: func(c context.Context, ctx *app.RequestContext) interface{} {
			claims := jwt.ExtractClaims(c, ctx)
			if sub, ok := claims["sub"].(string); ok {
				return sub
			}
			return ""
		},
		TokenLookup: "header: Authorization",
	})
	if err != nil {
		return nil, err
	}
	return mw.MiddlewareFunc(), nil
}

// CallerFrom 取认证后的 caller 身份；未启用认证时为空串
func CallerFrom(ctx *app.RequestContext) string {
	if v, ok := ctx.Get(IdentityKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
