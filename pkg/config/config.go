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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API          APIConfig          `mapstructure:"api"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Jobs         JobsConfig         `mapstructure:"jobs"`
	Catalog      CatalogConfig      `mapstructure:"catalog"`
	Model        ModelConfig        `mapstructure:"model"`
	Enrich       EnrichConfig       `mapstructure:"enrich"`
	RateLimits   RateLimitsConfig   `mapstructure:"rate_limits"`
	Log          LogConfig          `mapstructure:"log"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`
	Secrets      SecretsConfig      `mapstructure:"secrets"`
	Startup      StartupConfig      `mapstructure:"startup"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置（JWT 可选；token 签发在系统之外）
type MiddlewareConfig struct {
	Auth          bool   `mapstructure:"auth"`
	JWTKey        string `mapstructure:"jwt_key"`
	JWTTimeout    string `mapstructure:"jwt_timeout"`     // 如 "1h"
	JWTMaxRefresh string `mapstructure:"jwt_max_refresh"` // 如 "1h"
}

// StorageConfig 存储配置
type StorageConfig struct {
	Metadata MetadataConfig `mapstructure:"metadata"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// MetadataConfig 元数据存储配置（snapshots/jobs/artifacts/catalog/event log 共用）
type MetadataConfig struct {
	Type     string `mapstructure:"type"` // memory | postgres
	DSN      string `mapstructure:"dsn"`  // type=postgres 时必填
	PoolSize int    `mapstructure:"pool_size"`
}

// CacheConfig 缓存配置（坐标缓存/地点缓存/路线缓存共用一个后端）
type CacheConfig struct {
	Type     string `mapstructure:"type"` // memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// OrchestratorConfig TRIAD 调度配置；零值用默认（90s/30s/20s/40s/4）
type OrchestratorConfig struct {
	TotalBudget    string `mapstructure:"total_budget"`    // 端到端墙钟预算，默认 90s
	Phase1Deadline string `mapstructure:"phase1_deadline"` // 默认 30s
	Phase2Deadline string `mapstructure:"phase2_deadline"` // 默认 20s
	Phase3Deadline string `mapstructure:"phase3_deadline"` // 默认 40s
	EnrichWorkers  int    `mapstructure:"enrich_workers"`  // Phase3 富化并发宽度，默认 4
}

// JobsConfig Job 注册表配置
type JobsConfig struct {
	RetryCooldown string `mapstructure:"retry_cooldown"` // 幂等重入冷却，默认 30s
	KeepAttempts  bool   `mapstructure:"keep_attempts"`  // true 保留历史 attempt 工件；默认覆盖
}

// CatalogConfig 场地目录配置
type CatalogConfig struct {
	SeedPath      string  `mapstructure:"seed_path"`       // YAML 种子文件；空则目录为空（Planner 自行生成场地）
	MaxDistanceKm float64 `mapstructure:"max_distance_km"` // 近邻过滤硬上限，默认 100
}

// ModelConfig 模型配置：三个角色各一份
type ModelConfig struct {
	Roles map[string]RoleConfig `mapstructure:"roles"` // strategist | planner | validator | briefer
}

// RoleConfig 单个角色的模型配置
type RoleConfig struct {
	Provider        string `mapstructure:"provider"` // openai | anthropic | reasoning
	Name            string `mapstructure:"name"`     // 期望的 model id；响应回显不一致即 model_mismatch
	BaseURL         string `mapstructure:"base_url"`
	APIKey          string `mapstructure:"api_key"` // 支持 ${ENV_VAR}
	ReasoningEffort string `mapstructure:"reasoning_effort"`
	Timeout         string `mapstructure:"timeout"` // 角色预算：strategist 12s / planner 45s / validator 15s
	MaxTokens       int    `mapstructure:"max_tokens"`
}

// EnrichConfig 富化服务配置
type EnrichConfig struct {
	Geocoder ProviderEndpoint `mapstructure:"geocoder"`
	Places   PlacesEndpoint   `mapstructure:"places"`
	Routes   ProviderEndpoint `mapstructure:"routes"`
	Holiday  HolidayEndpoint  `mapstructure:"holiday"`
	Weather  WeatherEndpoint  `mapstructure:"weather"`
}

// ProviderEndpoint 外部 provider 通用端点配置
type ProviderEndpoint struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout string `mapstructure:"timeout"`
}

// PlacesEndpoint 地点元数据端点配置
type PlacesEndpoint struct {
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	Timeout  string `mapstructure:"timeout"`
	HoursTTL string `mapstructure:"hours_ttl"` // 营业时间缓存 TTL，默认 24h
}

// HolidayEndpoint 节假日外部日历（可选；查不到时退回内置表）
type HolidayEndpoint struct {
	Enable  bool   `mapstructure:"enable"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout string `mapstructure:"timeout"`
}

// WeatherEndpoint 天气快照（可选，不阻塞 snapshot 写入）
type WeatherEndpoint struct {
	Enable  bool   `mapstructure:"enable"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout string `mapstructure:"timeout"`
}

// RateLimitsConfig 限流配置（LLM provider + 富化 provider）
type RateLimitsConfig struct {
	LLM    map[string]LimitConfig `mapstructure:"llm"`
	Enrich map[string]LimitConfig `mapstructure:"enrich"`
}

// LimitConfig 单 provider 限流：并发上限 + 每分钟请求数
type LimitConfig struct {
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// SecretsConfig 凭据来源配置
type SecretsConfig struct {
	Provider string            `mapstructure:"provider"` // env | vault | memory
	Vault    VaultSecretConfig `mapstructure:"vault"`
}

// VaultSecretConfig Vault 后端配置
type VaultSecretConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	PathPrefix string `mapstructure:"path_prefix"`
}

// StartupConfig 启动自检配置
type StartupConfig struct {
	EgressCheck    bool   `mapstructure:"egress_check"`     // true 时启动前探测出网
	EgressProbeURL string `mapstructure:"egress_probe_url"` // 空则用 geocoder base_url
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// LoadAPIConfig 加载 API 配置（仅 configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// LoadAPIConfigWithModel 加载 API 配置并合并 model/enrich 配置。
// model 路径解析为与 api 配置同目录（configs/），避免 cwd 导致 model.yaml 未加载。
func LoadAPIConfigWithModel() (*Config, error) {
	cfg, err := LoadConfig("configs/api.yaml")
	if err != nil {
		return nil, err
	}
	modelPath := "configs/model.yaml"
	if absAPI, errAbs := filepath.Abs("configs/api.yaml"); errAbs == nil {
		modelPath = filepath.Join(filepath.Dir(absAPI), "model.yaml")
	}
	modelCfg, err := LoadConfig(modelPath)
	if err == nil {
		cfg.Model = modelCfg.Model
		cfg.Enrich = modelCfg.Enrich
		if len(modelCfg.RateLimits.LLM) > 0 || len(modelCfg.RateLimits.Enrich) > 0 {
			cfg.RateLimits = modelCfg.RateLimits
		}
	}
	return cfg, nil
}

// replaceEnvVars 替换配置中的 ${ENV_VAR} 形式凭据
func replaceEnvVars(config *Config) {
	for role, rc := range config.Model.Roles {
		rc.APIKey = expandEnv(rc.APIKey)
		config.Model.Roles[role] = rc
	}
	config.Enrich.Geocoder.APIKey = expandEnv(config.Enrich.Geocoder.APIKey)
	config.Enrich.Places.APIKey = expandEnv(config.Enrich.Places.APIKey)
	config.Enrich.Routes.APIKey = expandEnv(config.Enrich.Routes.APIKey)
	config.Enrich.Holiday.APIKey = expandEnv(config.Enrich.Holiday.APIKey)
	config.Enrich.Weather.APIKey = expandEnv(config.Enrich.Weather.APIKey)
	config.Storage.Metadata.DSN = expandEnv(config.Storage.Metadata.DSN)
	config.Storage.Cache.Password = expandEnv(config.Storage.Cache.Password)
	config.Secrets.Vault.Token = expandEnv(config.Secrets.Vault.Token)
}

// expandEnv "${VAR}" / "$VAR" → 环境变量值；查不到时原样返回
func expandEnv(v string) string {
	if !strings.HasPrefix(v, "$") {
		return v
	}
	name := strings.TrimPrefix(strings.TrimSuffix(strings.TrimPrefix(v, "${"), "}"), "$")
	if val := os.Getenv(name); val != "" {
		return val
	}
	return v
}

// ValidateRequired 启动期校验：缺必填凭据/模型 id 返回错误（进程以退出码 1 终止）。
// 角色至少要有 strategist/planner/validator 三份，且 name 与 api_key 非空。
func (c *Config) ValidateRequired() error {
	for _, role := range []string{"strategist", "planner", "validator"} {
		rc, ok := c.Model.Roles[role]
		if !ok {
			return fmt.Errorf("model.roles.%s 缺失", role)
		}
		if rc.Name == "" {
			return fmt.Errorf("model.roles.%s.name 缺失", role)
		}
		if rc.APIKey == "" {
			return fmt.Errorf("model.roles.%s.api_key 缺失", role)
		}
	}
	if c.Enrich.Geocoder.BaseURL == "" || c.Enrich.Geocoder.APIKey == "" {
		return fmt.Errorf("enrich.geocoder 配置不完整")
	}
	if c.Enrich.Places.BaseURL == "" || c.Enrich.Places.APIKey == "" {
		return fmt.Errorf("enrich.places 配置不完整")
	}
	if c.Enrich.Routes.BaseURL == "" || c.Enrich.Routes.APIKey == "" {
		return fmt.Errorf("enrich.routes 配置不完整")
	}
	if c.Storage.Metadata.Type == "postgres" && c.Storage.Metadata.DSN == "" {
		return fmt.Errorf("storage.metadata.dsn 缺失（type=postgres）")
	}
	return nil
}

// Duration 解析时长字段；空或非法返回 def
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
