package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/aura/backend/internal/storage"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Aura    AuraConfig
	Storage StorageConfig
	AI      AIConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := cfg.AI.loadTuning(); err != nil {
		return nil, err
	}

	if cfg.Aura.MaxMessages <= 0 {
		cfg.Aura.MaxMessages = 50
	}
	if cfg.Aura.MaxSessions <= 0 {
		cfg.Aura.MaxSessions = 20
	}
	if cfg.Aura.ScriptedDelay < 0 {
		cfg.Aura.ScriptedDelay = 0
	}

	switch cfg.Storage.Driver {
	case "file", "sqlite":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			return nil, fmt.Errorf("STORAGE_PATH is required when STORAGE_DRIVER is %s", cfg.Storage.Driver)
		}
	case "redis":
		if strings.TrimSpace(cfg.Storage.RedisURL) == "" {
			return nil, fmt.Errorf("REDIS_URL is required when STORAGE_DRIVER is redis")
		}
	}

	return cfg, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	Addr            string
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level   string `env:"LOG_LEVEL" envDefault:"info"`
	Format  string `env:"LOG_FORMAT" envDefault:"console"`
	Service string `env:"SERVICE_NAME" envDefault:"aura-backend"`
}

// AuraConfig 描述聊天引擎本身的参数。
type AuraConfig struct {
	// UpstreamURL 是助手帧流接口的基础地址，为空时指向本服务自身。
	UpstreamURL   string        `env:"AURA_UPSTREAM_URL"`
	MaxMessages   int           `env:"AURA_MAX_MESSAGES" envDefault:"50"`
	MaxSessions   int           `env:"AURA_MAX_SESSIONS" envDefault:"20"`
	ScriptedDelay time.Duration `env:"AURA_SCRIPTED_DELAY" envDefault:"250ms"`
}

// StorageConfig 描述会话持久化后端。
type StorageConfig struct {
	Driver    string `env:"STORAGE_DRIVER" envDefault:"memory"`
	Path      string `env:"STORAGE_PATH"`
	RedisURL  string `env:"REDIS_URL"`
	KeyPrefix string `env:"STORAGE_KEY_PREFIX" envDefault:"aura:"`
}

// Slots 转换为 storage 包使用的配置。
func (c StorageConfig) Slots() storage.Config {
	return storage.Config{
		Driver:    c.Driver,
		Path:      c.Path,
		RedisURL:  c.RedisURL,
		KeyPrefix: c.KeyPrefix,
	}
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey         string `env:"ARK_API_KEY"`
	AccessKey      string `env:"ARK_ACCESS_KEY"`
	SecretKey      string `env:"ARK_SECRET_KEY"`
	Model          string `env:"Model"`
	BaseURL        string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region         string `env:"ARK_REGION" envDefault:"cn-beijing"`
	StreamResponse bool   `env:"ARK_STREAM" envDefault:"true"`
	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// loadTuning 解析可选的采样参数，未设置时保持 nil 以使用模型默认值。
func (c *AIConfig) loadTuning() error {
	var err error
	if c.Temperature, err = parseOptionalFloatEnv("ARK_TEMPERATURE"); err != nil {
		return err
	}
	if c.TopP, err = parseOptionalFloatEnv("ARK_TOP_P"); err != nil {
		return err
	}
	if c.MaxTokens, err = parseOptionalIntEnv("ARK_MAX_TOKENS"); err != nil {
		return err
	}
	return nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
