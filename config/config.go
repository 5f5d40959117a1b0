package config

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FileName is looked up in the project root when no explicit path is given.
const FileName = "llmops.json"

type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type LogConfig struct {
	Level      string `json:"level"`  // debug|info|warn|error
	Format     string `json:"format"` // console|json
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

type MockConfig struct {
	Addr          string `json:"addr"`
	ChunkSize     int    `json:"chunk_size"`     // bytes per flushed write on event streams
	TokenDelayMs  int    `json:"token_delay_ms"` // pause between streamed tokens
	JWTSecret     string `json:"jwt_secret,omitempty"`
	SessionCookie string `json:"session_cookie,omitempty"` // name of the fallback auth cookie
}

type Config struct {
	APIPrefix     string     `json:"api_prefix"`
	TimeoutMs     int        `json:"timeout_ms"`
	AccessToken   string     `json:"access_token,omitempty"`
	SessionCookie *Cookie    `json:"session_cookie,omitempty"`
	Log           LogConfig  `json:"log"`
	Mock          MockConfig `json:"mock"`
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Default returns the values used when llmops.json is missing or invalid.
func Default() *Config {
	return &Config{
		APIPrefix: "http://127.0.0.1:5000",
		TimeoutMs: 100000, // 100s
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 10,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Mock: MockConfig{
			Addr:          ":5000",
			ChunkSize:     7,
			TokenDelayMs:  20,
			SessionCookie: "llmops_session",
		},
	}
}

// Path resolves the config file: an explicit path wins, otherwise
// llmops.json in the nearest directory holding go.mod, else the working
// directory.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(projectRoot(), FileName)
}

func projectRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}

	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return wd
		}
		dir = parent
	}
}

// Load reads the config file at path and falls back to defaults on any
// error. Invalid fields are replaced one by one and logged.
func Load(path string, logger *zap.Logger) *Config {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Info("[config] no config file found, using defaults", zap.String("path", path), zap.Error(err))
	} else if err := json.Unmarshal(data, cfg); err != nil {
		logger.Warn("[config] invalid config file, using defaults", zap.String("path", path), zap.Error(err))
		cfg = Default()
	}

	applyEnv(cfg)
	validate(cfg, logger)
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LLMOPS_API_PREFIX"); v != "" {
		cfg.APIPrefix = v
	}
	if v := os.Getenv("LLMOPS_ACCESS_TOKEN"); v != "" {
		cfg.AccessToken = v
	}
	if v := os.Getenv("LLMOPS_MOCK_ADDR"); v != "" {
		cfg.Mock.Addr = v
	}
}

func validate(cfg *Config, logger *zap.Logger) {
	def := Default()

	if u, err := url.Parse(cfg.APIPrefix); err != nil || u.Scheme == "" || u.Host == "" {
		logger.Warn("[config] api_prefix is invalid, falling back",
			zap.String("api_prefix", cfg.APIPrefix), zap.String("default", def.APIPrefix))
		cfg.APIPrefix = def.APIPrefix
	}
	cfg.APIPrefix = strings.TrimRight(cfg.APIPrefix, "/")

	if cfg.TimeoutMs <= 0 {
		logger.Warn("[config] timeout_ms is invalid, falling back",
			zap.Int("timeout_ms", cfg.TimeoutMs), zap.Int("default", def.TimeoutMs))
		cfg.TimeoutMs = def.TimeoutMs
	}

	if cfg.SessionCookie != nil && (cfg.SessionCookie.Name == "" || cfg.SessionCookie.Value == "") {
		logger.Warn("[config] session_cookie needs both name and value, ignoring it")
		cfg.SessionCookie = nil
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
		cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	default:
		logger.Warn("[config] log.level is invalid, falling back",
			zap.String("level", cfg.Log.Level), zap.String("default", def.Log.Level))
		cfg.Log.Level = def.Log.Level
	}

	if cfg.Log.Format != "console" && cfg.Log.Format != "json" {
		cfg.Log.Format = def.Log.Format
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = def.Log.MaxSizeMB
	}

	if cfg.Mock.Addr == "" {
		cfg.Mock.Addr = def.Mock.Addr
	}
	if cfg.Mock.ChunkSize <= 0 {
		logger.Warn("[config] mock.chunk_size is invalid, falling back",
			zap.Int("chunk_size", cfg.Mock.ChunkSize), zap.Int("default", def.Mock.ChunkSize))
		cfg.Mock.ChunkSize = def.Mock.ChunkSize
	}
	if cfg.Mock.TokenDelayMs < 0 {
		cfg.Mock.TokenDelayMs = def.Mock.TokenDelayMs
	}
	if cfg.Mock.SessionCookie == "" {
		cfg.Mock.SessionCookie = def.Mock.SessionCookie
	}
}
