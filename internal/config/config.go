package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where Load looks when no --config flag is given.
const DefaultConfigPath = ".pagegen/config.yaml"

// Config holds all pagegen configuration.
type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Retry      RetryConfig      `yaml:"retry"`
	Audit      AuditConfig      `yaml:"audit"`
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Tasks      TasksConfig      `yaml:"tasks"`
	Components ComponentsConfig `yaml:"components"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Refine-failure policies.
const (
	RefineFailureBest    = "best"
	RefineFailureCurrent = "current"
)

// Health score sources.
const (
	ScoreSourceComputed = "computed"
	ScoreSourceReported = "reported"
)

// AuditConfig configures the verifier/refiner loop.
type AuditConfig struct {
	MaxIterations int `yaml:"max_iterations"`
	// RefineFailurePolicy chooses what a failed refine returns: "best" or "current".
	RefineFailurePolicy string `yaml:"refine_failure_policy"`
	// ScoreSource chooses between the score computed from findings and the
	// model's self-reported value.
	ScoreSource string `yaml:"score_source"`
	RunTimeout  string `yaml:"run_timeout"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	ReadTimeout    string   `yaml:"read_timeout"`
	WriteTimeout   string   `yaml:"write_timeout"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
}

// Store backends.
const (
	StoreBackendFile   = "file"
	StoreBackendSQLite = "sqlite"
)

// StoreConfig configures metadata/workspace persistence.
type StoreConfig struct {
	Backend    string `yaml:"backend"` // file, sqlite
	Dir        string `yaml:"dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// TasksConfig configures the background task registry.
type TasksConfig struct {
	TTL        string `yaml:"ttl"`
	MaxEntries int    `yaml:"max_entries"`
}

// ComponentsConfig configures component discovery and analysis.
type ComponentsConfig struct {
	// PathSegments restricts discovery to components under one of these directories.
	PathSegments []string `yaml:"path_segments"`
	Concurrency  int      `yaml:"concurrency"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    ProviderAnthropic,
			Timeout:     "300s",
			MaxTokens:   8192,
			Temperature: 0.1,
			MaxConns:    50,
			Region:      "us-east-1",
		},

		Retry: RetryConfig{
			MaxAttempts: 6,
			BaseDelay:   "500ms",
			MaxJitter:   "1s",
		},

		Audit: AuditConfig{
			MaxIterations:       3,
			RefineFailurePolicy: RefineFailureBest,
			ScoreSource:         ScoreSourceComputed,
			RunTimeout:          "15m",
		},

		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			AllowedOrigins: []string{"*"},
			ReadTimeout:    "60s",
			WriteTimeout:   "20m",
			MaxUploadBytes: 64 << 20,
		},

		Store: StoreConfig{
			Backend:    StoreBackendFile,
			Dir:        ".pagegen/data",
			SQLitePath: ".pagegen/pagegen.db",
		},

		Tasks: TasksConfig{
			TTL:        "1h",
			MaxEntries: 1000,
		},

		Components: ComponentsConfig{
			PathSegments: []string{"common", "shared"},
			Concurrency:  4,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file.
// Defaults apply first, then the file (if present), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	keys := map[string]string{
		ProviderAnthropic: os.Getenv("ANTHROPIC_API_KEY"),
		ProviderOpenAI:    os.Getenv("OPENAI_API_KEY"),
		ProviderGemini:    os.Getenv("GEMINI_API_KEY"),
		ProviderGroq:      os.Getenv("GROQ_API_KEY"),
	}

	// API keys in priority order; later keys win.
	for _, p := range ValidProviders {
		if key := keys[p]; key != "" {
			c.LLM.APIKey = key
			c.LLM.Provider = p
		}
	}

	// Explicit provider selection beats key detection.
	if p := firstEnv("PAGEGEN_LLM_PROVIDER", "LLM_PROVIDER"); p != "" {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != c.LLM.Provider {
			c.LLM.Provider = p
			c.LLM.APIKey = keys[p]
		}
	}

	if region := firstEnv("AWS_REGION", "AWS_DEFAULT_REGION"); region != "" {
		c.LLM.Region = region
	}
	if profile := os.Getenv("AWS_PROFILE"); profile != "" {
		c.LLM.Profile = profile
	}
	if model := os.Getenv("GROQ_MODEL"); model != "" && c.LLM.Provider == ProviderGroq {
		c.LLM.Model = model
	}
	if v := os.Getenv("LLM_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LLM.MaxTokens = n
		}
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.LLM.Temperature = f
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
	if v := os.Getenv("PAGEGEN_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetRunTimeout returns the per-run audit deadline.
func (c *Config) GetRunTimeout() time.Duration {
	return parseDuration(c.Audit.RunTimeout, 15*time.Minute)
}

// GetTaskTTL returns how long finished tasks are kept.
func (c *Config) GetTaskTTL() time.Duration {
	return parseDuration(c.Tasks.TTL, time.Hour)
}

// GetReadTimeout returns the HTTP server read timeout.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 60*time.Second)
}

// GetWriteTimeout returns the HTTP server write timeout.
func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 20*time.Minute)
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
