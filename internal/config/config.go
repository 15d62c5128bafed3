// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Sandbox backends.
const (
	SandboxBackendHTTP   = "http"
	SandboxBackendDocker = "docker"
)

// Model providers.
const (
	ModelProviderGroq   = "groq"
	ModelProviderOpenAI = "openai"
	ModelProviderGemini = "gemini"
)

// Config holds all application configuration.
type Config struct {
	Port          string
	FrontendURL   string
	DBPath        string
	LogLevel      string
	LogFile       string
	HTTPTimeout   time.Duration
	ProxyAddr     string
	TelegramToken string
	// GRPCHealthAddr enables the gRPC health service when non-empty (e.g. ":9090").
	GRPCHealthAddr string
	Loop           LoopConfig
	Bot            BotConfig
	Model          ModelConfig
	Sandbox        SandboxConfig
}

// LoopConfig controls the goal iteration loop.
type LoopConfig struct {
	MaxIterations int
	WorkDir       string
}

// BotConfig controls message handling and onboarding.
type BotConfig struct {
	MessageLimit      int
	OnboardingTimeout time.Duration
	GoalRateLimit     int
	GoalRateWindow    time.Duration
}

// ModelConfig selects the language model backend.
type ModelConfig struct {
	Provider string
	Name     string
	BaseURL  string
}

// SandboxConfig selects where shell commands run.
type SandboxConfig struct {
	Backend          string
	APIURL           string
	Image            string
	IdleTTL          time.Duration
	ContainerRuntime string // Docker runtime: "" = default (runc), "runsc" = gVisor
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	provider := strings.ToLower(getEnv("MODEL_PROVIDER", ModelProviderGroq))

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/autopilot.db"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
		HTTPTimeout:    getEnvDuration("HTTP_TIMEOUT", 2*time.Minute),
		ProxyAddr:      getEnv("PROXY_ADDR", ""),
		TelegramToken:  getEnv("TELEGRAM_TOKEN", ""),
		GRPCHealthAddr: getEnv("GRPC_HEALTH_ADDR", ""),
		Loop: LoopConfig{
			MaxIterations: getEnvInt("MAX_ITERATIONS", 5),
			WorkDir:       getEnv("WORK_DIR", "/home"),
		},
		Bot: BotConfig{
			MessageLimit:      getEnvInt("MESSAGE_LIMIT", 2000),
			OnboardingTimeout: getEnvDuration("ONBOARDING_TIMEOUT", time.Minute),
			GoalRateLimit:     getEnvInt("GOAL_RATE_LIMIT", 5),
			GoalRateWindow:    getEnvDuration("GOAL_RATE_WINDOW", time.Minute),
		},
		Model: ModelConfig{
			Provider: provider,
			Name:     getEnv("MODEL_NAME", defaultModelName(provider)),
			BaseURL:  getEnv("MODEL_BASE_URL", defaultModelBaseURL(provider)),
		},
		Sandbox: SandboxConfig{
			Backend:          strings.ToLower(getEnv("SANDBOX_BACKEND", SandboxBackendHTTP)),
			APIURL:           getEnv("SANDBOX_API_URL", "https://api.ssh.surf"),
			Image:            getEnv("SANDBOX_IMAGE", "debian:bookworm-slim"),
			IdleTTL:          getEnvDuration("SANDBOX_IDLE_TTL", 60*time.Minute),
			ContainerRuntime: getEnv("CONTAINER_RUNTIME", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Loop.MaxIterations <= 0 {
		return fmt.Errorf("MAX_ITERATIONS must be > 0")
	}
	if c.Loop.WorkDir == "" {
		return fmt.Errorf("WORK_DIR cannot be empty")
	}
	if c.Bot.MessageLimit <= 0 {
		return fmt.Errorf("MESSAGE_LIMIT must be > 0")
	}
	if c.Bot.OnboardingTimeout <= 0 {
		return fmt.Errorf("ONBOARDING_TIMEOUT must be > 0")
	}
	if c.Bot.GoalRateLimit <= 0 || c.Bot.GoalRateWindow <= 0 {
		return fmt.Errorf("GOAL_RATE_LIMIT and GOAL_RATE_WINDOW must be > 0")
	}
	switch c.Model.Provider {
	case ModelProviderGroq, ModelProviderOpenAI:
		if c.Model.BaseURL == "" {
			return fmt.Errorf("MODEL_BASE_URL cannot be empty for provider %q", c.Model.Provider)
		}
	case ModelProviderGemini:
	default:
		return fmt.Errorf("unknown MODEL_PROVIDER %q", c.Model.Provider)
	}
	if c.Model.Name == "" {
		return fmt.Errorf("MODEL_NAME cannot be empty")
	}
	switch c.Sandbox.Backend {
	case SandboxBackendHTTP:
		if c.Sandbox.APIURL == "" {
			return fmt.Errorf("SANDBOX_API_URL cannot be empty")
		}
	case SandboxBackendDocker:
		if c.Sandbox.Image == "" {
			return fmt.Errorf("SANDBOX_IMAGE cannot be empty")
		}
	default:
		return fmt.Errorf("unknown SANDBOX_BACKEND %q", c.Sandbox.Backend)
	}
	return nil
}

// IsDocker reports whether commands run in local Docker sandboxes.
func (s SandboxConfig) IsDocker() bool {
	return s.Backend == SandboxBackendDocker
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func defaultModelName(provider string) string {
	switch provider {
	case ModelProviderGemini:
		return "gemini-2.5-flash"
	case ModelProviderOpenAI:
		return "gpt-4o-mini"
	default:
		return "llama3-8b-8192"
	}
}

func defaultModelBaseURL(provider string) string {
	switch provider {
	case ModelProviderOpenAI:
		return "https://api.openai.com/v1"
	case ModelProviderGroq:
		return "https://api.groq.com/openai/v1"
	default:
		return ""
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// IsContainer returns true if running inside a Docker container.
func IsContainer() bool {
	if getEnvBool("CONTAINER", false) {
		return true
	}
	// Check for .dockerenv file
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}
