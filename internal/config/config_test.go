package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"MAX_ITERATIONS", "MODEL_PROVIDER", "MODEL_NAME", "MODEL_BASE_URL", "SANDBOX_BACKEND", "ONBOARDING_TIMEOUT", "MESSAGE_LIMIT"} {
		t.Setenv(key, "")
	}
	// t.Setenv cannot unset; empty values for ints/durations fall back to defaults.
	t.Setenv("MODEL_PROVIDER", "groq")
	t.Setenv("MODEL_NAME", "llama3-8b-8192")
	t.Setenv("MODEL_BASE_URL", "https://api.groq.com/openai/v1")
	t.Setenv("SANDBOX_BACKEND", "http")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Loop.MaxIterations != 5 {
		t.Errorf("expected MaxIterations=5, got %d", cfg.Loop.MaxIterations)
	}
	if cfg.Bot.OnboardingTimeout != time.Minute {
		t.Errorf("expected onboarding timeout 1m, got %s", cfg.Bot.OnboardingTimeout)
	}
	if cfg.Bot.MessageLimit != 2000 {
		t.Errorf("expected message limit 2000, got %d", cfg.Bot.MessageLimit)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_ITERATIONS", "3")
	t.Setenv("MODEL_PROVIDER", "GEMINI")
	t.Setenv("MODEL_NAME", "gemini-2.5-pro")
	t.Setenv("SANDBOX_BACKEND", "docker")
	t.Setenv("SANDBOX_IDLE_TTL", "15m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Loop.MaxIterations != 3 {
		t.Errorf("expected MaxIterations=3, got %d", cfg.Loop.MaxIterations)
	}
	if cfg.Model.Provider != ModelProviderGemini {
		t.Errorf("expected provider gemini, got %q", cfg.Model.Provider)
	}
	if cfg.Sandbox.Backend != SandboxBackendDocker {
		t.Errorf("expected docker backend, got %q", cfg.Sandbox.Backend)
	}
	if cfg.Sandbox.IdleTTL != 15*time.Minute {
		t.Errorf("expected idle ttl 15m, got %s", cfg.Sandbox.IdleTTL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:   "8080",
			DBPath: "db",
			Loop:   LoopConfig{MaxIterations: 5, WorkDir: "/home"},
			Bot: BotConfig{
				MessageLimit:      2000,
				OnboardingTimeout: time.Minute,
				GoalRateLimit:     1,
				GoalRateWindow:    time.Minute,
			},
			Model:   ModelConfig{Provider: ModelProviderGroq, Name: "m", BaseURL: "http://x"},
			Sandbox: SandboxConfig{Backend: SandboxBackendHTTP, APIURL: "http://y"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero iterations", func(c *Config) { c.Loop.MaxIterations = 0 }, "MAX_ITERATIONS"},
		{"unknown provider", func(c *Config) { c.Model.Provider = "llamafile" }, "MODEL_PROVIDER"},
		{"unknown backend", func(c *Config) { c.Sandbox.Backend = "ssh" }, "SANDBOX_BACKEND"},
		{"empty api url", func(c *Config) { c.Sandbox.APIURL = "" }, "SANDBOX_API_URL"},
		{"zero message limit", func(c *Config) { c.Bot.MessageLimit = 0 }, "MESSAGE_LIMIT"},
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}

func TestSandboxIsDocker(t *testing.T) {
	if (SandboxConfig{Backend: SandboxBackendHTTP}).IsDocker() {
		t.Error("http backend reported as docker")
	}
	if !(SandboxConfig{Backend: SandboxBackendDocker}).IsDocker() {
		t.Error("docker backend not reported as docker")
	}
}
