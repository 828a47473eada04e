package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server       ServerConfig   `yaml:"server"`
	Database     DatabaseConfig `yaml:"database"`
	JWT          JWTConfig      `yaml:"jwt"`
	SMTP         SMTPConfig     `yaml:"smtp"`
	OAuth        OAuthConfig    `yaml:"oauth"`
	LLM          LLMConfig      `yaml:"llm"`
	Renderer     RendererConfig `yaml:"renderer"`
	Redis        RedisConfig    `yaml:"redis"`
	Log          LogConfig      `yaml:"log"`
	FrontendURL  string         `yaml:"frontend_url"`
	SupportEmail string         `yaml:"support_email"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	SecureCookies  bool     `yaml:"secure_cookies"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// JWTConfig mirrors the claims validated by the auth package.
type JWTConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	Audience string        `yaml:"audience"`
	Expiry   time.Duration `yaml:"expiry"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type OAuthProvider struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

type OAuthConfig struct {
	Google OAuthProvider `yaml:"google"`
	GitHub OAuthProvider `yaml:"github"`
}

// LLMConfig holds provider keys and call budgets.
type LLMConfig struct {
	OpenAIKey          string        `yaml:"openai_api_key"`
	OpenAIBaseURL      string        `yaml:"openai_base_url"`
	GeminiKey          string        `yaml:"gemini_api_key"`
	GeminiModel        string        `yaml:"gemini_model"`
	CallTimeout        time.Duration `yaml:"call_timeout"`
	PipelineTimeout    time.Duration `yaml:"pipeline_timeout"`
	DiagramTemperature float64       `yaml:"diagram_temperature"`
	DiagramIterations  int           `yaml:"diagram_iterations"`
}

// RendererConfig configures the browser session used for sequence diagrams.
type RendererConfig struct {
	ControlURL       string        `yaml:"control_url"`
	SiteURL          string        `yaml:"site_url"`
	Headless         bool          `yaml:"headless"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	ValidateTimeout  time.Duration `yaml:"validate_timeout"`
	RenderTimeout    time.Duration `yaml:"render_timeout"`
	WorkflowTimeout  time.Duration `yaml:"workflow_timeout"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8008",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{Path: "projectron.db"},
		JWT: JWTConfig{
			Secret:   "dev-secret-change-me",
			Issuer:   "projectron-api",
			Audience: "projectron-client",
			Expiry:   30 * time.Minute,
		},
		SMTP: SMTPConfig{Port: 587},
		LLM: LLMConfig{
			OpenAIBaseURL:      "https://api.openai.com/v1",
			GeminiModel:        "gemini-2.0-flash",
			CallTimeout:        100 * time.Second,
			PipelineTimeout:    15 * time.Minute,
			DiagramTemperature: 0.2,
			DiagramIterations:  3,
		},
		Renderer: RendererConfig{
			SiteURL:          "https://sequencediagram.org",
			Headless:         true,
			MaxRetries:       2,
			RetryDelay:       time.Second,
			ValidateTimeout:  30 * time.Second,
			RenderTimeout:    30 * time.Second,
			WorkflowTimeout:  3 * time.Minute,
			BreakerThreshold: 3,
			BreakerCooldown:  5 * time.Minute,
			CacheTTL:         time.Hour,
		},
		Redis:        RedisConfig{Channel: "projectron:events"},
		Log:          LogConfig{Level: "info"},
		FrontendURL:  "http://localhost:3000",
		SupportEmail: "support@projectron.local",
	}
}

// Load reads the YAML file at path (if it exists) over the defaults and
// then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
	}
	overrideFromEnv(&cfg)
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func overrideFromEnv(cfg *Config) {
	cfg.Server.Addr = getEnv("PROJECTRON_ADDR", cfg.Server.Addr)
	cfg.Database.Path = getEnv("PROJECTRON_DB_PATH", cfg.Database.Path)

	cfg.JWT.Secret = getEnv("JWT_SECRET", cfg.JWT.Secret)
	cfg.JWT.Issuer = getEnv("JWT_ISSUER", cfg.JWT.Issuer)
	cfg.JWT.Audience = getEnv("JWT_AUDIENCE", cfg.JWT.Audience)
	if v := os.Getenv("JWT_EXPIRY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.JWT.Expiry = d
		}
	}

	cfg.SMTP.Host = getEnv("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = getEnvInt("SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.Username = getEnv("SMTP_USERNAME", cfg.SMTP.Username)
	cfg.SMTP.Password = getEnv("SMTP_PASSWORD", cfg.SMTP.Password)
	cfg.SMTP.From = getEnv("SMTP_FROM", cfg.SMTP.From)

	cfg.OAuth.Google.ClientID = getEnv("GOOGLE_CLIENT_ID", cfg.OAuth.Google.ClientID)
	cfg.OAuth.Google.ClientSecret = getEnv("GOOGLE_CLIENT_SECRET", cfg.OAuth.Google.ClientSecret)
	cfg.OAuth.Google.RedirectURL = getEnv("GOOGLE_REDIRECT_URL", cfg.OAuth.Google.RedirectURL)
	cfg.OAuth.GitHub.ClientID = getEnv("GITHUB_CLIENT_ID", cfg.OAuth.GitHub.ClientID)
	cfg.OAuth.GitHub.ClientSecret = getEnv("GITHUB_CLIENT_SECRET", cfg.OAuth.GitHub.ClientSecret)
	cfg.OAuth.GitHub.RedirectURL = getEnv("GITHUB_REDIRECT_URL", cfg.OAuth.GitHub.RedirectURL)

	cfg.LLM.OpenAIKey = getEnv("OPENAI_API_KEY", cfg.LLM.OpenAIKey)
	cfg.LLM.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.LLM.OpenAIBaseURL)
	cfg.LLM.GeminiKey = getEnv("GEMINI_API_KEY", cfg.LLM.GeminiKey)
	cfg.LLM.DiagramIterations = getEnvInt("MAX_DIAGRAM_ITERATIONS", cfg.LLM.DiagramIterations)

	cfg.Renderer.ControlURL = getEnv("RENDERER_CONTROL_URL", cfg.Renderer.ControlURL)
	cfg.Renderer.SiteURL = getEnv("SEQUENCE_DIAGRAM_SITE_URL", cfg.Renderer.SiteURL)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.FrontendURL = getEnv("FRONTEND_URL", cfg.FrontendURL)
	cfg.SupportEmail = getEnv("SUPPORT_EMAIL", cfg.SupportEmail)
}
