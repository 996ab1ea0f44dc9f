package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string          `mapstructure:"port"`
	Debug       bool            `mapstructure:"debug"`
	DatabaseURL string          `mapstructure:"database_url"`
	PprofSecret string          `mapstructure:"pprof_secret"`
	Clerk       ClerkConfig     `mapstructure:"clerk"`
	Inference   InferenceConfig `mapstructure:"inference"`
	Chat        ChatConfig      `mapstructure:"chat"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Fuel        FuelConfig      `mapstructure:"fuel"`
	Paddle      PaddleConfig    `mapstructure:"paddle"`
	Stripe      StripeConfig    `mapstructure:"stripe"`
	FCM         FCMConfig       `mapstructure:"fcm"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	Sweep       SweepConfig     `mapstructure:"sweep"`
}

type ClerkConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type InferenceConfig struct {
	Provider     string        `mapstructure:"provider"` // groq | gemini
	GroqAPIKey   string        `mapstructure:"groq_api_key"`
	GroqBaseURL  string        `mapstructure:"groq_base_url"`
	Model        string        `mapstructure:"model"`
	GeminiAPIKey string        `mapstructure:"gemini_api_key"`
	GeminiModel  string        `mapstructure:"gemini_model"`
	Temperature  float64       `mapstructure:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type ChatConfig struct {
	HistoryWindow int           `mapstructure:"history_window"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type FuelConfig struct {
	SignupGrant    int `mapstructure:"signup_grant"`
	FullAmount     int `mapstructure:"full_amount"`
	RefillAmount   int `mapstructure:"refill_amount"`
	CostPerMessage int `mapstructure:"cost_per_message"`
}

type PaddleConfig struct {
	APIKey        string `mapstructure:"api_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	Sandbox       bool   `mapstructure:"sandbox"`
	FullPriceID   string `mapstructure:"full_price_id"`
	RefillPriceID string `mapstructure:"refill_price_id"`
	CheckoutURL   string `mapstructure:"checkout_url"`
}

type StripeConfig struct {
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type FCMConfig struct {
	CredentialsFile    string `mapstructure:"credentials_file"`
	ServiceAccountJSON string `mapstructure:"service_account_json"`
}

type MetricsConfig struct {
	User string `mapstructure:"user"`
	Pass string `mapstructure:"pass"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type SweepConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Load reads configuration from the environment. Nested keys map to
// upper-case variables joined with underscores, e.g. inference.groq_api_key
// is read from INFERENCE_GROQ_API_KEY.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", "3333")
	v.SetDefault("debug", false)
	v.SetDefault("database_url", "")
	v.SetDefault("pprof_secret", "")
	v.SetDefault("clerk.secret_key", "")
	v.SetDefault("clerk.webhook_secret", "")
	v.SetDefault("inference.provider", "groq")
	v.SetDefault("inference.groq_api_key", "")
	v.SetDefault("inference.groq_base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("inference.model", "llama3-70b-8192")
	v.SetDefault("inference.gemini_api_key", "")
	v.SetDefault("inference.gemini_model", "gemini-2.5-flash")
	v.SetDefault("inference.temperature", 0.85)
	v.SetDefault("inference.max_tokens", 300)
	v.SetDefault("inference.timeout", "60s")
	v.SetDefault("chat.history_window", 20)
	v.SetDefault("chat.lock_ttl", "150s")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("fuel.signup_grant", 25)
	v.SetDefault("fuel.full_amount", 300)
	v.SetDefault("fuel.refill_amount", 100)
	v.SetDefault("fuel.cost_per_message", 1)
	v.SetDefault("paddle.api_key", "")
	v.SetDefault("paddle.webhook_secret", "")
	v.SetDefault("paddle.sandbox", true)
	v.SetDefault("paddle.full_price_id", "")
	v.SetDefault("paddle.refill_price_id", "")
	v.SetDefault("paddle.checkout_url", "nyra://payment-success")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("fcm.credentials_file", "./serviceAccountKey.json")
	v.SetDefault("fcm.service_account_json", "")
	v.SetDefault("metrics.user", "")
	v.SetDefault("metrics.pass", "")
	v.SetDefault("rate_limit.rps", 5)
	v.SetDefault("rate_limit.burst", 30)
	v.SetDefault("sweep.interval", "1h")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Clerk.SecretKey == "" {
		errs = append(errs, errors.New("CLERK_SECRET_KEY is required"))
	}
	switch c.Inference.Provider {
	case "groq":
		if c.Inference.GroqAPIKey == "" {
			errs = append(errs, errors.New("INFERENCE_GROQ_API_KEY is required for the groq provider"))
		}
	case "gemini":
		if c.Inference.GeminiAPIKey == "" {
			errs = append(errs, errors.New("INFERENCE_GEMINI_API_KEY is required for the gemini provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown INFERENCE_PROVIDER %q", c.Inference.Provider))
	}
	if c.Fuel.CostPerMessage < 0 || c.Fuel.SignupGrant < 0 {
		errs = append(errs, errors.New("fuel amounts must not be negative"))
	}
	if c.Chat.HistoryWindow < 0 {
		errs = append(errs, errors.New("CHAT_HISTORY_WINDOW must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) PaymentsEnabled() bool {
	return c.Paddle.APIKey != ""
}
