package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	TransportSMTP     = "smtp"
	TransportGmailAPI = "gmail_api"
)

// Config is the process configuration, read once at startup.
type Config struct {
	Port           string
	GinMode        string
	TrustedProxies []string

	Email    EmailConfig
	Telegram TelegramConfig

	RateLimitMax    int
	RateLimitWindow time.Duration
	RedisURL        string

	UploadDir      string
	UploadMaxBytes int64

	// UploadSweepSchedule is a cron spec; "off" disables the orphan sweep.
	UploadSweepSchedule string
	UploadSweepAge      time.Duration

	StaticDirs []string

	LogLevel  string
	LogFormat string
	LogFile   string

	MetricsEnabled bool
	MetricsPath    string
}

type EmailConfig struct {
	User      string
	Pass      string
	To        string
	FromName  string
	Transport string
	SMTPHost  string
	SMTPPort  int

	GmailCredentialsFile string
	GmailTokenFile       string
}

// Configured mirrors the health check: an account and some way to authenticate it.
func (e EmailConfig) Configured() bool {
	if e.User == "" {
		return false
	}
	if e.Transport == TransportGmailAPI {
		return e.GmailCredentialsFile != "" && e.GmailTokenFile != ""
	}
	return e.Pass != ""
}

// Recipient is the operator address applications are delivered to.
func (e EmailConfig) Recipient() string {
	if e.To != "" {
		return e.To
	}
	return e.User
}

type TelegramConfig struct {
	BotToken string
	ChatID   string
	APIURL   string
	Timeout  time.Duration
}

func (t TelegramConfig) Configured() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using process environment")
	}
	return FromViper(NewViper())
}

// NewViper returns a viper instance bound to the service's environment keys.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("port", "3001")
	v.SetDefault("gin_mode", "debug")
	v.SetDefault("trusted_proxies", "")
	v.SetDefault("email_transport", TransportSMTP)
	v.SetDefault("smtp_host", "smtp.gmail.com")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("email_from_name", "Student VA Application")
	v.SetDefault("gmail_credentials_file", "credential.json")
	v.SetDefault("gmail_token_file", "token.json")
	v.SetDefault("telegram_api_url", "https://api.telegram.org")
	v.SetDefault("telegram_timeout", 10*time.Second)
	v.SetDefault("rate_limit_max", 5)
	v.SetDefault("rate_limit_window", 15*time.Minute)
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("upload_max_bytes", 5*1024*1024)
	v.SetDefault("upload_sweep_schedule", "@every 10m")
	v.SetDefault("upload_sweep_age", time.Hour)
	v.SetDefault("static_dirs", "../app/dist,client,public")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("metrics_path", "/metrics")

	// Both naming variants are accepted; the GMAIL_* one wins.
	_ = v.BindEnv("email.user", "GMAIL_USER", "EMAIL_USER")
	_ = v.BindEnv("email.pass", "GMAIL_PASS", "EMAIL_PASS")
	_ = v.BindEnv("email.to", "EMAIL_TO")
	return v
}

// FromViper reads a Config from v and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:           strings.TrimSpace(v.GetString("port")),
		GinMode:        strings.ToLower(strings.TrimSpace(v.GetString("gin_mode"))),
		TrustedProxies: splitList(v.GetString("trusted_proxies")),
		Email: EmailConfig{
			User:                 strings.TrimSpace(v.GetString("email.user")),
			Pass:                 strings.TrimSpace(v.GetString("email.pass")),
			To:                   strings.TrimSpace(v.GetString("email.to")),
			FromName:             v.GetString("email_from_name"),
			Transport:            strings.ToLower(strings.TrimSpace(v.GetString("email_transport"))),
			SMTPHost:             v.GetString("smtp_host"),
			SMTPPort:             v.GetInt("smtp_port"),
			GmailCredentialsFile: v.GetString("gmail_credentials_file"),
			GmailTokenFile:       v.GetString("gmail_token_file"),
		},
		Telegram: TelegramConfig{
			BotToken: strings.TrimSpace(v.GetString("telegram_bot_token")),
			ChatID:   strings.TrimSpace(v.GetString("telegram_chat_id")),
			APIURL:   strings.TrimRight(v.GetString("telegram_api_url"), "/"),
			Timeout:  v.GetDuration("telegram_timeout"),
		},
		RateLimitMax:        v.GetInt("rate_limit_max"),
		RateLimitWindow:     v.GetDuration("rate_limit_window"),
		RedisURL:            strings.TrimSpace(v.GetString("redis_url")),
		UploadDir:           v.GetString("upload_dir"),
		UploadMaxBytes:      v.GetInt64("upload_max_bytes"),
		UploadSweepSchedule: sweepSchedule(v.GetString("upload_sweep_schedule")),
		UploadSweepAge:      v.GetDuration("upload_sweep_age"),
		StaticDirs:          splitList(v.GetString("static_dirs")),
		LogLevel:            v.GetString("log_level"),
		LogFormat:           v.GetString("log_format"),
		LogFile:             strings.TrimSpace(v.GetString("log_file")),
		MetricsEnabled:      v.GetBool("metrics_enabled"),
		MetricsPath:         v.GetString("metrics_path"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.RateLimitMax <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", c.RateLimitMax))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow))
	}
	if c.UploadMaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.UploadMaxBytes))
	}
	if c.UploadSweepSchedule != "" && c.UploadSweepAge <= 0 {
		errs = append(errs, fmt.Errorf("UPLOAD_SWEEP_AGE must be positive, got %s", c.UploadSweepAge))
	}
	if c.UploadDir == "" {
		errs = append(errs, errors.New("UPLOAD_DIR must not be empty"))
	}
	switch c.GinMode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		errs = append(errs, fmt.Errorf("GIN_MODE must be %q, %q or %q, got %q", gin.DebugMode, gin.ReleaseMode, gin.TestMode, c.GinMode))
	}
	switch c.Email.Transport {
	case TransportSMTP, TransportGmailAPI:
	default:
		errs = append(errs, fmt.Errorf("EMAIL_TRANSPORT must be %q or %q, got %q", TransportSMTP, TransportGmailAPI, c.Email.Transport))
	}
	if c.MetricsEnabled && !strings.HasPrefix(c.MetricsPath, "/") {
		errs = append(errs, fmt.Errorf("METRICS_PATH must start with /, got %q", c.MetricsPath))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func sweepSchedule(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "off") {
		return ""
	}
	return raw
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
