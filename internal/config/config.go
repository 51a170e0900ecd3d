package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultModel             = "gpt-4o-mini"
	DefaultContextSize       = 4096
	DefaultHistoryLimit      = 100
	DefaultNewsletterHour    = 9
	DefaultLookbackDays      = 1
	DefaultChunkSize         = 4000
	DefaultCacheCapacity     = 2048
	DefaultIntervalSeconds   = 3600
	DefaultSummaryMaxTokens  = 200
	DefaultMailboxMaxResults = 500
	DefaultPGHost            = "127.0.0.1"
	DefaultPGPort            = 5432
	DefaultPGUser            = "postgres"
	DefaultPGDatabase        = "supportbot"
	DefaultPGSSLMode         = "disable"
	DefaultKeepaliveSpec     = "*/30 * * * *"
)

// EnvProd enables shared-secret checks on the webhooks.
const EnvProd = "prod"

type Config struct {
	Env          string             `toml:"env"`
	Log          LogConfig          `toml:"log"`
	Server       ServerConfig       `toml:"server"`
	Telegram     TelegramConfig     `toml:"telegram"`
	OpenAI       OpenAIConfig       `toml:"openai"`
	Conversation ConversationConfig `toml:"conversation"`
	Postgres     PostgresConfig     `toml:"postgres"`
	Newsletter   NewsletterConfig   `toml:"newsletter"`
	Mailbox      MailboxConfig      `toml:"mailbox"`
	Gmail        GmailConfig        `toml:"gmail"`
	IMAP         IMAPConfig         `toml:"imap"`
	SMTP         SMTPConfig         `toml:"smtp"`
	Spam         SpamConfig         `toml:"spam"`
	YouTube      YouTubeConfig      `toml:"youtube"`
	Dispatch     DispatchConfig     `toml:"dispatch"`
	Keepalive    KeepaliveConfig    `toml:"keepalive"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type TelegramConfig struct {
	Token         string `toml:"token"`
	WebhookSecret string `toml:"webhook_secret"`
}

type OpenAIConfig struct {
	APIKey          string `toml:"api_key"`
	BaseURL         string `toml:"base_url" validate:"omitempty,url"`
	Model           string `toml:"model"`
	SummarizerModel string `toml:"summarizer_model"`
	TranscriptModel string `toml:"transcript_model"`
	SpamModel       string `toml:"spam_model"`
	TimeoutSeconds  int    `toml:"timeout_seconds" validate:"gte=0"`
}

func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ConversationConfig struct {
	ContextSize  int `toml:"context_size" validate:"gte=0"`
	HistoryLimit int `toml:"history_limit" validate:"gte=1"`
}

type PostgresConfig struct {
	DSN      string `toml:"dsn"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// Enabled reports whether a Postgres history store is configured.
func (c PostgresConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != "" || strings.TrimSpace(c.Password) != ""
}

// URL renders the connection string, preferring an explicit DSN.
func (c PostgresConfig) URL() string {
	if dsn := strings.TrimSpace(c.DSN); dsn != "" {
		return dsn
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.Database,
	}
	q := u.Query()
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

type NewsletterConfig struct {
	Enabled         bool     `toml:"enabled"`
	Hour            int      `toml:"hour" validate:"gte=0,lte=23"`
	ChannelID       string   `toml:"channel_id"`
	LookbackDays    int      `toml:"lookback_days" validate:"gte=1"`
	ChunkSize       int      `toml:"chunk_size" validate:"gte=1,lte=4096"`
	CacheCapacity   int      `toml:"cache_capacity" validate:"gte=1"`
	IntervalSeconds int      `toml:"interval_seconds" validate:"gte=1"`
	Timezone        string   `toml:"timezone"`
	MaxTokens       int      `toml:"max_tokens" validate:"gte=1"`
	EmailRecipients []string `toml:"email_recipients" validate:"dive,email"`
}

func (c NewsletterConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Location resolves Timezone, defaulting to the process local zone.
func (c NewsletterConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

type MailboxConfig struct {
	Provider   string `toml:"provider" validate:"omitempty,oneof=gmail imap"`
	MaxResults int    `toml:"max_results" validate:"gte=1"`
}

type GmailConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TokenBase64  string `toml:"token_base64"`
	TokenFile    string `toml:"token_file"`
}

type IMAPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Security string `toml:"security" validate:"omitempty,oneof=tls starttls none"`
}

type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Security string `toml:"security" validate:"omitempty,oneof=tls starttls none"`
}

type SpamConfig struct {
	Enabled            bool   `toml:"enabled"`
	Token              string `toml:"token"`
	WebhookSecret      string `toml:"webhook_secret"`
	ExamplesURL        string `toml:"examples_url" validate:"omitempty,url"`
	ExamplesTTLSeconds int    `toml:"examples_ttl_seconds" validate:"gte=0"`
	RateLimit          int    `toml:"rate_limit" validate:"gte=1"`
	RatePeriodSeconds  int    `toml:"rate_period_seconds" validate:"gte=1"`
}

type YouTubeConfig struct {
	Languages []string `toml:"languages"`
}

type DispatchConfig struct {
	QueueSize   int `toml:"queue_size" validate:"gte=1"`
	MaxInFlight int `toml:"max_in_flight" validate:"gte=1"`
}

type KeepaliveConfig struct {
	Spec string `toml:"spec"`
}

// IsProd reports whether webhook secret checks are enforced.
func (c Config) IsProd() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), EnvProd)
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Env: "dev",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		OpenAI: OpenAIConfig{
			Model:           DefaultModel,
			SummarizerModel: DefaultModel,
			TranscriptModel: DefaultModel,
			SpamModel:       DefaultModel,
			TimeoutSeconds:  60,
		},
		Conversation: ConversationConfig{
			ContextSize:  DefaultContextSize,
			HistoryLimit: DefaultHistoryLimit,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Newsletter: NewsletterConfig{
			Hour:            DefaultNewsletterHour,
			LookbackDays:    DefaultLookbackDays,
			ChunkSize:       DefaultChunkSize,
			CacheCapacity:   DefaultCacheCapacity,
			IntervalSeconds: DefaultIntervalSeconds,
			MaxTokens:       DefaultSummaryMaxTokens,
		},
		Mailbox: MailboxConfig{
			Provider:   "gmail",
			MaxResults: DefaultMailboxMaxResults,
		},
		Gmail: GmailConfig{
			TokenFile: "token.json",
		},
		IMAP: IMAPConfig{
			Port:     993,
			Security: "tls",
		},
		SMTP: SMTPConfig{
			Port:     587,
			Security: "starttls",
		},
		Spam: SpamConfig{
			ExamplesTTLSeconds: 3600,
			RateLimit:          10,
			RatePeriodSeconds:  60,
		},
		YouTube: YouTubeConfig{
			Languages: []string{"en", "ru"},
		},
		Dispatch: DispatchConfig{
			QueueSize:   16,
			MaxInFlight: 32,
		},
		Keepalive: KeepaliveConfig{
			Spec: DefaultKeepaliveSpec,
		},
	}
}

// Load reads the TOML file at path (missing file keeps defaults), applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}

	applyEnv(&cfg, os.LookupEnv)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func Validate(cfg Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cfg.Newsletter.Location(); err != nil {
		return fmt.Errorf("invalid config: newsletter timezone: %w", err)
	}
	if _, err := cron.ParseStandard(cfg.Keepalive.Spec); err != nil {
		return fmt.Errorf("invalid config: keepalive spec: %w", err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}

	setString("ENV", &cfg.Env)
	setString("HTTP_ADDR", &cfg.Server.Addr)
	setString("TELEGRAM_TOKEN", &cfg.Telegram.Token)
	setString("X_TELEGRAM_BOT_HEADER", &cfg.Telegram.WebhookSecret)
	setString("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	setString("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	setString("MODEL", &cfg.OpenAI.Model)
	setString("MODEL_SUMMARIZER", &cfg.OpenAI.SummarizerModel)
	setString("MODEL_TRANSCRIPT", &cfg.OpenAI.TranscriptModel)
	setString("MODEL_SPAM", &cfg.OpenAI.SpamModel)
	setInt("CONTEXT_SIZE", &cfg.Conversation.ContextSize)
	setString("DATABASE_URL", &cfg.Postgres.DSN)
	setBool("NEWS_JOB_ENABLED", &cfg.Newsletter.Enabled)
	setInt("NEWS_JOB_HOUR", &cfg.Newsletter.Hour)
	setString("NEWS_CHANNEL_ID", &cfg.Newsletter.ChannelID)
	setInt("NEWS_DEFAULT_DAYS", &cfg.Newsletter.LookbackDays)
	setString("GMAIL_CLIENT_ID", &cfg.Gmail.ClientID)
	setString("GMAIL_CLIENT_SECRET", &cfg.Gmail.ClientSecret)
	setString("GMAIL_TOKEN_BASE64", &cfg.Gmail.TokenBase64)
	setString("TELEGRAM_SPAM_BOT_TOKEN", &cfg.Spam.Token)
	setString("X_TELEGRAM_SPAM_BOT_HEADER", &cfg.Spam.WebhookSecret)
	setBool("SPAM_BOT_ENABLED", &cfg.Spam.Enabled)
	setString("SPAM_LIST", &cfg.Spam.ExamplesURL)
}
