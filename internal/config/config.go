package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// global configuration structure
type Config struct {
	Bot         BotConfig         `mapstructure:"bot"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Scanner     ScannerConfig     `mapstructure:"scanner"`
	Enforcement EnforcementConfig `mapstructure:"enforcement"`
	Operators   OperatorsConfig   `mapstructure:"operators"`
	Reconcile   ReconcileConfig   `mapstructure:"reconcile"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// Telegram bot configuration
type BotConfig struct {
	Token    string        `mapstructure:"token"`
	Mode     string        `mapstructure:"mode"` // "polling" or "webhook"
	Language string        `mapstructure:"language"`
	Webhook  WebhookConfig `mapstructure:"webhook"`
	// MaxConcurrentScans bounds attachment scans running at the same time.
	MaxConcurrentScans int `mapstructure:"max_concurrent_scans"`
}

// webhook server configuration
type WebhookConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	ListenPort string `mapstructure:"listen_port"`
	DebugPath  string `mapstructure:"debug_path"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
}

// logging configuration
type LoggerConfig struct {
	Directory  string            `mapstructure:"directory"`
	Rotation   LogRotationConfig `mapstructure:"rotation"`
	TimeFormat string            `mapstructure:"time_format"`
	Level      string            `mapstructure:"level"`
}

// log rotation settings
type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // "mysql" or "sqlite"
	Path     string `mapstructure:"path"`   // sqlite file
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Charset  string `mapstructure:"charset"`
}

// RedisConfig enables the shared quarantine flag store.
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Prefix  string `mapstructure:"prefix"`
}

type ScannerConfig struct {
	// Ranges are inclusive hex codepoint ranges such as "0600-06FF".
	Ranges       []string `mapstructure:"ranges"`
	EnablePDF    bool     `mapstructure:"enable_pdf"`
	EnableOCR    bool     `mapstructure:"enable_ocr"`
	OCRLanguages []string `mapstructure:"ocr_languages"`
	MaxFileSize  int64    `mapstructure:"max_file_size"`
	TempDir      string   `mapstructure:"temp_dir"`
}

// LadderStep is one row of the escalation table.
type LadderStep struct {
	Threshold int           `mapstructure:"threshold"`
	Action    string        `mapstructure:"action"`
	Duration  time.Duration `mapstructure:"duration"`
}

type EnforcementConfig struct {
	Ladder                   []LadderStep  `mapstructure:"ladder"`
	QuarantineDuration       time.Duration `mapstructure:"quarantine_duration"`
	UnauthorizedMuteDuration time.Duration `mapstructure:"unauthorized_mute_duration"`
	RegulationsText          string        `mapstructure:"regulations_text"`
}

type OperatorsConfig struct {
	// AdminIDs are operators that exist before any /op_add.
	AdminIDs        []int64 `mapstructure:"admin_ids"`
	ReportChatIDs   []int64 `mapstructure:"report_chat_ids"`
	SlackWebhookURL string  `mapstructure:"slack_webhook_url"`
	ForwardEvidence bool    `mapstructure:"forward_evidence"`
}

type ReconcileConfig struct {
	// Schedule is a cron expression; empty disables the periodic sweep.
	Schedule string `mapstructure:"schedule"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Listen  string `mapstructure:"listen"`
}

// Telegram treats restrictions outside this range as permanent.
const (
	MinRestriction = 30 * time.Second
	MaxRestriction = 366 * 24 * time.Hour
)

var cfg *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	// secrets may live in a .env next to the working directory
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ignoring .env: %v", err)
	}

	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("SCRIPTGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	log.Printf("Using config file: %s", v.ConfigFileUsed())

	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := loaded.Validate(); err != nil {
		return nil, err
	}

	cfg = loaded
	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		log.Fatal("Configuration not initialized, call Load() first")
	}
	return cfg
}

// Validate rejects settings the rest of the process cannot start with.
func (c *Config) Validate() error {
	switch c.Bot.Mode {
	case "polling", "webhook":
	default:
		return fmt.Errorf("bot.mode must be polling or webhook, got %q", c.Bot.Mode)
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("database.driver must be mysql or sqlite, got %q", c.Database.Driver)
	}
	if c.Redis.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required when redis is enabled")
	}
	if len(c.Enforcement.Ladder) == 0 {
		return fmt.Errorf("enforcement.ladder must have at least one step")
	}
	if c.Enforcement.QuarantineDuration <= 0 {
		return fmt.Errorf("enforcement.quarantine_duration must be positive")
	}
	if d := c.Enforcement.UnauthorizedMuteDuration; d < MinRestriction || d > MaxRestriction {
		return fmt.Errorf("enforcement.unauthorized_mute_duration must be between %s and %s, got %s",
			MinRestriction, MaxRestriction, d)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.mode", "polling")
	v.SetDefault("bot.language", "en")
	v.SetDefault("bot.max_concurrent_scans", 16)
	v.SetDefault("bot.webhook.endpoint", "")
	v.SetDefault("bot.webhook.listen_port", "8443")
	v.SetDefault("bot.webhook.debug_path", "/debug")
	v.SetDefault("bot.webhook.cert_file", "")
	v.SetDefault("bot.webhook.key_file", "")

	v.SetDefault("logger.directory", "logs")
	v.SetDefault("logger.rotation.max_size", 10)
	v.SetDefault("logger.rotation.max_backups", 30)
	v.SetDefault("logger.rotation.max_age", 90)
	v.SetDefault("logger.rotation.compress", true)
	v.SetDefault("logger.time_format", "2006/01/02 15:04:05")
	v.SetDefault("logger.level", "INFO")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/scriptguard.db")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.password", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.prefix", "scriptguard/quarantine/")

	v.SetDefault("scanner.ranges", []string{"0600-06FF"})
	v.SetDefault("scanner.enable_pdf", true)
	v.SetDefault("scanner.enable_ocr", false)
	v.SetDefault("scanner.ocr_languages", []string{"eng", "ara"})
	v.SetDefault("scanner.max_file_size", 20<<20)
	v.SetDefault("scanner.temp_dir", "")

	v.SetDefault("enforcement.ladder", []map[string]any{
		{"threshold": 1, "action": "notice"},
		{"threshold": 2, "action": "notice"},
		{"threshold": 3, "action": "ban"},
	})
	v.SetDefault("enforcement.quarantine_duration", "15s")
	v.SetDefault("enforcement.unauthorized_mute_duration", "1h")
	v.SetDefault("enforcement.regulations_text", "")

	v.SetDefault("operators.admin_ids", []int64{})
	v.SetDefault("operators.report_chat_ids", []int64{})
	v.SetDefault("operators.slack_webhook_url", "")
	v.SetDefault("operators.forward_evidence", true)

	v.SetDefault("reconcile.schedule", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.listen", "127.0.0.1:9102")
}
