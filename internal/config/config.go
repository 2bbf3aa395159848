package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Schedule     string   `yaml:"schedule"`
	Timezone     string   `yaml:"timezone"`
	LookbackDays int      `yaml:"lookback_days"`
	ExcludedTags []string `yaml:"excluded_tags"`
	DryRun       bool     `yaml:"dry_run"`

	Raindrop   RaindropConfig   `yaml:"raindrop"`
	Extractor  ExtractorConfig  `yaml:"extractor"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Mail       MailConfig       `yaml:"mail"`
	Discord    DiscordConfig    `yaml:"discord"`
	Journal    JournalConfig    `yaml:"journal"`
	Log        LogConfig        `yaml:"log"`

	// Location is Timezone resolved by Load.
	Location *time.Location `yaml:"-"`
}

type RaindropConfig struct {
	Token    string `yaml:"token"`
	BaseURL  string `yaml:"base_url"`
	PerPage  int    `yaml:"per_page"`
	MaxPages int    `yaml:"max_pages"`
}

type ExtractorConfig struct {
	MaxChars  int    `yaml:"max_chars"`
	UserAgent string `yaml:"user_agent"`
}

type SummarizerConfig struct {
	APIKey             string `yaml:"api_key"`
	Model              string `yaml:"model"`
	BaseURL            string `yaml:"base_url"`
	CharLimit          int    `yaml:"char_limit"`
	ImageTextThreshold int    `yaml:"image_text_threshold"`
	MinImages          int    `yaml:"min_images"`
	RequestsPerMinute  int    `yaml:"requests_per_minute"`
}

type MailConfig struct {
	Provider       string   `yaml:"provider"`
	SendGridAPIKey string   `yaml:"sendgrid_api_key"`
	SMTPHost       string   `yaml:"smtp_host"`
	SMTPPort       int      `yaml:"smtp_port"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	From           string   `yaml:"from"`
	FromName       string   `yaml:"from_name"`
	To             []string `yaml:"to"`
}

type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

type JournalConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Error is returned for any configuration problem. The run cannot start.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return "config: " + e.Msg }

func errorf(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// lookupEnv returns a non-blank environment variable.
func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func stringEnv(name string, dst *string) {
	if v, ok := lookupEnv(name); ok {
		*dst = v
	}
}

func intEnv(name string, min int, dst *int) error {
	v, ok := lookupEnv(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return errorf("environment variable %s must be an integer", name)
	}
	if n < min {
		return errorf("environment variable %s must be >= %d", name, min)
	}
	*dst = n
	return nil
}

func boolEnv(name string, dst *bool) error {
	v, ok := lookupEnv(name)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return errorf("environment variable %s must be a boolean", name)
	}
	*dst = b
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// applyEnv overrides file values with environment variables.
func applyEnv(cfg *Config) error {
	stringEnv("SCHEDULE", &cfg.Schedule)
	stringEnv("TIMEZONE", &cfg.Timezone)
	if v, ok := lookupEnv("EXCLUDED_TAGS"); ok {
		cfg.ExcludedTags = splitList(v)
	}

	stringEnv("RAINDROP_TOKEN", &cfg.Raindrop.Token)
	stringEnv("RAINDROP_BASE_URL", &cfg.Raindrop.BaseURL)

	stringEnv("USER_AGENT", &cfg.Extractor.UserAgent)

	stringEnv("OPENAI_API_KEY", &cfg.Summarizer.APIKey)
	stringEnv("OPENAI_MODEL", &cfg.Summarizer.Model)
	stringEnv("OPENAI_BASE_URL", &cfg.Summarizer.BaseURL)

	stringEnv("MAIL_PROVIDER", &cfg.Mail.Provider)
	stringEnv("SENDGRID_API_KEY", &cfg.Mail.SendGridAPIKey)
	stringEnv("SMTP_HOST", &cfg.Mail.SMTPHost)
	stringEnv("SMTP_USERNAME", &cfg.Mail.Username)
	stringEnv("SMTP_PASSWORD", &cfg.Mail.Password)
	stringEnv("MAIL_FROM", &cfg.Mail.From)
	stringEnv("MAIL_FROM_NAME", &cfg.Mail.FromName)
	if v, ok := lookupEnv("MAIL_TO"); ok {
		cfg.Mail.To = splitList(v)
	}

	stringEnv("DISCORD_WEBHOOK_URL", &cfg.Discord.WebhookURL)
	stringEnv("JOURNAL_PATH", &cfg.Journal.Path)
	stringEnv("LOG_LEVEL", &cfg.Log.Level)

	ints := []struct {
		name string
		min  int
		dst  *int
	}{
		{"BATCH_LOOKBACK_DAYS", 1, &cfg.LookbackDays},
		{"SUMMARY_CHAR_LIMIT", 1, &cfg.Summarizer.CharLimit},
		{"MAX_EXTRACT_CHARS", 1, &cfg.Extractor.MaxChars},
		{"IMAGE_TEXT_THRESHOLD", 1, &cfg.Summarizer.ImageTextThreshold},
		{"MIN_IMAGES_FOR_SUMMARY", 1, &cfg.Summarizer.MinImages},
		{"LLM_REQUESTS_PER_MINUTE", 1, &cfg.Summarizer.RequestsPerMinute},
		{"SMTP_PORT", 1, &cfg.Mail.SMTPPort},
	}
	for _, i := range ints {
		if err := intEnv(i.name, i.min, i.dst); err != nil {
			return err
		}
	}

	if err := boolEnv("LOG_DEVELOPMENT", &cfg.Log.Development); err != nil {
		return err
	}
	return boolEnv("DRY_RUN", &cfg.DryRun)
}

func setDefaults(cfg *Config) {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 8 * * *"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Tokyo"
	}
	if cfg.LookbackDays == 0 {
		cfg.LookbackDays = 1
	}
	if cfg.ExcludedTags == nil {
		cfg.ExcludedTags = []string{"confirmed", "delivered", "failed"}
	}
	if cfg.Raindrop.BaseURL == "" {
		cfg.Raindrop.BaseURL = "https://api.raindrop.io"
	}
	if cfg.Raindrop.PerPage == 0 {
		cfg.Raindrop.PerPage = 50
	}
	if cfg.Extractor.MaxChars == 0 {
		cfg.Extractor.MaxChars = 8000
	}
	if cfg.Summarizer.Model == "" {
		cfg.Summarizer.Model = "gpt-4.1-mini"
	}
	if cfg.Summarizer.CharLimit == 0 {
		cfg.Summarizer.CharLimit = 500
	}
	if cfg.Summarizer.ImageTextThreshold == 0 {
		cfg.Summarizer.ImageTextThreshold = 300
	}
	if cfg.Summarizer.MinImages == 0 {
		cfg.Summarizer.MinImages = 2
	}
	if cfg.Summarizer.RequestsPerMinute == 0 {
		cfg.Summarizer.RequestsPerMinute = 20
	}
	if cfg.Mail.Provider == "" {
		cfg.Mail.Provider = "sendgrid"
	}
	if cfg.Mail.SMTPPort == 0 {
		cfg.Mail.SMTPPort = 587
	}
	if cfg.Mail.FromName == "" {
		cfg.Mail.FromName = "Raindrop Digest"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func validate(cfg *Config) error {
	if cfg.LookbackDays < 1 {
		return errorf("lookback_days must be >= 1")
	}
	if cfg.Raindrop.Token == "" {
		return errorf("raindrop.token is required (set RAINDROP_TOKEN env var)")
	}
	if cfg.Summarizer.APIKey == "" {
		return errorf("summarizer.api_key is required (set OPENAI_API_KEY env var)")
	}

	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return errorf("invalid schedule %q: %v", cfg.Schedule, err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return errorf("unknown timezone %q: %v", cfg.Timezone, err)
	}
	cfg.Location = loc

	// A dry run prints the digest, so mail settings are not needed.
	if cfg.DryRun {
		return nil
	}
	switch cfg.Mail.Provider {
	case "sendgrid":
		if cfg.Mail.SendGridAPIKey == "" {
			return errorf("mail.sendgrid_api_key is required for sendgrid (set SENDGRID_API_KEY env var)")
		}
	case "smtp":
		if cfg.Mail.SMTPHost == "" {
			return errorf("mail.smtp_host is required for smtp (set SMTP_HOST env var)")
		}
	default:
		return errorf("unsupported mail provider %q (supported: sendgrid, smtp)", cfg.Mail.Provider)
	}
	if cfg.Mail.From == "" {
		return errorf("mail.from is required (set MAIL_FROM env var)")
	}
	if len(cfg.Mail.To) == 0 {
		return errorf("mail.to is required (set MAIL_TO env var)")
	}
	return nil
}

// loadDotEnv reads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errorf("failed to read %s: %v", path, err)
	}
	return nil
}

// Load builds the configuration from an optional YAML file, the .env file and
// the environment, in increasing order of precedence, then applies defaults
// and validates the result. dryRun forces a dry run regardless of the file.
func Load(path string, dryRun bool) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errorf("failed to read %s: %v", path, err)
		}
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, errorf("failed to parse %s: %v", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if dryRun {
		cfg.DryRun = true
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
