package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var envNames = []string{
	"SCHEDULE", "TIMEZONE", "EXCLUDED_TAGS", "RAINDROP_TOKEN", "RAINDROP_BASE_URL",
	"USER_AGENT", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
	"MAIL_PROVIDER", "SENDGRID_API_KEY", "SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME",
	"SMTP_PASSWORD", "MAIL_FROM", "MAIL_FROM_NAME", "MAIL_TO", "DISCORD_WEBHOOK_URL",
	"JOURNAL_PATH", "LOG_LEVEL", "LOG_DEVELOPMENT", "DRY_RUN", "BATCH_LOOKBACK_DAYS",
	"SUMMARY_CHAR_LIMIT", "MAX_EXTRACT_CHARS", "IMAGE_TEXT_THRESHOLD",
	"MIN_IMAGES_FOR_SUMMARY", "LLM_REQUESTS_PER_MINUTE",
}

// setupEnv blanks every variable Load reads, then sets a minimal valid
// environment. Blank values count as unset.
func setupEnv(t *testing.T) {
	t.Helper()
	for _, name := range envNames {
		t.Setenv(name, "")
	}
	t.Setenv("RAINDROP_TOKEN", "rd-token")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SENDGRID_API_KEY", "sg-key")
	t.Setenv("MAIL_FROM", "digest@example.com")
	t.Setenv("MAIL_TO", "me@example.com")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	setupEnv(t)

	cfg, err := Load("", false)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LookbackDays != 1 {
		t.Errorf("Expected default lookback 1, got %d", cfg.LookbackDays)
	}
	if cfg.Schedule != "0 8 * * *" {
		t.Errorf("Expected default schedule '0 8 * * *', got '%s'", cfg.Schedule)
	}
	if cfg.Summarizer.Model != "gpt-4.1-mini" {
		t.Errorf("Expected default model 'gpt-4.1-mini', got '%s'", cfg.Summarizer.Model)
	}
	if cfg.Summarizer.CharLimit != 500 {
		t.Errorf("Expected default char limit 500, got %d", cfg.Summarizer.CharLimit)
	}
	if cfg.Extractor.MaxChars != 8000 {
		t.Errorf("Expected default max chars 8000, got %d", cfg.Extractor.MaxChars)
	}
	if cfg.Summarizer.ImageTextThreshold != 300 || cfg.Summarizer.MinImages != 2 {
		t.Errorf("Unexpected image defaults %d/%d", cfg.Summarizer.ImageTextThreshold, cfg.Summarizer.MinImages)
	}
	if cfg.Mail.Provider != "sendgrid" {
		t.Errorf("Expected default provider 'sendgrid', got '%s'", cfg.Mail.Provider)
	}
	if cfg.Location == nil || cfg.Location.String() != "Asia/Tokyo" {
		t.Errorf("Expected location Asia/Tokyo, got %v", cfg.Location)
	}
	want := []string{"confirmed", "delivered", "failed"}
	if strings.Join(cfg.ExcludedTags, ",") != strings.Join(want, ",") {
		t.Errorf("Expected excluded tags %v, got %v", want, cfg.ExcludedTags)
	}
	if len(cfg.Mail.To) != 1 || cfg.Mail.To[0] != "me@example.com" {
		t.Errorf("Unexpected recipients %v", cfg.Mail.To)
	}
}

func TestLookbackDaysFromEnv(t *testing.T) {
	setupEnv(t)
	t.Setenv("BATCH_LOOKBACK_DAYS", "3")

	cfg, err := Load("", false)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.LookbackDays != 3 {
		t.Errorf("Expected lookback 3, got %d", cfg.LookbackDays)
	}
}

func TestLookbackDaysInvalid(t *testing.T) {
	tests := []struct {
		value   string
		wantErr string
	}{
		{"abc", "environment variable BATCH_LOOKBACK_DAYS must be an integer"},
		{"1.5", "environment variable BATCH_LOOKBACK_DAYS must be an integer"},
		{"3 days", "environment variable BATCH_LOOKBACK_DAYS must be an integer"},
		{"0", "environment variable BATCH_LOOKBACK_DAYS must be >= 1"},
		{"-1", "environment variable BATCH_LOOKBACK_DAYS must be >= 1"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			setupEnv(t)
			t.Setenv("BATCH_LOOKBACK_DAYS", tt.value)

			_, err := Load("", false)
			if err == nil {
				t.Fatalf("Expected error for %q", tt.value)
			}
			var cfgErr *Error
			if !errors.As(err, &cfgErr) {
				t.Errorf("Expected *config.Error, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestYAMLWithEnvOverride(t *testing.T) {
	setupEnv(t)
	t.Setenv("TEST_SMTP_PASSWORD", "s3cret")
	t.Setenv("OPENAI_MODEL", "gpt-4o")

	path := writeConfig(t, `
lookback_days: 7
timezone: UTC
excluded_tags: [done]
summarizer:
  model: from-file
  char_limit: 300
mail:
  provider: smtp
  smtp_host: smtp.example.com
  password: ${TEST_SMTP_PASSWORD}
  to: [a@example.com, b@example.com]
`)
	t.Setenv("MAIL_TO", "")

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LookbackDays != 7 {
		t.Errorf("Expected lookback 7 from file, got %d", cfg.LookbackDays)
	}
	if cfg.Summarizer.Model != "gpt-4o" {
		t.Errorf("Expected env to override model, got '%s'", cfg.Summarizer.Model)
	}
	if cfg.Summarizer.CharLimit != 300 {
		t.Errorf("Expected char limit 300, got %d", cfg.Summarizer.CharLimit)
	}
	if cfg.Mail.Password != "s3cret" {
		t.Errorf("Expected expanded password, got '%s'", cfg.Mail.Password)
	}
	if len(cfg.Mail.To) != 2 {
		t.Errorf("Expected 2 recipients from file, got %v", cfg.Mail.To)
	}
	if len(cfg.ExcludedTags) != 1 || cfg.ExcludedTags[0] != "done" {
		t.Errorf("Expected excluded tags [done], got %v", cfg.ExcludedTags)
	}
	if cfg.Location.String() != "UTC" {
		t.Errorf("Expected UTC location, got %v", cfg.Location)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing token", map[string]string{"RAINDROP_TOKEN": ""}, "raindrop.token is required"},
		{"missing api key", map[string]string{"OPENAI_API_KEY": ""}, "summarizer.api_key is required"},
		{"missing sendgrid key", map[string]string{"SENDGRID_API_KEY": ""}, "sendgrid_api_key is required"},
		{"missing smtp host", map[string]string{"MAIL_PROVIDER": "smtp"}, "smtp_host is required"},
		{"unknown provider", map[string]string{"MAIL_PROVIDER": "pigeon"}, "unsupported mail provider"},
		{"missing from", map[string]string{"MAIL_FROM": ""}, "mail.from is required"},
		{"missing to", map[string]string{"MAIL_TO": " , "}, "mail.to is required"},
		{"zero image threshold", map[string]string{"IMAGE_TEXT_THRESHOLD": "0"}, "environment variable IMAGE_TEXT_THRESHOLD must be >= 1"},
		{"bad schedule", map[string]string{"SCHEDULE": "every morning"}, "invalid schedule"},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}, "unknown timezone"},
		{"bad smtp port", map[string]string{"SMTP_PORT": "twenty-five"}, "SMTP_PORT must be an integer"},
		{"bad bool", map[string]string{"LOG_DEVELOPMENT": "maybe"}, "LOG_DEVELOPMENT must be a boolean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("", false)
			if err == nil {
				t.Fatalf("Expected validation error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestDryRunSkipsMailValidation(t *testing.T) {
	setupEnv(t)
	t.Setenv("SENDGRID_API_KEY", "")
	t.Setenv("MAIL_TO", "")

	cfg, err := Load("", true)
	if err != nil {
		t.Fatalf("Expected dry run to load without mail settings: %v", err)
	}
	if !cfg.DryRun {
		t.Error("Expected DryRun to be set")
	}
}

func TestFileNotFound(t *testing.T) {
	setupEnv(t)

	_, err := Load("/nonexistent/path/config.yaml", false)
	if err == nil {
		t.Fatal("Expected error for non-existent file")
	}
	if !strings.Contains(err.Error(), "failed to read") {
		t.Errorf("Expected 'failed to read' error, got: %v", err)
	}
}

func TestEnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded_value")

	if got := expandEnvVars("key: ${TEST_VAR}"); got != "key: expanded_value" {
		t.Errorf("Expected expansion, got %q", got)
	}
	if got := expandEnvVars("key: ${TEST_UNDEFINED_VAR_XYZ}"); got != "key: ${TEST_UNDEFINED_VAR_XYZ}" {
		t.Errorf("Expected undefined var to be left as is, got %q", got)
	}
}
