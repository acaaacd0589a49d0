package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalYAML = `
app:
  name: slotwise
  port: 8080
database:
  filename: data/slotwise.db
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.App.Environment != "development" || !cfg.IsDevelopment() {
		t.Fatalf("environment = %q, want development", cfg.App.Environment)
	}
	if cfg.Location().String() != "UTC" {
		t.Fatalf("location = %s, want UTC", cfg.Location())
	}
	if cfg.Scheduler.DispatchNotifications != "* * * * *" {
		t.Fatalf("dispatch cron = %q", cfg.Scheduler.DispatchNotifications)
	}
	if cfg.Scheduler.AutoCancelBookings != "30 * * * *" {
		t.Fatalf("auto cancel cron = %q", cfg.Scheduler.AutoCancelBookings)
	}
	if cfg.Email.Enabled() || cfg.SMS.Enabled() {
		t.Fatal("email and sms should be disabled by default")
	}
}

func TestParseTimezone(t *testing.T) {
	doc := strings.Replace(minimalYAML, "port: 8080", "port: 8080\n  timezone: America/New_York", 1)
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := cfg.Location().String(); got != "America/New_York" {
		t.Fatalf("location = %s, want America/New_York", got)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing name",
			replace: [2]string{"name: slotwise", "name: \"\""},
			wantErr: "app name is required",
		},
		{
			name:    "bad timezone",
			replace: [2]string{"port: 8080", "port: 8080\n  timezone: Mars/Olympus"},
			wantErr: "invalid timezone",
		},
		{
			name:    "unsupported driver",
			replace: [2]string{"database:", "database:\n  driver: postgres"},
			wantErr: "unsupported database driver",
		},
		{
			name:    "bad cron",
			replace: [2]string{"database:", "scheduler:\n  purge_notifications: every day\ndatabase:"},
			wantErr: "purge_notifications",
		},
		{
			name:    "twilio without token",
			replace: [2]string{"database:", "sms:\n  account_sid: AC123\n  from_number: \"+15005550006\"\ndatabase:"},
			wantErr: "TWILIO_AUTH_TOKEN",
		},
		{
			name:    "ses without secret",
			replace: [2]string{"database:", "email:\n  sender: no-reply@example.com\n  region: us-east-1\n  access_key_id: AKIA\ndatabase:"},
			wantErr: "AWS_SECRET_ACCESS_KEY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TWILIO_AUTH_TOKEN", "")
			t.Setenv("AWS_SECRET_ACCESS_KEY", "")
			doc := strings.Replace(minimalYAML, tt.replace[0], tt.replace[1], 1)
			_, err := Parse([]byte(doc))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadReadsSecretsFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	doc := strings.Replace(minimalYAML, "database:", "sms:\n  account_sid: AC123\n  from_number: \"+15005550006\"\ndatabase:", 1)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TWILIO_AUTH_TOKEN=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	// godotenv never overrides variables that are already set.
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	os.Unsetenv("TWILIO_AUTH_TOKEN")

	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SMS.AuthToken != "from-dotenv" {
		t.Fatalf("auth token = %q, want from-dotenv", cfg.SMS.AuthToken)
	}
	if !cfg.SMS.Enabled() || cfg.SMS.DefaultRegion != "US" {
		t.Fatalf("sms = %+v, want enabled with US region", cfg.SMS)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
