package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("SYNC_WINDOW", "")

	cfg := Load()

	assert.Equal(t, 30*24*time.Hour, cfg.SyncWindow)
	assert.Equal(t, time.Minute, cfg.ReminderScanInterval)
	assert.True(t, cfg.SyncDedupEnabled)
	assert.Empty(t, cfg.GroqAPIKeys)
}

func TestLoadKeyPools(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "a, b,,c ")
	t.Setenv("NEXT_PUBLIC_YOUTUBE_API_KEY", "yt1")

	cfg := Load()

	assert.Equal(t, []string{"a", "b", "c"}, cfg.GroqAPIKeys)
	assert.Equal(t, []string{"yt1"}, cfg.YouTubeAPIKeys)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("REMINDER_SCAN_INTERVAL", "soon")
	t.Setenv("SMTP_PORT", "abc")
	t.Setenv("SYNC_DEDUP_ENABLED", "maybe")

	cfg := Load()

	assert.Equal(t, time.Minute, cfg.ReminderScanInterval)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.True(t, cfg.SyncDedupEnabled)
}

func TestMissingProviders(t *testing.T) {
	cfg := &Config{
		GoogleClientID:     "id",
		GoogleClientSecret: "secret",
		GoogleRedirectURI:  "http://localhost/cb",
		SMTPHost:           "smtp.example.com",
	}

	missing := cfg.MissingProviders()

	assert.NotContains(t, missing, "google_calendar")
	assert.ElementsMatch(t, []string{"SMTP_USER", "SMTP_PASS"}, missing["email"])
	assert.Equal(t, []string{"GROQ_API_KEY"}, missing["groq"])
}
