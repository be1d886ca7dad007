package config

import (
	"fmt"
	"time"
)

const (
	ProviderWhisper     = "whisper"
	ProviderCloudSpeech = "cloudspeech"

	ArchiveNone     = "none"
	ArchivePostgres = "postgres"
	ArchiveSQLite   = "sqlite"
)

type Config struct {
	Env      string
	HTTPAddr string

	SampleRate         int
	WindowDuration     time.Duration
	SessionIdleTimeout time.Duration
	ReaperInterval     time.Duration
	DisconnectGrace    time.Duration
	ProviderTimeout    time.Duration

	DefaultLanguage       string
	TranscriptionProvider string

	WhisperURL    string
	WhisperAPIKey string
	WhisperModel  string

	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string

	ArchiveDriver string
	DatabaseURL   string
	SQLitePath    string

	NATSURL           string
	NATSSubjectPrefix string

	TranscriptWebhookURL string
	DiscordToken         string
	DiscordChannelID     string

	AllowedOrigins []string
	MetricsEnabled bool
}

func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	for _, d := range c.durationChecks() {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}
	if c.ProviderTimeout < 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must not be negative, got %s", c.ProviderTimeout)
	}
	if c.WindowSamples() <= 0 {
		return fmt.Errorf("WINDOW_DURATION %s is shorter than one sample at %d Hz", c.WindowDuration, c.SampleRate)
	}

	switch c.TranscriptionProvider {
	case ProviderWhisper:
		if c.WhisperURL == "" {
			return fmt.Errorf("WHISPER_URL is required when TRANSCRIPTION_PROVIDER=%s", ProviderWhisper)
		}
	case ProviderCloudSpeech:
		if c.GoogleCloudProjectID == "" || c.GoogleCloudCredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID and GOOGLE_CLOUD_CREDENTIALS_JSON are required when TRANSCRIPTION_PROVIDER=%s", ProviderCloudSpeech)
		}
		if c.DefaultLanguage == "" {
			return fmt.Errorf("DEFAULT_LANGUAGE is required when TRANSCRIPTION_PROVIDER=%s", ProviderCloudSpeech)
		}
	default:
		return fmt.Errorf("TRANSCRIPTION_PROVIDER is invalid: %q", c.TranscriptionProvider)
	}

	switch c.ArchiveDriver {
	case ArchiveNone:
	case ArchivePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when ARCHIVE_DRIVER=%s", ArchivePostgres)
		}
	case ArchiveSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when ARCHIVE_DRIVER=%s", ArchiveSQLite)
		}
	default:
		return fmt.Errorf("ARCHIVE_DRIVER is invalid: %q", c.ArchiveDriver)
	}

	if (c.DiscordToken == "") != (c.DiscordChannelID == "") {
		return fmt.Errorf("DISCORD_TOKEN and DISCORD_CHANNEL_ID must be set together")
	}
	return nil
}

type durationField struct {
	name  string
	value time.Duration
}

func (c *Config) durationChecks() []durationField {
	return []durationField{
		{name: "WINDOW_DURATION", value: c.WindowDuration},
		{name: "SESSION_IDLE_TIMEOUT", value: c.SessionIdleTimeout},
		{name: "REAPER_INTERVAL", value: c.ReaperInterval},
		{name: "DISCONNECT_GRACE", value: c.DisconnectGrace},
	}
}

// WindowSamples is the number of samples dispatched per non-final run.
func (c *Config) WindowSamples() int {
	return int(float64(c.SampleRate) * c.WindowDuration.Seconds())
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) DiscordEnabled() bool {
	return c.DiscordToken != "" && c.DiscordChannelID != ""
}
