package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/eraiza0816/logawa/logging"
)

// Config holds everything the bot reads from the environment. Cloud sinks
// self-disable when their credentials are absent; only the Discord token is
// hard-required.
type Config struct {
	DiscordBotToken string `koanf:"discord_bot_token"`
	GuildID         string `koanf:"guild_id"`

	StatusLogChannelID         string `koanf:"status_log_channel_id"`
	MessagesLogChannelID       string `koanf:"messages_log_channel_id"`
	ForbiddenWordsLogChannelID string `koanf:"forbidden_words_log_channel_id"`
	ModerationLogChannelID     string `koanf:"moderation_log_channel_id"`

	LogDirectory        string `koanf:"log_directory" validate:"required"`
	QueueMaxSize        int    `koanf:"queue_max_size" validate:"min=1"`
	MaxFileSizeMB       int    `koanf:"max_file_size_mb" validate:"min=1"`
	MaxLinesPerFile     int    `koanf:"max_lines_per_file" validate:"min=1"`
	SyncIntervalMinutes int    `koanf:"sync_interval_minutes" validate:"min=1"`
	RetentionDays       int    `koanf:"retention_days" validate:"min=1"`
	MaintenanceWeekday  int    `koanf:"maintenance_weekday" validate:"min=0,max=6"`
	MaintenanceHour     int    `koanf:"maintenance_hour" validate:"min=0,max=23"`

	FirebaseCredentials string `koanf:"firebase_credentials"`

	GoogleDriveEnabled     bool   `koanf:"google_drive_enabled"`
	GoogleDriveFolderID    string `koanf:"google_drive_folder_id"`
	GoogleDriveCredentials string `koanf:"google_drive_credentials"`

	GithubLoggingEnabled bool   `koanf:"github_logging_enabled"`
	GithubToken          string `koanf:"github_token"`
	GithubRepo           string `koanf:"github_repo"`
	GithubBranch         string `koanf:"github_branch"`
}

func defaults() *Config {
	return &Config{
		LogDirectory:        "logs",
		QueueMaxSize:        10000,
		MaxFileSizeMB:       50,
		MaxLinesPerFile:     100000,
		SyncIntervalMinutes: 30,
		RetentionDays:       7,
		MaintenanceWeekday:  int(time.Sunday),
		MaintenanceHour:     2,
		FirebaseCredentials: "firebase-credentials.json",
		GithubBranch:        "main",
	}
}

// LoadConfig reads .env (when present) and the LOGAWA_-prefixed environment.
func LoadConfig() (*Config, error) {
	// A missing .env is fine; the environment itself may carry the variables.
	_ = godotenv.Load(".env")

	k := koanf.New(".")
	if err := k.Load(env.Provider("LOGAWA_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "LOGAWA_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("環境変数の読み込みに失敗しました: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("設定の展開に失敗しました: %w", err)
	}

	if cfg.DiscordBotToken == "" {
		return nil, errors.New("以下の環境変数が設定されていません: LOGAWA_DISCORD_BOT_TOKEN")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("設定値の検証に失敗しました: %w", err)
	}

	return cfg, nil
}

// ChannelIDs maps each category to its configured Discord channel id.
// Unconfigured categories are omitted; the delivery router falls back across
// the remaining ones.
func (c *Config) ChannelIDs() map[logging.Category]string {
	ids := make(map[logging.Category]string)
	if c.StatusLogChannelID != "" {
		ids[logging.CategoryStatus] = c.StatusLogChannelID
	}
	if c.MessagesLogChannelID != "" {
		ids[logging.CategoryMessages] = c.MessagesLogChannelID
	}
	if c.ForbiddenWordsLogChannelID != "" {
		ids[logging.CategoryForbiddenWords] = c.ForbiddenWordsLogChannelID
	}
	if c.ModerationLogChannelID != "" {
		ids[logging.CategoryModeration] = c.ModerationLogChannelID
	}
	return ids
}

// MaintenanceWindow returns the weekly cleanup window.
func (c *Config) MaintenanceWindow() (time.Weekday, int) {
	return time.Weekday(c.MaintenanceWeekday), c.MaintenanceHour
}

// SyncInterval returns the synchronization cadence as a duration.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMinutes) * time.Minute
}

// MaxFileSizeBytes returns the scanner's file size cap in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}
