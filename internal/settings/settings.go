package settings

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"go.uber.org/zap"
)

type SettingType string

const (
	SettingTypeNormal SettingType = "normal"
	SettingTypeSecret SettingType = "secret"
)

type Setting struct {
	Key         string      `json:"key"`
	Value       string      `json:"value"`
	Type        SettingType `json:"type"`
	Required    bool        `json:"required"`
	Description string      `json:"description"`
	UpdatedAt   time.Time   `json:"updated_at"`
	HasValue    bool        `json:"has_value"` // シークレット値が設定されているかどうか
}

type SettingsManager struct {
	db *sql.DB
}

func NewSettingsManager(db *sql.DB) *SettingsManager {
	return &SettingsManager{db: db}
}

// 設定の定義
var DefaultSettings = map[string]Setting{
	// Twitch設定（機密情報）
	"CLIENT_ID": {
		Key: "CLIENT_ID", Value: "", Type: SettingTypeSecret, Required: true,
		Description: "Twitch API Client ID",
	},
	"CLIENT_SECRET": {
		Key: "CLIENT_SECRET", Value: "", Type: SettingTypeSecret, Required: true,
		Description: "Twitch API Client Secret",
	},
	"BROADCASTER_USER_ID": {
		Key: "BROADCASTER_USER_ID", Value: "", Type: SettingTypeSecret, Required: true,
		Description: "Twitch User ID of the broadcaster channel",
	},
	"BOT_USER_ID": {
		Key: "BOT_USER_ID", Value: "", Type: SettingTypeSecret, Required: false,
		Description: "Twitch User ID the bot sends chat messages as (defaults to broadcaster)",
	},

	// 抽選設定
	"RAFFLE_ANNOUNCE_INTERVAL": {
		Key: "RAFFLE_ANNOUNCE_INTERVAL", Value: "10", Type: SettingTypeNormal, Required: false,
		Description: "Raffle re-announcement interval in minutes",
	},
	"RAFFLE_ANNOUNCE_CUSTOM_MESSAGE": {
		Key: "RAFFLE_ANNOUNCE_CUSTOM_MESSAGE", Value: "", Type: SettingTypeNormal, Required: false,
		Description: "Custom raffle announcement template; supports (keyword), (product), (min), (max)",
	},
	"RAFFLE_TITLE_TEMPLATE": {
		Key: "RAFFLE_TITLE_TEMPLATE", Value: "", Type: SettingTypeNormal, Required: false,
		Description: "Appended to the stream title while a raffle is open; supports (keyword), (product)",
	},
}

// FeatureStatus reports whether the bot has everything it needs to run.
type FeatureStatus struct {
	TwitchConfigured bool     `json:"twitch_configured"`
	MissingSettings  []string `json:"missing_settings"`
	Warnings         []string `json:"warnings"`
	ServiceMode      bool     `json:"service_mode"` // systemdサービスとして実行されているか
}

func (sm *SettingsManager) CheckFeatureStatus() (*FeatureStatus, error) {
	status := &FeatureStatus{
		MissingSettings: []string{},
		Warnings:        []string{},
		ServiceMode:     os.Getenv("RUNNING_AS_SERVICE") == "true",
	}

	// Twitch設定チェック
	twitchSettings := []string{"CLIENT_ID", "CLIENT_SECRET", "BROADCASTER_USER_ID"}
	twitchComplete := true
	for _, key := range twitchSettings {
		if val, err := sm.GetSetting(key); err != nil || val == "" {
			status.MissingSettings = append(status.MissingSettings, key)
			twitchComplete = false
		}
	}
	status.TwitchConfigured = twitchComplete

	if interval, err := sm.GetIntSetting("RAFFLE_ANNOUNCE_INTERVAL"); err == nil && interval <= 0 {
		status.Warnings = append(status.Warnings, "RAFFLE_ANNOUNCE_INTERVAL is not positive - periodic announcements are disabled")
	}

	return status, nil
}

// CRUD操作
func (sm *SettingsManager) GetSetting(key string) (string, error) {
	var value string
	err := sm.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		// デフォルト値を返す
		if defaultSetting, exists := DefaultSettings[key]; exists {
			return defaultSetting.Value, nil
		}
		return "", fmt.Errorf("setting not found: %s", key)
	}
	return value, err
}

// GetIntSetting returns a numeric setting, falling back to its default
// when the stored value does not parse.
func (sm *SettingsManager) GetIntSetting(key string) (int, error) {
	value, err := sm.GetSetting(key)
	if err != nil {
		return 0, err
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		defaultSetting, exists := DefaultSettings[key]
		if !exists {
			return 0, fmt.Errorf("setting %s is not numeric: %w", key, err)
		}
		logger.Warn("Setting value is not numeric, using default",
			zap.String("key", key),
			zap.String("value", value),
			zap.String("default", defaultSetting.Value))
		return strconv.Atoi(defaultSetting.Value)
	}
	return parsed, nil
}

func (sm *SettingsManager) SetSetting(key, value string) error {
	// デフォルト設定が存在するかチェック
	defaultSetting, exists := DefaultSettings[key]
	if !exists {
		return fmt.Errorf("unknown setting key: %s", key)
	}

	_, err := sm.db.Exec(`
		INSERT INTO settings (key, value, setting_type, is_required, description)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`,
		key, value,
		string(defaultSetting.Type),
		defaultSetting.Required,
		defaultSetting.Description,
	)
	return err
}

func (sm *SettingsManager) GetAllSettings() (map[string]Setting, error) {
	rows, err := sm.db.Query(`
		SELECT key, value, setting_type, is_required, description, updated_at
		FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]Setting)
	for rows.Next() {
		var s Setting
		var settingType string
		var description sql.NullString
		err := rows.Scan(&s.Key, &s.Value, &settingType, &s.Required, &description, &s.UpdatedAt)
		if err != nil {
			return nil, err
		}
		s.Type = SettingType(settingType)
		s.Description = description.String // NullStringから通常のstringへ変換

		// 機密情報も実際の値を返す（フロントエンドでマスク処理）
		s.HasValue = s.Value != ""

		settings[s.Key] = s
	}

	// DBにない設定はデフォルト値で補完
	for key, defaultSetting := range DefaultSettings {
		if _, exists := settings[key]; !exists {
			settings[key] = defaultSetting
		}
	}

	return settings, nil
}

// 実際の値を取得（マスクなし）- 内部処理用
func (sm *SettingsManager) GetRealValue(key string) (string, error) {
	var value string
	err := sm.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		// デフォルト値を返す
		if defaultSetting, exists := DefaultSettings[key]; exists {
			return defaultSetting.Value, nil
		}
		return "", fmt.Errorf("setting not found: %s", key)
	}
	return value, err
}

// 環境変数からの移行
func (sm *SettingsManager) MigrateFromEnv() error {
	migrated := 0

	for key := range DefaultSettings {
		// 既にDB設定が存在する場合はスキップ
		var existingKey string
		if err := sm.db.QueryRow("SELECT key FROM settings WHERE key = ?", key).Scan(&existingKey); err == nil {
			continue
		}

		// 環境変数から取得
		if envValue := os.Getenv(key); envValue != "" {
			if err := sm.SetSetting(key, envValue); err != nil {
				logger.Error("Failed to migrate setting", zap.String("key", key), zap.Error(err))
				return fmt.Errorf("failed to migrate %s: %w", key, err)
			}
			logger.Info("Migrated setting from environment", zap.String("key", key))
			migrated++
		}
	}

	if migrated > 0 {
		logger.Info("Migration completed", zap.Int("migrated_count", migrated))
		if os.Getenv("CLIENT_SECRET") != "" {
			logger.Warn("SECURITY WARNING: Sensitive data found in environment variables.")
			logger.Warn("Please remove CLIENT_SECRET and other sensitive values from .env file after confirming the migration is successful.")
		}
	}

	return nil
}

// バリデーション
func ValidateSetting(key, value string) error {
	switch key {
	case "RAFFLE_ANNOUNCE_INTERVAL":
		if val, err := strconv.Atoi(value); err != nil || val < 0 || val > 1440 {
			return fmt.Errorf("must be integer between 0 and 1440 minutes")
		}
	case "BROADCASTER_USER_ID", "BOT_USER_ID":
		if value != "" {
			if _, err := strconv.Atoi(value); err != nil {
				return fmt.Errorf("must be a numeric Twitch user ID")
			}
		}
	}
	return nil
}

// 初期設定のセットアップ
func (sm *SettingsManager) InitializeDefaultSettings() error {
	for key, setting := range DefaultSettings {
		// 既に設定が存在する場合はスキップ
		var existingKey string
		if err := sm.db.QueryRow("SELECT key FROM settings WHERE key = ?", key).Scan(&existingKey); err == nil {
			continue
		}

		// デフォルト値で初期化
		if err := sm.SetSetting(key, setting.Value); err != nil {
			return fmt.Errorf("failed to initialize setting %s: %w", key, err)
		}
	}
	return nil
}
