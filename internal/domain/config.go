// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config carries everything the daemon needs from the environment.
// Values come from environment variables, optionally layered over a YAML
// config file passed with --config; flags on the daemon command override
// the loop settings.
type Config struct {
	DatabaseURL string

	Downloader   DownloaderConfig
	Notification NotificationConfig

	LogLevel   string
	LogPath    string
	ListenAddr string
}

type DownloaderConfig struct {
	// Type selects the adapter: "qbittorrent" or "dummy".
	Type     string
	Host     string
	Username string
	Password string
}

type NotificationConfig struct {
	// Type selects the notifier. Empty means notifications are suppressed.
	Type             string
	TelegramBotToken string
	TelegramChatID   string
}

func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database.url", "bt.db")
	v.SetDefault("downloader.type", "qbittorrent")
	v.SetDefault("downloader.host", "http://localhost:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("http.listen_addr", "127.0.0.1:8081")

	bindings := map[string]string{
		"database.url":                    "DATABASE_URL",
		"downloader.type":                 "DOWNLOADER_TYPE",
		"downloader.host":                 "DOWNLOADER_HOST",
		"downloader.username":             "DOWNLOADER_USERNAME",
		"downloader.password":             "DOWNLOADER_PASSWORD",
		"notification.type":               "NOTIFICATION_TYPE",
		"notification.telegram.bot_token": "TELEGRAM_BOT_TOKEN",
		"notification.telegram.chat_id":   "TELEGRAM_CHAT_ID",
		"log.level":                       "LOG_LEVEL",
		"log.path":                        "LOG_PATH",
		"http.listen_addr":                "HTTP_LISTEN_ADDR",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, errors.Wrapf(err, "bind %s", env)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", configFile)
		}
	}

	cfg := &Config{
		DatabaseURL: v.GetString("database.url"),
		Downloader: DownloaderConfig{
			Type:     strings.ToLower(v.GetString("downloader.type")),
			Host:     v.GetString("downloader.host"),
			Username: v.GetString("downloader.username"),
			Password: v.GetString("downloader.password"),
		},
		Notification: NotificationConfig{
			Type:             strings.ToLower(v.GetString("notification.type")),
			TelegramBotToken: v.GetString("notification.telegram.bot_token"),
			TelegramChatID:   v.GetString("notification.telegram.chat_id"),
		},
		LogLevel:   v.GetString("log.level"),
		LogPath:    v.GetString("log.path"),
		ListenAddr: v.GetString("http.listen_addr"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL must not be empty")
	}

	return cfg, nil
}
