// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "bt.db", cfg.DatabaseURL)
	assert.Equal(t, "qbittorrent", cfg.Downloader.Type)
	assert.Equal(t, "http://localhost:8080", cfg.Downloader.Host)
	assert.Empty(t, cfg.Notification.Type)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:8081", cfg.ListenAddr)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite:///var/lib/bt/bt.db")
	t.Setenv("DOWNLOADER_TYPE", "Dummy")
	t.Setenv("DOWNLOADER_HOST", "http://qbit:9090")
	t.Setenv("DOWNLOADER_USERNAME", "admin")
	t.Setenv("DOWNLOADER_PASSWORD", "secret")
	t.Setenv("NOTIFICATION_TYPE", "Telegram")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("HTTP_LISTEN_ADDR", "0.0.0.0:9000")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite:///var/lib/bt/bt.db", cfg.DatabaseURL)
	assert.Equal(t, "dummy", cfg.Downloader.Type, "downloader type is lowercased")
	assert.Equal(t, "http://qbit:9090", cfg.Downloader.Host)
	assert.Equal(t, "admin", cfg.Downloader.Username)
	assert.Equal(t, "secret", cfg.Downloader.Password)
	assert.Equal(t, "telegram", cfg.Notification.Type)
	assert.Equal(t, "token", cfg.Notification.TelegramBotToken)
	assert.Equal(t, "42", cfg.Notification.TelegramChatID)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"database:\n  url: from-file.db\ndownloader:\n  type: dummy\n",
	), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file.db", cfg.DatabaseURL)
	assert.Equal(t, "dummy", cfg.Downloader.Type)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
