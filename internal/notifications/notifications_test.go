// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package notifications

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yelili422/bt/internal/domain"
)

func TestNewUnconfiguredIsNil(t *testing.T) {
	notifier, err := New(domain.NotificationConfig{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, notifier)
}

func TestNewTelegramRequiresCredentials(t *testing.T) {
	_, err := New(domain.NotificationConfig{Type: "telegram"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = New(domain.NotificationConfig{
		Type:             "telegram",
		TelegramBotToken: "token",
	}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(domain.NotificationConfig{Type: "carrier-pigeon"}, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown notification type")
}
