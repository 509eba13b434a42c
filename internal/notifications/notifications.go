// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package notifications pushes download events to external messaging
// services.
package notifications

import (
	"fmt"

	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/yelili422/bt/internal/domain"
	"github.com/yelili422/bt/internal/models"
)

// Notifier delivers human-readable messages about pipeline events.
type Notifier interface {
	DownloadFinished(info *models.BangumiInfo)
}

// New builds the notifier selected by configuration, or nil when
// notifications are unconfigured. Callers treat a nil notifier as
// suppression.
func New(cfg domain.NotificationConfig, logger zerolog.Logger) (Notifier, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "telegram":
		if cfg.TelegramBotToken == "" || cfg.TelegramChatID == "" {
			return nil, errors.New("telegram notifier requires TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID")
		}
		url := fmt.Sprintf("telegram://%s@telegram?chats=%s", cfg.TelegramBotToken, cfg.TelegramChatID)
		return newShoutrrrNotifier(url, logger)
	default:
		return nil, errors.Errorf("unknown notification type: %q", cfg.Type)
	}
}

type shoutrrrNotifier struct {
	sender *router.ServiceRouter
	logger zerolog.Logger
}

func newShoutrrrNotifier(url string, logger zerolog.Logger) (*shoutrrrNotifier, error) {
	sender, err := router.New(nil, url)
	if err != nil {
		return nil, errors.Wrap(err, "create notification sender")
	}

	return &shoutrrrNotifier{
		sender: sender,
		logger: logger.With().Str("module", "notification").Logger(),
	}, nil
}

// DownloadFinished announces a completed episode. Delivery failures are
// logged, never propagated: a dead notification channel must not stall
// the pipeline.
func (n *shoutrrrNotifier) DownloadFinished(info *models.BangumiInfo) {
	message := fmt.Sprintf("%s download finished.", info.EpisodeLabel())

	for _, err := range n.sender.Send(message, &types.Params{}) {
		if err != nil {
			n.logger.Error().Err(err).Str("episode", info.EpisodeLabel()).Msg("failed to send notification")
		}
	}
}
