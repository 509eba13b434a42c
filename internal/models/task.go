// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var ErrTaskNotFound = errors.New("download task not found")

// TaskStatus is the lifecycle state of a dispatched torrent. The values are
// stored lowercase in the download_task table.
type TaskStatus string

const (
	StatusDownloading TaskStatus = "downloading"
	StatusPaused      TaskStatus = "paused"
	StatusCompleted   TaskStatus = "completed"
	StatusError       TaskStatus = "error"
)

func ParseTaskStatus(s string) (TaskStatus, error) {
	switch TaskStatus(s) {
	case StatusDownloading, StatusPaused, StatusCompleted, StatusError:
		return TaskStatus(s), nil
	default:
		return "", fmt.Errorf("unknown task status: %q", s)
	}
}

// DownloadTask is one persistent record of a dispatched torrent.
type DownloadTask struct {
	ID           int64
	RssID        *int64
	TorrentHash  string
	TorrentURL   string
	StartTime    time.Time
	Status       TaskStatus
	Renamed      bool
	DownloadPath *string
}

// BangumiInfo is the renaming snapshot frozen at dispatch time.
type BangumiInfo struct {
	ShowName    string
	EpisodeName *string
	DisplayName *string
	Season      int
	Episode     int
	Category    *string
}

// EpisodeLabel formats the canonical "Show S01E07" label used in file names
// and notifications.
func (b *BangumiInfo) EpisodeLabel() string {
	return fmt.Sprintf("%s S%02dE%02d", b.ShowName, b.Season, b.Episode)
}

type TaskStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewTaskStore(db *sql.DB, logger zerolog.Logger) *TaskStore {
	return &TaskStore{db: db, logger: logger.With().Str("module", "store").Logger()}
}

// AddTask records a dispatched torrent. If a row with the same hash already
// exists in a non-error state the call is a no-op returning 0; an existing
// error row is replaced. This anchors at-most-once dispatch: the UNIQUE
// constraint on torrent_hash converts a two-process race into a no-op as
// well.
func (s *TaskStore) AddTask(ctx context.Context, rssID *int64, task *DownloadTask, info *BangumiInfo) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM download_task WHERE torrent_hash = ?`, task.TorrentHash,
	).Scan(&status)
	switch {
	case err == nil:
		existing, perr := ParseTaskStatus(status)
		if perr != nil {
			return 0, perr
		}
		if existing == StatusCompleted || existing == StatusDownloading || existing == StatusPaused {
			return 0, nil
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM download_task WHERE torrent_hash = ?`, task.TorrentHash,
		); err != nil {
			return 0, err
		}
	case errors.Is(err, sql.ErrNoRows):
		// fresh task
	default:
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO download_task (rss_id, torrent_hash, torrent_url, start_time, status,
			show_name, episode_name, display_name, season, episode, category, renamed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rssID,
		task.TorrentHash,
		task.TorrentURL,
		task.StartTime.Format(time.RFC3339),
		string(task.Status),
		info.ShowName,
		info.EpisodeName,
		info.DisplayName,
		info.Season,
		info.Episode,
		info.Category,
		task.Renamed,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Another process won the race; their row stands.
			return 0, nil
		}
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.logger.Info().
		Str("show", info.EpisodeLabel()).
		Str("hash", task.TorrentHash).
		Msg("added download task")
	return 1, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsTaskExist reports whether a task with the given torrent URL is already
// recorded.
func (s *TaskStore) IsTaskExist(ctx context.Context, torrentURL string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM download_task WHERE torrent_url = ?`, torrentURL,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetTaskStatusByURL reports the status of the task tracking the given
// torrent URL. A missing row yields ErrTaskNotFound. Callers deciding
// whether a re-advertised feed item needs dispatching use this instead of
// IsTaskExist so that errored rows stay visible for retry.
func (s *TaskStore) GetTaskStatusByURL(ctx context.Context, torrentURL string) (TaskStatus, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM download_task WHERE torrent_url = ?`, torrentURL,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTaskNotFound
	}
	if err != nil {
		return "", err
	}
	return ParseTaskStatus(status)
}

func (s *TaskStore) GetTask(ctx context.Context, torrentHash string) (*DownloadTask, error) {
	query := `
		SELECT id, rss_id, torrent_hash, torrent_url, start_time, status, renamed, download_path
		FROM download_task
		WHERE torrent_hash = ?
	`

	var (
		task      DownloadTask
		startTime string
		status    string
	)
	err := s.db.QueryRowContext(ctx, query, torrentHash).Scan(
		&task.ID,
		&task.RssID,
		&task.TorrentHash,
		&task.TorrentURL,
		&startTime,
		&status,
		&task.Renamed,
		&task.DownloadPath,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}

	if task.StartTime, err = time.Parse(time.RFC3339, startTime); err != nil {
		return nil, err
	}
	if task.Status, err = ParseTaskStatus(status); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTaskStatus unconditionally updates status and download path for the
// task with the given hash.
func (s *TaskStore) UpdateTaskStatus(ctx context.Context, torrentHash string, status TaskStatus, downloadPath string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE download_task SET status = ?, download_path = ? WHERE torrent_hash = ?`,
		string(status), downloadPath, torrentHash,
	)
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("hash", torrentHash).
		Str("status", string(status)).
		Str("path", downloadPath).
		Msg("updated task status")
	return nil
}

// MarkRenamed flips the renamed flag. Only completed tasks reach this point.
func (s *TaskStore) MarkRenamed(ctx context.Context, torrentHash string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE download_task SET renamed = 1 WHERE torrent_hash = ?`, torrentHash,
	)
	if err != nil {
		return err
	}

	s.logger.Debug().Str("hash", torrentHash).Msg("marked task renamed")
	return nil
}

// IsRenamed reports the renamed flag. A missing row yields ErrTaskNotFound
// so that callers can tell "created outside this process" apart from a
// plain false.
func (s *TaskStore) IsRenamed(ctx context.Context, torrentHash string) (bool, error) {
	var renamed bool
	err := s.db.QueryRowContext(ctx,
		`SELECT renamed FROM download_task WHERE torrent_hash = ?`, torrentHash,
	).Scan(&renamed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrTaskNotFound
	}
	if err != nil {
		return false, err
	}
	return renamed, nil
}

// GetBangumiInfo returns the renaming snapshot stored at dispatch, or nil
// when the task is unknown to this pipeline.
func (s *TaskStore) GetBangumiInfo(ctx context.Context, torrentHash string) (*BangumiInfo, error) {
	query := `
		SELECT show_name, episode_name, display_name, season, episode, category
		FROM download_task
		WHERE torrent_hash = ?
	`

	var info BangumiInfo
	err := s.db.QueryRowContext(ctx, query, torrentHash).Scan(
		&info.ShowName,
		&info.EpisodeName,
		&info.DisplayName,
		&info.Season,
		&info.Episode,
		&info.Category,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ListUnrenamedCompleted returns completed tasks whose files were never
// renamed, for the startup sweep.
func (s *TaskStore) ListUnrenamedCompleted(ctx context.Context) ([]*DownloadTask, error) {
	query := `
		SELECT id, rss_id, torrent_hash, torrent_url, start_time, status, renamed, download_path
		FROM download_task
		WHERE status = ? AND renamed = 0
	`

	rows, err := s.db.QueryContext(ctx, query, string(StatusCompleted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*DownloadTask
	for rows.Next() {
		var (
			task      DownloadTask
			startTime string
			status    string
		)
		err := rows.Scan(
			&task.ID,
			&task.RssID,
			&task.TorrentHash,
			&task.TorrentURL,
			&startTime,
			&status,
			&task.Renamed,
			&task.DownloadPath,
		)
		if err != nil {
			return nil, err
		}
		if task.StartTime, err = time.Parse(time.RFC3339, startTime); err != nil {
			return nil, err
		}
		if task.Status, err = ParseTaskStatus(status); err != nil {
			return nil, err
		}
		tasks = append(tasks, &task)
	}

	return tasks, rows.Err()
}
