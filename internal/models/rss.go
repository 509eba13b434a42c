// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
)

var ErrRssNotFound = errors.New("rss subscription not found")

// RssType tags the parser variant used for a subscription.
type RssType string

const RssTypeMikan RssType = "mikan"

func ParseRssType(s string) (RssType, error) {
	switch RssType(s) {
	case RssTypeMikan:
		return RssTypeMikan, nil
	default:
		return "", errors.New("unsupported rss type: " + s)
	}
}

// FilterType discriminates filter variants inside a chain.
type FilterType string

const FilterFilenameRegex FilterType = "filename_regex"

// Filter is one exclusion predicate of a subscription's filter chain.
type Filter struct {
	Type    FilterType `json:"type"`
	Pattern string     `json:"pattern"`
}

// FilterChain is an ordered sequence of exclusion predicates, stored as a
// JSON string in the rss table. A nil chain admits everything.
type FilterChain []Filter

// Rss is one persistent RSS subscription.
type Rss struct {
	ID          int64       `json:"id"`
	URL         string      `json:"url"`
	Title       *string     `json:"title,omitempty"`
	RssType     RssType     `json:"rss_type"`
	Enabled     bool        `json:"enabled"`
	Season      *int        `json:"season,omitempty"`
	Filters     FilterChain `json:"filters,omitempty"`
	Description *string     `json:"description,omitempty"`
	Category    *string     `json:"category,omitempty"`
}

type RssStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRssStore(db *sql.DB, logger zerolog.Logger) *RssStore {
	return &RssStore{db: db, logger: logger.With().Str("module", "store").Logger()}
}

func encodeFilters(chain FilterChain) (sql.NullString, error) {
	if len(chain) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(chain)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeFilters(raw sql.NullString) (FilterChain, error) {
	if !raw.Valid || raw.String == "" || raw.String == "null" {
		return nil, nil
	}
	var chain FilterChain
	if err := json.Unmarshal([]byte(raw.String), &chain); err != nil {
		return nil, err
	}
	return chain, nil
}

// List returns all subscriptions, enabled rows first, then by title and
// season ascending.
func (s *RssStore) List(ctx context.Context) ([]*Rss, error) {
	query := `
		SELECT id, url, title, rss_type, enabled, season, filters, description, category
		FROM rss
		ORDER BY enabled DESC, COALESCE(title, '') ASC, COALESCE(season, 1) ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*Rss
	for rows.Next() {
		rss, err := scanRss(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, rss)
	}

	return list, rows.Err()
}

func (s *RssStore) Get(ctx context.Context, id int64) (*Rss, error) {
	query := `
		SELECT id, url, title, rss_type, enabled, season, filters, description, category
		FROM rss
		WHERE id = ?
	`

	rss, err := scanRss(s.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRssNotFound
	}
	if err != nil {
		return nil, err
	}
	return rss, nil
}

// ExistsByURL reports the id of the subscription with the given source URL,
// if any.
func (s *RssStore) ExistsByURL(ctx context.Context, url string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM rss WHERE url = ?`, url).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Insert adds a subscription. Inserting a URL that already exists is a
// no-op returning the existing id.
func (s *RssStore) Insert(ctx context.Context, rss *Rss) (int64, error) {
	if id, ok, err := s.ExistsByURL(ctx, rss.URL); err != nil {
		return 0, err
	} else if ok {
		s.logger.Info().Str("url", rss.URL).Int64("id", id).Msg("rss url already exists")
		return id, nil
	}

	filters, err := encodeFilters(rss.Filters)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO rss (url, title, rss_type, enabled, season, filters, description, category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	var id int64
	err = s.db.QueryRowContext(ctx, query,
		rss.URL, rss.Title, string(rss.RssType), rss.Enabled, rss.Season,
		filters, rss.Description, rss.Category,
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	s.logger.Info().Str("url", rss.URL).Int64("id", id).Msg("added rss subscription")
	return id, nil
}

func (s *RssStore) Update(ctx context.Context, id int64, rss *Rss) error {
	filters, err := encodeFilters(rss.Filters)
	if err != nil {
		return err
	}

	query := `
		UPDATE rss
		SET url = ?, title = ?, rss_type = ?, enabled = ?, season = ?,
		    filters = ?, description = ?, category = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		rss.URL, rss.Title, string(rss.RssType), rss.Enabled, rss.Season,
		filters, rss.Description, rss.Category, id,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRssNotFound
	}
	return nil
}

// Delete removes a subscription. Download tasks created from it are kept.
func (s *RssStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rss WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRssNotFound
	}
	return nil
}

func scanRss(scan func(dest ...any) error) (*Rss, error) {
	var (
		rss     Rss
		rssType string
		filters sql.NullString
	)
	err := scan(
		&rss.ID,
		&rss.URL,
		&rss.Title,
		&rssType,
		&rss.Enabled,
		&rss.Season,
		&filters,
		&rss.Description,
		&rss.Category,
	)
	if err != nil {
		return nil, err
	}

	rss.RssType = RssType(rssType)
	if rss.Filters, err = decodeFilters(filters); err != nil {
		return nil, err
	}
	return &rss, nil
}
