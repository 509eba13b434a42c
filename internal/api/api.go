// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api exposes the daemon's embedded HTTP interface for managing
// RSS subscriptions.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/yelili422/bt/internal/models"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RespondJSON sends a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data any, logger zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger.Error().Err(err).Msg("failed to encode JSON response")
		}
	}
}

// Server hosts the subscription management API.
type Server struct {
	rssStore *models.RssStore
	addr     string
	logger   zerolog.Logger
}

func NewServer(rssStore *models.RssStore, addr string, logger zerolog.Logger) *Server {
	return &Server{
		rssStore: rssStore,
		addr:     addr,
		logger:   logger.With().Str("module", "api").Logger(),
	}
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("http api listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ping", s.ping)
	r.Route("/api/rss", func(r chi.Router) {
		r.Get("/", s.listRss)
		r.Post("/", s.addRss)
		r.Put("/{id}", s.updateRss)
		r.Delete("/{id}", s.deleteRss)
	})

	return r
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message}, s.logger)
}

func (s *Server) ping(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

func (s *Server) listRss(w http.ResponseWriter, r *http.Request) {
	list, err := s.rssStore.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list rss subscriptions")
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []*models.Rss{}
	}
	RespondJSON(w, http.StatusOK, list, s.logger)
}

// RssRequest is the JSON body for creating or updating a subscription.
type RssRequest struct {
	URL         string             `json:"url"`
	Title       *string            `json:"title,omitempty"`
	RssType     string             `json:"rss_type,omitempty"`
	Enabled     *bool              `json:"enabled,omitempty"`
	Season      *int               `json:"season,omitempty"`
	Filters     models.FilterChain `json:"filters,omitempty"`
	Description *string            `json:"description,omitempty"`
	Category    *string            `json:"category,omitempty"`
}

func (req *RssRequest) toModel() (*models.Rss, error) {
	if req.URL == "" {
		return nil, errors.New("url is required")
	}

	rssType := models.RssTypeMikan
	if req.RssType != "" {
		parsed, err := models.ParseRssType(req.RssType)
		if err != nil {
			return nil, err
		}
		rssType = parsed
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	return &models.Rss{
		URL:         req.URL,
		Title:       req.Title,
		RssType:     rssType,
		Enabled:     enabled,
		Season:      req.Season,
		Filters:     req.Filters,
		Description: req.Description,
		Category:    req.Category,
	}, nil
}

func (s *Server) addRss(w http.ResponseWriter, r *http.Request) {
	var req RssRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rss, err := req.toModel()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.rssStore.Insert(r.Context(), rss)
	if err != nil {
		s.logger.Error().Err(err).Str("url", rss.URL).Msg("failed to add rss subscription")
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rss.ID = id
	RespondJSON(w, http.StatusOK, rss, s.logger)
}

func (s *Server) updateRss(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req RssRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rss, err := req.toModel()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.rssStore.Update(r.Context(), id, rss); err != nil {
		if errors.Is(err, models.ErrRssNotFound) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error().Err(err).Int64("id", id).Msg("failed to update rss subscription")
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rss.ID = id
	RespondJSON(w, http.StatusOK, rss, s.logger)
}

func (s *Server) deleteRss(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := s.rssStore.Delete(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrRssNotFound) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error().Err(err).Int64("id", id).Msg("failed to delete rss subscription")
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"}, s.logger)
}
