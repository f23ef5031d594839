// Package web serves the library over a JSON HTTP API: archive import and
// export, deck and card listing, and review recording.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/conorfennell/blonki/internal/apkg"
	"github.com/conorfennell/blonki/internal/blob"
	"github.com/conorfennell/blonki/internal/container"
	"github.com/conorfennell/blonki/internal/domain"
	"github.com/conorfennell/blonki/internal/ingest"
	"github.com/conorfennell/blonki/internal/service"
	"github.com/conorfennell/blonki/internal/snapshot"
	"github.com/conorfennell/blonki/internal/storage"
)

// maxUpload caps the size of an uploaded archive.
const maxUpload = 512 << 20

// archiveTypes are the media types accepted for a raw archive body.
var archiveTypes = []string{"application/zip", "application/octet-stream", blob.ContentType}

// Library is the read side of the library store.
type Library interface {
	Decks(ctx context.Context, ids ...int64) ([]domain.Deck, error)
	CardsByDeck(ctx context.Context, deckIDs ...int64) ([]domain.Card, error)
	GetCard(ctx context.Context, id int64) (*domain.Card, error)
}

// Uploader stores exported archives remotely.
type Uploader interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	lib       Library
	svc       *service.Service
	ingest    *ingest.Service
	uploader  Uploader
	router    chi.Router
	rateLimit int
	origins   []string
	remote    bool
	log       *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithUploader enables ?upload=true on exports.
func WithUploader(u Uploader) Option {
	return func(s *Server) { s.uploader = u }
}

// WithRateLimit limits each client IP to n requests per minute. 0 disables it.
func WithRateLimit(n int) Option {
	return func(s *Server) { s.rateLimit = n }
}

// WithCORSOrigins allows cross-origin calls from the given origins. Without
// it only same-origin browser requests may change the library.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithRemoteImport enables POST /api/import?url=.
func WithRemoteImport(enabled bool) Option {
	return func(s *Server) { s.remote = enabled }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// NewServer creates and configures a new server.
func NewServer(lib Library, svc *service.Service, ing *ingest.Service, opts ...Option) *Server {
	s := &Server{
		lib:    lib,
		svc:    svc,
		ingest: ing,
		router: chi.NewRouter(),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// cors treats an empty origin list as allow-all, so it is only mounted
	// when origins are configured.
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			ExposedHeaders: []string{"Content-Disposition"},
			MaxAge:         300,
		}))
	}
	r.Use(s.checkOrigin)

	r.Get("/healthz", s.handleHealth())

	r.Route("/api", func(r chi.Router) {
		if s.rateLimit > 0 {
			r.Use(httprate.LimitByIP(s.rateLimit, time.Minute))
		}
		r.Post("/import", s.handleImport())
		r.Get("/export", s.handleExport())
		r.Get("/decks", s.handleListDecks())
		r.Get("/decks/{id}/cards", s.handleDeckCards())
		r.Get("/decks/{id}/export", s.handleExport())
		r.Get("/cards/{id}", s.handleGetCard())
		r.Post("/cards/{id}/review", s.handlePostReview())
	})
}

// checkOrigin rejects state-changing browser requests from origins that are
// neither the API's own host nor allowed by WithCORSOrigins. Multipart posts
// skip the CORS preflight, so the browser alone cannot stop them.
func (s *Server) checkOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		origin := r.Header.Get("Origin")
		if origin == "" || s.allowedOrigin(origin, r.Host) {
			next.ServeHTTP(w, r)
			return
		}
		writeMessage(w, http.StatusForbidden, "origin not allowed")
	})
}

func (s *Server) allowedOrigin(origin, host string) bool {
	if slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == host
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "ok",
			"algorithm": s.svc.Algorithm().Name(),
		})
	}
}

// handleImport accepts an archive as a multipart "file" field or as a raw
// application/zip or application/octet-stream body, or fetches one from the
// ?url= parameter when remote imports are enabled. ?merge=true keeps the
// existing library.
func (s *Server) handleImport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merge, _ := strconv.ParseBool(r.URL.Query().Get("merge"))

		if src := r.URL.Query().Get("url"); src != "" {
			if !s.remote {
				writeMessage(w, http.StatusForbidden, "remote import is disabled")
				return
			}
			u, err := url.Parse(src)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				writeMessage(w, http.StatusBadRequest, "url must be an http or https address")
				return
			}
			report, err := s.ingest.Run(r.Context(), []string{src}, merge)
			if err != nil {
				s.writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, report)
			return
		}

		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || (mediaType != "multipart/form-data" && !slices.Contains(archiveTypes, mediaType)) {
			writeMessage(w, http.StatusUnsupportedMediaType, "body must be multipart/form-data or an archive")
			return
		}

		archive, err := readUpload(w, r, mediaType == "multipart/form-data")
		if err != nil {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		res, err := s.ingest.ImportArchive(r.Context(), *archive, merge)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func readUpload(w http.ResponseWriter, r *http.Request, multipart bool) (*ingest.Archive, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

	if multipart {
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing file field: %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read upload: %w", err)
		}
		return &ingest.Archive{Source: header.Filename, Data: data}, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload.apkg"
	}
	return &ingest.Archive{Source: name, Data: data}, nil
}

// handleExport streams an archive of the decks named by the path id or the
// repeated ?deck= parameter, or of every deck. ?upload=true stores it
// remotely instead and returns its location.
func (s *Server) handleExport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ids []int64
		if p := chi.URLParam(r, "id"); p != "" {
			id, err := strconv.ParseInt(p, 10, 64)
			if err != nil {
				writeMessage(w, http.StatusBadRequest, "invalid deck id")
				return
			}
			ids = append(ids, id)
		}
		for _, p := range r.URL.Query()["deck"] {
			id, err := strconv.ParseInt(p, 10, 64)
			if err != nil {
				writeMessage(w, http.StatusBadRequest, "invalid deck id")
				return
			}
			ids = append(ids, id)
		}

		upload, _ := strconv.ParseBool(r.URL.Query().Get("upload"))
		if upload && s.uploader == nil {
			s.writeError(w, blob.ErrNotConfigured)
			return
		}

		out, err := s.svc.Export(r.Context(), ids...)
		if err != nil {
			s.writeError(w, err)
			return
		}

		if upload {
			loc, err := s.uploader.Put(r.Context(), out.Name, out.Data)
			if err != nil {
				s.writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{
				"name":     out.Name,
				"location": loc,
				"decks":    out.Decks,
				"cards":    out.Cards,
			})
			return
		}

		w.Header().Set("Content-Type", blob.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Name))
		w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
		w.WriteHeader(http.StatusOK)
		w.Write(out.Data)
	}
}

func (s *Server) handleListDecks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decks, err := s.lib.Decks(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		if decks == nil {
			decks = []domain.Deck{}
		}
		writeJSON(w, http.StatusOK, decks)
	}
}

func (s *Server) handleDeckCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if _, err := s.lib.Decks(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
		cards, err := s.lib.CardsByDeck(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if cards == nil {
			cards = []domain.Card{}
		}
		writeJSON(w, http.StatusOK, cards)
	}
}

func (s *Server) handleGetCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		card, err := s.lib.GetCard(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

type reviewRequest struct {
	Outcome        domain.Outcome `json:"outcome"`
	ResponseTimeMs int64          `json:"responseTimeMs"`
}

// handlePostReview applies an outcome to a card and returns its new schedule.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req reviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid review body")
			return
		}
		if req.ResponseTimeMs < 0 {
			writeMessage(w, http.StatusBadRequest, "responseTimeMs must not be negative")
			return
		}

		card, err := s.svc.Review(r.Context(), id, req.Outcome, time.Duration(req.ResponseTimeMs)*time.Millisecond)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// statusOf maps an error onto the response status it should produce.
func statusOf(err error) int {
	var cerr *container.Error
	var serr *snapshot.Error
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidOutcome):
		return http.StatusBadRequest
	case errors.Is(err, apkg.ErrEmptyImport), errors.Is(err, apkg.ErrNoDecks):
		return http.StatusUnprocessableEntity
	case errors.As(err, &cerr), errors.As(err, &serr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, blob.ErrNotConfigured):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "error", err)
		writeMessage(w, status, "Internal Server Error")
		return
	}
	writeMessage(w, status, err.Error())
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
