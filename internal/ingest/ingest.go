// Package ingest resolves import sources (files, directories, git
// repositories and download URLs) into archives and saves their contents to
// the library. Markdown files holding Q:/A: notes are imported alongside
// .apkg archives, one deck per file.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/blonki/internal/apkg"
	"github.com/conorfennell/blonki/internal/domain"
	"github.com/conorfennell/blonki/internal/gitsource"
	"github.com/conorfennell/blonki/internal/parser"
	"github.com/conorfennell/blonki/internal/srs"
	"github.com/conorfennell/blonki/internal/storage"
)

const (
	archiveExt  = ".apkg"
	markdownExt = ".md"
	// maxDownload caps the size of an archive fetched over HTTP.
	maxDownload = 512 << 20
)

// Importer turns archive bytes into decks and cards.
type Importer interface {
	Import(ctx context.Context, data []byte) (*apkg.Collection, error)
}

// Store persists imported decks and cards.
type Store interface {
	SaveCollection(ctx context.Context, decks []domain.Deck, cards []domain.Card, merge bool) (*storage.SaveResult, error)
}

// Archive is one resolved archive and where it came from.
type Archive struct {
	Source string
	Data   []byte

	// walked marks files picked up while walking a directory rather than
	// named directly.
	walked bool
}

// Result is the outcome of importing one archive.
type Result struct {
	Source  string `json:"source"`
	Deck    string `json:"deck,omitempty"`
	Cards   int    `json:"cards"`
	Skipped int    `json:"skipped"`
	Error   string `json:"error,omitempty"`
}

// Report summarises a Run.
type Report struct {
	Results []Result `json:"results"`
}

// Cards is the number of cards stored across all archives.
func (r Report) Cards() int {
	n := 0
	for _, res := range r.Results {
		n += res.Cards
	}
	return n
}

// Service imports sources into a Store.
type Service struct {
	importer Importer
	store    Store
	reposDir string
	client   *http.Client
	progress io.Writer
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithReposDir sets where git sources are checked out. Defaults to "repos".
func WithReposDir(dir string) Option {
	return func(s *Service) { s.reposDir = dir }
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// WithProgress receives git clone and pull progress output.
func WithProgress(w io.Writer) Option {
	return func(s *Service) { s.progress = w }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock sets the creation time given to cards read from markdown.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service that imports with importer and saves into store.
func New(importer Importer, store Store, opts ...Option) *Service {
	s := &Service{
		importer: importer,
		store:    store,
		reposDir: "repos",
		client:   cleanhttp.DefaultClient(),
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run resolves every source, imports each archive found and saves it. Without
// merge the first archive replaces the library and later ones merge into it.
// Per-archive failures are recorded in the report and joined into the error.
func (s *Service) Run(ctx context.Context, sources []string, merge bool) (*Report, error) {
	s.log.Info("Starting import", "sources", len(sources), "merge", merge)

	resolved := make([][]Archive, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, src := range sources {
		g.Go(func() error {
			archives, err := s.Resolve(gctx, src)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", src, err)
			}
			resolved[i] = archives
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{}
	var errs []error
	replace := !merge
	for _, archives := range resolved {
		for _, a := range archives {
			res, err := s.ImportArchive(ctx, a, !replace)
			if errors.Is(err, apkg.ErrEmptyImport) && a.walked && isMarkdown(a.Source) {
				s.log.Debug("Skipping walked markdown file without notes", "source", a.Source)
				continue
			}
			if err != nil {
				s.log.Error("Import failed", "source", a.Source, "error", err)
				errs = append(errs, fmt.Errorf("importing %s: %w", a.Source, err))
				report.Results = append(report.Results, Result{Source: a.Source, Error: err.Error()})
				continue
			}
			replace = false
			report.Results = append(report.Results, *res)
		}
	}

	s.log.Info("Import complete",
		"archives", len(report.Results),
		"cards", report.Cards(),
		"errors", len(errs),
	)
	return report, errors.Join(errs...)
}

// ImportArchive imports one archive, or one markdown file, and saves it.
func (s *Service) ImportArchive(ctx context.Context, a Archive, merge bool) (*Result, error) {
	var col *apkg.Collection
	var err error
	if isMarkdown(a.Source) {
		col, err = s.fromMarkdown(a)
	} else {
		col, err = s.importer.Import(ctx, a.Data)
	}
	if err != nil {
		return nil, err
	}
	for i := range col.Decks {
		if col.Decks[i].Name == apkg.DefaultDeckName {
			if name := DeckNameFromSource(a.Source); name != "" {
				col.Decks[i].Name = name
			}
		}
	}

	saved, err := s.store.SaveCollection(ctx, col.Decks, col.Cards, merge)
	if err != nil {
		return nil, err
	}

	res := &Result{Source: a.Source, Cards: len(saved.Cards), Skipped: saved.Skipped}
	if len(saved.Decks) > 0 {
		res.Deck = saved.Decks[0].Name
	}
	s.log.Info("Imported archive", "source", a.Source, "deck", res.Deck, "cards", res.Cards, "skipped", res.Skipped)
	return res, nil
}

func isMarkdown(source string) bool {
	return strings.EqualFold(filepath.Ext(source), markdownExt)
}

// fromMarkdown builds a single deck, named after the file, from the notes in
// a markdown file.
func (s *Service) fromMarkdown(a Archive) (*apkg.Collection, error) {
	notes, err := parser.Parse(bytes.NewReader(a.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", a.Source, err)
	}
	if len(notes) == 0 {
		return nil, apkg.ErrEmptyImport
	}

	now := s.now()
	ids := domain.NewIDSequence(now)
	deck := domain.Deck{
		ID:          ids.Next(),
		Name:        DeckNameFromSource(a.Source),
		Description: "Imported from " + filepath.Base(a.Source),
		CreatedAt:   now,
		UpdatedAt:   now,
		CardCount:   len(notes),
	}
	if deck.Name == "" {
		deck.Name = apkg.DefaultDeckName
	}
	cards := make([]domain.Card, len(notes))
	for i, n := range notes {
		cards[i] = domain.Card{
			ID:        ids.Next(),
			DeckID:    deck.ID,
			Front:     n.Question,
			Back:      n.Back(),
			CreatedAt: now,
			UpdatedAt: now,
			Schedule:  srs.Initial(now),
		}
	}
	s.log.Debug("Parsed markdown notes", "source", a.Source, "notes", len(notes))
	return &apkg.Collection{Decks: []domain.Deck{deck}, Cards: cards, Settings: map[string]any{}}, nil
}

// Resolve turns a source into the archives it names: a git remote is synced
// and walked, an http(s) URL is downloaded, a directory is walked and a file
// is read.
func (s *Service) Resolve(ctx context.Context, source string) ([]Archive, error) {
	switch {
	case gitsource.IsRepoURL(source):
		dir, err := gitsource.Sync(ctx, source, s.reposDir, s.progress)
		if err != nil {
			return nil, err
		}
		return s.walk(dir)

	case isHTTP(source):
		a, err := s.download(ctx, source)
		if err != nil {
			return nil, err
		}
		return []Archive{*a}, nil
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return s.walk(source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, err
	}
	return []Archive{{Source: source, Data: data}}, nil
}

// walk collects every archive and markdown file under root.
func (s *Service) walk(root string) ([]Archive, error) {
	var archives []Archive
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), archiveExt) && !isMarkdown(d.Name()) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		archives = append(archives, Archive{Source: p, Data: data, walked: true})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	if len(archives) == 0 {
		s.log.Warn("No archives found", "path", root)
	}
	return archives, nil
}

func isHTTP(source string) bool {
	u, err := url.Parse(source)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (s *Service) download(ctx context.Context, rawURL string) (*Archive, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	if !acceptable(rawURL, resp.Header.Get("Content-Type")) {
		return nil, fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxDownload {
		return nil, fmt.Errorf("archive exceeds %d bytes", maxDownload)
	}
	return &Archive{Source: rawURL, Data: data}, nil
}

// acceptable allows zip and generic binary responses, and anything at all
// when the URL path ends in .apkg.
func acceptable(rawURL, contentType string) bool {
	if u, err := url.Parse(rawURL); err == nil && strings.EqualFold(path.Ext(u.Path), archiveExt) {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mt {
	case "application/zip", "application/x-zip-compressed", "application/octet-stream", "application/apkg":
		return true
	}
	return false
}

// DeckNameFromSource derives a deck name from a file path or URL: the base
// name without its extension.
func DeckNameFromSource(source string) string {
	p := source
	if isHTTP(source) {
		u, _ := url.Parse(source)
		p = u.Path
	}
	base := path.Base(filepath.ToSlash(p))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(base, path.Ext(base)))
}
