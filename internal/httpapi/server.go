package httpapi

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/safebite/labelscan/internal/catalog"
	"github.com/safebite/labelscan/internal/config"
	"github.com/safebite/labelscan/internal/persistence"
	"github.com/safebite/labelscan/internal/scanner"
)

// Store is the persistence surface the HTTP layer needs.
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash, fullName string, allergies []string) (persistence.User, error)
	GetUserByUsername(ctx context.Context, username string) (persistence.User, bool, error)
	GetUserByID(ctx context.Context, id int64) (persistence.User, bool, error)
	UpdateUserAllergies(ctx context.Context, userID int64, allergies []string) error
	ListScansByUser(ctx context.Context, username string, limit int) ([]persistence.ScanRecord, error)
	AddFeedback(ctx context.Context, entry persistence.FeedbackEntry) error
	ListFeedbackByUser(ctx context.Context, username string, limit int) ([]persistence.FeedbackEntry, error)
	ListRecentFeedback(ctx context.Context, limit int) ([]persistence.FeedbackEntry, error)
	CountFeedbackByProduct(ctx context.Context, limit int) ([]persistence.ProductFeedbackCount, error)
	ListSafeAlternatives(ctx context.Context, allergen string) ([]string, error)
}

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

type Server struct {
	store    Store
	scanner  *scanner.Scanner
	catalog  *catalog.Catalog
	sessions *Sessions
	settings runtimeSettingsStore
	apply    runtimeSettingsApplier

	maxUploadBytes int64
	uiEnabled      bool
	uiStaticDir    string

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithUI(staticDir string, enabled bool) Option {
	return func(s *Server) {
		s.uiStaticDir = staticDir
		s.uiEnabled = enabled
	}
}

func WithMaxUploadBytes(limit int64) Option {
	return func(s *Server) {
		if limit > 0 {
			s.maxUploadBytes = limit
		}
	}
}

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

func NewServer(store Store, scn *scanner.Scanner, cat *catalog.Catalog, sessions *Sessions, opts ...Option) *Server {
	s := &Server{
		store:          store,
		scanner:        scn,
		catalog:        cat,
		sessions:       sessions,
		maxUploadBytes: 10 << 20,
		uiEnabled:      false,
		mux:            http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/signup", s.handleSignup)
	s.mux.HandleFunc("/api/login", s.handleLogin)
	s.mux.HandleFunc("/api/logout", s.handleLogout)
	s.mux.HandleFunc("/api/me", s.handleMe)
	s.mux.HandleFunc("/api/scan", s.handleScan)
	s.mux.HandleFunc("/api/scan/barcode", s.handleScanBarcode)
	s.mux.HandleFunc("/api/catalog", s.handleCatalog)
	s.mux.HandleFunc("/api/profile", s.handleProfile)
	s.mux.HandleFunc("/api/history", s.handleHistory)
	s.mux.HandleFunc("/api/history/stream", s.handleHistoryStream)
	s.mux.HandleFunc("/api/feedback", s.handleFeedback)
	s.mux.HandleFunc("/api/community", s.handleCommunity)
	s.mux.HandleFunc("/api/alternatives", s.handleAlternatives)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.HandleFunc("/", s.handleStatic)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if !s.uiEnabled || s.uiStaticDir == "" {
		http.NotFound(w, r)
		return
	}

	rel := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	indexPath := filepath.Join(s.uiStaticDir, "index.html")

	if rel == "" || !strings.Contains(filepath.Base(rel), ".") {
		http.ServeFile(w, r, indexPath)
		return
	}

	filePath := filepath.Join(s.uiStaticDir, rel)
	if _, err := os.Stat(filePath); err != nil {
		// SPA fallback: non-existing static file path returns index
		http.ServeFile(w, r, indexPath)
		return
	}
	http.ServeFile(w, r, filePath)
}
