package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/safebite/labelscan/internal/catalog"
	"github.com/safebite/labelscan/internal/config"
	"github.com/safebite/labelscan/internal/httpapi"
	"github.com/safebite/labelscan/internal/ocr"
	"github.com/safebite/labelscan/internal/persistence"
	"github.com/safebite/labelscan/internal/scanner"
	"github.com/safebite/labelscan/pkg/log"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the label-scanning web service",
	Long: `Serve starts the HTTP API: signup/login, photo scans, barcode lookup,
scan history, community feedback and runtime settings.

Configuration comes from environment variables (a .env file in the
working directory is honored). Example:

  labelscan serve
  labelscan serve --addr :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgOpts := []config.Option{}
	settingsOverlay, haveOverlay := loadSettingsOverlay()
	if haveOverlay {
		cfgOpts = append(cfgOpts, config.WithRuntimeSettings(settingsOverlay))
	}

	cfg, err := config.New(cfgOpts...)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if serveAddr != "" {
		cfg.HTTP.Addr = serveAddr
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	store, err := persistence.NewSQLiteStore(cfg.Storage.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	cat, err := loadCatalog(cfg.Catalog.File)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	log.Info("Catalog loaded with %d allergens", cat.Len())

	scn := scanner.New(ocr.NewTesseractEngine(), cat, store, *cfg)
	sessions := httpapi.NewSessions(cfg.Auth.SessionTTL)

	settingsStore, err := config.NewRuntimeSettingsStore(cfg.SettingsFilePath(), cfg.RuntimeSettings())
	if err != nil {
		return fmt.Errorf("init runtime settings: %w", err)
	}

	srv := httpapi.NewServer(store, scn, cat, sessions,
		httpapi.WithMaxUploadBytes(cfg.HTTP.MaxUploadBytes),
		httpapi.WithUI(cfg.UI.StaticDir, cfg.UI.Enabled),
		httpapi.WithRuntimeSettingsStore(settingsStore),
		httpapi.WithRuntimeSettingsApplier(scn.Apply),
	)

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.Retention.CronExpr, func() {
		sweepHistory(store, settingsStore)
	}); err != nil {
		return fmt.Errorf("schedule retention sweep: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening on %s", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe(cfg.HTTP.Addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case sig := <-stop:
		log.Info("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// loadSettingsOverlay reads the persisted runtime settings file if one exists.
// A missing file is not an error; a corrupt one is logged and ignored.
func loadSettingsOverlay() (config.RuntimeSettings, bool) {
	cfg, err := config.New()
	if err != nil {
		return config.RuntimeSettings{}, false
	}
	settings, err := config.LoadRuntimeSettingsFile(cfg.SettingsFilePath())
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("Ignoring unreadable settings file: %v", err)
		}
		return config.RuntimeSettings{}, false
	}
	if err := settings.Validate(); err != nil {
		log.Warn("Ignoring invalid settings file: %v", err)
		return config.RuntimeSettings{}, false
	}
	return settings, true
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}

func sweepHistory(store *persistence.SQLiteStore, settings *config.RuntimeSettingsStore) {
	current, err := settings.GetRuntimeSettings()
	if err != nil {
		log.Error("Retention sweep skipped: %v", err)
		return
	}
	cutoff := time.Now().AddDate(0, 0, -current.RetentionDays)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := store.DeleteScansBefore(ctx, cutoff)
	if err != nil {
		log.Error("Retention sweep failed: %v", err)
		return
	}
	if deleted > 0 {
		log.Info("Retention sweep removed %d scans older than %d days", deleted, current.RetentionDays)
	}
}
