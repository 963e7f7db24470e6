package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"adonel/internal/backend"
	"adonel/internal/commit"
	"adonel/internal/config"
	"adonel/internal/notify"
	"adonel/internal/preview"
	"adonel/internal/resolver"
	"adonel/internal/session"
	"adonel/internal/sheets"
	"adonel/pkg/models"
)

// loadConfig reads the environment again; main already reported a failure once.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuração inválida: %w", err)
	}
	return cfg, nil
}

// createContext creates a context with timeout and signal handling
func createContext(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling import")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// buildClient creates the backend client from configuration.
func buildClient(cfg *config.Config, log zerolog.Logger) *backend.Client {
	return backend.NewClient(cfg.APIURL,
		backend.WithTimeout(cfg.APITimeout),
		backend.WithTokenSource(backend.StaticToken(cfg.APIToken)),
		backend.WithUnauthorizedHandler(func(context.Context) {
			log.Warn().Msg("Backend rejected API_TOKEN, a new token is required")
		}),
	)
}

// buildCatalogue picks the unit list: YAML file, worksheet, backend, then the built-in list.
func buildCatalogue(ctx context.Context, cfg *config.Config, client *backend.Client, log zerolog.Logger) (*resolver.Catalogue, error) {
	switch {
	case cfg.UnitsFile != "":
		log.Debug().Str("file", cfg.UnitsFile).Msg("Loading unit catalogue from file")
		return resolver.LoadCatalogue(cfg.UnitsFile)

	case cfg.UnitsSheet != "":
		log.Debug().Str("sheet", cfg.UnitsSheet).Msg("Loading unit catalogue from Google Sheet")
		svc, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Google Sheets service: %w", err)
		}
		return resolver.FetchCatalogue(ctx, svc.Units(cfg.UnitsSheet))

	case cfg.UnitsFromAPI:
		log.Debug().Msg("Loading unit catalogue from backend")
		return resolver.FetchCatalogue(ctx, client)

	default:
		return resolver.DefaultCatalogue(), nil
	}
}

// newStore opens an import session for one CLI run.
func newStore(kind models.Kind, cfg *config.Config, client *backend.Client, catalogue *resolver.Catalogue, detect bool) *session.Store {
	var res resolver.Resolver = resolver.Noop{}
	if detect {
		res = resolver.NewFilenameResolver(catalogue)
	}
	return session.New(kind, client,
		session.WithCatalogue(catalogue),
		session.WithResolver(res),
		session.WithReadWorkers(cfg.ReadWorkers),
	)
}

// newNotifier prints messages for the user and keeps them in the log.
func newNotifier() notify.Notifier {
	return notify.Multi{notify.NewWriter(os.Stdout), notify.NewLogNotifier()}
}

// newController commits immediately; a CLI run ends right after the import.
func newController(client *backend.Client, notifier notify.Notifier) *commit.Controller {
	return commit.NewController(client, notifier, commit.WithClearDelay(0))
}

// collectFiles expands directories into the regular files they contain, sorted by path.
func collectFiles(paths []string) ([]session.File, error) {
	var files []session.File
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("arquivo não encontrado: %s", path)
			}
			return nil, fmt.Errorf("error accessing %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, session.FileFromPath(path))
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() && !strings.HasPrefix(d.Name(), ".") {
				files = append(files, session.FileFromPath(p))
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", path, err)
		}
	}
	return files, nil
}

// showPreview prints the preview table and writes the optional exports.
func showPreview(ctx context.Context, store *session.Store, cfg *config.Config, xlsxPath string, toSheet bool, log zerolog.Logger) error {
	view := preview.Build(store.Kind(), store.Records())

	fmt.Println()
	if err := preview.Render(os.Stdout, view); err != nil {
		return fmt.Errorf("failed to render preview: %w", err)
	}

	if xlsxPath != "" {
		f, err := os.Create(xlsxPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", xlsxPath, err)
		}
		if err := preview.WriteXLSX(f, view); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", xlsxPath, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", xlsxPath, err)
		}
		log.Info().Str("file", xlsxPath).Int("rows", len(view.Rows)).Msg("Preview written to XLSX")
		fmt.Printf("Prévia salva em %s\n", xlsxPath)
	}

	if toSheet {
		if cfg.GoogleSheetURL == "" {
			return fmt.Errorf("GOOGLE_SHEET_URL environment variable is required for --sheet")
		}
		svc, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL)
		if err != nil {
			return fmt.Errorf("failed to create Google Sheets service: %w", err)
		}
		if err := svc.WritePreview(ctx, view, cfg.GoogleSheetWorksheet); err != nil {
			return fmt.Errorf("failed to write to Google Sheet: %w", err)
		}
		fmt.Printf("Prévia enviada para %s\n", cfg.GoogleSheetURL)
	}

	return nil
}

// handleImportError provides user-friendly error messages for import failures
func handleImportError(kind models.Kind, err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Import failed")

	var apiErr *backend.APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("tempo esgotado ao falar com o backend. Tente aumentar API_TIMEOUT ou enviar menos arquivos")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("importação cancelada")
	case errors.Is(err, backend.ErrUnauthorized):
		return fmt.Errorf("o backend recusou o token. Atualize API_TOKEN e tente novamente")
	case errors.Is(err, session.ErrNoFiles):
		return fmt.Errorf("nenhum arquivo selecionado")
	case errors.Is(err, commit.ErrNothingToImport):
		return errors.New(commit.UserMessage(kind, err))
	case errors.As(err, &apiErr) && apiErr.Status == 0:
		return fmt.Errorf("não foi possível conectar ao backend em API_URL: %w", err)
	case errors.As(err, &apiErr):
		return fmt.Errorf("o backend respondeu com erro (%d): %s", apiErr.Status, apiErr.UserMessage())
	default:
		return fmt.Errorf("importação falhou: %w", err)
	}
}
