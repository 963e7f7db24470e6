package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"adonel/internal/commit"
	"adonel/internal/logger"
	"adonel/internal/notify"
	"adonel/internal/resolver"
	"adonel/internal/server"
	"adonel/internal/session"
	"adonel/pkg/models"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expõe o fluxo de importação como API HTTP para o painel web",
	Long: `Inicia o servidor HTTP. Cada prévia aberta no painel é uma sessão própria,
identificada por um id, com as mesmas regras da linha de comando:

  POST   /api/{vendas|duplicatas}/sessions
  POST   /api/{tipo}/sessions/{id}/files          (multipart, campo "arquivos")
  PATCH  /api/{tipo}/sessions/{id}/records/{n}    {"field": "...", "value": ...}
  POST   /api/{tipo}/sessions/{id}/commit         {"validarDuplicados": true}
  DELETE /api/{tipo}/sessions/{id}

Sessões sem nenhuma requisição por SESSION_TTL são encerradas.`,
	Example: `  SERVER_PORT=8080 adonel serve`,
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Porta HTTP (padrão: SERVER_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.ServerPort = port
	}

	client := buildClient(cfg, log)

	loadCtx, cancel := context.WithTimeout(context.Background(), cfg.APITimeout)
	catalogue, err := buildCatalogue(loadCtx, cfg, client, log)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to load unit catalogue: %w", err)
	}
	detector := resolver.NewFilenameResolver(catalogue)

	registry := server.NewRegistry(func(kind models.Kind) *session.Store {
		return session.New(kind, client,
			session.WithCatalogue(catalogue),
			session.WithResolver(detector),
			session.WithReadWorkers(cfg.ReadWorkers),
			session.WithRejectWhenBusy(),
		)
	})

	srv := server.New(server.Config{
		Port:        cfg.ServerPort,
		Log:         logger.GetLogger(),
		Registry:    registry,
		Committer:   commit.NewController(client, notify.NewLogNotifier(), commit.WithClearDelay(cfg.CommitClearDelay)),
		Catalogue:   catalogue,
		CORSOrigins: cfg.CORSOrigins,
		SessionTTL:  cfg.SessionTTL,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	fmt.Printf("Servidor ouvindo em :%d\n", cfg.ServerPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}
