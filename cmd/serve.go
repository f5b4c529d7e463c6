package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Yates-Labs/reviewlens/internal/api"
	"github.com/Yates-Labs/reviewlens/internal/session"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the review chat over HTTP",
	Long: `Start an HTTP server exposing per-user chat sessions.

Routes:
  POST   /sessions                    create a session
  POST   /sessions/{id}/ask           ask a question in a session
  GET    /sessions/{id}/history       newest-first history (?offset=&limit=)
  DELETE /sessions/{id}               end a session
  POST   /export                      retrieved reviews as CSV or JSON
  GET    /healthz                     liveness`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}
	defer app.Close()

	sessions := session.NewStore(app.Config.Session.MaxTurns, app.Config.Session.MaxSessions)
	srv, err := api.NewServer(app.Pipeline, sessions, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              serveAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", serveAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
