package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// serveCmd hosts the same operations over HTTP for callers that would
// rather keep one long-lived process than spawn the CLI per call,
// following the teacher's own server/shutdown shape.
func serveCmd() *cobra.Command {
	var (
		addr   string
		apiKey string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run rl4 as an HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return fatal(err)
			}
			defer eng.Close()

			h := newHTTPHandler(eng)
			mux := http.NewServeMux()
			mux.HandleFunc("GET /health", h.handleHealth)
			mux.HandleFunc("GET /evidence", h.handleGetEvidence)
			mux.HandleFunc("GET /timeline", h.handleGetTimeline)
			mux.HandleFunc("GET /intent-graph", h.handleGetIntentGraph)
			mux.HandleFunc("POST /search/context", h.handleSearch("context"))
			mux.HandleFunc("POST /search/chats", h.handleSearch("chats"))
			mux.HandleFunc("POST /search/cli", h.handleSearch("cli"))
			mux.HandleFunc("POST /ask", h.handleSearch("ask"))
			mux.HandleFunc("POST /suggest-edit", h.handleSuggestEdit)
			mux.HandleFunc("POST /apply-edit", h.handleApplyEdit)
			mux.HandleFunc("POST /run-command", h.handleRunCommand)
			mux.HandleFunc("POST /guardrail", h.handleGuardrail)
			mux.HandleFunc("GET /workspaces", h.handleListWorkspaces)
			mux.HandleFunc("POST /workspaces/{id}/activate", h.handleSetWorkspace)
			mux.HandleFunc("POST /snapshot/run", h.handleRunSnapshot)
			mux.HandleFunc("POST /snapshot/finalize", h.handleFinalizeSnapshot)

			var handler http.Handler = mux
			handler = authMiddleware(apiKey, handler)
			handler = recoveryMiddleware(handler)
			handler = logMiddleware(handler)

			return runServer(cmd.Context(), addr, handler)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8741", "address to listen on")
	cmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("RL4_API_KEY"), "bearer token required on non-/health routes (disabled if empty)")
	return cmd
}

func runServer(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("rl4: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("rl4: shutting down", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("rl4: shutting down", "reason", ctx.Err())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
