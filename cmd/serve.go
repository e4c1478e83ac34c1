package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start webhook server for reconciliation triggers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		trigger := func(runCtx context.Context, jql string) {
			result, err := executeRun(runCtx, jql, cfg.Report.Output, false)
			if err != nil {
				zap.L().Error("webhook reconciliation failed", zap.Error(err))
				return
			}
			zap.L().Info("webhook reconciliation complete",
				zap.Int("total", result.Summary.Total),
				zap.Int("linked", result.Summary.Linked),
				zap.Int("perfect", result.Summary.PerfectMatches),
			)
		}

		mux := buildMux(ctx, trigger, cfg.Server.WebhookSecret)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildMux wires the webhook routes. Reconciliations run asynchronously on
// trigger; a nil trigger accepts requests without starting one, which keeps
// handler tests free of live clients.
func buildMux(ctx context.Context, trigger func(context.Context, string), secret string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /webhook/reconcile", func(w http.ResponseWriter, r *http.Request) {
		if secret != "" {
			if r.Header.Get("Authorization") != "Bearer "+secret {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
		}

		var req struct {
			JQL string `json:"jql"` // optional override, empty uses config
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		if trigger != nil {
			go trigger(ctx, req.JQL)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
	})

	return mux
}
