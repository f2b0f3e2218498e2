package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/airpuck/internal/server"
	"github.com/alfredjeanlab/airpuck/internal/store"
	"github.com/alfredjeanlab/airpuck/internal/store/memory"
	"github.com/alfredjeanlab/airpuck/internal/store/postgres"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run a local sandbox of the service",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		addr, token, dbURL := cfg.SandboxAddr, cfg.SandboxToken, cfg.SandboxDatabaseURL
		if flags.Changed("addr") {
			addr, _ = flags.GetString("addr")
		}
		if flags.Changed("token") {
			token, _ = flags.GetString("token")
		}
		if flags.Changed("database-url") {
			dbURL, _ = flags.GetString("database-url")
		}

		st, kind, err := openStore(dbURL)
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				logger.Error("error closing store", "err", err)
			}
		}()

		srv := server.New(st, openPublisher(), logger)
		httpServer := &http.Server{
			Addr:              addr,
			Handler:           srv.NewHTTPHandler(token),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- httpServer.ListenAndServe()
		}()
		logger.Info("sandbox listening",
			"addr", addr,
			"store", kind,
			"auth", token != "",
			"api_url", sandboxAPIURL(addr),
		)

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-cmd.Context().Done():
		}
		logger.Info("received signal, shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("shutdown complete")
		return nil
	},
}

// openStore connects to postgres when dbURL is set and falls back to memory.
func openStore(dbURL string) (store.Store, string, error) {
	if dbURL == "" {
		return memory.New(), "memory", nil
	}
	st, err := postgres.New(dbURL)
	if err != nil {
		return nil, "", err
	}
	return st, "postgres", nil
}

// sandboxAPIURL is the AIRPUCK_API_URL that reaches a sandbox on addr.
func sandboxAPIURL(addr string) string {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return "http://" + host + "/v0/"
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides AIRPUCK_SANDBOX_ADDR)")
	serveCmd.Flags().String("token", "", "require this bearer token (overrides AIRPUCK_SANDBOX_TOKEN)")
	serveCmd.Flags().String("database-url", "", "postgres URL; empty keeps records in memory")
}
