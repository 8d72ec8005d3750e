package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/devfans/golang/log"
	"github.com/spf13/cobra"

	"xano-mcp/pkg/auth"
	"xano-mcp/pkg/config"
	"xano-mcp/pkg/mcpserver"
	"xano-mcp/pkg/oauthsrv"
	"xano-mcp/pkg/router"
	"xano-mcp/pkg/share"
	"xano-mcp/pkg/xano"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the proxy server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	registry, err := xano.New(xano.Config{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		Timeout:   cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}

	shares := share.NewMemoryStore(cfg.ShareTTL)
	defer shares.Stop()

	resolver := auth.NewResolver(shares)
	resolver.OAuth = oauthsrv.NewTokenSource(registry)

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	builder := mcpserver.NewBuilder(registry, httpClient, rootCmd.Version)
	oauth := oauthsrv.NewHandler(registry, 0)

	rt := router.New(cfg, resolver, shares, registry, builder, oauth, rootCmd.Version)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      rt.Handler(),
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server will start", "addr", cfg.ListenAddr, "public_url", cfg.Public())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", "err", err)
		return err
	}
	log.Info("Server stopped")
	return nil
}
