package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/cardwise/internal/api"
	"github.com/Veraticus/cardwise/internal/certs"
	"github.com/Veraticus/cardwise/internal/cli"
	"github.com/Veraticus/cardwise/internal/config"
	"github.com/Veraticus/cardwise/internal/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the segmentation API over HTTP",
		Long: `Start the HTTP API used by the dashboard. Prometheus metrics are exposed at
/metrics. The server shuts down gracefully on SIGINT or SIGTERM.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", ":8080", "Address to listen on")
	cmd.Flags().StringSlice("allow-origin", nil, "Allowed CORS origin (repeatable)")
	cmd.Flags().Bool("tls", false, "Serve HTTPS with a self-signed certificate")
	cmd.Flags().StringSlice("tls-host", nil, "Host name or IP the certificate covers (repeatable, default localhost)")
	_ = viper.BindPFlag("server.address", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.allow_origins", cmd.Flags().Lookup("allow-origin"))
	_ = viper.BindPFlag("server.tls", cmd.Flags().Lookup("tls"))
	_ = viper.BindPFlag("server.tls_hosts", cmd.Flags().Lookup("tls-host"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	m := metrics.New()
	svc, _, cleanup, err := openService(ctx, m)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := api.DefaultConfig()
	if origins := viper.GetStringSlice("server.allow_origins"); len(origins) > 0 {
		cfg.AllowOrigins = origins
	}
	server := api.NewServer(svc, m, cfg)
	addr := viper.GetString("server.address")

	start := func() error { return server.Start(addr) }
	if viper.GetBool("server.tls") {
		manager := certs.NewFileManager(config.CertDir(viper.GetString("server.tls_dir")),
			viper.GetStringSlice("server.tls_hosts")...)
		tlsConfig, err := certs.TLSConfig(manager)
		if err != nil {
			return fmt.Errorf("failed to prepare TLS certificate: %w", err)
		}
		certFile, _ := manager.Paths()
		writeLine(cmd.OutOrStdout(), cli.FormatInfo("Serving HTTPS with certificate "+certFile))
		start = func() error { return server.StartTLS(addr, tlsConfig) }
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return <-errCh
}
