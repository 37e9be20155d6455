package incidentwire

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/incidentwire/incidentwire"
	"github.com/incidentwire/incidentwire/pkg/config"
	"github.com/incidentwire/incidentwire/pkg/logger"
	"github.com/incidentwire/incidentwire/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the incidentwire HTTP server",
	Long: `Start the incidentwire HTTP server.

The server provides endpoints for:
- Starting a streaming search session (server-sent events)
- Cancelling a running session
- Reading a session snapshot
- Health checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().String("host", "localhost", "Server host")
	serverCmd.Flags().Int("port", 8080, "Server port")
	serverCmd.Flags().String("mode", "debug", "Server mode (debug, release, test)")

	serverCmd.Flags().Int("fetch-width", 8, "Fetch pool width")
	serverCmd.Flags().Int("extract-width", 1, "Extraction pool width")
	serverCmd.Flags().String("sources", "sources.yaml", "Path to the source registry file")

	serverCmd.Flags().String("nlp-model", "gpt-4o-mini", "Extraction model")
	serverCmd.Flags().String("nlp-api-key", "", "Extraction backend API key")
	serverCmd.Flags().String("nlp-base-url", "", "Extraction backend base URL (OpenAI-compatible)")

	viper.BindPFlag("server.host", serverCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serverCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.mode", serverCmd.Flags().Lookup("mode"))
	viper.BindPFlag("pipeline.fetch_width", serverCmd.Flags().Lookup("fetch-width"))
	viper.BindPFlag("pipeline.extract_width", serverCmd.Flags().Lookup("extract-width"))
	viper.BindPFlag("sources.registry", serverCmd.Flags().Lookup("sources"))
	viper.BindPFlag("nlp.model", serverCmd.Flags().Lookup("nlp-model"))
	viper.BindPFlag("nlp.api_key", serverCmd.Flags().Lookup("nlp-api-key"))
	viper.BindPFlag("nlp.base_url", serverCmd.Flags().Lookup("nlp-base-url"))
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewDefaultLogger(logger.ParseLevel(cfg.Log.Level))

	svc, err := incidentwire.NewFromConfig(cfg, log)
	if err != nil {
		return err
	}

	srv := server.New(cfg, svc, log)
	srv.Setup()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}
