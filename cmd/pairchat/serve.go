package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/pairchat-server/internal/app"
	"github.com/vovakirdan/pairchat-server/internal/config"
	pclog "github.com/vovakirdan/pairchat-server/internal/log"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// A missing .env is normal outside development.
			_ = godotenv.Load()

			bootLog := pclog.New("info")
			cfg, path, err := config.Load(bootLog, configPath)
			if err != nil {
				return err
			}
			applyOverrides(&cfg, overrides, cmd.Flags().Changed)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger := pclog.New(cfg.LogLevel)
			logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting pairchat server")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg, logger)
			if err != nil {
				return err
			}
			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited with error: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to config.yaml")
	flags.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flags.DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	flags.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "debug, info, warn or error")
	flags.StringVar(&overrides.DatabasePath, "db", "", "SQLite database path")
	flags.StringVar(&overrides.JWTIssuer, "jwt-issuer", "", "issuer claim for issued and accepted tokens")
	flags.StringVar(&overrides.JWTAudience, "jwt-audience", "", "audience claim for issued and accepted tokens")
	flags.BoolVar(&overrides.JWTRequired, "jwt-required", false, "reject WebSocket connections without a valid token")
	flags.BoolVar(&overrides.DeliveryAcks, "delivery-acks", false, "acknowledge sent messages back to the sender")
	return cmd
}

// applyOverrides layers flag values over the loaded config. Boolean flags are
// applied only when given, so --delivery-acks=false can switch a setting off.
func applyOverrides(cfg *config.Config, overrides config.Config, changed func(name string) bool) {
	cfg.UpdateFrom(overrides)
	if changed("jwt-required") {
		cfg.JWTRequired = overrides.JWTRequired
	}
	if changed("delivery-acks") {
		cfg.DeliveryAcks = overrides.DeliveryAcks
	}
}
