package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/splitwise-relay/pkg/api"
	"github.com/telekom/splitwise-relay/pkg/config"
	"github.com/telekom/splitwise-relay/pkg/relay"
	"github.com/telekom/splitwise-relay/pkg/splitwise"
	"github.com/telekom/splitwise-relay/pkg/state"
	"github.com/telekom/splitwise-relay/pkg/system"
	"github.com/telekom/splitwise-relay/pkg/tokenstore"
	"github.com/telekom/splitwise-relay/pkg/version"
)

func NewServeCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			cfg, err := rt.Config()
			if err != nil {
				return err
			}
			debug = debug || cfg.Server.Debug

			zl, err := system.NewLogger(debug)
			if err != nil {
				return fmt.Errorf("failed to set up logger: %w", err)
			}
			defer func() { _ = zl.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, zl, cfg, debug)
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug level logging and permissive CORS")

	return cmd
}

func runServer(ctx context.Context, zl *zap.Logger, cfg config.Config, debug bool) error {
	server, err := buildServer(zl, cfg, debug)
	if err != nil {
		return err
	}
	return server.Listen(ctx)
}

// buildServer wires the relay components into an HTTP server. The token store
// lives as long as the returned server.
func buildServer(zl *zap.Logger, cfg config.Config, debug bool) (*api.Server, error) {
	log := zl.Sugar()
	log.With("version", version.Version).Info("Starting Splitwise relay")

	if missing := cfg.Missing(); len(missing) > 0 {
		log.Warnw("Relay configuration incomplete; affected endpoints will fail at request time", "missing", missing)
	}
	log.Infow("Splitwise OAuth client configured",
		"clientID", cfg.Splitwise.ClientID,
		"clientSecretPresent", cfg.Splitwise.ClientSecret != "",
		"redirectURI", cfg.Splitwise.RedirectURI,
		"baseURL", cfg.Splitwise.BaseURL,
	)

	signer := state.NewSigner([]byte(cfg.Splitwise.StateSecret))
	upstream := splitwise.NewClient(splitwise.Config{
		ClientID:     cfg.Splitwise.ClientID,
		ClientSecret: cfg.Splitwise.ClientSecret,
		RedirectURI:  cfg.Splitwise.RedirectURI,
		BaseURL:      cfg.Splitwise.BaseURL,
	})
	rl := relay.New(log, signer, upstream, tokenstore.NewMemory())

	server := api.NewServer(zl, cfg, debug)
	if err := server.RegisterAll([]api.APIController{
		rl.OAuthController(),
		rl.ProxyController(),
	}); err != nil {
		return nil, fmt.Errorf("error registering relay controllers: %w", err)
	}
	return server, nil
}
