package commands

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/IliyaBaranov/agora/internal/adapter"
	"github.com/IliyaBaranov/agora/internal/config"
	"github.com/IliyaBaranov/agora/internal/logging"
	"github.com/IliyaBaranov/agora/internal/store"
)

var (
	apiURL   string
	email    string
	password string
	verbose  bool

	domain *store.Store
)

// Execute runs the root command
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "agora",
		Short:        "Command line client for the Agora services marketplace",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if apiURL != "" {
				cfg.API.BaseURL = apiURL
			}

			logger := logging.NewNopLogger()
			if verbose {
				logger = logging.NewLogger(logging.LevelDebug, logging.FormatText)
				logger.SetOutput(os.Stderr)
			}

			client, err := adapter.NewAgoraClient(cfg.API, logger)
			if err != nil {
				return err
			}
			domain = store.New(client, store.WithLogger(logger))
			return signIn(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&apiURL, "api", "", "backend base URL (default $AGORA_API_URL)")
	root.PersistentFlags().StringVar(&email, "email", os.Getenv("AGORA_EMAIL"), "account email")
	root.PersistentFlags().StringVar(&password, "password", os.Getenv("AGORA_PASSWORD"), "account password")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log backend calls to stderr")

	root.AddCommand(meCmd(), marketplacesCmd(), jobsCmd(), producerCmd(), adminCmd())
	return root
}

func signIn(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if email != "" {
		return domain.Login(ctx, email, password)
	}
	return domain.Bootstrap(ctx)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
