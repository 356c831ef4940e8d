package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/adfharrison1/go-crm/pkg/config"
	"github.com/adfharrison1/go-crm/pkg/logging"
	"github.com/adfharrison1/go-crm/pkg/schema"
	"github.com/adfharrison1/go-crm/pkg/seed"
	"github.com/adfharrison1/go-crm/pkg/server"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// setup resolves the configuration and builds the logger for a command.
func setup(v *viper.Viper) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "go-crm",
		Short: "User directory with filtered, cursor-paged queries",
		Long: `go-crm serves a user directory over HTTP. Users can be filtered by
company, job title, location, role and event counts, sorted, and paged
with opaque cursors.

Records live in memory (with an optional snapshot file), in DynamoDB or
in SQLite. Without --save-interval the memory store is only saved on
graceful shutdown.

Every flag can also be set through a GOCRM_ environment variable
(--data-file becomes GOCRM_DATA_FILE) or a config file.`,
		Example: `  go-crm                                   # memory store on :8080
  go-crm --save-interval 5m --seed         # seeded, snapshot every 5 minutes
  go-crm --store sqlite --sqlite-dsn file:crm.db
  go-crm --store dynamodb --dynamo-endpoint http://localhost:8000`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(v)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := server.NewServer(ctx, cfg, logger)
			if err != nil {
				logger.Error("failed to start", zap.Error(err))
				return err
			}
			return srv.Run(ctx)
		},
	}

	config.RegisterFlags(cmd.PersistentFlags())
	if err := config.Bind(v, cmd.PersistentFlags()); err != nil {
		panic(err)
	}

	cmd.AddCommand(newSeedCommand(v))
	cmd.AddCommand(newInitTableCommand(v))
	cmd.AddCommand(newLoadCommand())
	return cmd
}

func newSeedCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Write the reference users to the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(v)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			store, err := server.OpenStore(ctx, cfg, schema.Users(), logger)
			if err != nil {
				return err
			}
			n, err := seed.Load(ctx, store)
			if cerr := store.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users into the %s store\n", n, cfg.Store)
			return nil
		},
	}
}

func newInitTableCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "init-table",
		Short: "Create the DynamoDB users table and its secondary indexes",
		Long:  "Creates the users table with both global secondary indexes. Succeeds when the table already exists.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(v)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if err := server.InitTable(cmd.Context(), cfg, logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "table %s ready\n", cfg.DynamoTable)
			return nil
		},
	}
}
