package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/2beens/gymtracker/internal/config"
	"github.com/2beens/gymtracker/internal/db"
	"github.com/2beens/gymtracker/internal/logging"
	"github.com/2beens/gymtracker/internal/remote"
	"github.com/2beens/gymtracker/internal/workout"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	env        string
	configPath string
	dotenvPath string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "trackerctl",
		Short:         "Admin tool for the gym tracker postgres storage",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logging.Setup(logging.LoggerSetupParams{
				LogLevel:    opts.logLevel,
				LogToStdout: true,
			})
		},
	}
	root.PersistentFlags().StringVar(&opts.env, "env", "development", "environment [prod | production | dev | development]")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "./config.toml", "path for the TOML config file")
	root.PersistentFlags().StringVar(&opts.dotenvPath, "dotenv", ".env", "optional dotenv file with secrets")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level")

	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newUserCmd(opts))
	root.AddCommand(newSeedCmd(opts))
	return root
}

// connParams reads the postgres settings from the config file and the secrets from the environment.
// Only the postgres keys are used, so this works with configs of either storage mode.
func connParams(ctx context.Context, opts *rootOptions) (db.NewDBPoolParams, error) {
	cfg, err := config.Load(opts.env, opts.configPath)
	if err != nil {
		return db.NewDBPoolParams{}, err
	}
	if cfg.PostgresHost == "" || cfg.PostgresDBName == "" {
		return db.NewDBPoolParams{}, errors.New("postgres_host and postgres_db_name must be set in the config")
	}

	secrets, err := config.LoadSecrets(ctx, opts.dotenvPath)
	if err != nil {
		return db.NewDBPoolParams{}, err
	}

	return db.NewDBPoolParams{
		DBHost:     cfg.PostgresHost,
		DBPort:     cfg.PostgresPort,
		DBName:     cfg.PostgresDBName,
		DBUser:     cfg.PostgresUser,
		DBPassword: secrets.PostgresPassword,
	}, nil
}

func withRepo(ctx context.Context, opts *rootOptions, fn func(repo *remote.Repo) error) error {
	params, err := connParams(ctx, opts)
	if err != nil {
		return err
	}

	pool, err := db.NewDBPool(ctx, params)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	// only used for the remote load window, which trackerctl never reads
	clock, err := workout.NewSystemClock("")
	if err != nil {
		return err
	}

	log.Debugf("connected to db [%s] at [%s:%s]", params.DBName, params.DBHost, params.DBPort)
	return fn(remote.NewRepo(pool, clock))
}
