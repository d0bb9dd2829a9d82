package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/connectforce/connectforce/internal/config"
	"github.com/connectforce/connectforce/internal/connection"
	"github.com/connectforce/connectforce/internal/logging"
	"github.com/connectforce/connectforce/internal/platform"
	"github.com/connectforce/connectforce/internal/store"
)

// env is the per-invocation workspace: config, logger and the stored
// connections.
type env struct {
	cfg         config.Config
	logger      *zap.Logger
	store       *store.FileStore
	connections *connection.Service
	close       func()
}

// newMetadata builds the org capability. Tests swap it for a fake.
var newMetadata = func(cfg config.Config, logger *zap.Logger) platform.Metadata {
	cli := platform.NewSFCLI(cfg.CLITimeout, logger)
	cached := platform.NewCachedMetadata(cli, cfg.CacheTTL)
	cached.Logger = logger
	return cached
}

func newEnv(cmd *cobra.Command) (*env, error) {
	path, err := cmd.Flags().GetString("workspace")
	if err != nil {
		return nil, err
	}
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, newUsageError(err.Error())
	}
	logger, closeLog, err := logging.New(cfg.Logging(verbose), cmd.ErrOrStderr())
	if err != nil {
		return nil, newUsageError(err.Error())
	}
	st := store.NewFileStore(cfg.StorePath, logger.Named("store"))
	return &env{
		cfg:         cfg,
		logger:      logger,
		store:       st,
		connections: connection.NewService(st, connection.WithLogger(logger.Named("connection"))),
		close:       closeLog,
	}, nil
}

// withEnv runs fn with a fresh env and releases it afterwards.
func withEnv(cmd *cobra.Command, fn func(e *env) error) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	return friendlyError(fn(e))
}
