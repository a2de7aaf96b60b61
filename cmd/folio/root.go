package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/goliatone/go-command"
	folio "github.com/goliatone/go-folio"
	"github.com/goliatone/go-folio/adapters/gocommand"
	"github.com/goliatone/go-folio/adapters/gologger"
	"github.com/goliatone/go-folio/core"
	foliomigrations "github.com/goliatone/go-folio/migrations"
	sqlstore "github.com/goliatone/go-folio/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configFile string
	mode       string
	dsn        string
	driver     string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "folio",
		Short:         "Bridge Cloudbeds transaction webhooks into Xubio invoices",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "path to a YAML config file")
	pf.StringVar(&flags.mode, "mode", "", "store mode: strict or degraded")
	pf.StringVar(&flags.dsn, "dsn", "", "database connection string")
	pf.StringVar(&flags.driver, "driver", "", "database driver: postgres or sqlite3")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		newServeCommand(flags),
		newMigrateCommand(flags),
		newReplayCommand(flags),
		newShowCommand(flags),
		newListCommand(flags),
	)
	return root
}

func (f *globalFlags) runtime() core.Config {
	return core.Config{
		Mode:  strings.TrimSpace(f.mode),
		Store: core.StoreConfig{DSN: strings.TrimSpace(f.dsn), Driver: strings.TrimSpace(f.driver)},
		Log:   core.LogConfig{Level: strings.TrimSpace(f.logLevel), Format: strings.TrimSpace(f.logFormat)},
	}
}

// runtimeEnv is the configuration and logger shared by every subcommand.
type runtimeEnv struct {
	config core.Config
	base   *logrus.Logger
	logger *gologger.LogrusLogger
}

func setup(ctx context.Context, flags *globalFlags, logOut io.Writer) (*runtimeEnv, error) {
	cfg, err := loadConfig(ctx, flags.configFile, flags.runtime())
	if err != nil {
		return nil, err
	}
	base := gologger.NewLogrus(cfg.Log, logOut)
	return &runtimeEnv{
		config: cfg,
		base:   base,
		logger: gologger.NewLogrusLogger(base).Named(cfg.ServiceName),
	}, nil
}

// openStore opens the configured database and optionally applies the
// embedded migrations for its dialect.
func (e *runtimeEnv) openStore(ctx context.Context, migrate bool) (*persistence.Client, error) {
	client, err := sqlstore.Open(e.config.Store)
	if err != nil {
		return nil, err
	}
	if !migrate {
		return client, nil
	}
	if err := applyMigrations(ctx, client, e.config.Store.Driver); err != nil {
		_ = client.Close()
		return nil, err
	}
	e.logger.Info("migrations applied", "driver", e.config.Store.Driver)
	return client, nil
}

func applyMigrations(ctx context.Context, client *persistence.Client, driver string) error {
	dialect, err := foliomigrations.Register(driver, func(fsys fs.FS) {
		client.RegisterSQLMigrations(fsys)
	})
	if err != nil {
		return err
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate %s schema: %w", dialect, err)
	}
	return nil
}

// openBridge builds a bridge over the configured store. The returned close
// function releases the bridge and the database client.
func (e *runtimeEnv) openBridge(ctx context.Context, migrate bool, opts ...folio.Option) (*folio.Bridge, func(), error) {
	opts = append([]folio.Option{folio.WithLoggerProvider(gologger.NewLogrusProvider(e.base))}, opts...)
	if e.config.StoreMode() == core.StoreModeDegraded {
		bridge, err := folio.New(e.config, opts...)
		if err != nil {
			return nil, nil, err
		}
		return bridge, func() { _ = bridge.Close() }, nil
	}

	client, err := e.openStore(ctx, migrate)
	if err != nil {
		return nil, nil, err
	}
	bridge, err := folio.New(e.config, append(opts, folio.WithPersistenceClient(client))...)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return bridge, func() {
		_ = bridge.Close()
		_ = client.Close()
	}, nil
}

// dispatcher registers the bridge on a fresh go-command registry.
func dispatcher(bridge *folio.Bridge) (gocommand.Subscriptions, error) {
	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	subs, err := bridge.RegisterCommands(adapter)
	if err != nil {
		return nil, err
	}
	if err := adapter.Initialize(); err != nil {
		subs.Unsubscribe()
		return nil, err
	}
	return subs, nil
}
