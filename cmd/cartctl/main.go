package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/abdelhadiDevWeb/labocart/internal/auth"
	"github.com/abdelhadiDevWeb/labocart/internal/cartstore"
	"github.com/abdelhadiDevWeb/labocart/internal/catalog"
	"github.com/abdelhadiDevWeb/labocart/internal/config"
	"github.com/abdelhadiDevWeb/labocart/internal/logging"
	"github.com/abdelhadiDevWeb/labocart/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app holds the global flags shared by every command.
type app struct {
	cfg     config.Config
	log     *logrus.Logger
	verbose bool
}

// env is one opened workspace: the shared storage plus everything that
// reads or writes it.
type env struct {
	storage storage.Storage
	catalog catalog.Catalog
	cart    *cartstore.Store
	session *auth.Session
}

func (e *env) Close() {
	e.cart.Close()
	e.catalog.Close()
	e.storage.Close()
}

func (a *app) open(ctx context.Context) (*env, error) {
	s, err := storage.Open(ctx, a.cfg.Storage, a.log)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", a.cfg.Storage.Driver, err)
	}
	c, err := catalog.Open(a.cfg.CatalogDriver, a.cfg.CatalogDSN)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open %s catalog: %w", a.cfg.CatalogDriver, err)
	}

	cart := cartstore.New(s,
		cartstore.WithKey(a.cfg.CartKey),
		cartstore.WithLogger(a.log),
		cartstore.WithID("cartctl"),
	)
	if _, err := cart.Load(ctx); err != nil {
		c.Close()
		s.Close()
		return nil, err
	}

	return &env{
		storage: s,
		catalog: c,
		cart:    cart,
		session: auth.NewSession(s, cart, a.log),
	}, nil
}

func newRootCmd(cfg config.Config) *cobra.Command {
	a := &app{cfg: cfg}

	rootCmd := &cobra.Command{
		Use:   "cartctl",
		Short: "Browse the lab catalog and manage the shared cart",
		Long: `cartctl works on the same cart storage as cartd and every other
cartctl invocation, so a change made here shows up in every open panel.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := cfg.LogLevel
			if a.verbose {
				level = "debug"
			} else if level == "info" {
				level = "warn"
			}
			a.log = logging.New(level, "text")
			a.log.SetOutput(cmd.ErrOrStderr())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&a.cfg.Storage.Driver, "storage", defaultStorageDriver(cfg), "Storage backend: memory, file, redis or mongo")
	flags.StringVar(&a.cfg.Storage.Dir, "dir", cfg.Storage.Dir, "Directory of the file storage")
	flags.StringVar(&a.cfg.Storage.RedisAddr, "redis", cfg.Storage.RedisAddr, "Redis address")
	flags.StringVar(&a.cfg.CartKey, "key", cfg.CartKey, "Storage key of the cart")
	flags.StringVar(&a.cfg.CatalogDriver, "catalog", cfg.CatalogDriver, "Catalog backend: static, sqlite or postgres")
	flags.StringVar(&a.cfg.CatalogDSN, "catalog-dsn", cfg.CatalogDSN, "Catalog data source name")
	flags.StringVar(&a.cfg.APIURL, "api", cfg.APIURL, "Marketplace backend URL")

	rootCmd.AddCommand(
		a.productsCmd(),
		a.categoriesCmd(),
		a.compareCmd(),
		a.cartCmd(),
		a.invoiceCmd(),
		a.purchaseCmd(),
		a.watchCmd(),
		a.whoamiCmd(),
		a.loginCmd(),
		a.registerCmd(),
		a.logoutCmd(),
		a.profileCmd(),
		a.passwordCmd(),
		a.devicesCmd(),
		a.uploadDocumentsCmd(),
	)
	return rootCmd
}

// defaultStorageDriver follows STORAGE_DRIVER, except that an in-memory
// store would not outlive a single cartctl invocation, so it becomes file.
func defaultStorageDriver(cfg config.Config) string {
	if cfg.Storage.Driver == "" || cfg.Storage.Driver == storage.DriverMemory {
		return storage.DriverFile
	}
	return cfg.Storage.Driver
}

func main() {
	cfg := config.Load(logging.Discard())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
