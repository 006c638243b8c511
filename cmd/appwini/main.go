// Command appwini is the shopping client: catalog browsing, cart, checkout,
// order tracking and account management from the terminal. It also serves
// an in-memory commerce API for local development.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"appwini/internal/address"
	"appwini/internal/apiclient"
	"appwini/internal/cart"
	"appwini/internal/catalog"
	"appwini/internal/config"
	"appwini/internal/geo"
	"appwini/internal/logging"
	"appwini/internal/order"
	"appwini/internal/profile"
	"appwini/internal/session"
	"appwini/internal/tracking"
)

// app holds what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	cfgPath  string
	platform string
	verbose  bool

	cfg   config.ClientConfig
	log   *zap.Logger
	store *session.FileStore

	commerce *apiclient.Client
	backend  *apiclient.Client
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadClient(a.cfgPath)
	if a.platform != "" {
		cfg.Platform = config.Platform(a.platform)
		err = cfg.Validate()
	}
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.log, err = logging.New(os.Getenv("APP_ENV") == "dev", logLevel(a.verbose || cfg.Verbose))
	if err != nil {
		return err
	}
	a.store = session.NewFileStore(cfg.TokenFile)
	a.commerce = apiclient.New(cfg.BaseURL(), a.store,
		apiclient.WithTimeout(cfg.Timeout), apiclient.WithLogger(a.log))
	a.backend = apiclient.New(cfg.CatalogURL, a.store,
		apiclient.WithTimeout(cfg.Timeout), apiclient.WithLogger(a.log))
	return nil
}

func logLevel(verbose bool) string {
	if verbose {
		return "debug"
	}
	return "warn"
}

func (a *app) carts() *cart.Service {
	return cart.NewService(a.commerce, cart.WithStrictParsing(a.cfg.StrictParsing), cart.WithLogger(a.log))
}

func (a *app) addresses() *address.Book {
	return address.NewBook(a.commerce, a.cfg.StrictParsing)
}

func (a *app) orders() (*order.Engine, error) {
	opts := []order.Option{order.WithLogger(a.log), order.WithStrictParsing(a.cfg.StrictParsing)}
	if a.cfg.PinnedOrderSchema != "" {
		s, err := order.ParseSchema(a.cfg.PinnedOrderSchema)
		if err != nil {
			return nil, fmt.Errorf("pinned_order_schema: %w", err)
		}
		opts = append(opts, order.WithPinnedSchema(s))
	}
	return order.NewEngine(a.commerce, a.carts(), opts...), nil
}

func (a *app) catalog() *catalog.Cache {
	return catalog.NewCache(a.backend, catalog.WithStrictParsing(a.cfg.StrictParsing), catalog.WithLogger(a.log))
}

func (a *app) geo() *geo.Client {
	return geo.NewClient(a.commerce, a.cfg.StrictParsing)
}

func (a *app) profile() *profile.Client {
	return profile.NewClient(a.commerce, a.cfg.StrictParsing)
}

func (a *app) tracking() *tracking.Client {
	return tracking.NewClient(a.commerce)
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "appwini",
		Short:             "Shop Ecuadorian chocolate from the terminal",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "appwini.yaml", "client config file")
	root.PersistentFlags().StringVar(&a.platform, "platform", "", "base URL profile: emulator, device or desktop")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		loginCmd(a),
		registerCmd(a),
		logoutCmd(a),
		catalogCmd(a),
		cartCmd(a),
		addressCmd(a),
		checkoutCmd(a),
		ordersCmd(a),
		trackCmd(a),
		geoCmd(a),
		profileCmd(a),
		sandboxCmd(a),
	)
	return root
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}

// describe turns client errors into the message a shopper should see.
func describe(err error) string {
	var ve *apiclient.ValidationError
	switch {
	case errors.Is(err, apiclient.ErrNoSession):
		return "you are not signed in, run `appwini login` first"
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, context.Canceled):
		return "interrupted"
	}
	return err.Error()
}
