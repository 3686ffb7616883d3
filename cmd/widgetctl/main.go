package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"jsonwidget.org/internal/store/pg"
	"jsonwidget.org/internal/tenant"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd(openPostgres).Execute(); err != nil {
		os.Exit(1)
	}
}

// storeOpener returns the tenant store for dsn and a function releasing it.
type storeOpener func(dsn string) (tenant.Store, func() error, error)

// globals are the flags shared by every subcommand.
type globals struct {
	dsn       string
	timeout   time.Duration
	openStore storeOpener
}

func newRootCmd(open storeOpener) *cobra.Command {
	g := &globals{openStore: open}

	rootCmd := &cobra.Command{
		Use:          "widgetctl",
		Short:        "Provision clients, widgets and users of the JSON widget service",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.dsn, "dsn", os.Getenv("WIDGET_PG_DSN"), "PostgreSQL DSN (or set WIDGET_PG_DSN)")
	rootCmd.PersistentFlags().DurationVar(&g.timeout, "timeout", 10*time.Second, "Per-command timeout")

	rootCmd.AddCommand(newClientCmd(g))
	rootCmd.AddCommand(newWidgetCmd(g))
	rootCmd.AddCommand(newUserCmd(g))
	rootCmd.AddCommand(newTokenCmd(g))
	rootCmd.AddCommand(newEmbedCmd(g))
	return rootCmd
}

func openPostgres(dsn string) (tenant.Store, func() error, error) {
	if dsn == "" {
		return nil, nil, fmt.Errorf("database required: use --dsn or set WIDGET_PG_DSN")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// withStore runs fn against the tenant store within the command timeout.
func (g *globals) withStore(cmd *cobra.Command, fn func(ctx context.Context, store tenant.Store) error) error {
	store, closeFn, err := g.openStore(g.dsn)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
	defer cancel()
	return fn(ctx, store)
}
