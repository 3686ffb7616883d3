package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"jsonwidget.org/internal/ids"
	"jsonwidget.org/internal/tenant"
)

// secretBytes matches the entropy of session identifiers.
const secretBytes = 32

func newClientCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "client", Short: "Manage integrator clients"}

	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a client",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withStore(cmd, func(ctx context.Context, store tenant.Store) error {
				c := &tenant.Client{Name: name, Enabled: true}
				if err := store.Clients(ctx).Create(ctx, c); err != nil {
					return fmt.Errorf("create client: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "client_id=%s\n", c.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "Client display name")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(create)
	return cmd
}

func newWidgetCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "widget", Short: "Manage widgets"}

	var clientID, name, locale string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a widget with a fresh id and secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := ids.Opaque(secretBytes)
			if err != nil {
				return err
			}
			return g.withStore(cmd, func(ctx context.Context, store tenant.Store) error {
				w := &tenant.Widget{
					ID:       ids.NewWidgetID(),
					ClientID: clientID,
					Name:     name,
					Secret:   secret,
					Locale:   strings.ToLower(locale),
					Enabled:  true,
				}
				if err := store.Widgets(ctx).Create(ctx, w); err != nil {
					return fmt.Errorf("create widget: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "widget_id=%s\n", w.ID)
				fmt.Fprintf(out, "secret=%s\n", w.Secret)
				return nil
			})
		},
	}
	create.Flags().StringVar(&clientID, "client", "", "Owning client id")
	create.Flags().StringVar(&name, "name", "", "Widget display name")
	create.Flags().StringVar(&locale, "locale", "en", "Widget locale")
	_ = create.MarkFlagRequired("client")

	rotate := &cobra.Command{
		Use:   "rotate-secret <widget-id>",
		Short: "Replace the widget secret; tokens signed with the old one stop working",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := ids.Opaque(secretBytes)
			if err != nil {
				return err
			}
			return g.withStore(cmd, func(ctx context.Context, store tenant.Store) error {
				if err := store.Widgets(ctx).RotateSecret(ctx, args[0], secret); err != nil {
					return fmt.Errorf("rotate secret: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "secret=%s\n", secret)
				return nil
			})
		},
	}

	var enabled bool
	setEnabled := &cobra.Command{
		Use:   "set-enabled <widget-id>",
		Short: "Enable or disable a widget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withStore(cmd, func(ctx context.Context, store tenant.Store) error {
				return store.Widgets(ctx).SetEnabled(ctx, args[0], enabled)
			})
		},
	}
	setEnabled.Flags().BoolVar(&enabled, "enabled", true, "Desired state")

	var listClient string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the widgets of a client, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withStore(cmd, func(ctx context.Context, store tenant.Store) error {
				if _, err := store.Clients(ctx).Find(ctx, listClient); err != nil {
					return fmt.Errorf("find client %s: %w", listClient, err)
				}
				widgets, err := store.Widgets(ctx).ListByClient(ctx, listClient)
				if err != nil {
					return fmt.Errorf("list widgets: %w", err)
				}
				out := cmd.OutOrStdout()
				for _, w := range widgets {
					fmt.Fprintf(out, "%s\tlocale=%s\tactive=%t\tname=%s\n", w.ID, w.Locale, w.Active(), w.Name)
				}
				return nil
			})
		},
	}
	list.Flags().StringVar(&listClient, "client", "", "Owning client id")
	_ = list.MarkFlagRequired("client")

	cmd.AddCommand(create, rotate, setEnabled, list)
	return cmd
}

func newUserCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage widget users"}

	var id, widgetID, name, email string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user linked to one widget",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withStore(cmd, func(ctx context.Context, store tenant.Store) error {
				existing, err := store.Users(ctx).FindByEmail(ctx, email)
				switch {
				case err == nil:
					return fmt.Errorf("create user: %s is already used by user %s of widget %s: %w",
						existing.Email, existing.ID, existing.WidgetID, tenant.ErrAlreadyExists)
				case !errors.Is(err, tenant.ErrNotFound):
					return fmt.Errorf("create user: look up email: %w", err)
				}
				u := &tenant.User{ID: id, WidgetID: widgetID, Name: name, Email: email, Enabled: true}
				if err := store.Users(ctx).Create(ctx, u); err != nil {
					return fmt.Errorf("create user: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user_id=%s\n", u.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&id, "id", "", "User id as known to the integrator (generated when empty)")
	create.Flags().StringVar(&widgetID, "widget", "", "Widget id")
	create.Flags().StringVar(&name, "name", "", "Display name")
	create.Flags().StringVar(&email, "email", "", "Email address")
	_ = create.MarkFlagRequired("widget")
	_ = create.MarkFlagRequired("email")

	cmd.AddCommand(create)
	return cmd
}
