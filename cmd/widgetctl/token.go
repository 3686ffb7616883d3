package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"jsonwidget.org/internal/auth"
	"jsonwidget.org/internal/tenant"
)

func newTokenCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Work with integrator user tokens"}

	var widgetID, secret, userID string
	var ttl time.Duration
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Sign a user token the way an integrator backend would",
		Long: `Sign an HS256 token carrying the user id in the "id" claim.
The secret is read from the database for --widget unless --secret is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				if widgetID == "" {
					return errors.New("either --widget or --secret is required")
				}
				err := g.withStore(cmd, func(ctx context.Context, store tenant.Store) error {
					w, err := store.Widgets(ctx).Find(ctx, widgetID)
					if err != nil {
						return fmt.Errorf("load widget %s: %w", widgetID, err)
					}
					secret = w.Secret
					return nil
				})
				if err != nil {
					return err
				}
			}
			token, err := auth.MintUserToken(secret, userID, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	mint.Flags().StringVar(&widgetID, "widget", "", "Widget whose secret signs the token")
	mint.Flags().StringVar(&secret, "secret", "", "Widget secret (skips the database lookup)")
	mint.Flags().StringVar(&userID, "user", "", "User id placed in the id claim")
	mint.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime; 0 mints a token without exp")
	_ = mint.MarkFlagRequired("user")

	cmd.AddCommand(mint)
	return cmd
}
