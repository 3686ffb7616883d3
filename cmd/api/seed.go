package main

import (
	"context"
	"fmt"

	"jsonwidget.org/internal/config"
	"jsonwidget.org/internal/tenant"
)

// seedTenants loads the configured development tenants into store.
func seedTenants(ctx context.Context, store tenant.Store, seed config.Seed) error {
	for _, c := range seed.Clients {
		if err := store.Clients(ctx).Create(ctx, &tenant.Client{ID: c.ID, Name: c.Name, Enabled: true}); err != nil {
			return fmt.Errorf("client %s: %w", c.ID, err)
		}
	}
	for _, w := range seed.Widgets {
		err := store.Widgets(ctx).Create(ctx, &tenant.Widget{
			ID:       w.ID,
			ClientID: w.ClientID,
			Name:     w.Name,
			Secret:   w.Secret,
			Locale:   w.Locale,
			Enabled:  true,
		})
		if err != nil {
			return fmt.Errorf("widget %s: %w", w.ID, err)
		}
	}
	for _, u := range seed.Users {
		err := store.Users(ctx).Create(ctx, &tenant.User{
			ID:       u.ID,
			WidgetID: u.WidgetID,
			Name:     u.Name,
			Email:    u.Email,
			Enabled:  true,
		})
		if err != nil {
			return fmt.Errorf("user %s: %w", u.ID, err)
		}
	}
	return nil
}
