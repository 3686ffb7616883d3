package tenant

import "context"

// Store describes persistence operations required for tenancy.
type Store interface {
	Clients(ctx context.Context) ClientStore
	Widgets(ctx context.Context) WidgetStore
	Users(ctx context.Context) UserStore
}

// WidgetFinder resolves widgets by identifier.
type WidgetFinder interface {
	Find(ctx context.Context, id string) (*Widget, error)
}

// ClientStore manages clients.
type ClientStore interface {
	Create(ctx context.Context, c *Client) error
	Find(ctx context.Context, id string) (*Client, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

// WidgetStore manages widgets.
type WidgetStore interface {
	WidgetFinder
	Create(ctx context.Context, w *Widget) error
	ListByClient(ctx context.Context, clientID string) ([]*Widget, error)
	RotateSecret(ctx context.Context, id, secret string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

// UserStore manages widget users.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
}
