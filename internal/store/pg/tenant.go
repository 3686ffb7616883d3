package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"jsonwidget.org/internal/ids"
	"jsonwidget.org/internal/tenant"
)

var _ tenant.Store = (*Store)(nil)

func (s *Store) Clients(context.Context) tenant.ClientStore { return pgClients{s.db} }
func (s *Store) Widgets(context.Context) tenant.WidgetStore { return pgWidgets{s.db} }
func (s *Store) Users(context.Context) tenant.UserStore     { return pgUsers{s.db} }

func mapWriteError(err error) error {
	switch {
	case isPgCode(err, pgErrUniqueViolation):
		return tenant.ErrAlreadyExists
	case isPgCode(err, pgErrForeignKeyViolation):
		return tenant.ErrNotFound
	default:
		return err
	}
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return tenant.ErrNotFound
	}
	return nil
}

type pgClients struct{ db *sql.DB }

func (p pgClients) Create(ctx context.Context, c *tenant.Client) error {
	if strings.TrimSpace(c.Name) == "" {
		return tenant.ErrInvalidInput
	}
	if c.ID == "" {
		c.ID = ids.New()
	}
	err := p.db.QueryRowContext(ctx, `
		insert into clients (id, name, enabled)
		values ($1, $2, $3)
		returning created_at, updated_at
	`, c.ID, c.Name, c.Enabled).Scan(&c.CreatedAt, &c.UpdatedAt)
	return mapWriteError(err)
}

func (p pgClients) Find(ctx context.Context, id string) (*tenant.Client, error) {
	var c tenant.Client
	err := p.db.QueryRowContext(ctx, `
		select id, name, enabled, created_at, updated_at from clients where id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Enabled, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenant.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (p pgClients) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return expectOne(p.db.ExecContext(ctx, `
		update clients set enabled = $2, updated_at = now() where id = $1
	`, id, enabled))
}

type pgWidgets struct{ db *sql.DB }

const widgetColumns = `w.id, w.client_id, w.name, w.secret, w.locale, w.enabled, c.enabled, w.created_at, w.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWidget(row rowScanner) (*tenant.Widget, error) {
	var w tenant.Widget
	if err := row.Scan(&w.ID, &w.ClientID, &w.Name, &w.Secret, &w.Locale, &w.Enabled, &w.ClientEnabled, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

func (p pgWidgets) Create(ctx context.Context, w *tenant.Widget) error {
	if w.ClientID == "" || w.Secret == "" {
		return tenant.ErrInvalidInput
	}
	if w.ID == "" {
		w.ID = ids.NewWidgetID()
	}
	err := p.db.QueryRowContext(ctx, `
		with inserted as (
			insert into widgets (id, client_id, name, secret, locale, enabled)
			values ($1, $2, $3, $4, $5, $6)
			returning client_id, created_at, updated_at
		)
		select i.created_at, i.updated_at, c.enabled
		from inserted i join clients c on c.id = i.client_id
	`, w.ID, w.ClientID, w.Name, w.Secret, w.Locale, w.Enabled).Scan(&w.CreatedAt, &w.UpdatedAt, &w.ClientEnabled)
	return mapWriteError(err)
}

func (p pgWidgets) Find(ctx context.Context, id string) (*tenant.Widget, error) {
	w, err := scanWidget(p.db.QueryRowContext(ctx, `
		select `+widgetColumns+`
		from widgets w join clients c on c.id = w.client_id
		where w.id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenant.ErrNotFound
	}
	return w, err
}

func (p pgWidgets) ListByClient(ctx context.Context, clientID string) ([]*tenant.Widget, error) {
	rows, err := p.db.QueryContext(ctx, `
		select `+widgetColumns+`
		from widgets w join clients c on c.id = w.client_id
		where w.client_id = $1
		order by w.created_at
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*tenant.Widget
	for rows.Next() {
		w, err := scanWidget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (p pgWidgets) RotateSecret(ctx context.Context, id, secret string) error {
	if secret == "" {
		return tenant.ErrInvalidInput
	}
	return expectOne(p.db.ExecContext(ctx, `
		update widgets set secret = $2, updated_at = now() where id = $1
	`, id, secret))
}

func (p pgWidgets) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return expectOne(p.db.ExecContext(ctx, `
		update widgets set enabled = $2, updated_at = now() where id = $1
	`, id, enabled))
}

type pgUsers struct{ db *sql.DB }

const userColumns = `id, widget_id, name, email, enabled, created_at, updated_at`

func scanUser(row rowScanner) (*tenant.User, error) {
	var u tenant.User
	if err := row.Scan(&u.ID, &u.WidgetID, &u.Name, &u.Email, &u.Enabled, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tenant.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (p pgUsers) Create(ctx context.Context, u *tenant.User) error {
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
	if u.WidgetID == "" || u.Email == "" {
		return tenant.ErrInvalidInput
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	err := p.db.QueryRowContext(ctx, `
		insert into users (id, widget_id, name, email, enabled)
		values ($1, $2, $3, $4, $5)
		returning created_at, updated_at
	`, u.ID, u.WidgetID, u.Name, u.Email, u.Enabled).Scan(&u.CreatedAt, &u.UpdatedAt)
	return mapWriteError(err)
}

func (p pgUsers) Find(ctx context.Context, id string) (*tenant.User, error) {
	return scanUser(p.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id))
}

func (p pgUsers) FindByEmail(ctx context.Context, email string) (*tenant.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	return scanUser(p.db.QueryRowContext(ctx, `select `+userColumns+` from users where email = $1`, email))
}

func (p pgUsers) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return expectOne(p.db.ExecContext(ctx, `
		update users set enabled = $2, updated_at = now() where id = $1
	`, id, enabled))
}
