package tenant

import "time"

// Client is an integrator account owning one or more widgets.
type Client struct {
	ID        string
	Name      string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Widget is one embeddable editor instance. Secret is the HMAC key for
// tokens issued to the widget's users.
type Widget struct {
	ID            string
	ClientID      string
	Name          string
	Secret        string
	Locale        string
	Enabled       bool
	ClientEnabled bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Active reports whether the widget and its owning client are both enabled.
func (w *Widget) Active() bool {
	return w != nil && w.Enabled && w.ClientEnabled
}

// User is an end-user of exactly one widget.
type User struct {
	ID        string
	WidgetID  string
	Name      string
	Email     string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LinkedTo reports whether the user is enabled and belongs to the widget.
func (u *User) LinkedTo(widgetID string) bool {
	return u != nil && u.Enabled && u.WidgetID == widgetID
}
