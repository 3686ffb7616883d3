package widget

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"jsonwidget.org/internal/tenant"
)

var (
	ErrInvalidID = errors.New("widget id must be a UUID v4")
	ErrNotFound  = errors.New("widget not found")
)

// Config is the per-widget bootstrap metadata returned to the Loader.
type Config struct {
	Locale      string `json:"locale"`
	BuildNumber string `json:"build_number"`
	BaseURL     string `json:"base_url"`
}

// BundleURL is where the Loader fetches the bundle for this config.
func (c Config) BundleURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/js/bundle_" + url.PathEscape(c.Locale) + ".js?rand=" + url.QueryEscape(c.BuildNumber)
}

// Resolver answers config lookups for widgets.
type Resolver struct {
	widgets       tenant.WidgetFinder
	baseURL       string
	buildNumber   string
	defaultLocale string
	locales       map[string]bool
}

// ResolverConfig carries the deployment values echoed in every Config.
type ResolverConfig struct {
	BaseURL       string
	BuildNumber   string
	DefaultLocale string
	Locales       []string
}

func NewResolver(widgets tenant.WidgetFinder, cfg ResolverConfig) *Resolver {
	locales := make(map[string]bool, len(cfg.Locales))
	for _, l := range cfg.Locales {
		locales[strings.ToLower(strings.TrimSpace(l))] = true
	}
	return &Resolver{
		widgets:       widgets,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		buildNumber:   cfg.BuildNumber,
		defaultLocale: cfg.DefaultLocale,
		locales:       locales,
	}
}

// Resolve validates id and returns its Config. Disabled widgets and widgets
// of disabled clients resolve as ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, id string) (Config, error) {
	w, err := r.Lookup(ctx, id)
	if err != nil {
		return Config{}, err
	}
	locale := strings.ToLower(strings.TrimSpace(w.Locale))
	if !r.locales[locale] {
		locale = r.defaultLocale
	}
	return Config{Locale: locale, BuildNumber: r.buildNumber, BaseURL: r.baseURL}, nil
}

// Lookup returns the active widget for id.
func (r *Resolver) Lookup(ctx context.Context, id string) (*tenant.Widget, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	w, err := r.widgets.Find(ctx, strings.ToLower(id))
	if errors.Is(err, tenant.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("widget lookup: %w", err)
	}
	if !w.Active() {
		return nil, ErrNotFound
	}
	return w, nil
}

// SupportsLocale reports whether a bundle is served for locale.
func (r *Resolver) SupportsLocale(locale string) bool {
	return r.locales[strings.ToLower(locale)]
}
