package widget

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

//go:embed assets/loader.js.tmpl assets/bundle.js.tmpl assets/frame.js
var assets embed.FS

var templates = template.Must(template.New("assets").Funcs(template.FuncMap{
	"js": jsLiteral,
}).ParseFS(assets, "assets/*.tmpl"))

// Global names shared by the loader, the bundle and the frame.
const (
	ReadyGlobal    = "__jsonWidgetBundle"
	CallbackQueue  = "jsonWidgetCallbacks"
	OnReadyGlobal  = "jsonWidgetOnReady"
	CommandGlobal  = "JsonWidget"
	ReadyMessage   = "jsonwidget:ready"
	StorageNameKey = "jsonwidget"
)

// Renderer produces the Loader script and the per-locale bundles. Output is
// rendered once at construction.
type Renderer struct {
	loader  []byte
	bundles map[string][]byte
}

// RendererConfig lists what the rendered scripts embed.
type RendererConfig struct {
	// FallbackBase is used when the Loader cannot derive an origin from its own URL.
	FallbackBase string
	Locales      []string
}

func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	r := &Renderer{bundles: make(map[string][]byte, len(cfg.Locales))}

	names := map[string]any{
		"FallbackBase":  strings.TrimRight(cfg.FallbackBase, "/"),
		"ReadyGlobal":   ReadyGlobal,
		"CallbackQueue": CallbackQueue,
		"OnReadyGlobal": OnReadyGlobal,
		"CommandGlobal": CommandGlobal,
		"ReadyMessage":  ReadyMessage,
		"StoragePrefix": StorageNameKey,
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "loader.js.tmpl", names); err != nil {
		return nil, fmt.Errorf("render loader: %w", err)
	}
	r.loader = buf.Bytes()

	frame, err := assets.ReadFile("assets/frame.js")
	if err != nil {
		return nil, err
	}
	for _, locale := range cfg.Locales {
		locale = strings.ToLower(strings.TrimSpace(locale))
		prelude, err := framePrelude(locale, names)
		if err != nil {
			return nil, err
		}
		source, err := EncodeFrameSource(prelude + string(frame))
		if err != nil {
			return nil, err
		}
		var b bytes.Buffer
		data := map[string]any{"ReadyGlobal": ReadyGlobal, "Locale": locale, "Source": source}
		if err := templates.ExecuteTemplate(&b, "bundle.js.tmpl", data); err != nil {
			return nil, fmt.Errorf("render bundle %s: %w", locale, err)
		}
		r.bundles[locale] = b.Bytes()
	}
	return r, nil
}

// Loader returns the host-page bootstrap script.
func (r *Renderer) Loader() []byte { return r.loader }

// Bundle returns the bundle for locale.
func (r *Renderer) Bundle(locale string) ([]byte, bool) {
	b, ok := r.bundles[strings.ToLower(locale)]
	return b, ok
}

// EncodeFrameSource turns the frame program into a single JS string
// literal. The result never contains "</script" so the Loader can write it
// inside an inline script element.
func EncodeFrameSource(src string) (string, error) {
	src = strings.ReplaceAll(src, "</script", `<\/script`)
	out, err := json.Marshal(src)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func framePrelude(locale string, names map[string]any) (string, error) {
	cfg := map[string]any{
		"locale":        locale,
		"messages":      Messages(locale),
		"commandGlobal": names["CommandGlobal"],
		"readyMessage":  names["ReadyMessage"],
		"storagePrefix": names["StoragePrefix"],
		"themes":        Themes,
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return "var JSONWIDGET_CONFIG = " + string(raw) + ";\n", nil
}

func jsLiteral(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
