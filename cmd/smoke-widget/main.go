package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"jsonwidget.org/internal/auth"
	"jsonwidget.org/internal/client"
	"jsonwidget.org/internal/documents"
)

// Defaults match the demo seed applied by `migrate seed`.
const (
	defaultBase   = "http://localhost:8080"
	defaultWidget = "6f1c2a9e-3b7d-4c1e-9a5f-2d8e7b4c1a03"
	defaultSecret = "demo-widget-secret"
	defaultUser   = "u1"
)

func main() {
	log.SetFlags(0)
	base := env("WIDGET_SMOKE_BASE", defaultBase)
	widgetID := env("WIDGET_SMOKE_WIDGET", defaultWidget)
	secret := env("WIDGET_SMOKE_SECRET", defaultSecret)
	userID := env("WIDGET_SMOKE_USER", defaultUser)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	c := client.New(base)
	booted, err := c.Bootstrap(ctx, base+"/"+widgetID)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	token, err := auth.MintUserToken(secret, userID, 5*time.Minute, time.Now())
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}
	if _, err := c.Authenticate(ctx, token, widgetID); err != nil {
		log.Fatalf("authenticate: %v", err)
	}

	title := fmt.Sprintf("smoke-%d", time.Now().UnixNano())
	renamed := title + "-renamed"
	data := json.RawMessage(`{"a":1}`)
	if err := c.Save(ctx, title, data, json.RawMessage(`{"type":"object"}`)); err != nil {
		log.Fatalf("save: %v", err)
	}
	doc, err := c.Get(ctx, title)
	if err != nil {
		log.Fatalf("get: %v", err)
	}
	if !bytes.Equal(doc.Data, data) {
		log.Fatalf("round trip mismatch: %s", doc.Data)
	}
	if err := c.Rename(ctx, title, renamed); err != nil {
		log.Fatalf("rename: %v", err)
	}
	list, err := c.List(ctx)
	if err != nil {
		log.Fatalf("list: %v", err)
	}
	if len(list) == 0 || list[0].Title != renamed {
		log.Fatalf("renamed document is not the most recent: %+v", list)
	}
	if err := c.Delete(ctx, renamed); err != nil {
		log.Fatalf("delete: %v", err)
	}
	if err := c.Delete(ctx, renamed); err != nil {
		log.Fatalf("second delete must succeed: %v", err)
	}
	if _, err := c.Get(ctx, renamed); !errors.Is(err, documents.ErrNotFound) {
		log.Fatalf("expected not found after delete, got %v", err)
	}
	if local, _ := c.Registry().List(ctx, "local"); len(local) != 0 {
		log.Fatalf("client fell back to its local registry: %+v", local)
	}

	fmt.Printf("widget smoke test passed: widget=%s locale=%s origin=%s\n", booted.WidgetID, booted.Config.Locale, booted.Origin)
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
