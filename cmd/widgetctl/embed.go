package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"jsonwidget.org/internal/client"
	"jsonwidget.org/internal/widget"
)

func newEmbedCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "embed", Short: "Inspect widget embeds on host pages"}

	var pageURL, file, fallback string
	check := &cobra.Command{
		Use:   "check",
		Short: "Run the loader's discovery and bootstrap steps against a host page",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (pageURL == "") == (file == "") {
				return fmt.Errorf("exactly one of --url or --file is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()

			var body io.ReadCloser
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				body = f
			} else {
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
				if err != nil {
					return err
				}
				resp, err := http.DefaultClient.Do(req)
				if err != nil {
					return fmt.Errorf("fetch page: %w", err)
				}
				if resp.StatusCode != http.StatusOK {
					resp.Body.Close()
					return fmt.Errorf("fetch page: status %d", resp.StatusCode)
				}
				body = resp.Body
			}
			defer body.Close()
			return checkEmbed(ctx, cmd.OutOrStdout(), body, pageURL, fallback)
		},
	}
	check.Flags().StringVar(&pageURL, "url", "", "Host page URL")
	check.Flags().StringVar(&file, "file", "", "Host page HTML file")
	check.Flags().StringVar(&fallback, "fallback-base", "https://widget.jsonwidget.org", "Origin used when the script URL has none")

	cmd.AddCommand(check)
	return cmd
}

// checkEmbed reports each loader step for the page in r. Relative script
// sources are resolved against pageURL when one is known.
func checkEmbed(ctx context.Context, out io.Writer, r io.Reader, pageURL, fallback string) error {
	page, err := widget.ParseHTMLScripts(r)
	if err != nil {
		return err
	}
	found, err := widget.Discover(page)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}
	scriptURL := resolveScript(pageURL, found.ScriptURL)
	fmt.Fprintf(out, "script:   %s (%s)\n", scriptURL, found.Method)
	fmt.Fprintf(out, "widget:   %s\n", found.WidgetID)

	c := client.New(fallback)
	booted, err := c.Bootstrap(ctx, scriptURL)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	fmt.Fprintf(out, "origin:   %s\n", booted.Origin)
	fmt.Fprintf(out, "locale:   %s\n", booted.Config.Locale)
	fmt.Fprintf(out, "build:    %s\n", booted.Config.BuildNumber)
	fmt.Fprintf(out, "bundle:   %s (%d bytes)\n", booted.Config.BundleURL(), booted.BundleSize)
	fmt.Fprintln(out, "ok")
	return nil
}

func resolveScript(pageURL, src string) string {
	if pageURL == "" || strings.HasPrefix(src, "//") {
		return src
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}
