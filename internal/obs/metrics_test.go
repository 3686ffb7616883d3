package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                      "/",
		"/metrics":                              "/metrics",
		"/auth":                                 "/auth",
		"/api/get-json/doc1":                    "/api/get-json/:title",
		"/api/delete-json/a%20b":                "/api/delete-json/:title",
		"/api/list-json-titles":                 "/api/list-json-titles",
		"/api/list-json-titles?x=1":             "/api/list-json-titles",
		"/script/widget/config/abc":             "/script/widget/config/:id",
		"/js/bundle_en.js":                      "/js/bundle_:locale.js",
		"/0b7e2f9c-2b1d-4c5e-9f3a-1d2e3f4a5b6c": "/:widget_id",
		"/deep/unknown/path":                    "other",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("short"); got != "***" {
		t.Fatalf("unexpected redaction: %s", got)
	}
	if got := Redact("abcdefghijkl"); got != "abcdefgh..." {
		t.Fatalf("unexpected redaction: %s", got)
	}
}

func TestParseLevel(t *testing.T) {
	for _, lvl := range []string{"", "debug", "info", "WARN", "error"} {
		if _, err := parseLevel(lvl); err != nil {
			t.Fatalf("parseLevel(%q): %v", lvl, err)
		}
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
