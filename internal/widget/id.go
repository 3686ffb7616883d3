package widget

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// idPattern matches a UUID v4 anywhere in a string.
var idPattern = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}`)

// ValidID reports whether id is exactly a UUID v4.
func ValidID(id string) bool {
	if len(id) != 36 || idPattern.FindString(id) != id {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// ExtractWidgetID returns the first UUID v4 found in rawURL, lowercased.
func ExtractWidgetID(rawURL string) (string, bool) {
	match := idPattern.FindString(rawURL)
	if match == "" {
		return "", false
	}
	if _, err := uuid.Parse(match); err != nil {
		return "", false
	}
	return strings.ToLower(match), true
}

// DeriveOrigin returns scheme://host of scriptURL, or fallback when the URL
// has no usable authority.
func DeriveOrigin(scriptURL, fallback string) string {
	u, err := url.Parse(strings.TrimSpace(scriptURL))
	if err != nil || u.Host == "" {
		return strings.TrimRight(fallback, "/")
	}
	switch u.Scheme {
	case "http", "https":
	case "":
		// protocol-relative src such as //widget.example.com/<id>
		u.Scheme = "https"
	default:
		return strings.TrimRight(fallback, "/")
	}
	return u.Scheme + "://" + u.Host
}
