package widget

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

var (
	ErrNoScript   = errors.New("widget script element not found")
	ErrNoWidgetID = errors.New("no widget id in script URL")
)

// Method records how the widget script was found.
type Method string

const (
	MethodCurrentScript Method = "current-script"
	MethodScan          Method = "scan"
)

// ScriptSource exposes the script elements of a host page to the discovery chain.
type ScriptSource interface {
	// CurrentScript returns the src of the executing script when the
	// runtime exposes one.
	CurrentScript() (string, bool)
	// Scripts returns the src attribute of every script element, in document order.
	Scripts() []string
}

// Discovery is the result of locating the widget's entry script.
type Discovery struct {
	ScriptURL string
	WidgetID  string
	Method    Method
}

// Discover locates the widget script: the current script first, then any
// script whose src carries a widget id. Both failures are fatal.
func Discover(src ScriptSource) (Discovery, error) {
	if current, ok := src.CurrentScript(); ok && current != "" {
		id, ok := ExtractWidgetID(current)
		if !ok {
			return Discovery{}, fmt.Errorf("%w: %s", ErrNoWidgetID, current)
		}
		return Discovery{ScriptURL: current, WidgetID: id, Method: MethodCurrentScript}, nil
	}
	for _, s := range src.Scripts() {
		if id, ok := ExtractWidgetID(s); ok {
			return Discovery{ScriptURL: s, WidgetID: id, Method: MethodScan}, nil
		}
	}
	return Discovery{}, ErrNoScript
}

// Page is a parsed host page. It never exposes a current script, matching
// a runtime without document.currentScript.
type Page struct {
	srcs []string
}

func (p Page) CurrentScript() (string, bool) { return "", false }
func (p Page) Scripts() []string             { return p.srcs }

// ParseHTMLScripts collects the src attributes of all script elements in r.
func ParseHTMLScripts(r io.Reader) (Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}
	var page Page
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			for _, attr := range n.Attr {
				if strings.EqualFold(attr.Key, "src") && strings.TrimSpace(attr.Val) != "" {
					page.srcs = append(page.srcs, strings.TrimSpace(attr.Val))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return page, nil
}

// Executing is a ScriptSource for a runtime that does expose the current script.
type Executing struct {
	Current string
	All     []string
}

func (e Executing) CurrentScript() (string, bool) { return e.Current, e.Current != "" }
func (e Executing) Scripts() []string             { return e.All }
