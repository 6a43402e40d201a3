package markup

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, value string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func isCheckedVariantInput(n *html.Node) bool {
	return n.DataAtom == atom.Input && hasClass(n, classVariantChange) && hasAttr(n, "checked")
}

func isVariantSelect(n *html.Node) bool {
	return n.DataAtom == atom.Select && hasClass(n, classVariantChange)
}

// selectedOption mirrors browser behaviour: the selected option, else the first one.
func selectedOption(sel *html.Node) *html.Node {
	var first *html.Node
	var picked *html.Node
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Option {
				if first == nil {
					first = c
				}
				if picked == nil && hasAttr(c, "selected") {
					picked = c
				}
				continue
			}
			rec(c)
		}
	}
	rec(sel)
	if picked != nil {
		return picked
	}
	return first
}

func optionValue(opt *html.Node) string {
	if hasAttr(opt, "value") {
		return attr(opt, "value")
	}
	if opt.FirstChild != nil && opt.FirstChild.Type == html.TextNode {
		return strings.TrimSpace(opt.FirstChild.Data)
	}
	return ""
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func isTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true
	}
	return false
}
