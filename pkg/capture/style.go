package capture

import (
	"strings"

	"golang.org/x/net/html"
)

// styleDecl is one property:value pair from an inline style attribute.
type styleDecl struct {
	prop string
	val  string
}

// parseStyle splits an inline style attribute into ordered declarations.
// Malformed segments are dropped.
func parseStyle(style string) []styleDecl {
	var decls []styleDecl
	for _, seg := range strings.Split(style, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		prop, val, ok := strings.Cut(seg, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.TrimSpace(val)
		if prop == "" || val == "" {
			continue
		}
		decls = append(decls, styleDecl{prop: prop, val: val})
	}
	return decls
}

// renderStyle joins declarations back into attribute form.
func renderStyle(decls []styleDecl) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d.prop+": "+d.val)
	}
	return strings.Join(parts, "; ")
}

// styleOf parses the element's inline style.
func styleOf(n *html.Node) []styleDecl {
	style, _ := getAttr(n, "style")
	return parseStyle(style)
}

// putDecl replaces the last declaration of prop, or appends one.
func putDecl(decls []styleDecl, prop, val string) []styleDecl {
	for i := len(decls) - 1; i >= 0; i-- {
		if decls[i].prop == prop {
			decls[i].val = val
			return decls
		}
	}
	return append(decls, styleDecl{prop: prop, val: val})
}

// getDecl returns the last value of prop, if declared.
func getDecl(decls []styleDecl, prop string) (string, bool) {
	for i := len(decls) - 1; i >= 0; i-- {
		if decls[i].prop == prop {
			return decls[i].val, true
		}
	}
	return "", false
}

// applyStyle writes declarations back to the element.
func applyStyle(n *html.Node, decls []styleDecl) {
	if len(decls) == 0 {
		removeAttr(n, "style")
		return
	}
	setAttr(n, "style", renderStyle(decls))
}
