package render

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ExtractAssetRefs parses rendered HTML and collects local media
// references: img/source/video/audio src values plus icon link hrefs.
// External URLs, fragments and data URIs are skipped. The result keeps
// first-seen order without duplicates.
func ExtractAssetRefs(content []byte) []string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil
	}

	var refs []string
	seen := make(map[string]bool)
	add := func(ref string) {
		if ref == "" || isExternalRef(ref) || seen[ref] {
			return
		}
		seen[ref] = true
		refs = append(refs, ref)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "img", "source", "video", "audio":
				add(getAttr(n, "src"))
			case "link":
				if getAttr(n, "rel") == "icon" {
					add(getAttr(n, "href"))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return refs
}

func isExternalRef(ref string) bool {
	if strings.HasPrefix(ref, "//") || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "data:") {
		return true
	}
	u, err := url.Parse(ref)
	return err == nil && u.Scheme != ""
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
