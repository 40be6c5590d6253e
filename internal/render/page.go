package render

import (
	"bytes"
	"html"
	"maps"
	"slices"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// renderPage assembles the full HTML document for one page.
func (r *HTMLRenderer) renderPage(doc site.Document, elements map[string]site.Element, page site.Page) []byte {
	s := doc.Site
	lang := s.Lang
	if lang == "" {
		lang = "en"
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString(`<html lang="` + html.EscapeString(lang) + "\">\n")
	b.WriteString("<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	b.WriteString("<title>" + html.EscapeString(pageTitle(page, s)) + "</title>\n")
	if s.Description != "" {
		b.WriteString(`<meta name="description" content="` + html.EscapeString(s.Description) + "\">\n")
	}
	for _, name := range slices.Sorted(maps.Keys(s.Meta)) {
		b.WriteString(`<meta name="` + html.EscapeString(name) + `" content="` + html.EscapeString(s.Meta[name]) + "\">\n")
	}
	if s.Favicon != "" {
		b.WriteString(`<link rel="icon" href="` + html.EscapeString(s.Favicon) + "\">\n")
	}
	if fonts := googleFontsURL(doc.Fonts); fonts != "" {
		b.WriteString(`<link rel="stylesheet" href="` + html.EscapeString(fonts) + "\">\n")
	}
	b.WriteString(`<link rel="stylesheet" href="` + StylesheetName + "\">\n")
	if s.Head != "" {
		// Head is site-owner HTML and goes in unescaped.
		b.WriteString(s.Head + "\n")
	}
	b.WriteString("</head>\n")
	b.WriteString("<body>\n")

	active := make(map[string]bool)
	for _, id := range page.Elements {
		r.renderElement(&b, elements, id, active)
	}

	b.WriteString("</body>\n")
	b.WriteString("</html>\n")
	return []byte(b.String())
}

func pageTitle(page site.Page, s site.Settings) string {
	switch {
	case page.Name != "" && s.Name != "":
		return page.Name + " - " + s.Name
	case page.Name != "":
		return page.Name
	default:
		return s.Name
	}
}

// renderElement writes one element and its children. Unknown ids are
// skipped with a warning; the active set breaks reference cycles.
func (r *HTMLRenderer) renderElement(b *strings.Builder, elements map[string]site.Element, id string, active map[string]bool) {
	el, ok := elements[id]
	if !ok {
		r.logger.Warn("skipping reference to unknown element", logfields.EntityID(id))
		return
	}
	if active[id] {
		r.logger.Warn("skipping element reference cycle", logfields.EntityID(id))
		return
	}
	active[id] = true
	defer delete(active, id)

	if el.Type == site.ElementTypeImage {
		b.WriteString("<img" + elementAttrs(el) + ">\n")
		return
	}

	var fallback string
	switch el.Type {
	case site.ElementTypeText:
		fallback = "p"
	case site.ElementTypeLink:
		fallback = "a"
	default:
		fallback = "div"
	}
	tag := safeTag(strings.ToLower(el.Tag), fallback)

	b.WriteString("<" + tag + elementAttrs(el) + ">")
	if el.Content != "" {
		if el.Type == site.ElementTypeMarkdown {
			b.WriteString("\n")
			b.WriteString(r.markdownHTML(el))
		} else {
			b.WriteString(html.EscapeString(el.Content))
		}
	}
	if len(el.Children) > 0 {
		b.WriteString("\n")
		for _, child := range el.Children {
			r.renderElement(b, elements, child, active)
		}
	}
	b.WriteString("</" + tag + ">\n")
}

// markdownHTML converts markdown element content. Conversion failures fall
// back to the escaped source text so a bad element cannot sink the page.
func (r *HTMLRenderer) markdownHTML(el site.Element) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(el.Content), &buf); err != nil {
		r.logger.Warn("markdown conversion failed", logfields.EntityID(el.ID), logfields.Error(err))
		return html.EscapeString(el.Content)
	}
	return buf.String()
}

// elementAttrs serializes the element's attributes, classes and inline
// style into a sorted attribute string. The structured Style map wins over
// a raw style attribute.
func elementAttrs(el site.Element) string {
	attrs := maps.Clone(el.Attributes)
	if attrs == nil {
		attrs = make(map[string]string)
	}
	if len(el.Classes) > 0 {
		if c := attrs["class"]; c != "" {
			attrs["class"] = c + " " + strings.Join(el.Classes, " ")
		} else {
			attrs["class"] = strings.Join(el.Classes, " ")
		}
	}
	if len(el.Style) > 0 {
		attrs["style"] = inlineStyle(el.Style)
	}

	var b strings.Builder
	for _, name := range slices.Sorted(maps.Keys(attrs)) {
		b.WriteString(" " + name + `="` + html.EscapeString(attrs[name]) + `"`)
	}
	return b.String()
}

func inlineStyle(style map[string]string) string {
	parts := make([]string, 0, len(style))
	for _, prop := range slices.Sorted(maps.Keys(style)) {
		parts = append(parts, prop+": "+style[prop])
	}
	return strings.Join(parts, "; ")
}

// safeTag accepts plain element names; anything else falls back so a
// malformed tag cannot break the surrounding markup.
func safeTag(tag, fallback string) string {
	if tag == "" {
		return fallback
	}
	for i, r := range tag {
		switch {
		case r >= 'a' && r <= 'z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return fallback
		}
	}
	return tag
}
