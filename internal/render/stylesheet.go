package render

import (
	"maps"
	"slices"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// Stylesheet renders the style rule collection into one CSS document.
// Rules keep their collection order; declarations within a rule are sorted
// by property so repeated renders of the same document are byte-identical.
func Stylesheet(rules []site.StyleRule) string {
	var b strings.Builder
	for _, rule := range rules {
		if len(rule.Selectors) == 0 || len(rule.Declarations) == 0 {
			continue
		}
		block := ruleBlock(rule)
		if rule.Media == "" {
			b.WriteString(block)
			continue
		}
		b.WriteString("@media " + rule.Media + " {\n")
		for _, line := range strings.Split(strings.TrimSuffix(block, "\n"), "\n") {
			b.WriteString("  " + line + "\n")
		}
		b.WriteString("}\n")
	}
	return b.String()
}

func ruleBlock(rule site.StyleRule) string {
	var b strings.Builder
	b.WriteString(strings.Join(rule.Selectors, ", "))
	b.WriteString(" {\n")
	for _, prop := range slices.Sorted(maps.Keys(rule.Declarations)) {
		b.WriteString("  " + prop + ": " + rule.Declarations[prop] + ";\n")
	}
	b.WriteString("}\n")
	return b.String()
}

// googleFontsURL builds a Google Fonts css2 request covering every font
// with the google provider. Variants are treated as weights. Returns ""
// when no font uses the provider.
func googleFontsURL(fonts []site.Font) string {
	var params []string
	for _, f := range fonts {
		if f.Provider != site.FontProviderGoogle || f.Family == "" {
			continue
		}
		p := "family=" + strings.ReplaceAll(f.Family, " ", "+")
		if len(f.Variants) > 0 {
			p += ":wght@" + strings.Join(f.Variants, ";")
		}
		params = append(params, p)
	}
	if len(params) == 0 {
		return ""
	}
	return "https://fonts.googleapis.com/css2?" + strings.Join(params, "&") + "&display=swap"
}
