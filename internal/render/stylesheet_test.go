package render

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

func TestStylesheetRendersRulesInOrder(t *testing.T) {
	rules := []site.StyleRule{
		{
			ID:        "r1",
			Selectors: []string{"h1", "h2"},
			Declarations: map[string]string{
				"margin": "0",
				"color":  "red",
			},
		},
		{
			ID:           "r2",
			Selectors:    []string{".hero"},
			Declarations: map[string]string{"display": "none"},
			Media:        "(max-width: 600px)",
		},
	}

	want := `h1, h2 {
  color: red;
  margin: 0;
}
@media (max-width: 600px) {
  .hero {
    display: none;
  }
}
`
	require.Equal(t, want, Stylesheet(rules))
}

func TestStylesheetSkipsIncompleteRules(t *testing.T) {
	rules := []site.StyleRule{
		{ID: "r1", Selectors: []string{"p"}},
		{ID: "r2", Declarations: map[string]string{"color": "blue"}},
	}
	require.Empty(t, Stylesheet(rules))
}

func TestGoogleFontsURL(t *testing.T) {
	fonts := []site.Font{
		{ID: "f1", Family: "Open Sans", Variants: []string{"400", "700"}, Provider: site.FontProviderGoogle},
		{ID: "f2", Family: "Lora", Provider: site.FontProviderGoogle},
		{ID: "f3", Family: "LocalFace", Provider: "custom"},
	}

	got := googleFontsURL(fonts)
	require.Equal(t, "https://fonts.googleapis.com/css2?family=Open+Sans:wght@400;700&family=Lora&display=swap", got)
}

func TestGoogleFontsURLEmptyWithoutProvider(t *testing.T) {
	fonts := []site.Font{{ID: "f1", Family: "LocalFace", Provider: "custom"}}
	require.Empty(t, googleFontsURL(fonts))
}
