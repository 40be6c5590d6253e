package site

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestElementCloneIsDeep(t *testing.T) {
	orig := Element{
		ID:         "el-1",
		Type:       ElementTypeContainer,
		Attributes: map[string]string{"role": "main"},
		Classes:    []string{"hero"},
		Style:      map[string]string{"color": "red"},
		Children:   []string{"el-2"},
	}

	c := orig.Clone()
	c.Attributes["role"] = "banner"
	c.Style["color"] = "blue"
	c.Classes[0] = "footer"
	c.Children[0] = "el-9"

	require.Equal(t, "main", orig.Attributes["role"])
	require.Equal(t, "red", orig.Style["color"])
	require.Equal(t, "hero", orig.Classes[0])
	require.Equal(t, "el-2", orig.Children[0])
}

func TestPageCloneIsDeep(t *testing.T) {
	orig := Page{ID: "p1", Name: "Home", Elements: []string{"el-1"}}

	c := orig.Clone()
	c.Elements[0] = "el-2"

	require.Equal(t, "el-1", orig.Elements[0])
}

func TestStyleRuleCloneIsDeep(t *testing.T) {
	orig := StyleRule{
		ID:           "s1",
		Selectors:    []string{".hero"},
		Declarations: map[string]string{"display": "flex"},
	}

	c := orig.Clone()
	c.Selectors[0] = ".footer"
	c.Declarations["display"] = "grid"

	require.Equal(t, ".hero", orig.Selectors[0])
	require.Equal(t, "flex", orig.Declarations["display"])
}

func TestWithEntityIDReturnsCopy(t *testing.T) {
	orig := Page{ID: "p1", Name: "Home"}
	renamed := orig.WithEntityID("p2")

	require.Equal(t, "p1", orig.ID)
	require.Equal(t, "p2", renamed.ID)
}

func TestDocumentElementIndex(t *testing.T) {
	doc := Document{
		Elements: []Element{
			{ID: "el-1", Type: ElementTypeText, Content: "hello"},
			{ID: "el-2", Type: ElementTypeImage},
		},
	}

	idx := doc.ElementIndex()
	require.Len(t, idx, 2)
	require.Equal(t, "hello", idx["el-1"].Content)

	_, ok := doc.PageByID("missing")
	require.False(t, ok)
}
