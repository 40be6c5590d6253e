package render

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractAssetRefs(t *testing.T) {
	page := []byte(`<!DOCTYPE html>
<html><head>
<link rel="icon" href="favicon.png">
<link rel="stylesheet" href="styles.css">
</head><body>
<img src="assets/cat.png" alt="cat">
<img src="assets/cat.png">
<img src="https://cdn.example.com/dog.png">
<img src="data:image/png;base64,AAAA">
<video src="assets/intro.mp4"></video>
<a href="about.html">about</a>
</body></html>`)

	refs := ExtractAssetRefs(page)
	require.Equal(t, []string{"favicon.png", "assets/cat.png", "assets/intro.mp4"}, refs)
}

func TestExtractAssetRefsEmptyDocument(t *testing.T) {
	require.Empty(t, ExtractAssetRefs([]byte("<p>no media here</p>")))
}
