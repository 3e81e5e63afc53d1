package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const samplePage = `<html><head><title>Sample</title></head><body>
<nav><a href="/">Home</a><a href="/about">About</a></nav>
<main>
  <h1>Welcome</h1>
  <p>This is the main content of the page.</p>
  <div class="cookie-banner">We use cookies</div>
</main>
<footer class="sidebar">footer junk</footer>
</body></html>`

func TestConvertMainContentOnly(t *testing.T) {
	out := Convert(samplePage, FilterOptions{MainContentOnly: true})

	assert.Contains(t, out, "Welcome")
	assert.Contains(t, out, "main content")
	assert.NotContains(t, out, "We use cookies")
	assert.NotContains(t, out, "footer junk")
	assert.NotContains(t, out, "About")
}

func TestConvertFullBody(t *testing.T) {
	out := Convert(samplePage, FilterOptions{})
	assert.Contains(t, out, "Welcome")
	assert.Contains(t, out, "About")
}

func TestConvertIncludeTagsWin(t *testing.T) {
	html := `<body><article><p>kept</p></article><section><p>dropped</p></section></body>`
	out := Convert(html, FilterOptions{MainContentOnly: true, IncludeTags: []string{"article"}})
	assert.Contains(t, out, "kept")
	assert.NotContains(t, out, "dropped")
}

func TestConvertExcludeTags(t *testing.T) {
	html := `<body><p>kept</p><aside class="promo-box"><p>buy now</p></aside></body>`
	out := Convert(html, FilterOptions{ExcludeTags: []string{"aside"}})
	assert.Contains(t, out, "kept")
	assert.NotContains(t, out, "buy now")
}

func TestExtractText(t *testing.T) {
	out := ExtractText(samplePage, FilterOptions{MainContentOnly: true})
	assert.Contains(t, out, "Welcome")
	assert.NotContains(t, out, "<h1>")
}

func TestRemoveDuplicatesDropsRepeatedLinkLines(t *testing.T) {
	md := "![img](https://x.test/a.png)\n![img](https://x.test/a.png)\nsome text\n"
	out := RemoveDuplicates(md)
	assert.Equal(t, 1, strings.Count(out, "a.png"))
	assert.Contains(t, out, "some text")
}

func TestCleanBoilerplateStripsImageOnlyLines(t *testing.T) {
	md := "# Title\n\n![decoration](https://x.test/banner.jpg)\n\nBody text."
	out := CleanBoilerplate(md)
	assert.NotContains(t, out, "banner.jpg")
	assert.Contains(t, out, "Body text.")
}

func TestFixControlCharacters(t *testing.T) {
	dirty := "plain\u200Btext" + "\uFEFF" + "with\u200Dnoise"
	assert.Equal(t, "plaintextwithnoise", fixControlCharacters(dirty))
}

func TestConvertKeepsParagraphBreaks(t *testing.T) {
	html := "<body><p>first paragraph</p><p>second paragraph</p></body>"
	out := Convert(html, FilterOptions{})
	assert.Contains(t, out, "first paragraph\n\nsecond paragraph")
}

func TestCleanBoilerplateKeepsParagraphBreaks(t *testing.T) {
	md := "First paragraph.\n\nSecond paragraph.\n\n\n\nThird paragraph."
	out := CleanBoilerplate(md)

	assert.Contains(t, out, "First paragraph.\n\nSecond paragraph.")
	assert.Contains(t, out, "Second paragraph.\n\nThird paragraph.")
	assert.NotContains(t, out, "\n\n\n")
}

func TestConvertCollapsesBlankRuns(t *testing.T) {
	html := "<body><p>a</p><br><br><br><p>b</p></body>"
	out := Convert(html, FilterOptions{})
	assert.NotContains(t, out, "\n\n\n")
}
