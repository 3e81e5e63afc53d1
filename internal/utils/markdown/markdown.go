package markdown

import (
	"bytes"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// FilterOptions controls which parts of the document survive conversion.
type FilterOptions struct {
	// MainContentOnly narrows the document to its main content region and
	// strips navigation, ads, and other boilerplate.
	MainContentOnly bool
	// IncludeTags keeps only matching selectors (tags, classes, ids).
	IncludeTags []string
	// ExcludeTags removes matching selectors before conversion.
	ExcludeTags []string
}

// Convert converts HTML to markdown after applying the content filters.
func Convert(html string, opts FilterOptions) string {
	sel := selectContent(html, opts)
	if sel == nil {
		return ""
	}

	body, err := sel.Html()
	if err != nil {
		return ""
	}

	conv := md.NewConverter("", true, nil)
	out, err := conv.ConvertString(body)
	if err != nil {
		return ""
	}

	out = RemoveDuplicates(out)
	out = CleanBoilerplate(out)
	out = regexp.MustCompile(`\n{3,}`).ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// ExtractText returns the document's visible text after filtering.
func ExtractText(html string, opts FilterOptions) string {
	sel := selectContent(html, opts)
	if sel == nil {
		return ""
	}
	text := strings.TrimSpace(sel.Text())
	return regexp.MustCompile(`\n{3,}`).ReplaceAllString(text, "\n\n")
}

var boilerplateKeywords = []string{
	"cookie", "consent", "banner", "navbar", "nav-", "menu-", "header",
	"pagination", "share", "search-", "signup", "signin", "login",
	"ad-", "advert", "promo", "modal", "popup", "dialog",
	"breadcrumbs", "breadcrumb", "sidebar",
}

func selectContent(html string, opts FilterOptions) *goquery.Selection {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var sel *goquery.Selection

	// An explicit include list takes precedence over main-content detection.
	if len(opts.IncludeTags) > 0 {
		sel = doc.Find(strings.Join(opts.IncludeTags, ", "))
		if sel.Length() == 0 {
			sel = doc.Find("body")
		}
	} else if opts.MainContentOnly {
		for _, tag := range []string{"main", "[role=\"main\"]", "article", "#content", "#main"} {
			if doc.Find(tag).Length() > 0 {
				sel = doc.Find(tag).First()
				break
			}
		}
	}
	if sel == nil {
		sel = doc.Find("body")
	}

	sel.Find("script, style, noscript, iframe, svg").Each(func(_ int, s *goquery.Selection) { s.Remove() })

	if opts.MainContentOnly {
		sel.Find("nav, header, aside, form, button, input").Each(func(_ int, s *goquery.Selection) { s.Remove() })
		sel.Find("[role=\"navigation\"], [role=\"banner\"], [role=\"contentinfo\"], [aria-label*=\"cookie\" i], [aria-modal]").Each(func(_ int, s *goquery.Selection) { s.Remove() })

		sel.Find("[class], [id]").Each(func(_ int, node *goquery.Selection) {
			classVal, _ := node.Attr("class")
			idVal, _ := node.Attr("id")
			lower := strings.ToLower(classVal + " " + idVal)
			for _, kw := range boilerplateKeywords {
				if strings.Contains(lower, kw) {
					node.Remove()
					break
				}
			}
		})
	}

	for _, t := range opts.ExcludeTags {
		sel.Find(t).Each(func(_ int, s *goquery.Selection) { s.Remove() })
	}

	return sel
}

// RemoveDuplicates drops repeated link and date lines that converters tend
// to emit for image galleries and article listings.
func RemoveDuplicates(markdown string) string {
	var cleaned bytes.Buffer
	lines := strings.Split(markdown, "\n")

	seenLinks := make(map[string]bool)
	seenDates := make(map[string]bool)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		normalized := normalizeDates(normalizeLinks(trimmed))

		if isLinkLine(trimmed) {
			if seenLinks[normalized] {
				continue
			}
			seenLinks[normalized] = true
		}
		if isDateLine(trimmed) {
			if seenDates[normalized] {
				continue
			}
			seenDates[normalized] = true
		}

		cleaned.WriteString(trimmed + "\n")
	}

	return cleaned.String()
}

func normalizeDates(line string) string {
	datePattern := `\b\d{4}/\d{2}/\d{2}\b|\b\d{2}/\d{2}/\d{4}\b|\b[A-Za-z]{3} \d{1,2}, \d{4}\b`
	return regexp.MustCompile(datePattern).ReplaceAllString(line, "DATE")
}

func normalizeLinks(line string) string {
	return regexp.MustCompile(`https?://[^\s)]+`).ReplaceAllString(line, "LINK")
}

func isLinkLine(line string) bool {
	linkPattern := `^!\[[^\]]*\]\((https?:\/\/[^\)]+)\)(\]\([^\)]+\))?$`
	return regexp.MustCompile(linkPattern).MatchString(line)
}

func isDateLine(line string) bool {
	datePattern := `^[A-Za-z]{3}\s\d{1,2},\s\d{4}\\?$`
	return regexp.MustCompile(datePattern).MatchString(line)
}

// fixInvalidEscapes repairs escape sequences that break JSON serialization
// of converted markdown.
func fixInvalidEscapes(text string) string {
	invalidEscapePattern := `\\([^\\nrt"'bfvx0-7])`
	text = regexp.MustCompile(invalidEscapePattern).ReplaceAllString(text, "$1")
	text = strings.ReplaceAll(text, "\\\\", "\\")
	return fixControlCharacters(text)
}

// fixControlCharacters strips control and invisible Unicode characters that
// are invalid inside JSON strings.
func fixControlCharacters(text string) string {
	controlCharsPattern := `[\x00-\x08\x0B\x0C\x0E-\x1F]`
	text = regexp.MustCompile(controlCharsPattern).ReplaceAllString(text, "")

	invisibleChars := []string{
		"\u200B", // zero-width space
		"\u200C", // zero-width non-joiner
		"\u200D", // zero-width joiner
		"\u200E", // left-to-right mark
		"\u200F", // right-to-left mark
		"\u2028", // line separator
		"\u2029", // paragraph separator
		"\uFEFF", // byte order mark
		"\uFFFD", // replacement character
	}
	for _, char := range invisibleChars {
		text = strings.ReplaceAll(text, char, "")
	}

	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\uFFFF", "")
	return text
}

// CleanBoilerplate removes markdown-level noise after conversion.
func CleanBoilerplate(mdText string) string {
	lines := strings.Split(mdText, "\n")
	out := make([]string, 0, len(lines))

	imgRe := regexp.MustCompile(`!\[[^\]]*\]\([^\)]+\)`) // markdown images

	for _, l := range lines {
		line := strings.TrimSpace(l)
		// Blank lines survive as paragraph breaks; runs collapse below.
		if line == "" {
			out = append(out, "")
			continue
		}

		// Drop pure image lines
		if imgRe.MatchString(line) && len(strings.TrimSpace(imgRe.ReplaceAllString(line, ""))) == 0 {
			continue
		}

		line = fixInvalidEscapes(line)
		out = append(out, line)
	}

	cleaned := strings.Join(out, "\n")
	cleaned = regexp.MustCompile(`\n{3,}`).ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}
