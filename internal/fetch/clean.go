package fetch

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// chromeSelector matches the page furniture stripped before extraction.
// Listing data never lives in these subtrees and they dominate page size.
const chromeSelector = "script, style, noscript, header, footer, nav, iframe, svg"

var (
	spaceRe = regexp.MustCompile(`[ \t]+`)
	nlRe    = regexp.MustCompile(`\n{3,}`)
)

// cleanPage strips chrome subtrees from raw markup and returns the reduced
// HTML plus its visible text with whitespace collapsed. Pattern extraction
// runs against both forms.
func cleanPage(raw string) (html, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", "", eris.Wrap(err, "fetch: parse html")
	}

	doc.Find(chromeSelector).Remove()

	html, err = doc.Html()
	if err != nil {
		return "", "", eris.Wrap(err, "fetch: serialize html")
	}

	body := doc.Find("body")
	if body.Length() > 0 {
		text = body.Text()
	} else {
		text = doc.Text()
	}
	return html, collapseWhitespace(text), nil
}

func collapseWhitespace(s string) string {
	// Normalize line endings first so the newline collapse sees plain \n.
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = nlRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
