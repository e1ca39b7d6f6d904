package extract

import (
	"bytes"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// htmlNoise is removed before conversion.
const htmlNoise = "script, style, noscript, nav, iframe, svg, form"

// extractHTML strips non-content elements with goquery and converts the body to markdown,
// so <h1>..<h6> become "#" headings.
func extractHTML(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}
	doc.Find(htmlNoise).Remove()
	sel := doc.Find("body")
	if sel.Length() == 0 {
		sel = doc.Selection
	}
	body, err := sel.Html()
	if err != nil {
		return "", fmt.Errorf("render HTML: %w", err)
	}
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(body)
	if err != nil {
		return "", fmt.Errorf("convert HTML: %w", err)
	}
	lines := strings.Split(markdown, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n"), nil
}
