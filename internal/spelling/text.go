package spelling

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var invisible = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// VisibleTexts returns the text of every element whose only child is a text
// node, with whitespace collapsed. Empty texts are dropped; order follows the
// document.
func VisibleTexts(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	var texts []string
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		if invisible[node.Data] {
			return
		}
		child := node.FirstChild
		if child == nil || child != node.LastChild || child.Type != html.TextNode {
			return
		}
		if t := CleanWhitespace(child.Data); t != "" {
			texts = append(texts, t)
		}
	})
	return texts, nil
}

// CleanWhitespace collapses runs of whitespace and trims both ends.
func CleanWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
