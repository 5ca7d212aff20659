// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockElements are padded with spaces so that "<h4>Background</h4>Text"
// flattens to "Background Text".
const blockElements = "h1,h2,h3,h4,h5,h6,p,li,br,div,sec,title"

// stripMarkup removes inline HTML/JATS markup (italics, sub/superscripts,
// headings) from titles and abstracts and collapses whitespace.
func stripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapseSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseSpace(s)
	}
	blocks := doc.Find(blockElements)
	blocks.BeforeHtml(" ")
	blocks.AfterHtml(" ")
	return collapseSpace(doc.Text())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
