// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"unicode"

	"github.com/antchfx/xmlquery"

	"github.com/pdiddy/litmine/pkg/types"
)

const (
	// mentionRadius is the context window either side of a keyword match.
	mentionRadius = 200

	// maxParagraph caps the sentence-delimited span around a match.
	maxParagraph = 500

	// maxCaption caps a figure caption.
	maxCaption = 1000
)

// decoderOptions relaxes the XML decoder for JATS documents, which declare
// a DTD and may use HTML named entities.
var decoderOptions = xmlquery.ParserOptions{
	Decoder: &xmlquery.DecoderOptions{
		Strict: false,
		Entity: xml.HTMLEntity,
	},
}

// Parse extracts methods, results and discussion sections, keyword
// mentions and captioned figures from a JATS XML document. It returns an
// error wrapping ErrParse when the document is malformed or has no body.
func Parse(data []byte, keyword string) (*types.FulltextRecord, error) {
	doc, err := xmlquery.ParseWithOptions(bytes.NewReader(data), decoderOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	body := xmlquery.FindOne(doc, "//body")
	if body == nil {
		return nil, fmt.Errorf("%w: document has no body", ErrParse)
	}

	rec := &types.FulltextRecord{
		KeywordMentions: []types.KeywordMention{},
		Figures:         []types.Figure{},
	}
	kw := lowerRunes(strings.TrimSpace(keyword))

	// Text directly under body, outside any section.
	rec.KeywordMentions = append(rec.KeywordMentions,
		findMentions(flatten(body, true), kw, types.SectionUnclassified, "")...)

	kinds := make(map[*xmlquery.Node]types.SectionKind)
	for _, sec := range xmlquery.Find(body, ".//sec") {
		secType := strings.ToLower(sec.SelectAttr("sec-type"))
		heading := ""
		if t := sec.SelectElement("title"); t != nil {
			heading = strings.TrimSpace(flatten(t, false))
		}

		kind := classify(secType, strings.ToLower(heading))
		if kind == types.SectionUnclassified {
			kind = inheritedKind(sec, kinds)
		}
		kinds[sec] = kind

		switch kind {
		case types.SectionMethods:
			if rec.Methods == "" {
				rec.Methods = flatten(sec, false)
			}
		case types.SectionResults:
			if rec.Results == "" {
				rec.Results = flatten(sec, false)
			}
		case types.SectionDiscussion:
			if rec.Discussion == "" {
				rec.Discussion = flatten(sec, false)
			}
		}

		label := heading
		if label == "" {
			label = secType
		}
		rec.KeywordMentions = append(rec.KeywordMentions, findMentions(flatten(sec, true), kw, kind, label)...)
	}
	rec.TotalMentions = len(rec.KeywordMentions)

	for _, fig := range xmlquery.Find(doc, "//fig") {
		capNode := fig.SelectElement("caption")
		if capNode == nil {
			continue
		}
		caption := flatten(capNode, false)
		if caption == "" {
			continue
		}
		label := ""
		if l := fig.SelectElement("label"); l != nil {
			label = strings.TrimSpace(l.InnerText())
		}
		rec.Figures = append(rec.Figures, types.Figure{
			ID:              fig.SelectAttr("id"),
			Label:           label,
			Caption:         truncateRunes(caption, maxCaption),
			MentionsKeyword: len(kw) > 0 && indexRunes(lowerRunes(caption), kw, 0) >= 0,
		})
	}

	return rec, nil
}

// classify maps a section's declared type and lower-cased title to a kind.
// The first matching rule wins.
func classify(secType, title string) types.SectionKind {
	has := func(sub ...string) bool {
		for _, s := range sub {
			if strings.Contains(secType, s) || strings.Contains(title, s) {
				return true
			}
		}
		return false
	}
	switch {
	case has("method"):
		return types.SectionMethods
	case has("result"):
		return types.SectionResults
	case has("discuss", "conclusion"):
		return types.SectionDiscussion
	}
	return types.SectionUnclassified
}

// inheritedKind returns the kind of the nearest enclosing section. Find
// yields sections in document order, so ancestors are already in kinds.
func inheritedKind(sec *xmlquery.Node, kinds map[*xmlquery.Node]types.SectionKind) types.SectionKind {
	for p := sec.Parent; p != nil; p = p.Parent {
		if k, ok := kinds[p]; ok {
			return k
		}
	}
	return types.SectionUnclassified
}

// flatten joins the trimmed, non-empty text nodes under n with single
// spaces. With skipSections set, nested sec elements are left out so each
// piece of text belongs to exactly one section.
func flatten(n *xmlquery.Node, skipSections bool) string {
	var parts []string
	var walk func(*xmlquery.Node)
	walk = func(n *xmlquery.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case xmlquery.TextNode, xmlquery.CharDataNode:
				if s := strings.TrimSpace(c.Data); s != "" {
					parts = append(parts, s)
				}
			case xmlquery.ElementNode:
				if skipSections && c.Data == "sec" {
					continue
				}
				walk(c)
			}
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

// findMentions returns every case-insensitive occurrence of kw in text.
// Offsets and windows are measured in runes.
func findMentions(text string, kw []rune, kind types.SectionKind, heading string) []types.KeywordMention {
	if len(kw) == 0 || text == "" {
		return nil
	}
	runes := []rune(text)
	lower := lowerRunes(text)

	var out []types.KeywordMention
	for pos := indexRunes(lower, kw, 0); pos >= 0; pos = indexRunes(lower, kw, pos+len(kw)) {
		end := pos + len(kw)

		ctxStart := max(0, pos-mentionRadius)
		ctxEnd := min(len(runes), end+mentionRadius)

		paraStart := 0
		if i := lastIndexRunes(runes[:pos], []rune(". ")); i >= 0 {
			paraStart = i + 2
		}
		paraEnd := len(runes)
		if i := indexRunes(runes, []rune(". "), end); i >= 0 {
			paraEnd = i + 1
		}

		out = append(out, types.KeywordMention{
			Section:   kind,
			Heading:   heading,
			Context:   strings.TrimSpace(string(runes[ctxStart:ctxEnd])),
			Paragraph: truncateRunes(strings.TrimSpace(string(runes[paraStart:paraEnd])), maxParagraph),
			Position:  pos,
		})
	}
	return out
}

// lowerRunes lowers s one rune at a time so positions in the result line up
// with []rune(s).
func lowerRunes(s string) []rune {
	out := []rune(s)
	for i, r := range out {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func indexRunes(s, sub []rune, from int) int {
	for i := from; i+len(sub) <= len(s); i++ {
		if equalRunes(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}

func lastIndexRunes(s, sub []rune) int {
	for i := len(s) - len(sub); i >= 0; i-- {
		if equalRunes(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}

func equalRunes(a, b []rune) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
