// Package htmlconv converts fetched HTML into markdown suitable for the
// document store. Boilerplate elements are stripped first so the resulting
// markdown, and therefore its content hash, depends only on the page body.
package htmlconv

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// boilerplateSelector matches elements that carry navigation or page chrome
// rather than content.
const boilerplateSelector = "script, style, noscript, iframe, form, nav, header, footer, aside, svg"

// Result is the outcome of one conversion.
type Result struct {
	// Markdown is the converted body content.
	Markdown string
	// Title is the document title from <title> or the first <h1>.
	Title string
}

// Convert strips boilerplate from the HTML document and converts the
// remainder to markdown.
func Convert(html string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	doc.Find(boilerplateSelector).Remove()

	body := doc.Find("body")
	var fragment string
	if body.Length() > 0 {
		fragment, err = body.Html()
	} else {
		fragment, err = doc.Html()
	}
	if err != nil {
		return nil, fmt.Errorf("serialize html: %w", err)
	}

	conv := md.NewConverter("", true, nil)
	markdown, err := conv.ConvertString(fragment)
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}

	return &Result{
		Markdown: strings.TrimSpace(markdown),
		Title:    title,
	}, nil
}
