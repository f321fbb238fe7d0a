package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// Normalize trims a piece of displayed text and collapses runs of whitespace
// into a single space.
func Normalize(text string) string {
	text = removeNonPrintable(text)
	text = strings.TrimSpace(text)
	return innerWhitespace.ReplaceAllString(text, " ")
}

// NodeText is GetText followed by Normalize.
func NodeText(node *html.Node) string {
	return Normalize(GetText(node))
}

// ClassSelector turns a marker (a space separated list of classes as it would
// appear in a class attribute) into a css selector that matches elements
// carrying all of those classes.
//
// ex. "contrib-person float-left" -> ".contrib-person.float-left"
func ClassSelector(marker string) string {
	var out strings.Builder
	for _, class := range strings.Fields(marker) {
		out.WriteByte('.')
		out.WriteString(class)
	}
	return out.String()
}

// FindByClass finds all descendants of `sel` carrying every class in `marker`.
func FindByClass(sel *goquery.Selection, marker string) *goquery.Selection {
	return sel.Find(ClassSelector(marker))
}

// ParseFragment parses a piece of markup (ex. the outer html of a single element).
func ParseFragment(markup string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(markup))
}
