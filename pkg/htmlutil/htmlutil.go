package htmlutil

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("umsassist.pkg.htmlutil")

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

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText returns the text content of the node with non-printable
// characters removed, runs of whitespace collapsed and the ends trimmed.
func CleanText(node *html.Node) string {
	text := GetText(node)
	text = innerWhitespace.ReplaceAllString(text, " ")
	text = removeNonPrintable(text)
	return strings.TrimSpace(text)
}

// Option is a single <option> inside a <select>, field names are kept
// capitalized in JSON since that is what frontends already consume.
type Option struct {
	Value string `json:"Value"`
	Text  string `json:"Text"`
}

// GetOptions returns the options under the selection, options with an
// empty value attribute (placeholders like "--Select--") are skipped.
func GetOptions(ctx context.Context, sel *goquery.Selection) []Option {
	_, span := tracer.Start(ctx, "GetOptions")
	defer span.End()

	options := []Option{}
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		value, _ := opt.Attr("value")
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		text := CleanText(opt.Get(0))
		options = append(options, Option{
			Value: value,
			Text:  text,
		})
		span.AddEvent("option", trace.WithAttributes(
			attribute.String("value", value),
			attribute.String("text", text),
		))
	})
	return options
}
