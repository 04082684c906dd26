package ums

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractTable parses the first <table> of an attendance response.
//
// The portal sometimes wraps the markup in a JSON string, in which case it
// is unwrapped first. Any other body (including JSON that is not a string)
// is treated as markup. A body without a table yields an empty Table, that
// is how the portal reports a month without classes.
func ExtractTable(body []byte) Table {
	markup := body
	var wrapped string
	if json.Unmarshal(body, &wrapped) == nil {
		markup = []byte(wrapped)
	}

	out := Table{
		Headers: []string{},
		Rows:    [][]string{},
	}

	// the html parser only fails on read errors which a byte buffer cannot produce
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(markup))
	if err != nil {
		return out
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return out
	}

	table.Find("th").Each(func(_ int, th *goquery.Selection) {
		out.Headers = append(out.Headers, strings.TrimSpace(th.Text()))
	})
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		row := make([]string, 0, cells.Length())
		cells.Each(func(_ int, td *goquery.Selection) {
			row = append(row, strings.TrimSpace(td.Text()))
		})
		out.Rows = append(out.Rows, row)
	})

	return out
}

// ColumnIndices locates the "classes held" and "classes attended" columns by
// header text.
//
// The first header containing "held" is the held column, the first header
// containing "attended" but no "%" is the attended column. When a column is
// not found it falls back to third-from-last (held) and second-from-last
// (attended), which matches the layout the portal has used so far but is not
// guaranteed. Without headers the fallback is negative and counts from the
// end of each row, see cellIndex. Callers must bounds check.
func ColumnIndices(headers []string) (held int, attended int) {
	held = -1
	attended = -1
	for i, h := range headers {
		lower := strings.ToLower(h)
		if held < 0 && strings.Contains(lower, "held") {
			held = i
		}
		if attended < 0 && strings.Contains(lower, "attended") && !strings.Contains(lower, "%") {
			attended = i
		}
	}
	if held < 0 {
		held = len(headers) - 3
	}
	if attended < 0 {
		attended = len(headers) - 2
	}
	return held, attended
}
