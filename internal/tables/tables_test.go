package tables

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/hyperifyio/tablegrab/internal/htmltree"
)

const pricesPage = `<!DOCTYPE html>
<html>
  <head><title>Prices</title></head>
  <body>
    <h1>Prices</h1>
    <table id="tea">
      <tr><th>Item</th><th>Cost</th></tr>
      <tr><td>Green tea</td><td>3.50</td></tr>
      <tr><td><b>Black</b> tea</td><td>2.75</td></tr>
    </table>
    <div>
      <table>
        <thead><tr><th>City</th><th>Note</th></tr></thead>
        <tbody>
          <tr><td>Oslo</td><td>said "hi"</td></tr>
          <tr><td>Turku</td><td>a, b</td></tr>
        </tbody>
      </table>
    </div>
  </body>
</html>`

func collectFrom(t *testing.T, doc string) []Table {
	t.Helper()
	tree, err := htmltree.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return Collect(tree, tree.Root())
}

func TestCollect_RowsAndHeaders(t *testing.T) {
	got := collectFrom(t, pricesPage)
	if len(got) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(got))
	}
	if h := strings.Join(got[0].Rows[0], "|"); h != "Item|Cost" {
		t.Fatalf("unexpected header: %q", h)
	}
	if len(got[0].Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got[0].Rows))
	}
	if c := got[0].Rows[2][0]; c != "tea Black" {
		t.Fatalf("expected cell text content-first, got %q", c)
	}
	if len(got[1].Rows) != 3 || got[1].Rows[1][1] != `said "hi"` {
		t.Fatalf("unexpected second table: %#v", got[1].Rows)
	}
}

// The in-house tree must agree with an independent HTML5 parser on simple,
// well-formed tables.
func TestCollect_AgreesWithGoquery(t *testing.T) {
	page := strings.Replace(pricesPage, "<td><b>Black</b> tea</td>", "<td>Black tea</td>", 1)
	got := collectFrom(t, page)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatalf("goquery: %v", err)
	}
	var want []Table
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var tb Table
		table.Find("tr").Each(func(i int, tr *goquery.Selection) {
			cells := tr.Find("td")
			if i == 0 && tr.Find("th").Length() > 0 {
				cells = tr.Find("th")
			}
			var row []string
			cells.Each(func(_ int, c *goquery.Selection) {
				row = append(row, strings.Join(strings.Fields(c.Text()), " "))
			})
			tb.Rows = append(tb.Rows, row)
		})
		want = append(want, tb)
	})

	if len(got) != len(want) {
		t.Fatalf("table count: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if g, w := render(got[i]), render(want[i]); g != w {
			t.Fatalf("table %d differs:\n got: %s\nwant: %s", i, g, w)
		}
	}
}

func TestCollect_NestedTableIsPartOfCell(t *testing.T) {
	got := collectFrom(t, `<div><table><tr><td>outer<table><tr><td>inner</td></tr></table></td></tr></table></div>`)
	if len(got) != 1 {
		t.Fatalf("expected 1 table, got %d", len(got))
	}
	if c := got[0].Rows[0][0]; c != "outer inner" {
		t.Fatalf("unexpected cell: %q", c)
	}
}

func TestCollect_NoTables(t *testing.T) {
	if got := collectFrom(t, "<html><body><p>nothing</p></body></html>"); len(got) != 0 {
		t.Fatalf("expected no tables, got %d", len(got))
	}
}

func TestCollect_NormalizesText(t *testing.T) {
	// "e" followed by a combining acute accent composes to U+00E9.
	got := collectFrom(t, "<table><tr><td>  cafe\u0301 \n  au   lait </td></tr></table>")
	if c := got[0].Rows[0][0]; c != "caf\u00e9 au lait" {
		t.Fatalf("unexpected normalized cell: %q", c)
	}
}

func TestWriteCSV_QuotesEveryField(t *testing.T) {
	var buf bytes.Buffer
	tb := Table{Rows: [][]string{{"City", "Note"}, {"Oslo", `said "hi"`}, {"Turku", "a, b"}}}
	if err := WriteCSV(&buf, tb); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "\"City\",\"Note\"\n\"Oslo\",\"said \"\"hi\"\"\"\n\"Turku\",\"a, b\"\n"
	if buf.String() != want {
		t.Fatalf("unexpected csv:\n%s", buf.String())
	}
}

func TestWriteFiles_OnePerTable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	tables := collectFrom(t, pricesPage)
	paths, err := WriteFiles(dir, "prices", tables)
	if err != nil {
		t.Fatalf("write files: %v", err)
	}
	if len(paths) != 2 || filepath.Base(paths[1]) != "prices-2.csv" {
		t.Fatalf("unexpected paths: %v", paths)
	}
	b, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(b), "\"Item\",\"Cost\"\n\"Green tea\",\"3.50\"\n") {
		t.Fatalf("unexpected file content: %q", string(b))
	}
}

func TestWritePDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.pdf")
	tables := append(collectFrom(t, pricesPage), Table{})
	if err := WritePDF(path, "Prices", tables); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
}

func render(t Table) string {
	var lines []string
	for _, r := range t.Rows {
		lines = append(lines, strings.Join(r, "|"))
	}
	return strings.Join(lines, "\n")
}
