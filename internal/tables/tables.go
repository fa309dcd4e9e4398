// Package tables turns parsed HTML trees into rows of text and writes them out
// as CSV, one file per table.
package tables

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/hyperifyio/tablegrab/internal/htmltree"
)

// Table is the text of one HTML table. The first row holds the header fields
// when the source table has them.
type Table struct {
	Rows [][]string
}

// Width returns the number of fields in the widest row.
func (t Table) Width() int {
	w := 0
	for _, r := range t.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Collect finds every table under root in document order. A table nested in
// another table is part of its enclosing cell, not a separate result.
func Collect(tree *htmltree.Tree, root htmltree.NodeID) []Table {
	var out []Table
	tree.Walk(root, func(id htmltree.NodeID) bool {
		if tree.TagName(id) != "table" {
			return true
		}
		out = append(out, fromTable(tree, id))
		return false
	})
	return out
}

func fromTable(tree *htmltree.Tree, table htmltree.NodeID) Table {
	var t Table
	for i, row := range rowsOf(tree, table) {
		var cells []htmltree.NodeID
		if i == 0 {
			cells = tree.FindTagsString(row, "th")
		}
		if len(cells) == 0 {
			cells = tree.FindTagsString(row, "td")
		}
		if len(cells) == 0 {
			continue
		}
		fields := make([]string, 0, len(cells))
		for _, c := range cells {
			fields = append(fields, cellText(tree, c))
		}
		t.Rows = append(t.Rows, fields)
	}
	return t
}

// rowsOf returns the table's rows, including those grouped under
// thead/tbody/tfoot, in document order.
func rowsOf(tree *htmltree.Tree, table htmltree.NodeID) []htmltree.NodeID {
	var rows []htmltree.NodeID
	for _, c := range tree.Node(table).Children {
		switch tree.TagName(c) {
		case "tr":
			rows = append(rows, c)
		case "thead", "tbody", "tfoot":
			rows = append(rows, tree.FindTagsString(c, "tr")...)
		}
	}
	return rows
}

func cellText(tree *htmltree.Tree, id htmltree.NodeID) string {
	s := strings.Join(strings.Fields(tree.Text(id)), " ")
	return norm.NFC.String(s)
}

// WriteCSV writes one line per row. Every field is double-quoted with inner
// quotes doubled, fields are separated by commas and lines end in "\n".
func WriteCSV(w io.Writer, t Table) error {
	bw := bufio.NewWriter(w)
	for _, row := range t.Rows {
		for i, field := range row {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.WriteByte('"')
			bw.WriteString(strings.ReplaceAll(field, `"`, `""`))
			bw.WriteByte('"')
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteFiles writes each table to dir as <base>-<n>.csv, n starting at 1, and
// returns the written paths.
func WriteFiles(dir, base string, tables []Table) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	paths := make([]string, 0, len(tables))
	for i, t := range tables {
		path := filepath.Join(dir, fmt.Sprintf("%s-%d.csv", base, i+1))
		if err := writeFile(path, t); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, t Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
