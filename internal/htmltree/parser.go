package htmltree

import (
	"errors"
	"fmt"

	"github.com/hyperifyio/tablegrab/internal/bytebuf"
)

var (
	// ErrInvalidHTML is returned for any failure of the extraction engine.
	ErrInvalidHTML = errors.New("htmltree: invalid html")
	// ErrEmptyDocument is returned for a zero-length document.
	ErrEmptyDocument = errors.New("htmltree: empty document")
)

// ParseError collapses every extraction failure into ErrInvalidHTML.
// Cause keeps the engine's error for logging. ParseError does not unwrap to it.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string {
	return ErrInvalidHTML.Error()
}

// Is matches ErrInvalidHTML.
func (e *ParseError) Is(target error) bool {
	return target == ErrInvalidHTML
}

// Parser owns the tree built from one document. Separate Parsers share no
// state and may run on different goroutines.
type Parser struct {
	tree *Tree
}

// NewParser returns a Parser with no document.
func NewParser() *Parser {
	return &Parser{}
}

// Parse builds the tree for buf, replacing any earlier one. Leading
// whitespace before the first tag is skipped. On failure no partial tree is
// kept.
func (p *Parser) Parse(buf *bytebuf.Buffer) error {
	p.Close()
	if buf.Len() == 0 {
		return ErrEmptyDocument
	}
	start := 0
	data := buf.Bytes()
	for start < len(data) && bytebuf.IsSpace(data[start]) {
		start++
	}

	if start == len(data) {
		return &ParseError{Cause: fmt.Errorf("whitespace-only document: %w", ErrExtraction)}
	}

	tree := NewTree()
	root := tree.add(NoNode)
	if _, err := Extract(buf, tree, root, start); err != nil {
		tree.Release()
		return &ParseError{Cause: err}
	}
	p.tree = tree
	return nil
}

// Tree returns the parsed tree, or nil before a successful Parse.
func (p *Parser) Tree() *Tree {
	return p.tree
}

// Root returns the document element, or NoNode before a successful Parse.
func (p *Parser) Root() NodeID {
	if p.tree == nil {
		return NoNode
	}
	return p.tree.Root()
}

// Close releases the tree and every node in it.
func (p *Parser) Close() {
	if p.tree != nil {
		p.tree.Release()
		p.tree = nil
	}
}

// Parse is a convenience wrapper that copies b into a buffer and parses it.
func Parse(b []byte) (*Tree, error) {
	p := NewParser()
	if err := p.Parse(bytebuf.NewFromBytes(b)); err != nil {
		return nil, err
	}
	return p.Tree(), nil
}
