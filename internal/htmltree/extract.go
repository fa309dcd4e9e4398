package htmltree

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/hyperifyio/tablegrab/internal/bytebuf"
)

var (
	// ErrExtraction reports a tag scan that did not start at '<' or found no tag name.
	ErrExtraction = errors.New("htmltree: extraction error")
	// ErrIncompleteTag reports a missing terminator for a tag, comment or closing tag.
	ErrIncompleteTag = errors.New("htmltree: incomplete tag")
	// ErrSpecialIndicator reports a "<!" construct that is neither a comment nor a DOCTYPE.
	ErrSpecialIndicator = errors.New("htmltree: malformed special tag")
)

const (
	tagStart         = '<'
	tagEnd           = '>'
	closeIndicator   = '/'
	specialIndicator = '!'
)

// Status is the position of a node in its extraction state machine:
// Start -> TagParsed -> Finished for void tags, otherwise
// Start -> TagParsed -> ScanningBody -> Closed.
type Status int

const (
	StatusStart Status = iota
	StatusTagParsed
	StatusFinished
	StatusScanningBody
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusStart:
		return "start"
	case StatusTagParsed:
		return "tag_parsed"
	case StatusFinished:
		return "finished"
	case StatusScanningBody:
		return "scanning_body"
	case StatusClosed:
		return "closed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

var voidElements = map[string]struct{}{
	"area": {}, "base": {}, "br": {}, "col": {}, "embed": {}, "hr": {}, "img": {},
	"input": {}, "link": {}, "meta": {}, "source": {}, "track": {}, "wbr": {},
}

func isVoid(name []byte) bool {
	if len(name) > len("source") {
		return false
	}
	_, ok := voidElements[string(bytes.ToLower(name))]
	return ok
}

// Tag is the result of scanning one opening tag.
type Tag struct {
	Name *bytebuf.Buffer
	// Start is the index of the tag's '<' after any skipped comments or DOCTYPE.
	Start int
	// End is the index of the tag's terminating '>'.
	End    int
	Status Status
}

// ExtractTag scans the opening tag at buf[start], which must be '<'. Comments
// and DOCTYPE declarations found there are skipped first. Attributes are
// discarded. The returned status is StatusFinished for "/>" and void elements,
// StatusTagParsed otherwise.
func ExtractTag(buf *bytebuf.Buffer, start int) (Tag, error) {
	if c, err := buf.At(start); err != nil || c != tagStart {
		return Tag{Status: StatusStart}, fmt.Errorf("expected %q at %d: %w", tagStart, start, ErrExtraction)
	}
	for {
		next, err := buf.At(start + 1)
		if err != nil {
			return Tag{Status: StatusStart}, fmt.Errorf("tag at %d: %w", start, ErrIncompleteTag)
		}
		if next != specialIndicator {
			break
		}
		end, err := skipSpecial(buf, start)
		if err != nil {
			return Tag{Status: StatusStart}, err
		}
		if start, err = findOpen(buf, end+1); err != nil {
			return Tag{Status: StatusStart}, fmt.Errorf("no element after special tag ending at %d: %w", end, ErrIncompleteTag)
		}
	}

	end, err := buf.FindBeforeOther(start+1, tagEnd, tagStart)
	if err != nil {
		return Tag{Status: StatusStart}, fmt.Errorf("tag at %d has no %q: %w", start, tagEnd, ErrIncompleteTag)
	}

	data := buf.Bytes()
	i := start + 1
	for i < end && bytebuf.IsSpace(data[i]) {
		i++
	}
	j := i
	for j < end && !bytebuf.IsSpace(data[j]) && data[j] != closeIndicator {
		j++
	}
	if i == j {
		return Tag{Status: StatusStart}, fmt.Errorf("tag at %d has no name: %w", start, ErrExtraction)
	}

	tag := Tag{
		Name:   bytebuf.NewFromBytes(data[i:j]),
		Start:  start,
		End:    end,
		Status: StatusTagParsed,
	}
	if data[end-1] == closeIndicator || isVoid(data[i:j]) {
		tag.Status = StatusFinished
	}
	return tag, nil
}

// skipSpecial skips the "<!" construct at buf[start] and returns the index of
// its final '>'.
func skipSpecial(buf *bytebuf.Buffer, start int) (int, error) {
	data := buf.Bytes()
	body := data[start+2:]
	switch {
	case bytes.HasPrefix(body, []byte("--")):
		from := start + 4
		for {
			gt, err := buf.FindFrom(from, tagEnd)
			if err != nil {
				return 0, fmt.Errorf("comment at %d is never closed: %w", start, ErrIncompleteTag)
			}
			if gt-2 >= start+4 && data[gt-1] == '-' && data[gt-2] == '-' {
				return gt, nil
			}
			from = gt + 1
		}
	case len(body) >= len("doctype") && bytes.EqualFold(body[:len("doctype")], []byte("doctype")):
		gt, err := buf.FindFrom(start+2, tagEnd)
		if err != nil {
			return 0, fmt.Errorf("doctype at %d: %w", start, ErrIncompleteTag)
		}
		return gt, nil
	}
	return 0, fmt.Errorf("special tag at %d: %w", start, ErrSpecialIndicator)
}

// findOpen returns the next '<' at or after from.
func findOpen(buf *bytebuf.Buffer, from int) (int, error) {
	if from >= buf.Len() {
		return 0, bytebuf.ErrCharNotFound
	}
	return buf.FindFrom(from, tagStart)
}

// Extract fills node from the element starting at buf[start] and returns the
// index of the element's last byte: its closing tag's '>' or, for a void
// element, its own '>'. When start is past the end of buf, start is returned
// unchanged.
func Extract(buf *bytebuf.Buffer, tree *Tree, node NodeID, start int) (int, error) {
	if start >= buf.Len() {
		return start, nil
	}
	e := extractor{buf: buf, tree: tree}
	return e.extract(node, start)
}

// extractor walks the buffer with one forward cursor shared by every
// recursion level, so each byte is visited a bounded number of times.
type extractor struct {
	buf  *bytebuf.Buffer
	tree *Tree
}

func (e *extractor) extract(node NodeID, start int) (int, error) {
	tag, err := ExtractTag(e.buf, start)
	if err != nil {
		return 0, err
	}
	e.tree.nodes[node].Tag = tag.Name
	if tag.Status == StatusFinished {
		return tag.End, nil
	}

	content := bytebuf.New()
	cursor := tag.End + 1
	closedAt := 0
	for status := StatusScanningBody; status != StatusClosed; {
		lt, err := e.nextOpen(cursor)
		if err != nil {
			return 0, fmt.Errorf("<%s> at %d is never closed: %w", tag.Name, tag.Start, ErrIncompleteTag)
		}
		if lt > cursor {
			text, _ := e.buf.Slice(cursor, lt)
			content.AppendSlice(text)
			content.Strip()
		}
		next, err := e.buf.At(lt + 1)
		if err != nil {
			return 0, fmt.Errorf("dangling %q at %d: %w", tagStart, lt, ErrIncompleteTag)
		}

		switch next {
		case closeIndicator:
			gt, err := e.buf.FindBeforeOther(lt+1, tagEnd, tagStart)
			if err != nil {
				return 0, fmt.Errorf("closing tag at %d has no %q: %w", lt, tagEnd, ErrIncompleteTag)
			}
			closedAt = gt
			status = StatusClosed
		case specialIndicator:
			end, err := skipSpecial(e.buf, lt)
			if err != nil {
				return 0, err
			}
			cursor = end + 1
		default:
			child := e.tree.add(node)
			end, err := e.extract(child, lt)
			if err != nil {
				return 0, err
			}
			cursor = end + 1
		}
	}

	n := &e.tree.nodes[node]
	if content.Len() > 0 {
		n.Content = content
	}
	if len(n.Children) == 0 {
		n.Children = nil
	}
	return closedAt, nil
}

// nextOpen finds the next '<' at or after from. A '>' met before it is
// ordinary text and does not end the scan.
func (e *extractor) nextOpen(from int) (int, error) {
	if from >= e.buf.Len() {
		return 0, bytebuf.ErrCharNotFound
	}
	lt, err := e.buf.FindBeforeOther(from, tagStart, tagEnd)
	if errors.Is(err, bytebuf.ErrInvalidIndex) {
		return e.buf.FindFrom(from, tagStart)
	}
	return lt, err
}
