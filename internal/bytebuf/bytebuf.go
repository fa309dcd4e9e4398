// Package bytebuf provides Buffer, an owned growable byte sequence with
// index-based view, search and in-place mutation operations.
//
// Views returned by Bytes and Slice alias the buffer's storage. They are
// valid only until the next mutating call (Append, AppendSlice, AppendString,
// Remove, LStrip, RStrip, Strip, Release), since growth may move storage and
// removal shifts bytes in place.
package bytebuf

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIndex reports an index or range outside the buffer.
	ErrInvalidIndex = errors.New("bytebuf: invalid index")
	// ErrEmptyString reports an operation on a buffer without storage or bytes.
	ErrEmptyString = errors.New("bytebuf: empty string")
	// ErrCharNotFound reports a search that reached the end of the buffer.
	ErrCharNotFound = errors.New("bytebuf: char not found")
)

// minCapacity is the first allocation size for a buffer that grows from nothing.
const minCapacity = 16

// Buffer is an owned, growable byte sequence. Len() <= Cap() always holds.
// The zero value is an empty buffer with no storage allocated.
type Buffer struct {
	data []byte
}

// New returns an empty buffer with no storage allocated.
func New() *Buffer {
	return &Buffer{}
}

// NewReserve returns an empty buffer with room for capacity bytes.
func NewReserve(capacity int) *Buffer {
	if capacity <= 0 {
		return &Buffer{}
	}
	return &Buffer{data: make([]byte, 0, capacity)}
}

// NewFromBytes returns a buffer holding a copy of b. The caller keeps
// ownership of b.
func NewFromBytes(b []byte) *Buffer {
	buf := NewReserve(len(b))
	buf.data = append(buf.data, b...)
	return buf
}

// NewFromString returns a buffer holding the bytes of s.
func NewFromString(s string) *Buffer {
	buf := NewReserve(len(s))
	buf.data = append(buf.data, s...)
	return buf
}

// Len returns the logical length.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Cap returns the allocated capacity.
func (b *Buffer) Cap() int {
	if b == nil {
		return 0
	}
	return cap(b.data)
}

// Allocated reports whether backing storage exists.
func (b *Buffer) Allocated() bool {
	return b != nil && b.data != nil
}

// Bytes returns a view of the contents. See the package doc for its lifetime.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// String returns a copy of the contents as a string.
func (b *Buffer) String() string {
	if b == nil {
		return ""
	}
	return string(b.data)
}

// Clone returns an independently owned copy of b.
func (b *Buffer) Clone() *Buffer {
	if b == nil || b.data == nil {
		return New()
	}
	return NewFromBytes(b.data)
}

// Release drops the backing storage. The buffer can be reused afterwards and
// behaves like a freshly created empty one.
func (b *Buffer) Release() {
	b.data = nil
}

// grow makes room for n more bytes, doubling capacity until they fit.
func (b *Buffer) grow(n int) {
	need := len(b.data) + n
	if need <= cap(b.data) {
		return
	}
	c := cap(b.data)
	if c < minCapacity {
		c = minCapacity
	}
	for c < need {
		c *= 2
	}
	next := make([]byte, len(b.data), c)
	copy(next, b.data)
	b.data = next
}

// Append adds a single byte.
func (b *Buffer) Append(c byte) {
	b.grow(1)
	b.data = append(b.data, c)
}

// AppendSlice adds all bytes of p in order.
func (b *Buffer) AppendSlice(p []byte) {
	if len(p) == 0 {
		return
	}
	b.grow(len(p))
	b.data = append(b.data, p...)
}

// AppendString adds all bytes of s in order.
func (b *Buffer) AppendString(s string) {
	if len(s) == 0 {
		return
	}
	b.grow(len(s))
	b.data = append(b.data, s...)
}

// At returns the byte at index.
func (b *Buffer) At(index int) (byte, error) {
	if index < 0 || index >= b.Len() {
		return 0, fmt.Errorf("at %d (len %d): %w", index, b.Len(), ErrInvalidIndex)
	}
	return b.data[index], nil
}

// Slice returns a view of the half-open range [start, end).
func (b *Buffer) Slice(start, end int) ([]byte, error) {
	if !b.Allocated() {
		return nil, ErrEmptyString
	}
	if start < 0 || start >= len(b.data) || end > len(b.data) || end < start {
		return nil, fmt.Errorf("slice [%d:%d] (len %d): %w", start, end, len(b.data), ErrInvalidIndex)
	}
	return b.data[start:end], nil
}

// Find returns the index of the first c.
func (b *Buffer) Find(c byte) (int, error) {
	return b.FindFrom(0, c)
}

// FindFrom returns the index of the first c at or after start.
func (b *Buffer) FindFrom(start int, c byte) (int, error) {
	if b.Len() == 0 {
		return 0, ErrEmptyString
	}
	if start < 0 || start >= len(b.data) {
		return 0, fmt.Errorf("find from %d (len %d): %w", start, len(b.data), ErrInvalidIndex)
	}
	for i := start; i < len(b.data); i++ {
		if b.data[i] == c {
			return i, nil
		}
	}
	return 0, ErrCharNotFound
}

// FindBeforeOther returns the index of target searching from start, provided
// target occurs at or before the next boundary. When boundary never occurs the
// target may be anywhere in the remainder. A target located strictly after the
// boundary fails with ErrInvalidIndex.
func (b *Buffer) FindBeforeOther(start int, target, boundary byte) (int, error) {
	at, err := b.FindFrom(start, target)
	if err != nil {
		return 0, err
	}
	stop, err := b.FindFrom(start, boundary)
	if errors.Is(err, ErrCharNotFound) {
		return at, nil
	}
	if err != nil {
		return 0, err
	}
	if at > stop {
		return 0, fmt.Errorf("%q at %d follows %q at %d: %w", target, at, boundary, stop, ErrInvalidIndex)
	}
	return at, nil
}

// Remove deletes the half-open range [start, end), shifting trailing bytes left.
func (b *Buffer) Remove(start, end int) error {
	if b.Len() == 0 {
		return ErrEmptyString
	}
	if start < 0 || start > end || end > len(b.data) {
		return fmt.Errorf("remove [%d:%d] (len %d): %w", start, end, len(b.data), ErrInvalidIndex)
	}
	n := copy(b.data[start:], b.data[end:])
	b.data = b.data[:start+n]
	return nil
}

// SplitAtChar returns one independently owned buffer per segment separated by
// sep. Empty segments are kept except for the one after a trailing separator.
func (b *Buffer) SplitAtChar(sep byte) []*Buffer {
	out := make([]*Buffer, 0)
	if b.Len() == 0 {
		return out
	}
	from := 0
	for i, c := range b.data {
		if c != sep {
			continue
		}
		out = append(out, NewFromBytes(b.data[from:i]))
		from = i + 1
	}
	if from < len(b.data) {
		out = append(out, NewFromBytes(b.data[from:]))
	}
	return out
}

// IsSpace reports whether c is stripped by the strip family: space, tab or newline.
func IsSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n'
}

// LStrip removes leading whitespace.
func (b *Buffer) LStrip() {
	i := 0
	for i < b.Len() && IsSpace(b.data[i]) {
		i++
	}
	if i == 0 {
		return
	}
	_ = b.Remove(0, i)
}

// RStrip removes trailing whitespace.
func (b *Buffer) RStrip() {
	j := b.Len()
	for j > 0 && IsSpace(b.data[j-1]) {
		j--
	}
	if b.data != nil {
		b.data = b.data[:j]
	}
}

// Strip removes leading and trailing whitespace.
func (b *Buffer) Strip() {
	b.RStrip()
	b.LStrip()
}

// Equal compares contents byte for byte. Empty and absent buffers are equal.
func (b *Buffer) Equal(other *Buffer) bool {
	if b.Len() != other.Len() {
		return false
	}
	for i := 0; i < b.Len(); i++ {
		if b.data[i] != other.data[i] {
			return false
		}
	}
	return true
}

// EqualBytes compares the contents with p byte for byte.
func (b *Buffer) EqualBytes(p []byte) bool {
	if b.Len() != len(p) {
		return false
	}
	for i := range p {
		if b.data[i] != p[i] {
			return false
		}
	}
	return true
}
