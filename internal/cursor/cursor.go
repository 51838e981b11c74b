// Package cursor provides a bounds-checked, non-owning view over a byte slice.
package cursor

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrOutOfRange is returned when an operation would move past the end of the view.
var ErrOutOfRange = errors.New("cursor: out of range")

// Cursor is a read-only window into a byte slice. It never copies the
// underlying storage and never reads outside it.
type Cursor struct {
	b []byte
}

// New creates a cursor over b.
func New(b []byte) Cursor {
	return Cursor{b: b}
}

// Len returns the number of bytes remaining in the view.
func (c *Cursor) Len() int {
	return len(c.b)
}

// Empty reports whether the view has no bytes left.
func (c *Cursor) Empty() bool {
	return len(c.b) == 0
}

// Bytes returns the remaining bytes. The result aliases the underlying storage.
func (c *Cursor) Bytes() []byte {
	return c.b
}

// ChopLeft drops n bytes from the front of the view.
func (c *Cursor) ChopLeft(n int) error {
	if n < 0 || n > len(c.b) {
		return fmt.Errorf("%w: chop %d of %d", ErrOutOfRange, n, len(c.b))
	}
	c.b = c.b[n:]
	return nil
}

// Substr returns a sub-view of at most count bytes starting at offset.
// The result is clamped to the view; an offset past the end yields an empty view.
func (c *Cursor) Substr(offset, count int) Cursor {
	if offset < 0 || offset >= len(c.b) || count <= 0 {
		return Cursor{}
	}
	end := offset + count
	if end > len(c.b) || end < offset {
		end = len(c.b)
	}
	return Cursor{b: c.b[offset:end]}
}

// At returns the byte at index i.
func (c *Cursor) At(i int) (byte, bool) {
	if i < 0 || i >= len(c.b) {
		return 0, false
	}
	return c.b[i], true
}

// Uint reads a little-endian unsigned integer of 1 to 4 bytes at offset.
func (c *Cursor) Uint(offset, width int) (uint32, bool) {
	if width < 1 || width > 4 || offset < 0 || offset+width > len(c.b) {
		return 0, false
	}
	var v uint32
	for i := width - 1; i >= 0; i-- {
		v = v<<8 | uint32(c.b[offset+i])
	}
	return v, true
}

// CopyTo copies min(len(dst), Len()) bytes into dst and returns the count.
func (c *Cursor) CopyTo(dst []byte) int {
	return copy(dst, c.b)
}

// Hex renders the view as lowercase hex without separators.
func (c *Cursor) Hex() string {
	return hex.EncodeToString(c.b)
}

// HexSep renders the view as lowercase hex pairs joined by sep.
func (c *Cursor) HexSep(sep string) string {
	if len(c.b) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(c.b)*2 + (len(c.b)-1)*len(sep))
	for i, v := range c.b {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(hex.EncodeToString([]byte{v}))
	}
	return sb.String()
}

// FromHex decodes a hex string. Whitespace, ':' and '-' separators are ignored.
func FromHex(s string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':', '-':
			return -1
		}
		return r
	}, s)
	b, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}
