package identifier

import (
	"bytes"
	"encoding/binary"
)

// Identifier is an opaque, totally ordered entity id. Identifiers are only
// ever compared for equality or order; they are never decoded back into the
// numeric id they were built from.
type Identifier []byte

const (
	encodedWidth = 8
	tagWidth     = 4
)

// Encode produces a fixed-width encoding of a native integer id whose byte
// order matches numeric order. The sign bit is flipped so negative ids sort
// before non-negative ones under bytes.Compare.
func Encode(raw int64) Identifier {
	buf := make([]byte, encodedWidth)
	binary.BigEndian.PutUint64(buf, uint64(raw)^(1<<63))
	return buf
}

// WithTag prepends a fixed-width tag to an already encoded identifier. Both
// widths are fixed, so distinct (tag, id) pairs always produce distinct byte
// sequences, and tagging commutes with however id batches were encoded.
func WithTag(id Identifier, tag uint32) Identifier {
	buf := make([]byte, tagWidth+len(id))
	binary.BigEndian.PutUint32(buf, tag)
	copy(buf[tagWidth:], id)
	return buf
}

// Equal reports whether two identifiers are byte-wise identical.
func Equal(a, b Identifier) bool {
	return bytes.Equal(a, b)
}

// Compare orders two identifiers byte-wise.
func Compare(a, b Identifier) int {
	return bytes.Compare(a, b)
}
