// Package bitmask implements a compact bit-vector used by pkg/eventindex to
// record which grid chunks of a block range have already been fetched.
package bitmask

import (
	"encoding/hex"
	"fmt"
)

// BitMask is a growable bitset, least-significant bit first within each
// byte. The zero value is an empty mask where every position reads false.
type BitMask struct {
	data []byte
}

// New returns a BitMask initialized from raw bytes. A nil or empty data is
// an empty mask.
func New(data []byte) *BitMask {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &BitMask{data: cp}
}

// Len returns the number of addressable bit positions, i.e. 8 times the
// number of underlying bytes.
func (m *BitMask) Len() int {
	return len(m.data) * 8
}

// Bytes returns the underlying byte slice. Callers must not mutate it.
func (m *BitMask) Bytes() []byte {
	return m.data
}

// Get returns the bit at pos. A position past the end of the mask reads
// false rather than panicking, matching an all-zero chunk that was never
// allocated.
func (m *BitMask) Get(pos int) bool {
	byteIdx := pos / 8
	if byteIdx >= len(m.data) || pos < 0 {
		return false
	}
	return m.data[byteIdx]&(1<<(uint(pos)%8)) != 0
}

// Set sets the bit at pos, growing the underlying storage if needed.
func (m *BitMask) Set(pos int, value bool) {
	m.ensureLength(pos)
	if value {
		m.data[pos/8] |= 1 << (uint(pos) % 8)
	} else {
		m.data[pos/8] &^= 1 << (uint(pos) % 8)
	}
}

// RangeError reports an invalid [start, end) range passed to SetRange.
type RangeError struct {
	Start, End int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("bitmask: invalid range [%d, %d)", e.Start, e.End)
}

// SetRange sets every bit in [start, end) to value. end is exclusive. It
// returns a *RangeError if end < start or end < 0.
func (m *BitMask) SetRange(start, end int, value bool) error {
	if start > end || end < 0 {
		return &RangeError{Start: start, End: end}
	}
	if end == start {
		return nil
	}
	m.ensureLength(end - 1)

	if end-start < 8 {
		for i := start; i < end; i++ {
			m.Set(i, value)
		}
		return nil
	}

	fullStart := start/8 + 1
	fullEnd := end / 8
	var fillByte byte
	if value {
		fillByte = 0xff
	}
	for i := fullStart; i < fullEnd; i++ {
		m.data[i] = fillByte
	}
	for i := start; i < fullStart*8; i++ {
		m.Set(i, value)
	}
	for i := fullEnd * 8; i < end; i++ {
		m.Set(i, value)
	}
	return nil
}

// PrependEmptyBytes inserts numBytes zero bytes before the mask's current
// content, shifting every existing bit position up by numBytes*8. Used when
// an index's covered range is extended backwards and the grid-aligned chunk
// preceding it must become addressable.
func (m *BitMask) PrependEmptyBytes(numBytes int) {
	if numBytes <= 0 {
		return
	}
	newData := make([]byte, numBytes+len(m.data))
	copy(newData[numBytes:], m.data)
	m.data = newData
}

// Hex returns the "0x"-prefixed hex encoding of the underlying bytes.
func (m *BitMask) Hex() string {
	return "0x" + hex.EncodeToString(m.data)
}

func (m *BitMask) ensureLength(idx int) {
	for len(m.data) <= idx/8 {
		m.data = append(m.data, 0)
	}
}
