package be

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Durable objects are flat sequences of 64-bit words, encoded as a repeated
// fixed64 protobuf field. Every word costs the same number of bytes, so an
// object's encoded size depends only on its word count and is known before
// a transaction is opened.

const wordField protowire.Number = 1

var wordSize = uint64(protowire.SizeTag(wordField) + protowire.SizeFixed64())

// WordsSize returns the encoded size of n words.
func WordsSize(n int) uint64 {
	return uint64(n) * wordSize
}

// EncodeWords encodes words into a fresh buffer.
func EncodeWords(words ...uint64) []byte {
	b := make([]byte, 0, WordsSize(len(words)))
	for _, w := range words {
		b = protowire.AppendTag(b, wordField, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, w)
	}
	return b
}

// DecodeWords decodes an object produced by EncodeWords. When want is
// non-negative the object must hold exactly want words.
func DecodeWords(b []byte, want int) ([]uint64, error) {
	out := make([]uint64, 0, uint64(len(b))/wordSize)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		if num != wordField || typ != protowire.Fixed64Type {
			return nil, fmt.Errorf("%w: unexpected field %d of type %d", ErrCorrupt, num, typ)
		}
		b = b[n:]
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		b = b[n:]
		out = append(out, v)
	}
	if want >= 0 && len(out) != want {
		return nil, fmt.Errorf("%w: got %d words, want %d", ErrCorrupt, len(out), want)
	}
	return out, nil
}
