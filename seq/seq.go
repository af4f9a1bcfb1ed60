// Package seq provides seeded pseudo-random bits that can be addressed by
// position. The value drawn for the Nth query of a workload depends only
// on the seed and N, so a workload can be regenerated, or extended, without
// replaying every earlier draw.
package seq

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
)

// Class separates the streams used by different consumers of one
// sequence, so that they never read each other's bits.
type Class uint8

const (
	// ClassSample feeds the uniform variates behind categorical draws.
	ClassSample Class = iota + 1
	// ClassZipf feeds rejection-inversion Zipf draws.
	ClassZipf
)

// Offset addresses one 128-bit block in a sequence.
type Offset struct {
	Lo, Hi uint64
}

// OffsetFor yields the offset of the index'th block in class, at the given
// retry iteration. Iterations occupy the low 32 bits of Hi.
func OffsetFor(class Class, iter uint32, index uint64) Offset {
	return Offset{Hi: uint64(class)<<56 | uint64(iter), Lo: index}
}

// Sequence is a deterministic series of bits keyed by a seed.
type Sequence struct {
	cipher     cipher.Block
	plain, out [16]byte
}

// NewSequence returns a sequence keyed by seed.
func NewSequence(seed int64) *Sequence {
	var key [16]byte
	binary.LittleEndian.PutUint64(key[:8], uint64(seed))
	c, err := aes.NewCipher(key[:])
	if err != nil {
		// 16-byte keys are always valid for AES.
		panic("impossible error: " + err.Error())
	}
	return &Sequence{cipher: c}
}

// BitsAt returns the 128 bits at offset.
func (s *Sequence) BitsAt(offset Offset) (lo, hi uint64) {
	binary.LittleEndian.PutUint64(s.plain[:8], offset.Lo)
	binary.LittleEndian.PutUint64(s.plain[8:], offset.Hi)
	s.cipher.Encrypt(s.out[:], s.plain[:])
	return binary.LittleEndian.Uint64(s.out[:8]), binary.LittleEndian.Uint64(s.out[8:])
}

// Float64At returns a uniform value in [0, 1) derived from the bits at offset.
func (s *Sequence) Float64At(offset Offset) float64 {
	lo, _ := s.BitsAt(offset)
	return float64(lo&(1<<53-1)) / (1 << 53)
}
