package cobalt

import (
	"encoding/binary"
	"golang.org/x/crypto/chacha20"
	"math/rand/v2"
)

const chachaBlockSize = 64

// RandomSource returns uniform random 32 bit values.
type RandomSource interface {
	Uint32() uint32
}

type defaultSource struct{}

func (defaultSource) Uint32() uint32 {
	return rand.Uint32()
}

// DefaultSource draws from the process wide generator of math/rand/v2 and is
// safe for concurrent use.
var DefaultSource RandomSource = defaultSource{}

// ChaChaSource is a deterministic RandomSource backed by a ChaCha20
// keystream. The same seed always yields the same sequence, which makes
// simulations reproducible. It is not safe for concurrent use, give each
// Vars its own instance.
type ChaChaSource struct {
	cipher *chacha20.Cipher
	buf    [chachaBlockSize]byte
	pos    int
}

func NewChaChaSource(seed [32]byte) *ChaChaSource {
	var nonce [chacha20.NonceSize]byte
	// only fails on wrong key or nonce sizes, both are fixed here
	c, _ := chacha20.NewUnauthenticatedCipher(seed[:], nonce[:])
	return &ChaChaSource{
		cipher: c,
		pos:    chachaBlockSize,
	}
}

func (s *ChaChaSource) Uint32() uint32 {
	if s.pos+4 > len(s.buf) {
		clear(s.buf[:])
		s.cipher.XORKeyStream(s.buf[:], s.buf[:])
		s.pos = 0
	}
	v := binary.LittleEndian.Uint32(s.buf[s.pos:])
	s.pos += 4
	return v
}
