package cryptstate

import (
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
)

const blockSize = 16

type block [blockSize]byte

func xorBlock(dst, a, b *block) {
	subtle.XORBytes(dst[:], a[:], b[:])
}

// times2 doubles b in GF(2^128) (left shift, conditional xor 0x87).
func times2(b *block) {
	carry := b[0] >> 7
	for i := 0; i < blockSize-1; i++ {
		b[i] = b[i]<<1 | b[i+1]>>7
	}
	b[blockSize-1] = b[blockSize-1]<<1 ^ carry*0x87
}

// times3 sets b to 3*b.
func times3(b *block) {
	tmp := *b
	times2(b)
	xorBlock(b, b, &tmp)
}

// zeroPrefix reports whether the first 8 bytes of a block are zero. Mumble
// peers test the block one 64-bit word at a time and stop before the last
// word, so only the first word counts.
func zeroPrefix(b []byte) bool {
	for _, v := range b[:8] {
		if v != 0 {
			return false
		}
	}
	return true
}

// ocbEncrypt encrypts plain into dst (len(dst) >= len(plain)) and returns
// the full 16-byte tag. A full block with a zero prefix directly in front
// of the final block has one bit flipped before encryption (the XEX*
// countermeasure).
func ocbEncrypt(c cipher.Block, dst, plain []byte, nonce *block) block {
	var delta, checksum, tmp, pad block
	c.Encrypt(delta[:], nonce[:])

	for len(plain) > blockSize {
		flip := len(plain)-blockSize <= blockSize && zeroPrefix(plain[:blockSize])

		times2(&delta)
		copy(tmp[:], plain[:blockSize])
		xorBlock(&tmp, &tmp, &delta)
		if flip {
			tmp[0] ^= 1
		}
		c.Encrypt(tmp[:], tmp[:])
		subtle.XORBytes(dst[:blockSize], delta[:], tmp[:])

		subtle.XORBytes(checksum[:], checksum[:], plain[:blockSize])
		if flip {
			checksum[0] ^= 1
		}

		plain = plain[blockSize:]
		dst = dst[blockSize:]
	}

	times2(&delta)
	tmp = block{}
	binary.BigEndian.PutUint64(tmp[8:], uint64(len(plain))*8)
	xorBlock(&tmp, &tmp, &delta)
	c.Encrypt(pad[:], tmp[:])

	copy(tmp[:], plain)
	copy(tmp[len(plain):], pad[len(plain):])
	xorBlock(&checksum, &checksum, &tmp)
	xorBlock(&tmp, &pad, &tmp)
	copy(dst, tmp[:len(plain)])

	times3(&delta)
	var tag block
	xorBlock(&tmp, &delta, &checksum)
	c.Encrypt(tag[:], tmp[:])
	return tag
}

// ocbDecrypt reverses ocbEncrypt. ok is false when the final block looks
// like an XEX* forgery attempt; the caller must still compare tags.
func ocbDecrypt(c cipher.Block, dst, encrypted []byte, nonce *block) (tag block, ok bool) {
	var delta, checksum, tmp, pad block
	c.Encrypt(delta[:], nonce[:])
	ok = true

	for len(encrypted) > blockSize {
		times2(&delta)
		copy(tmp[:], encrypted[:blockSize])
		xorBlock(&tmp, &tmp, &delta)
		c.Decrypt(tmp[:], tmp[:])
		subtle.XORBytes(dst[:blockSize], delta[:], tmp[:])
		subtle.XORBytes(checksum[:], checksum[:], dst[:blockSize])

		encrypted = encrypted[blockSize:]
		dst = dst[blockSize:]
	}

	times2(&delta)
	tmp = block{}
	binary.BigEndian.PutUint64(tmp[8:], uint64(len(encrypted))*8)
	xorBlock(&tmp, &tmp, &delta)
	c.Encrypt(pad[:], tmp[:])

	tmp = block{}
	copy(tmp[:], encrypted)
	xorBlock(&tmp, &tmp, &pad)
	xorBlock(&checksum, &checksum, &tmp)
	copy(dst, tmp[:len(encrypted)])

	if subtle.ConstantTimeCompare(tmp[:blockSize-1], delta[:blockSize-1]) == 1 {
		ok = false
	}

	times3(&delta)
	xorBlock(&tmp, &delta, &checksum)
	c.Encrypt(tag[:], tmp[:])
	return tag, ok
}
