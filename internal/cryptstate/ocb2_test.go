package cryptstate

import (
	"crypto/aes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZeroPrefix(t *testing.T) {
	tc := []struct {
		name  string
		block func(b []byte)
		want  bool
	}{
		{name: "all zero", block: func(b []byte) {}, want: true},
		{name: "only second word set", block: func(b []byte) { b[8] = 1; b[14] = 0x7f }, want: true},
		{name: "last byte set", block: func(b []byte) { b[15] = 0x80 }, want: true},
		{name: "first byte set", block: func(b []byte) { b[0] = 1 }, want: false},
		{name: "end of first word set", block: func(b []byte) { b[7] = 1 }, want: false},
	}

	for _, testCase := range tc {
		t.Run(testCase.name, func(t *testing.T) {
			b := make([]byte, blockSize)
			testCase.block(b)
			require.Equal(t, testCase.want, zeroPrefix(b))
		})
	}
}

// The receiver sees the flipped bit and the tag still verifies.
func TestCountermeasureFlipsFirstBit(t *testing.T) {
	c, err := aes.NewCipher(make([]byte, KeySize))
	require.NoError(t, err)

	plain := make([]byte, blockSize+5)
	plain[9] = 0x42
	plain[blockSize] = 7

	var nonce block
	encrypted := make([]byte, len(plain))
	tag := ocbEncrypt(c, encrypted, plain, &nonce)

	decrypted := make([]byte, len(plain))
	gotTag, ok := ocbDecrypt(c, decrypted, encrypted, &nonce)
	require.True(t, ok)
	require.Equal(t, tag, gotTag)

	want := append([]byte(nil), plain...)
	want[0] ^= 1
	require.Equal(t, want, decrypted)
}
