// Package cryptstate implements the OCB2-AES128 packet protection used on
// the voice datagram path.
//
// Each packet is laid out as [iv byte][3 tag bytes][ciphertext]. Only the
// low byte of the 128-bit IV travels on the wire; the receiver tracks the
// remaining bytes and accepts packets that are in order, slightly late, or
// ahead after a gap. Replays are detected with a 256-entry history keyed by
// the IV low byte.
package cryptstate

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
)

// Overhead is the number of bytes Encrypt adds to a plaintext.
const Overhead = 4

const (
	// KeySize is the length of the key and both nonces.
	KeySize = 16

	tagSize = 3

	// lateWindow bounds how far behind the current IV a packet may be and
	// still be accepted as a late arrival.
	lateWindow = 30
)

var (
	ErrInvalidLength = errors.New("cryptstate: key and nonces must be 16 bytes")
	ErrNotKeyed      = errors.New("cryptstate: no key installed")
)

type Reason int

const (
	ReasonNotKeyed Reason = iota
	ReasonTooShort
	ReasonDuplicate
	ReasonOutOfWindow
	ReasonReplay
	ReasonTagMismatch
)

func (r Reason) String() string {
	switch r {
	case ReasonNotKeyed:
		return "not keyed"
	case ReasonTooShort:
		return "packet too short"
	case ReasonDuplicate:
		return "duplicate iv"
	case ReasonOutOfWindow:
		return "iv out of window"
	case ReasonReplay:
		return "replayed iv"
	case ReasonTagMismatch:
		return "tag mismatch"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// DecryptError describes why a packet was rejected. The decrypt IV is
// always rolled back before it is returned.
type DecryptError struct {
	Reason Reason
}

func (e *DecryptError) Error() string {
	return "cryptstate: " + e.Reason.String()
}

var _ error = (*DecryptError)(nil)

// Stats are the packet counters reported to the server in TCP pings.
type Stats struct {
	Good   uint32
	Late   uint32
	Lost   uint32
	Resync uint32
}

type historyEntry struct {
	set  bool
	next [2]byte
}

// CryptState is safe for concurrent use.
type CryptState struct {
	mu sync.Mutex

	key       [KeySize]byte
	encryptIV block
	decryptIV block
	history   [256]historyEntry
	cipher    cipher.Block

	good   uint32
	late   uint32
	lost   uint32
	resync uint32
}

func New() *CryptState {
	return &CryptState{}
}

// SetKey installs a new key and both IVs, and forgets every IV seen so far.
func (cs *CryptState) SetKey(key, encryptNonce, decryptNonce []byte) error {
	if len(key) != KeySize || len(encryptNonce) != KeySize || len(decryptNonce) != KeySize {
		return ErrInvalidLength
	}
	c, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("cryptstate: %w", err)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	copy(cs.key[:], key)
	copy(cs.encryptIV[:], encryptNonce)
	copy(cs.decryptIV[:], decryptNonce)
	cs.history = [256]historyEntry{}
	cs.cipher = c
	return nil
}

// SetDecryptIV replaces the decrypt IV after a server initiated resync.
func (cs *CryptState) SetDecryptIV(nonce []byte) error {
	if len(nonce) != KeySize {
		return ErrInvalidLength
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	copy(cs.decryptIV[:], nonce)
	cs.resync++
	return nil
}

// EncryptIV returns a copy of the current encrypt IV.
func (cs *CryptState) EncryptIV() []byte {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	iv := cs.encryptIV
	return iv[:]
}

// Keyed reports whether SetKey has succeeded.
func (cs *CryptState) Keyed() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.cipher != nil
}

func (cs *CryptState) Stats() Stats {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return Stats{Good: cs.good, Late: cs.late, Lost: cs.lost, Resync: cs.resync}
}

// Encrypt returns the protected packet for plain. The encrypt IV is
// advanced on every call.
func (cs *CryptState) Encrypt(plain []byte) ([]byte, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.cipher == nil {
		return nil, ErrNotKeyed
	}

	for i := range cs.encryptIV {
		cs.encryptIV[i]++
		if cs.encryptIV[i] != 0 {
			break
		}
	}

	dst := make([]byte, Overhead+len(plain))
	tag := ocbEncrypt(cs.cipher, dst[Overhead:], plain, &cs.encryptIV)
	dst[0] = cs.encryptIV[0]
	copy(dst[1:Overhead], tag[:tagSize])
	return dst, nil
}

// Decrypt verifies and decrypts packet. On any failure the decrypt IV is
// left exactly as it was before the call.
func (cs *CryptState) Decrypt(packet []byte) ([]byte, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.cipher == nil {
		return nil, &DecryptError{Reason: ReasonNotKeyed}
	}
	if len(packet) < Overhead {
		return nil, &DecryptError{Reason: ReasonTooShort}
	}

	saved := cs.decryptIV
	ivByte := packet[0]
	restore := false
	late, lost := 0, 0

	if cs.decryptIV[0]+1 == ivByte {
		// In order.
		if ivByte < cs.decryptIV[0] {
			cs.carryUp()
		}
		cs.decryptIV[0] = ivByte
	} else {
		diff := int(ivByte) - int(cs.decryptIV[0])
		if diff > 128 {
			diff -= 256
		} else if diff < -128 {
			diff += 256
		}

		switch {
		case diff == 0:
			return nil, &DecryptError{Reason: ReasonDuplicate}
		case ivByte < cs.decryptIV[0] && diff > -lateWindow && diff < 0:
			late, lost = 1, -1
			cs.decryptIV[0] = ivByte
			restore = true
		case ivByte > cs.decryptIV[0] && diff > -lateWindow && diff < 0:
			// Late packet from before the low byte wrapped.
			late, lost = 1, -1
			cs.decryptIV[0] = ivByte
			cs.borrowDown()
			restore = true
		case ivByte > cs.decryptIV[0] && diff > 0:
			lost = int(ivByte) - int(cs.decryptIV[0]) - 1
			cs.decryptIV[0] = ivByte
		case ivByte < cs.decryptIV[0] && diff > 0:
			lost = 256 - int(cs.decryptIV[0]) + int(ivByte) - 1
			cs.decryptIV[0] = ivByte
			cs.carryUp()
		default:
			cs.decryptIV = saved
			cs.resync++
			return nil, &DecryptError{Reason: ReasonOutOfWindow}
		}

		h := cs.history[cs.decryptIV[0]]
		if h.set && h.next[0] == cs.decryptIV[1] && h.next[1] == cs.decryptIV[2] {
			cs.decryptIV = saved
			cs.resync++
			return nil, &DecryptError{Reason: ReasonReplay}
		}
	}

	plain := make([]byte, len(packet)-Overhead)
	tag, ok := ocbDecrypt(cs.cipher, plain, packet[Overhead:], &cs.decryptIV)
	if !ok || subtle.ConstantTimeCompare(tag[:tagSize], packet[1:Overhead]) != 1 {
		cs.decryptIV = saved
		cs.resync++
		return nil, &DecryptError{Reason: ReasonTagMismatch}
	}

	// Late packets are recorded too, so a resent one is caught as a replay.
	cs.history[cs.decryptIV[0]] = historyEntry{
		set:  true,
		next: [2]byte{cs.decryptIV[1], cs.decryptIV[2]},
	}
	if restore {
		cs.decryptIV = saved
		cs.resync++
	}

	cs.good++
	cs.late += uint32(late)
	cs.lost = addLost(cs.lost, lost)
	return plain, nil
}

// addLost applies delta to the lost counter without going below zero.
func addLost(lost uint32, delta int) uint32 {
	if delta < 0 && uint32(-delta) > lost {
		return 0
	}
	return uint32(int64(lost) + int64(delta))
}

// carryUp increments the decrypt IV above the low byte.
func (cs *CryptState) carryUp() {
	for i := 1; i < blockSize; i++ {
		cs.decryptIV[i]++
		if cs.decryptIV[i] != 0 {
			break
		}
	}
}

// borrowDown decrements the decrypt IV above the low byte.
func (cs *CryptState) borrowDown() {
	for i := 1; i < blockSize; i++ {
		prev := cs.decryptIV[i]
		cs.decryptIV[i]--
		if prev != 0 {
			break
		}
	}
}
