// Package clienthello locates and manipulates the session_id field of a
// ClientHello handshake message, which this system repurposes to carry
// an HMAC authenticator instead of a resumption token.
package clienthello

import (
	"crypto/subtle"
	"errors"

	"github.com/oluceps/shadow-tls/internal/authstream"
)

// SessionIDLen is the fixed size of the ClientHello session_id field
// this system expects: 20 bytes of HMAC digest followed by 12 bytes of
// filler.
const SessionIDLen = 32

// AuthLen is the number of leading session_id bytes that carry the
// HMAC-SHA-1 digest.
const AuthLen = authstream.Size

// handshakeHeaderLen is the 4-byte handshake message header
// (1 type byte + 3-byte length) that precedes the ClientHello body.
const handshakeHeaderLen = 4

// clientVersionLen + randomLen precede session_id_length in the
// ClientHello body.
const clientVersionLen = 2
const randomLen = 32

var (
	// ErrNotClientHello means the handshake body's first byte isn't 0x01.
	ErrNotClientHello = errors.New("clienthello: not a ClientHello message")
	// ErrUnexpectedLayout means session_id_length wasn't 32, or the body
	// is too short to contain the fields this system relies on.
	ErrUnexpectedLayout = errors.New("clienthello: unexpected ClientHello layout")
)

// SessionIDOffset locates the session_id field within body, a
// ClientHello handshake message as carried in a TLS record's payload
// (the 5-byte record header is NOT included in body). It returns the
// byte offset of session_id within body and its declared length.
func SessionIDOffset(body []byte) (offset int, length int, err error) {
	if len(body) < handshakeHeaderLen+clientVersionLen+randomLen+1 {
		return 0, 0, ErrUnexpectedLayout
	}
	if body[0] != 0x01 {
		return 0, 0, ErrNotClientHello
	}
	sessionIDLenOff := handshakeHeaderLen + clientVersionLen + randomLen
	sessionIDLen := int(body[sessionIDLenOff])
	sessionIDOff := sessionIDLenOff + 1
	if sessionIDLen != SessionIDLen {
		return 0, 0, ErrUnexpectedLayout
	}
	if len(body) < sessionIDOff+sessionIDLen {
		return 0, 0, ErrUnexpectedLayout
	}
	return sessionIDOff, sessionIDLen, nil
}

// ExpectedHMAC computes HMAC-SHA-1(key, body-with-session_id[0:20]-zeroed).
// body is mutated in place to zero the auth bytes, computed over, and
// then restored to its original contents before returning.
func ExpectedHMAC(key, body []byte) ([AuthLen]byte, error) {
	offset, _, err := SessionIDOffset(body)
	if err != nil {
		var zero [AuthLen]byte
		return zero, err
	}
	saved := make([]byte, AuthLen)
	copy(saved, body[offset:offset+AuthLen])

	for i := 0; i < AuthLen; i++ {
		body[offset+i] = 0
	}
	digest := authstream.Sum(key, body)
	copy(body[offset:offset+AuthLen], saved)

	return digest, nil
}

// VerifyAuth reports whether the first AuthLen bytes of the ClientHello's
// session_id equal HMAC-SHA-1(key, body-with-those-bytes-zeroed),
// compared in constant time.
func VerifyAuth(key, body []byte) bool {
	offset, _, err := SessionIDOffset(body)
	if err != nil {
		return false
	}
	expected, err := ExpectedHMAC(key, body)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(expected[:], body[offset:offset+AuthLen]) == 1
}

// EmbedAuth overwrites the first AuthLen bytes of the ClientHello's
// session_id with HMAC-SHA-1(key, body-with-those-bytes-zeroed),
// leaving the remaining session_id bytes (random filler) untouched.
func EmbedAuth(key, body []byte) error {
	offset, _, err := SessionIDOffset(body)
	if err != nil {
		return err
	}
	digest, err := ExpectedHMAC(key, body)
	if err != nil {
		return err
	}
	copy(body[offset:offset+AuthLen], digest[:])
	return nil
}
