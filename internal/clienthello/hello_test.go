package clienthello

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildClientHelloBody builds a minimal well-formed ClientHello handshake
// body: 4-byte header, 2-byte version, 32-byte random, 1-byte
// session_id_length, session_id, then arbitrary trailing bytes.
func buildClientHelloBody(sessionIDLen int, trailing []byte) []byte {
	body := make([]byte, handshakeHeaderLen+clientVersionLen+randomLen+1+sessionIDLen)
	body[0] = 0x01 // ClientHello
	sessionID := make([]byte, sessionIDLen)
	_, _ = rand.Read(sessionID)
	body[handshakeHeaderLen+clientVersionLen+randomLen] = byte(sessionIDLen)
	copy(body[handshakeHeaderLen+clientVersionLen+randomLen+1:], sessionID)
	return append(body, trailing...)
}

func TestEmbedAndVerify_RoundTrip(t *testing.T) {
	key := []byte("correct horse battery staple")
	body := buildClientHelloBody(SessionIDLen, []byte{0xAA, 0xBB, 0xCC})

	require.NoError(t, EmbedAuth(key, body))
	assert.True(t, VerifyAuth(key, body))
}

func TestVerifyAuth_WrongKeyFails(t *testing.T) {
	body := buildClientHelloBody(SessionIDLen, nil)
	require.NoError(t, EmbedAuth([]byte("password1"), body))
	assert.False(t, VerifyAuth([]byte("password2"), body))
}

func TestVerifyAuth_SingleBitFlipFails(t *testing.T) {
	key := []byte("password")
	body := buildClientHelloBody(SessionIDLen, nil)
	require.NoError(t, EmbedAuth(key, body))

	offset, _, err := SessionIDOffset(body)
	require.NoError(t, err)
	body[offset] ^= 0x01 // flip one bit of the embedded digest

	assert.False(t, VerifyAuth(key, body))
}

func TestSessionIDOffset_WrongLengthDegrades(t *testing.T) {
	body := buildClientHelloBody(16, nil) // not 32
	_, _, err := SessionIDOffset(body)
	assert.ErrorIs(t, err, ErrUnexpectedLayout)
}

func TestSessionIDOffset_NotClientHello(t *testing.T) {
	body := buildClientHelloBody(SessionIDLen, nil)
	body[0] = 0x02 // ServerHello
	_, _, err := SessionIDOffset(body)
	assert.ErrorIs(t, err, ErrNotClientHello)
}

func TestSessionIDOffset_TooShort(t *testing.T) {
	_, _, err := SessionIDOffset([]byte{0x01, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrUnexpectedLayout)
}
