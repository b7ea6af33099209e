package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHost_LiteralIPPassesThrough(t *testing.T) {
	r := New("", time.Second)
	got, err := r.ResolveHost("127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", got)
}

func TestResolveAddr_InvalidAddress(t *testing.T) {
	r := New("", time.Second)
	_, err := r.ResolveAddr("not-a-valid-addr")
	assert.Error(t, err)
}

func TestResolveAddr_LiteralIPKeepsPort(t *testing.T) {
	r := New("", time.Second)
	got, err := r.ResolveAddr("127.0.0.1:8443")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8443", got)
}
