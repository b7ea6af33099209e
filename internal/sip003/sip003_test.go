package sip003

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestPresent(t *testing.T) {
	setEnv(t, map[string]string{"SS_LOCAL_HOST": "127.0.0.1", "SS_REMOTE_HOST": "1.2.3.4"})
	assert.True(t, Present())
}

func TestPresent_MissingOneVar(t *testing.T) {
	t.Setenv("SS_LOCAL_HOST", "127.0.0.1")
	t.Setenv("SS_REMOTE_HOST", "")
	assert.False(t, Present())
}

func TestFromEnviron_ClientMode(t *testing.T) {
	setEnv(t, map[string]string{
		"SS_LOCAL_HOST":     "127.0.0.1",
		"SS_LOCAL_PORT":     "1984",
		"SS_REMOTE_HOST":    "203.0.113.9",
		"SS_REMOTE_PORT":    "443",
		"SS_PLUGIN_OPTIONS": "mode=client;password=hunter2;sni=cloud.example.com",
	})

	args, err := FromEnviron()
	require.NoError(t, err)
	assert.Equal(t, "client", args.Mode)
	assert.Equal(t, "127.0.0.1:1984", args.Listen)
	assert.Equal(t, "203.0.113.9:443", args.ServerAddr)
	assert.Equal(t, "cloud.example.com", args.SNI)
	assert.Equal(t, "hunter2", args.Password)
}

func TestFromEnviron_ServerMode(t *testing.T) {
	setEnv(t, map[string]string{
		"SS_LOCAL_HOST":     "::",
		"SS_LOCAL_PORT":     "443",
		"SS_REMOTE_HOST":    "127.0.0.1",
		"SS_REMOTE_PORT":    "8080",
		"SS_PLUGIN_OPTIONS": "mode=server;password=hunter2;tls=cloud.example.com:443",
	})

	args, err := FromEnviron()
	require.NoError(t, err)
	assert.Equal(t, "server", args.Mode)
	assert.Equal(t, "127.0.0.1:8080", args.ServerAddr)
	assert.Equal(t, "cloud.example.com:443", args.TLSAddr)
}

func TestFromEnviron_MissingPassword(t *testing.T) {
	setEnv(t, map[string]string{
		"SS_LOCAL_HOST":     "127.0.0.1",
		"SS_LOCAL_PORT":     "1984",
		"SS_REMOTE_HOST":    "203.0.113.9",
		"SS_REMOTE_PORT":    "443",
		"SS_PLUGIN_OPTIONS": "mode=client;sni=cloud.example.com",
	})

	_, err := FromEnviron()
	require.Error(t, err)
}

func TestFromEnviron_InvalidPort(t *testing.T) {
	setEnv(t, map[string]string{
		"SS_LOCAL_HOST":  "127.0.0.1",
		"SS_LOCAL_PORT":  "not-a-port",
		"SS_REMOTE_HOST": "203.0.113.9",
		"SS_REMOTE_PORT": "443",
	})

	_, err := FromEnviron()
	require.Error(t, err)
}
