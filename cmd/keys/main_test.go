package keys

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"cryptoagents/src/security"

	"github.com/stretchr/testify/require"
)

func setKey(t *testing.T) {
	raw := make([]byte, 32)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	t.Setenv("EXCHANGE_CREDENTIALS_KEY", base64.StdEncoding.EncodeToString(raw))
}

func TestKeys_EncryptFromArgument(t *testing.T) {
	setKey(t)
	var out bytes.Buffer

	require.NoError(t, (&Keys{Out: &out}).Encrypt("api-secret"))

	sealed := strings.TrimSpace(out.String())
	require.True(t, strings.HasPrefix(sealed, security.EncryptedPrefix))
	plain, err := security.Resolve(sealed)
	require.NoError(t, err)
	require.Equal(t, "api-secret", plain)
}

func TestKeys_EncryptFromStdin(t *testing.T) {
	setKey(t)
	var out bytes.Buffer

	k := &Keys{In: strings.NewReader("  from-stdin \n"), Out: &out}
	require.NoError(t, k.Encrypt(""))

	plain, err := security.DecryptString(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.Equal(t, "from-stdin", plain)
}

func TestKeys_EncryptEmpty(t *testing.T) {
	setKey(t)
	err := (&Keys{In: strings.NewReader(""), Out: &bytes.Buffer{}}).Encrypt("")
	require.ErrorIs(t, err, ErrEmptySecret)
}

func TestKeys_EncryptWithoutKey(t *testing.T) {
	t.Setenv("EXCHANGE_CREDENTIALS_KEY", "")
	err := (&Keys{Out: &bytes.Buffer{}}).Encrypt("api-secret")
	require.ErrorIs(t, err, security.ErrMissingKey)
}

func TestKeys_GenerateKey(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, (&Keys{Out: &out}).GenerateKey())

	line := strings.TrimSpace(out.String())
	require.True(t, strings.HasPrefix(line, "EXCHANGE_CREDENTIALS_KEY="))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(line, "EXCHANGE_CREDENTIALS_KEY="))
	require.NoError(t, err)
	require.Len(t, raw, 32)
}
