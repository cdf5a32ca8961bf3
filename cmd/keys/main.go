// Package keys encrypts exchange credentials for the environment file.
package keys

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"cryptoagents/src/security"
)

var ErrEmptySecret = errors.New("nothing to encrypt")

type Keys struct {
	In  io.Reader
	Out io.Writer
}

// GenerateKey prints a fresh EXCHANGE_CREDENTIALS_KEY value.
func (k *Keys) GenerateKey() error {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return err
	}
	_, err := fmt.Fprintf(k.Out, "EXCHANGE_CREDENTIALS_KEY=%s\n", base64.StdEncoding.EncodeToString(raw))
	return err
}

// Encrypt prints the "enc:" form of secret, reading one line from In when
// secret is empty.
func (k *Keys) Encrypt(secret string) error {
	if secret == "" && k.In != nil {
		reader := bufio.NewScanner(k.In)
		reader.Buffer(make([]byte, 0, 1024), 1024*1024)
		if reader.Scan() {
			secret = reader.Text()
		}
		if err := reader.Err(); err != nil {
			return err
		}
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ErrEmptySecret
	}

	sealed, err := security.EncryptString(secret)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(k.Out, sealed)
	return err
}
