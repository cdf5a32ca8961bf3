package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

// EncryptedPrefix marks configuration values that must be decrypted before use.
const EncryptedPrefix = "enc:"

const (
	keySize   = 32
	nonceSize = 24
)

var (
	ErrMissingKey   = errors.New("EXCHANGE_CREDENTIALS_KEY is not set")
	ErrInvalidKey   = errors.New("EXCHANGE_CREDENTIALS_KEY must be 32 base64 encoded bytes")
	ErrDecryptValue = errors.New("cannot decrypt value")
)

func parseKey(encoded string) (*[keySize]byte, error) {
	if encoded == "" {
		return nil, ErrMissingKey
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) != keySize {
		return nil, ErrInvalidKey
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &key, nil
}

// EncryptString seals plain with the configured key and returns the
// "enc:" prefixed base64 form.
func EncryptString(plain string) (string, error) {
	return encryptWithKey(plain, GetConfig().ExchangeCRKey)
}

// DecryptString opens a value produced by EncryptString.
func DecryptString(value string) (string, error) {
	return decryptWithKey(value, GetConfig().ExchangeCRKey)
}

// Resolve returns plain values unchanged and decrypts "enc:" values.
func Resolve(value string) (string, error) {
	if !strings.HasPrefix(value, EncryptedPrefix) {
		return value, nil
	}
	return DecryptString(value)
}

func encryptWithKey(plain, encodedKey string) (string, error) {
	key, err := parseKey(encodedKey)
	if err != nil {
		return "", err
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plain), &nonce, key)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func decryptWithKey(value, encodedKey string) (string, error) {
	key, err := parseKey(encodedKey)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrDecryptValue
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, key)
	if !ok {
		return "", ErrDecryptValue
	}
	return string(plain), nil
}
