// Package auth implements the optional shared-key protection for the TCP
// command channel: a nonce handshake authenticated with HMAC-SHA256 and a
// ChaCha20-Poly1305 framed connection derived from the handshake.
package auth

import (
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"errors"
)

const (
	keyLength  = 16
	base62     = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	iterations = 100000
	keySalt    = "kmbridge-key-v1"
)

// GenerateKey creates a random 16-character base62 shared key.
func GenerateKey() (string, error) {
	raw := make([]byte, keyLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	key := make([]byte, keyLength)
	for i, b := range raw {
		key[i] = base62[int(b)%len(base62)]
	}
	return string(key), nil
}

// DeriveKey stretches the shared key to 32 bytes with PBKDF2-SHA256.
func DeriveKey(key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("empty key")
	}
	return pbkdf2.Key(sha256.New, key, []byte(keySalt), iterations, 32)
}

// SessionKey mixes the derived key with both handshake nonces.
func SessionKey(key, serverNonce, clientNonce []byte) []byte {
	h := sha256.New()
	h.Write(key)
	h.Write(serverNonce)
	h.Write(clientNonce)
	h.Write([]byte("kmbridge-session-v1"))
	return h.Sum(nil)
}
