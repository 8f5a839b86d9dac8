package auth

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

// Magic opens every authenticated session; a channel peeks for it to tell
// an authenticating client from a plaintext one.
const Magic = "kmB1\x00"

const nonceSize = 32

const hmacContext = "kmbridge-auth-v1"

// ErrBadAuth is returned when the peer's HMAC does not verify.
var ErrBadAuth = errors.New("authentication failed")

// IsHandshake reports whether the next bytes match the handshake magic
// without consuming them.
func IsHandshake(r *bufio.Reader) (bool, error) {
	b, err := r.Peek(len(Magic))
	if err != nil {
		return false, err
	}
	return string(b) == Magic, nil
}

func authTag(key, nonce []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(hmacContext))
	mac.Write(nonce)
	return mac.Sum(nil)
}

// ClientHandshake sends magic + nonce + HMAC and reads the server nonce.
// The returned nonces feed SessionKey.
func ClientHandshake(r io.Reader, w io.Writer, key []byte) (clientNonce, serverNonce []byte, err error) {
	clientNonce = make([]byte, nonceSize)
	if _, err := rand.Read(clientNonce); err != nil {
		return nil, nil, fmt.Errorf("generate client nonce: %w", err)
	}

	msg := append([]byte(Magic), clientNonce...)
	msg = append(msg, authTag(key, clientNonce)...)
	if _, err := w.Write(msg); err != nil {
		return nil, nil, fmt.Errorf("write handshake: %w", err)
	}

	status := make([]byte, 3)
	if _, err := io.ReadFull(r, status); err != nil {
		return nil, nil, fmt.Errorf("read handshake status: %w", err)
	}
	if string(status) != "OK\x00" {
		return nil, nil, ErrBadAuth
	}

	serverNonce = make([]byte, nonceSize)
	if _, err := io.ReadFull(r, serverNonce); err != nil {
		return nil, nil, fmt.Errorf("read server nonce: %w", err)
	}
	return clientNonce, serverNonce, nil
}

// ServerHandshake consumes the magic, verifies the client HMAC, and
// replies "OK\x00" plus a fresh server nonce. On a bad HMAC it writes
// nothing and returns ErrBadAuth so the caller can drop the connection.
func ServerHandshake(r *bufio.Reader, w io.Writer, key []byte) (clientNonce, serverNonce []byte, err error) {
	if len(key) == 0 {
		return nil, nil, errors.New("missing key")
	}
	if _, err := r.Discard(len(Magic)); err != nil {
		return nil, nil, fmt.Errorf("discard handshake magic: %w", err)
	}

	clientNonce = make([]byte, nonceSize)
	if _, err := io.ReadFull(r, clientNonce); err != nil {
		return nil, nil, fmt.Errorf("read client nonce: %w", err)
	}
	tag := make([]byte, sha256.Size)
	if _, err := io.ReadFull(r, tag); err != nil {
		return nil, nil, fmt.Errorf("read client auth: %w", err)
	}
	if !hmac.Equal(tag, authTag(key, clientNonce)) {
		return nil, nil, ErrBadAuth
	}

	serverNonce = make([]byte, nonceSize)
	if _, err := rand.Read(serverNonce); err != nil {
		return nil, nil, fmt.Errorf("generate server nonce: %w", err)
	}
	reply := append([]byte("OK\x00"), serverNonce...)
	if _, err := w.Write(reply); err != nil {
		return nil, nil, fmt.Errorf("write handshake reply: %w", err)
	}
	return clientNonce, serverNonce, nil
}
