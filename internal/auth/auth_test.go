package auth

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	k1, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, k1, 16)
	for _, c := range k1 {
		assert.Contains(t, base62, string(c))
	}

	k2, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestDeriveKey(t *testing.T) {
	_, err := DeriveKey("")
	assert.Error(t, err)

	k1, err := DeriveKey("correct horse")
	require.NoError(t, err)
	assert.Len(t, k1, 32)

	k2, err := DeriveKey("correct horse")
	require.NoError(t, err)
	assert.Equal(t, k1, k2, "derivation is deterministic")

	k3, err := DeriveKey("wrong horse")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

func TestSessionKeyMixesNonces(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)
	a := SessionKey(key, []byte("server1"), []byte("client1"))
	b := SessionKey(key, []byte("server2"), []byte("client1"))
	c := SessionKey(key, []byte("server1"), []byte("client2"))
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestHandshakeRoundTrip(t *testing.T) {
	key, err := DeriveKey("shared")
	require.NoError(t, err)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	type result struct {
		clientNonce, serverNonce []byte
		err                      error
	}
	srvCh := make(chan result, 1)
	go func() {
		cn, sn, err := ServerHandshake(bufio.NewReader(server), server, key)
		srvCh <- result{cn, sn, err}
	}()

	cn, sn, err := ClientHandshake(client, client, key)
	require.NoError(t, err)

	srv := <-srvCh
	require.NoError(t, srv.err)
	assert.Equal(t, cn, srv.clientNonce, "both sides agree on the client nonce")
	assert.Equal(t, sn, srv.serverNonce, "both sides agree on the server nonce")
	assert.NotEqual(t, cn, sn)
}

func TestHandshakeRejectsWrongKey(t *testing.T) {
	serverKey, err := DeriveKey("right")
	require.NoError(t, err)
	clientKey, err := DeriveKey("wrong")
	require.NoError(t, err)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	srvErr := make(chan error, 1)
	go func() {
		_, _, err := ServerHandshake(bufio.NewReader(server), server, serverKey)
		srvErr <- err
		server.Close()
	}()

	_, _, err = ClientHandshake(client, client, clientKey)
	assert.Error(t, err, "client sees the dropped connection")
	assert.ErrorIs(t, <-srvErr, ErrBadAuth)
}

func TestServerHandshakeRequiresKey(t *testing.T) {
	_, _, err := ServerHandshake(bufio.NewReader(bytes.NewReader(nil)), io.Discard, nil)
	assert.Error(t, err)
}

func TestIsHandshake(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader(append([]byte(Magic), 1, 2, 3)))
	ok, err := IsHandshake(r)
	require.NoError(t, err)
	assert.True(t, ok)

	// The peek must not consume the magic.
	b := make([]byte, len(Magic))
	_, err = io.ReadFull(r, b)
	require.NoError(t, err)
	assert.Equal(t, Magic, string(b))

	r = bufio.NewReader(bytes.NewReader([]byte("km.left(1)\n")))
	ok, err = IsHandshake(r)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWrappedConnRoundTrip(t *testing.T) {
	key, err := DeriveKey("shared")
	require.NoError(t, err)
	session := SessionKey(key, []byte("sn"), []byte("cn"))

	rawClient, rawServer := net.Pipe()
	client, err := WrapConn(rawClient, session)
	require.NoError(t, err)
	server, err := WrapConn(rawServer, session)
	require.NoError(t, err)
	defer client.Close()
	defer server.Close()

	msgs := []string{"km.left(1)\n", "km.move(100,-50)\n", ">>> "}
	go func() {
		for _, m := range msgs {
			_, _ = client.Write([]byte(m))
		}
	}()

	for _, m := range msgs {
		got := make([]byte, len(m))
		_, err := io.ReadFull(server, got)
		require.NoError(t, err)
		assert.Equal(t, m, string(got))
	}
}

func TestWrappedConnRejectsTampering(t *testing.T) {
	key, err := DeriveKey("shared")
	require.NoError(t, err)
	session := SessionKey(key, []byte("sn"), []byte("cn"))

	rawClient, rawServer := net.Pipe()
	client, err := WrapConn(rawClient, session)
	require.NoError(t, err)
	defer client.Close()
	defer rawServer.Close()

	go func() {
		_, _ = client.Write([]byte("km.left(1)\n"))
	}()

	// Capture the frame off the wire, flip a ciphertext bit, and feed it to
	// a fresh receiving side.
	var hdr [4]byte
	_, err = io.ReadFull(rawServer, hdr[:])
	require.NoError(t, err)
	frame := make([]byte, binary.BigEndian.Uint32(hdr[:]))
	_, err = io.ReadFull(rawServer, frame)
	require.NoError(t, err)
	frame[len(frame)-1] ^= 0x01

	a, b := net.Pipe()
	receiver, err := WrapConn(a, session)
	require.NoError(t, err)
	defer receiver.Close()
	defer b.Close()
	go func() {
		_, _ = b.Write(hdr[:])
		_, _ = b.Write(frame)
	}()

	_ = a.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = receiver.Read(make([]byte, 64))
	assert.Error(t, err, "a tampered frame must not decrypt")
}

func TestWrappedConnRejectsOversizedFrame(t *testing.T) {
	session := SessionKey(bytes.Repeat([]byte{1}, 32), []byte("sn"), []byte("cn"))
	a, b := net.Pipe()
	conn, err := WrapConn(a, session)
	require.NoError(t, err)
	defer conn.Close()
	defer b.Close()

	go func() {
		_, _ = b.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	}()
	_ = a.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(make([]byte, 16))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
