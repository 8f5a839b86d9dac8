// Package client dials a running bridge's TCP command channel, performing
// the shared-key handshake when a key is supplied.
package client

import (
	"fmt"
	"net"
	"time"

	"github.com/ramseymcgrath/kmbridge/internal/auth"
)

// DialTimeout bounds the TCP connect; the command channel itself has no
// protocol-level timeouts.
const DialTimeout = 3 * time.Second

// Connect returns a ready command channel connection. With a non-empty
// key the connection is authenticated and encrypted; the server rejects
// plaintext peers when it is keyed, and vice versa an unkeyed server
// never sees the handshake magic.
func Connect(addr, key string) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if key == "" {
		return conn, nil
	}

	derived, err := auth.DeriveKey(key)
	if err != nil {
		conn.Close()
		return nil, err
	}
	clientNonce, serverNonce, err := auth.ClientHandshake(conn, conn, derived)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake with %s: %w", addr, err)
	}
	sec, err := auth.WrapConn(conn, auth.SessionKey(derived, serverNonce, clientNonce))
	if err != nil {
		conn.Close()
		return nil, err
	}
	return sec, nil
}
