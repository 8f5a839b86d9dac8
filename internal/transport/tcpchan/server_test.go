package tcpchan

import (
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramseymcgrath/kmbridge/client"
	"github.com/ramseymcgrath/kmbridge/command"
	"github.com/ramseymcgrath/kmbridge/internal/auth"
)

// echoExec accepts km.* lines and answers km.ok so the round trip is
// observable without a full engine behind it.
type echoExec struct{}

func (echoExec) Execute(line string, now time.Time) (string, bool) {
	if !strings.HasPrefix(line, "km.") {
		return "", false
	}
	return "km.ok", true
}

func replHandler(rw io.ReadWriter, remote string) {
	p := command.NewParser(rw, echoExec{})
	buf := make([]byte, 256)
	for {
		n, err := rw.Read(buf)
		if n > 0 {
			p.ConsumeBytes(buf[:n], time.Now())
		}
		if err != nil {
			return
		}
	}
}

func startServer(t *testing.T, key []byte) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New("127.0.0.1:0", key, logger, replHandler)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Close)
	return srv
}

// readUntilPrompt collects output through the trailing prompt.
func readUntilPrompt(t *testing.T, conn net.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var out strings.Builder
	buf := make([]byte, 256)
	for !strings.HasSuffix(out.String(), command.Prompt) {
		n, err := conn.Read(buf)
		out.Write(buf[:n])
		require.NoError(t, err)
	}
	return out.String()
}

func TestPlaintextSession(t *testing.T) {
	srv := startServer(t, nil)

	conn, err := client.Connect(srv.Addr(), "")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("km.buttons()\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "km.buttons()\r\nkm.ok\r\n"+command.Prompt, readUntilPrompt(t, conn))
}

func TestAuthenticatedSession(t *testing.T) {
	key, err := auth.DeriveKey("secret")
	require.NoError(t, err)
	srv := startServer(t, key)

	conn, err := client.Connect(srv.Addr(), "secret")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("km.left(1)\n"))
	require.NoError(t, err)
	assert.Equal(t, "km.left(1)\nkm.ok\n"+command.Prompt, readUntilPrompt(t, conn))

	// A second command must keep working over the same encrypted stream.
	_, err = conn.Write([]byte("km.left(0)\n"))
	require.NoError(t, err)
	assert.Equal(t, "km.left(0)\nkm.ok\n"+command.Prompt, readUntilPrompt(t, conn))
}

func TestKeyedServerDropsPlaintextPeer(t *testing.T) {
	key, err := auth.DeriveKey("secret")
	require.NoError(t, err)
	srv := startServer(t, key)

	conn, err := net.DialTimeout("tcp", srv.Addr(), client.DialTimeout)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("km.left(1)\n"))
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = conn.Read(make([]byte, 16))
	assert.Error(t, err, "plaintext peer is dropped without a reply")
}

func TestKeyedServerRejectsWrongKey(t *testing.T) {
	key, err := auth.DeriveKey("right")
	require.NoError(t, err)
	srv := startServer(t, key)

	_, err = client.Connect(srv.Addr(), "wrong")
	assert.Error(t, err)
}

func TestCloseStopsAccepting(t *testing.T) {
	srv := startServer(t, nil)
	addr := srv.Addr()
	srv.Close()

	_, err := net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err)
}
