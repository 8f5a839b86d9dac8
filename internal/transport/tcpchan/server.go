// Package tcpchan serves the command channel over TCP, with an optional
// shared-key handshake upgrading the connection to an encrypted one.
package tcpchan

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/ramseymcgrath/kmbridge/internal/auth"
)

// ConnHandler runs the command REPL over one accepted (and possibly
// encrypted) connection; it returns when the peer goes away.
type ConnHandler func(rw io.ReadWriter, remote string)

// Server accepts command channel connections. When a derived key is set,
// every connection must open with the auth handshake; plaintext peers are
// dropped.
type Server struct {
	addr   string
	key    []byte
	logger *slog.Logger
	handle ConnHandler

	ln net.Listener
	wg sync.WaitGroup
}

// New builds a server; key nil means plaintext connections are accepted.
func New(addr string, key []byte, logger *slog.Logger, handle ConnHandler) *Server {
	return &Server{addr: addr, key: key, logger: logger, handle: handle}
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("command channel listening", "addr", ln.Addr().String())
	s.wg.Add(1)
	go s.serve()
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.logger.Info("command channel stopped")
				return
			}
			s.logger.Warn("command channel accept failed", "error", err)
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	logger := s.logger.With("remote", remote)

	var rw io.ReadWriter = conn
	if s.key != nil {
		br := bufio.NewReader(conn)
		isAuth, err := auth.IsHandshake(br)
		if err != nil || !isAuth {
			logger.Warn("rejecting unauthenticated command connection")
			return
		}
		clientNonce, serverNonce, err := auth.ServerHandshake(br, conn, s.key)
		if err != nil {
			logger.Warn("command channel handshake failed", "error", err)
			return
		}
		sec, err := auth.WrapConn(conn, auth.SessionKey(s.key, serverNonce, clientNonce))
		if err != nil {
			logger.Error("wrap connection", "error", err)
			return
		}
		rw = sec
	}

	logger.Info("command connection open")
	s.handle(rw, remote)
	logger.Info("command connection closed")
}

// Close stops accepting and waits for connection handlers to finish.
func (s *Server) Close() {
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.wg.Wait()
}
