package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/ramseymcgrath/kmbridge/client"
)

// Console attaches an interactive terminal to a running bridge's TCP
// command channel. The bridge echoes everything, so the local terminal
// runs raw with echo off.
type Console struct {
	Addr string `help:"Bridge command channel address" default:"127.0.0.1:3247" env:"KMBRIDGE_ADDR"`
	Key  string `help:"Shared key (empty = plaintext connection)" env:"KMBRIDGE_KEY"`
}

// Run is called by kong when the console command is executed.
func (c *Console) Run(logger *slog.Logger) error {
	conn, err := client.Connect(c.Addr, c.Key)
	if err != nil {
		return err
	}
	defer conn.Close()

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("raw terminal: %w", err)
		}
		defer term.Restore(fd, old)
	}
	fmt.Printf("connected to %s, Ctrl-C to exit\r\n", c.Addr)

	done := make(chan error, 2)
	go func() {
		_, err := io.Copy(os.Stdout, conn)
		done <- err
	}()
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				done <- err
				return
			}
			if n == 0 {
				continue
			}
			// Ctrl-C / Ctrl-D end the session; raw mode delivers them here.
			if buf[0] == 0x03 || buf[0] == 0x04 {
				done <- nil
				return
			}
			if _, err := conn.Write(buf[:n]); err != nil {
				done <- err
				return
			}
		}
	}()

	if err := <-done; err != nil && err != io.EOF {
		return err
	}
	fmt.Print("\r\n")
	return nil
}
