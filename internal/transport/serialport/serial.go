// Package serialport exposes the command channel over a serial device,
// the classic CDC interface of the hardware box this bridge replaces.
package serialport

import (
	"fmt"
	"log/slog"
	"sync"

	"go.bug.st/serial"
)

// Config selects the serial command channel; an empty device disables it.
type Config struct {
	Device string `help:"Serial device for the command channel (e.g. /dev/ttyACM0)" env:"KMBRIDGE_SERIAL_DEVICE"`
	Baud   int    `help:"Serial baud rate" default:"115200" env:"KMBRIDGE_SERIAL_BAUD"`
}

// Channel is a byte-oriented command channel: incoming bytes arrive on
// Bytes, echo and responses are written back through Write.
type Channel struct {
	port   serial.Port
	device string
	bytes  chan []byte
	logger *slog.Logger

	once sync.Once
	done chan struct{}
}

// Open opens the serial device and starts its reader.
func Open(cfg Config, logger *slog.Logger) (*Channel, error) {
	port, err := serial.Open(cfg.Device, &serial.Mode{BaudRate: cfg.Baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", cfg.Device, err)
	}
	c := &Channel{
		port:   port,
		device: cfg.Device,
		bytes:  make(chan []byte, 32),
		logger: logger,
		done:   make(chan struct{}),
	}
	go c.readLoop()
	logger.Info("serial command channel open", "device", cfg.Device, "baud", cfg.Baud)
	return c, nil
}

// Bytes delivers incoming command bytes; closed when the port dies.
func (c *Channel) Bytes() <-chan []byte {
	return c.bytes
}

// Write sends echo and response bytes back to the terminal.
func (c *Channel) Write(p []byte) (int, error) {
	return c.port.Write(p)
}

func (c *Channel) readLoop() {
	defer close(c.bytes)
	buf := make([]byte, 64)
	for {
		n, err := c.port.Read(buf)
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("serial read failed", "device", c.device, "error", err)
			}
			return
		}
		if n == 0 {
			continue
		}
		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		select {
		case c.bytes <- chunk:
		case <-c.done:
			return
		}
	}
}

// Close shuts the port down.
func (c *Channel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.port.Close()
	})
	return err
}
