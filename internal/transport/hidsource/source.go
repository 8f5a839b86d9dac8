// Package hidsource reads raw reports from the physical pointing device
// via hidapi.
package hidsource

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	hidapi "github.com/sstallion/go-hid"

	kmlog "github.com/ramseymcgrath/kmbridge/internal/log"
)

// Config selects the physical device. An explicit path wins; otherwise the
// first HID interface matching the VID (and PID when non-zero) with a
// mouse usage is opened.
type Config struct {
	Path      string `help:"Explicit hidapi device path of the physical mouse" env:"KMBRIDGE_SOURCE_PATH"`
	VendorID  uint16 `help:"Vendor ID of the physical mouse" env:"KMBRIDGE_SOURCE_VID"`
	ProductID uint16 `help:"Product ID of the physical mouse (0 = any)" env:"KMBRIDGE_SOURCE_PID"`
}

const (
	usagePageGenericDesktop = 0x01
	usageMouse              = 0x02
)

// maxReportLen is sized for the longest physical report plus slack for
// devices that prepend a report ID.
const maxReportLen = 64

// Source owns the opened device and a reader goroutine that copies each
// incoming report into the frames channel. Dropping frames under a stalled
// consumer is acceptable; stalling the device read loop is not.
type Source struct {
	dev    *hidapi.Device
	path   string
	frames chan []byte
	logger *slog.Logger
	raw    kmlog.RawLogger

	once sync.Once
	done chan struct{}
}

// Open initializes hidapi and opens the configured device.
func Open(cfg Config, logger *slog.Logger, raw kmlog.RawLogger) (*Source, error) {
	if err := hidapi.Init(); err != nil {
		return nil, fmt.Errorf("hidapi init: %w", err)
	}

	path := cfg.Path
	if path == "" {
		p, err := findDevice(cfg)
		if err != nil {
			_ = hidapi.Exit()
			return nil, err
		}
		path = p
	}

	dev, err := hidapi.OpenPath(path)
	if err != nil {
		_ = hidapi.Exit()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	logger.Info("physical source opened", "path", path)
	return &Source{
		dev:    dev,
		path:   path,
		frames: make(chan []byte, 32),
		logger: logger,
		raw:    raw,
		done:   make(chan struct{}),
	}, nil
}

func findDevice(cfg Config) (string, error) {
	if cfg.VendorID == 0 {
		return "", errors.New("no source path and no vendor id configured")
	}
	var path string
	_ = hidapi.Enumerate(cfg.VendorID, cfg.ProductID, func(info *hidapi.DeviceInfo) error {
		if path != "" {
			return nil
		}
		// Prefer the mouse interface of composite devices.
		if info.UsagePage == usagePageGenericDesktop && info.Usage == usageMouse {
			path = info.Path
		}
		return nil
	})
	if path == "" {
		// Fall back to the first interface of the device at all.
		_ = hidapi.Enumerate(cfg.VendorID, cfg.ProductID, func(info *hidapi.DeviceInfo) error {
			if path == "" {
				path = info.Path
			}
			return nil
		})
	}
	if path == "" {
		return "", fmt.Errorf("no HID device found for %04x:%04x", cfg.VendorID, cfg.ProductID)
	}
	return path, nil
}

// Start launches the reader goroutine.
func (s *Source) Start() {
	go s.readLoop()
}

// Frames delivers raw report payloads. The channel closes when the device
// read loop ends (device unplugged or Close called).
func (s *Source) Frames() <-chan []byte {
	return s.frames
}

func (s *Source) readLoop() {
	defer close(s.frames)
	buf := make([]byte, maxReportLen)
	for {
		n, err := s.dev.Read(buf)
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Warn("physical source read failed", "path", s.path, "error", err)
			}
			return
		}
		if n == 0 {
			continue
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		s.raw.Report(kmlog.HostToDevice, frame)
		select {
		case s.frames <- frame:
		default:
			// consumer stalled; losing a report beats blocking the device
		}
	}
}

// Close releases the device and hidapi.
func (s *Source) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.dev.Close()
		_ = hidapi.Exit()
	})
	return err
}
