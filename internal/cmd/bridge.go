package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ramseymcgrath/kmbridge/command"
	"github.com/ramseymcgrath/kmbridge/internal/auth"
	"github.com/ramseymcgrath/kmbridge/internal/configpaths"
	"github.com/ramseymcgrath/kmbridge/internal/indicator"
	kmlog "github.com/ramseymcgrath/kmbridge/internal/log"
	"github.com/ramseymcgrath/kmbridge/internal/profile"
	"github.com/ramseymcgrath/kmbridge/internal/transport/hidsource"
	"github.com/ramseymcgrath/kmbridge/internal/transport/loopback"
	"github.com/ramseymcgrath/kmbridge/internal/transport/serialport"
	"github.com/ramseymcgrath/kmbridge/internal/transport/tcpchan"
	"github.com/ramseymcgrath/kmbridge/remap"
)

const keyFileName = "kmbridge.key.txt"

// Bridge runs the remapping pipeline: physical source in, remapped reports
// out, command channel(s) on the side.
type Bridge struct {
	Source hidsource.Config  `embed:"" prefix:"source."`
	Serial serialport.Config `embed:"" prefix:"serial."`

	Listen    string `help:"TCP command channel listen address (empty = disabled)" default:":3247" env:"KMBRIDGE_LISTEN"`
	Key       string `help:"Shared key for the TCP command channel (empty = load or generate keyfile)" env:"KMBRIDGE_KEY"`
	Plaintext bool   `help:"Serve the TCP command channel without authentication"`

	Profile string `help:"Profile file (TOML), hot-reloaded on change" env:"KMBRIDGE_PROFILE"`

	Tick        time.Duration `help:"Core tick interval" default:"2ms" env:"KMBRIDGE_TICK"`
	IdleAfter   time.Duration `help:"Quiet time before the indicator drops to idle" default:"500ms"`
	SinkLatency time.Duration `help:"Loopback sink completion latency" default:"1ms"`
	NoSource    bool          `help:"Run without a physical device (command-driven only)"`
}

// Run is called by kong when the bridge command is executed.
func (b *Bridge) Run(logger *slog.Logger, rawLogger kmlog.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return b.run(ctx, logger, rawLogger)
}

func (b *Bridge) run(ctx context.Context, logger *slog.Logger, rawLogger kmlog.RawLogger) error {
	sink := loopback.New(b.SinkLatency, rawLogger)
	engine := remap.New(
		remap.Config{IdleAfter: b.IdleAfter},
		sink,
		indicator.NewLog(logger),
		logger,
	)
	sink.Bind(engine.TransmitComplete)

	// Everything below feeds the single polling goroutine. Transports post
	// closures; only the loop touches engine and parser state.
	events := make(chan func(now time.Time), 128)
	post := func(fn func(now time.Time)) {
		select {
		case events <- fn:
		case <-ctx.Done():
		}
	}

	if b.Profile != "" {
		if p, err := profile.Load(b.Profile); err == nil {
			p.Apply(engine)
			logger.Info("profile loaded", "path", b.Profile)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("load profile: %w", err)
		} else {
			logger.Info("profile not found, using defaults", "path", b.Profile)
		}
		go func() {
			if err := profile.Watch(ctx, b.Profile, logger, func(p *profile.Profile) {
				post(func(time.Time) { p.Apply(engine) })
			}); err != nil {
				logger.Warn("profile watch disabled", "error", err)
			}
		}()
	}

	parsers := make(map[*command.Parser]struct{})
	handler := command.NewHandler(engine, sink, logger)

	if b.Serial.Device != "" {
		ch, err := serialport.Open(b.Serial, logger)
		if err != nil {
			return err
		}
		defer ch.Close()
		p := command.NewParser(ch, handler)
		post(func(time.Time) { parsers[p] = struct{}{} })
		go func() {
			for chunk := range ch.Bytes() {
				data := chunk
				post(func(now time.Time) { p.ConsumeBytes(data, now) })
			}
			post(func(time.Time) { delete(parsers, p) })
		}()
	}

	if b.Listen != "" {
		var derived []byte
		if !b.Plaintext {
			key, err := b.commandKey(logger)
			if err != nil {
				return err
			}
			derived, err = auth.DeriveKey(key)
			if err != nil {
				return err
			}
		}
		srv := tcpchan.New(b.Listen, derived, logger, func(rw io.ReadWriter, remote string) {
			p := command.NewParser(rw, handler)
			post(func(time.Time) { parsers[p] = struct{}{} })
			defer post(func(time.Time) { delete(parsers, p) })
			buf := make([]byte, 256)
			for {
				n, err := rw.Read(buf)
				if err != nil {
					return
				}
				data := make([]byte, n)
				copy(data, buf[:n])
				post(func(now time.Time) { p.ConsumeBytes(data, now) })
			}
		})
		if err := srv.Start(); err != nil {
			return fmt.Errorf("command channel: %w", err)
		}
		defer srv.Close()
	}

	var frames <-chan []byte
	if !b.NoSource {
		src, err := hidsource.Open(b.Source, logger, rawLogger)
		if err != nil {
			return fmt.Errorf("physical source: %w", err)
		}
		defer src.Close()
		src.Start()
		frames = src.Frames()
	}

	engine.Ready()
	ticker := time.NewTicker(b.Tick)
	defer ticker.Stop()
	logger.Info("bridge running", "tick", b.Tick)

	for {
		select {
		case <-ctx.Done():
			s := engine.Stats()
			logger.Info("bridge stopping",
				"transmitted", s.Transmitted,
				"suppressed", s.Suppressed,
				"injected", s.Injected,
				"dropped", s.DroppedDelivery,
				"bad_reports", s.BadReports,
			)
			return nil
		case now := <-ticker.C:
			engine.Tick(now)
			for p := range parsers {
				p.Tick(now)
			}
		case fn := <-events:
			fn(time.Now())
		case frame, ok := <-frames:
			if !ok {
				frames = nil
				logger.Warn("physical source closed")
				continue
			}
			engine.HandleReport(frame, time.Now())
		}
	}
}

// commandKey returns the shared key: the flag value if set, otherwise the
// keyfile in the config dir, generating one on first run.
func (b *Bridge) commandKey(logger *slog.Logger) (string, error) {
	if b.Key != "" {
		return b.Key, nil
	}
	dir, err := configpaths.DefaultConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve key file dir: %w", err)
	}
	path := filepath.Join(dir, keyFileName)
	if data, err := os.ReadFile(path); err == nil {
		return strings.TrimSpace(string(data)), nil
	}

	key, err := auth.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generate command key: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(key), 0o600); err != nil {
		return "", fmt.Errorf("write key file: %w", err)
	}
	logger.Info("generated command channel key", "path", path)
	logger.Info("connect with: kmbridge console --key " + key)
	return key, nil
}
