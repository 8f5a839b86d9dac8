// Package profile loads the optional TOML profile carrying startup lock
// state and click timing overrides, and re-applies it when the file
// changes on disk.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	toml "github.com/pelletier/go-toml"

	"github.com/ramseymcgrath/kmbridge/remap"
)

// Profile mirrors the profile file layout.
type Profile struct {
	Locks  Locks  `toml:"locks"`
	Timing Timing `toml:"timing"`
}

// Locks are applied verbatim; absent fields default to unlocked.
type Locks struct {
	X      bool `toml:"x"`
	Y      bool `toml:"y"`
	Left   bool `toml:"left"`
	Right  bool `toml:"right"`
	Middle bool `toml:"middle"`
	Side1  bool `toml:"side1"`
	Side2  bool `toml:"side2"`
}

// Timing overrides the randomized hold windows, in milliseconds.
// Zero values keep the engine defaults.
type Timing struct {
	ReleaseMinMs   int `toml:"release_min_ms"`
	ReleaseMaxMs   int `toml:"release_max_ms"`
	ClickHoldMinMs int `toml:"click_hold_min_ms"`
	ClickHoldMaxMs int `toml:"click_hold_max_ms"`
}

// Load reads and parses a profile file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return &p, nil
}

// Apply pushes the profile into the engine. Must run on the polling
// goroutine, like every other engine mutation.
func (p *Profile) Apply(e *remap.Engine) {
	e.SetAxisLockX(p.Locks.X)
	e.SetAxisLockY(p.Locks.Y)
	for btn, locked := range p.buttonLocks() {
		e.SetButtonLock(btn, locked)
	}
	e.SetTiming(remap.Timing{
		ReleaseMin:   time.Duration(p.Timing.ReleaseMinMs) * time.Millisecond,
		ReleaseMax:   time.Duration(p.Timing.ReleaseMaxMs) * time.Millisecond,
		ClickHoldMin: time.Duration(p.Timing.ClickHoldMinMs) * time.Millisecond,
		ClickHoldMax: time.Duration(p.Timing.ClickHoldMaxMs) * time.Millisecond,
	})
}

func (p *Profile) buttonLocks() map[int]bool {
	return map[int]bool{
		0: p.Locks.Left,
		1: p.Locks.Right,
		2: p.Locks.Middle,
		3: p.Locks.Side1,
		4: p.Locks.Side2,
	}
}

// Watch re-loads the profile whenever it is written and hands the result
// to onChange. A reload that fails to parse keeps the last good profile.
// Runs until the context is cancelled.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Profile)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("profile watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files rather than write in place.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	base := filepath.Base(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			p, err := Load(path)
			if err != nil {
				logger.Warn("profile reload failed, keeping previous", "path", path, "error", err)
				continue
			}
			logger.Info("profile reloaded", "path", path)
			onChange(p)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("profile watcher error", "error", err)
		}
	}
}
