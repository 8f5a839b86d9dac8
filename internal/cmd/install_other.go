//go:build !linux

package cmd

import (
	"errors"
	"log/slog"
)

var errNoServiceManager = errors.New("service management is only supported on linux (systemd)")

func installService(logger *slog.Logger) error {
	return errNoServiceManager
}

func uninstallService(logger *slog.Logger) error {
	return errNoServiceManager
}
