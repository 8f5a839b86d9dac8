package cmd

import (
	"log/slog"
	"os"
	"path/filepath"
)

// ServiceCommand manages the bridge as a system service.
type ServiceCommand struct {
	Install   ServiceInstall   `cmd:"" help:"Install and start the bridge as a system service"`
	Uninstall ServiceUninstall `cmd:"" help:"Stop and remove the bridge system service"`
}

// ServiceInstall writes the service definition pointing at the current
// executable and starts it.
type ServiceInstall struct{}

func (s *ServiceInstall) Run(logger *slog.Logger) error {
	return installService(logger)
}

// ServiceUninstall stops and removes the installed service.
type ServiceUninstall struct{}

func (s *ServiceUninstall) Run(logger *slog.Logger) error {
	return uninstallService(logger)
}

func currentExecutable() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(exePath)
}
