package conf

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/mhews/mhews/internal/errors"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml, in order.
func GetDefaultConfigPaths() ([]string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-executable-path").
			Build()
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	if runtime.GOOS == "windows" {
		return []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "mhews"),
		}, nil
	}

	return []string{
		filepath.Join(homeDir, ".config", "mhews"),
		"/etc/mhews",
		exeDir,
	}, nil
}
