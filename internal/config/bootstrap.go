package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EnsureUserConfig returns <dataDir>/config.yml, creating it first when
// missing: copied from defaultPath if that file exists, otherwise
// rendered from Default.
func EnsureUserConfig(dataDir string, defaultPath string) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", err
	}

	if defaultPath != "" {
		src, err := os.Open(defaultPath)
		if err == nil {
			defer src.Close()

			dst, err := os.Create(userPath)
			if err != nil {
				return "", err
			}
			defer dst.Close()

			if _, err := io.Copy(dst, src); err != nil {
				return "", err
			}
			return userPath, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}

	cfg := Default()
	cfg.App.DataDir = dataDir
	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(userPath, b, 0o644); err != nil {
		return "", err
	}
	return userPath, nil
}
