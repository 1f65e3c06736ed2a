// Package api holds the versioned document types of kfold and the file
// helpers shared by them.
package api

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/macropower/kfold/pkg/yaml"
)

const appName = "kfold"

// ErrNotRegular is returned when a path exists but is not a regular file.
var ErrNotRegular = errors.New("not a regular file")

// GetConfigPath returns the path of filename in the kfold configuration
// directory: $XDG_CONFIG_HOME/kfold, then ~/.config/kfold, then a directory
// below the system temp directory.
func GetConfigPath(filename string) string {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, appName, filename)
	}

	usrHome, err := os.UserHomeDir()
	if err == nil && usrHome != "" {
		return filepath.Join(usrHome, ".config", appName, filename)
	}

	tmpPath := filepath.Join(os.TempDir(), appName, filename)

	slog.Warn("no user config directory, using temp path",
		slog.String("path", tmpPath),
		slog.Any("error", err),
	)

	return tmpPath
}

// regularFile reports whether path is an existing regular file. Missing
// paths are not an error; any other non-regular file is.
func regularFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat %s: %w", path, err)
	case info.IsDir():
		return false, fmt.Errorf("%s: %w: path is a directory", path, ErrNotRegular)
	case !info.Mode().IsRegular():
		return false, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}

	return true, nil
}

// ReadFile reads a regular file. A missing file yields an error matching
// [fs.ErrNotExist].
func ReadFile(path string) ([]byte, error) {
	ok, err := regularFile(path)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, fs.ErrNotExist)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: Reading user-selected files is the point.
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// MarshalYAML serializes an object to YAML bytes.
func MarshalYAML(obj any) ([]byte, error) {
	return yaml.Marshal(obj) //nolint:wrapcheck // Already wrapped.
}

func writeFile(path string, data []byte) error {
	err := os.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	err = os.WriteFile(path, data, 0o600)
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

// WriteIfNotExists writes data to path unless a regular file is already
// there.
func WriteIfNotExists(path string, data []byte) error {
	exists, err := regularFile(path)
	if err != nil || exists {
		return err
	}

	return writeFile(path, data)
}

// WriteDefaultFile writes the default document of the given kind to path.
// An existing file is kept, unless force is set, in which case it is moved
// to a timestamped backup next to it first.
func WriteDefaultFile(path string, defaultData []byte, force bool, kind string) error {
	logger := slog.With(slog.String("type", kind), slog.String("path", path))

	exists, err := regularFile(path)
	if err != nil {
		return err
	}

	if exists && !force {
		logger.Debug("file already exists, skipping write")
		return nil
	}

	if exists {
		backupPath := fmt.Sprintf("%s.%d.old", path, time.Now().UnixNano())
		logger.Info("backing up existing file", slog.String("backup", backupPath))

		err = os.Rename(path, backupPath)
		if err != nil {
			return fmt.Errorf("back up %s file: %w", kind, err)
		}
	}

	logger.Info("write default file")

	err = writeFile(path, defaultData)
	if err != nil {
		return fmt.Errorf("write %s file: %w", kind, err)
	}

	return nil
}
