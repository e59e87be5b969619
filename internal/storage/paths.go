// Package storage provides persistent storage for user preferences and game statistics.
package storage

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog/log"
)

const appName = "chessbot"

// GetDataDir returns the platform-specific data directory for the application.
// - macOS: ~/Library/Application Support/chessbot/
// - Linux: ~/.local/share/chessbot/
// - Windows: %APPDATA%/chessbot/
func GetDataDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		baseDir = filepath.Join(homeDir, "Library", "Application Support")

	case "windows":
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(homeDir, "AppData", "Roaming")
		}

	default:
		// Check XDG_DATA_HOME first
		baseDir = os.Getenv("XDG_DATA_HOME")
		if baseDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(homeDir, ".local", "share")
		}
	}

	dataDir := filepath.Join(baseDir, appName)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}
	return dataDir, nil
}

// GetDatabaseDir returns the directory for the BadgerDB database. An empty
// dir selects "db" under GetDataDir.
func GetDatabaseDir(dir string) (string, error) {
	if dir == "" {
		dataDir, err := GetDataDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(dataDir, "db")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	log.Debug().Str("dir", dir).Msg("database directory")
	return dir, nil
}
