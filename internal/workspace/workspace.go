package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/requireconcat/internal/logfields"
)

// dirPattern names staging directories; the "*" is replaced with a random suffix.
const dirPattern = ".requireconcat-staging-*"

// Manager handles one staging workspace.
type Manager struct {
	baseDir string
	dir     string
}

// NewManager creates a workspace manager rooted at baseDir.
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// ForOutput returns a manager whose workspace lives in the directory of target.
func ForOutput(target string) *Manager {
	return NewManager(filepath.Dir(target))
}

// Create creates a fresh, uniquely named workspace directory.
func (m *Manager) Create() error {
	if m.dir != "" {
		return fmt.Errorf("workspace already created: %s", m.dir)
	}
	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace base directory: %w", err)
	}

	dir, err := os.MkdirTemp(m.baseDir, dirPattern)
	if err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}

	m.dir = dir
	slog.Debug("Created workspace", logfields.Path(dir))
	return nil
}

// GetPath returns the path to the workspace directory
func (m *Manager) GetPath() string {
	return m.dir
}

// File returns the path of name inside the workspace.
func (m *Manager) File(name string) (string, error) {
	if m.dir == "" {
		return "", errors.New("workspace not created")
	}
	return filepath.Join(m.dir, name), nil
}

// Cleanup removes the workspace directory and its contents. It is safe to
// call more than once.
func (m *Manager) Cleanup() error {
	if m.dir == "" {
		return nil
	}

	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}

	slog.Debug("Cleaned up workspace", logfields.Path(m.dir))
	m.dir = ""
	return nil
}
