package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the rentshelf home directory.
	DefaultDirName = ".rentshelf"

	// BooksDirName holds one directory per uploaded book.
	BooksDirName = "books"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// BookFileName is the name every stored PDF is saved under.
	BookFileName = "book.pdf"
)

// Dir represents the rentshelf home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.rentshelf).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// BooksDir returns the directory holding stored book files.
func (d *Dir) BooksDir() string {
	return filepath.Join(d.path, BooksDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// DefraDataPath returns the host directory mounted into the DefraDB container.
func (d *Dir) DefraDataPath() string {
	return filepath.Join(d.path, "defradb")
}

// LocalDBPath returns the SQLite database used for offline reading.
func (d *Dir) LocalDBPath() string {
	return filepath.Join(d.path, "local.db")
}

// LogPath returns the log file used while the terminal reader owns stdout.
func (d *Dir) LogPath() string {
	return filepath.Join(d.path, "reader.log")
}

// PidPath returns the pid file written by a running server.
func (d *Dir) PidPath() string {
	return filepath.Join(d.path, "server.pid")
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.BooksDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create books directory: %w", err)
	}
	if err := os.MkdirAll(d.DefraDataPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create defradb directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// BookDir returns the directory for one book's files.
func (d *Dir) BookDir(bookID string) string {
	return filepath.Join(d.BooksDir(), bookID)
}

// BookPDFPath returns the stored PDF for a book.
func (d *Dir) BookPDFPath(bookID string) string {
	return filepath.Join(d.BookDir(bookID), BookFileName)
}

// EnsureBookDir creates the directory for a book.
func (d *Dir) EnsureBookDir(bookID string) error {
	return os.MkdirAll(d.BookDir(bookID), 0o755)
}
