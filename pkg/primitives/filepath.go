package primitives

import (
	"os"
	"path/filepath"
)

// MemoryPath names a checkpoint kept in process instead of on disk.
const MemoryPath Filepath = ":memory:"

// Filepath is the location of a checkpoint or log file.
type Filepath string

// String returns the path as a plain string.
func (f Filepath) String() string {
	return string(f)
}

// IsMemory reports whether f names an in-process database.
func (f Filepath) IsMemory() bool {
	return f == MemoryPath
}

// Exists reports whether something exists at the path.
func (f Filepath) Exists() bool {
	_, err := os.Stat(string(f))
	return err == nil
}

// MkdirAll creates the directory that would contain this file.
func (f Filepath) MkdirAll(perm os.FileMode) error {
	dir := filepath.Dir(string(f))
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, perm)
}

// DSN returns the go-sqlite3 data source name for the path.
func (f Filepath) DSN() string {
	if f.IsMemory() {
		return string(f)
	}
	return "file:" + string(f)
}
