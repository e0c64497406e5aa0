package cmd

import (
	"os"
	"path/filepath"
)

// journalTempDir is where dummy mode keeps its throwaway journal so it never
// collides with real conversion records.
func journalTempDir() string {
	return filepath.Join(os.TempDir(), "ntfs2linux-dummy")
}
