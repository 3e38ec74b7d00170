// Package fileutil provides file and path utility functions.
package fileutil

import (
	"os"
	"runtime"
	"strings"
)

// FileExists returns true if the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// IsExecutable reports whether path is a regular file the current user may
// run. On Windows any existing file counts.
func IsExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

// IsFilePath returns true if the string looks like a file path rather than a name.
// A string containing path separators (/, \) is treated as a path.
//
// Examples:
//   - "scribdlink" -> false (name)
//   - "./scribdlink.yaml" -> true (relative path)
//   - "/etc/scribdlink/prod.yaml" -> true (absolute)
//   - "C:\config\prod.yaml" -> true (Windows)
//   - "staging-eu" -> false (hyphenated name)
func IsFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}
