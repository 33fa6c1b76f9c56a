// Package fsutil provides file, directory and executable lookup helpers.
//
// Every readiness check in the service is a question about the local
// filesystem, so the answers live in one place.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const (
	defaultDirPermissions = 0o750
	executableBits        = 0o111
)

// Error message and format string constants.
const (
	errFmtFailedToCreateDir   = "failed to create directory %s: %w"
	errFmtExecutableNotFound  = "%w: tried %s"
	executableCandidatesSplit = ", "
)

// ErrExecutableNotFound is returned when none of the executable candidates can be located.
var ErrExecutableNotFound = errors.New("executable not found")

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	if path == "" {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.Mode().IsRegular()
}

// EnsureDir ensures a directory exists at the given path, creating it if it doesn't.
func EnsureDir(path string) error {
	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		mkdirErr := os.MkdirAll(path, defaultDirPermissions)
		if mkdirErr != nil {
			return fmt.Errorf(errFmtFailedToCreateDir, path, mkdirErr)
		}
	}

	return nil
}

// FindExecutable returns the first candidate that resolves to an executable.
// Candidates containing a path separator are checked in place; bare names are
// looked up on PATH. Empty candidates are skipped.
func FindExecutable(candidates ...string) (string, error) {
	tried := make([]string, 0, len(candidates))

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}

		tried = append(tried, candidate)

		if !strings.ContainsRune(candidate, os.PathSeparator) {
			resolved, err := exec.LookPath(candidate)
			if err == nil {
				return resolved, nil
			}

			continue
		}

		if isExecutableFile(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf(errFmtExecutableNotFound, ErrExecutableNotFound, strings.Join(tried, executableCandidatesSplit))
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	return info.Mode().Perm()&executableBits != 0
}
