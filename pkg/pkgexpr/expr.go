// Package pkgexpr parses package tokens of the form "name-version_revision"
// as recorded in the package database. Every installed package build is
// identified by such a token; the version component starts at the last
// hyphen that is followed by a digit and must carry a "_revision" suffix.
package pkgexpr

import (
	"fmt"
	"strings"
)

// ParseName extracts the bare package name from a "name-version_revision"
// token. It returns an error for tokens that do not carry a parseable
// version component; callers must treat that as data corruption rather
// than fall back to a best-effort name.
func ParseName(token string) (string, error) {
	name, _, err := Parse(token)
	if err != nil {
		return "", err
	}
	return name, nil
}

// ParseVersion extracts the "version_revision" component from a package token.
func ParseVersion(token string) (string, error) {
	_, version, err := Parse(token)
	if err != nil {
		return "", err
	}
	return version, nil
}

// Parse splits a package token into its name and version components.
// The split point is the last '-' whose remainder begins with a digit;
// package names themselves may contain hyphens (e.g. "base-system-1.0_1").
func Parse(token string) (name, version string, err error) {
	if token == "" {
		return "", "", fmt.Errorf("empty package token")
	}

	idx := -1
	for i := len(token) - 2; i >= 1; i-- {
		if token[i] == '-' && isDigit(token[i+1]) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", "", fmt.Errorf("package token %q has no version component", token)
	}

	name = token[:idx]
	version = token[idx+1:]

	// The revision separator is mandatory; "name-1.0" is not a valid build token.
	us := strings.LastIndexByte(version, '_')
	if us <= 0 || us == len(version)-1 {
		return "", "", fmt.Errorf("package token %q has no revision in version %q", token, version)
	}

	return name, version, nil
}

// SplitVersion splits a "version_revision" component into its version
// and revision parts.
func SplitVersion(version string) (ver, rev string, err error) {
	us := strings.LastIndexByte(version, '_')
	if us <= 0 || us == len(version)-1 {
		return "", "", fmt.Errorf("version %q has no revision", version)
	}
	return version[:us], version[us+1:], nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
