// Package security validates user-supplied save paths before exported
// Markdown files are written.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrAbsolutePath  = errors.New("absolute paths are not allowed")
	ErrReservedName  = errors.New("reserved filename not allowed")
)

var reservedNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true,
	"com5": true, "com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
	"lpt5": true, "lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// ValidateSavePath rejects paths that would escape the working directory,
// shadow Windows device names, or be mistaken for a flag.
func ValidateSavePath(path string) error {
	if filepath.IsAbs(path) {
		return ErrAbsolutePath
	}
	if strings.Contains(path, "..") || strings.HasPrefix(filepath.Clean(path), "..") {
		return ErrPathTraversal
	}

	base := filepath.Base(filepath.Clean(path))
	if reservedNames[strings.TrimSuffix(strings.ToLower(base), filepath.Ext(base))] {
		return ErrReservedName
	}
	if strings.HasPrefix(base, "-") {
		return fmt.Errorf("filename cannot start with hyphen")
	}
	return nil
}

// SanitizeFilename turns an arbitrary title into a safe filename.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-",
		"*", "", "?", "", "\"", "",
		"<", "", ">", "", "|", "", "\x00", "",
	)
	sanitized := replacer.Replace(name)
	sanitized = strings.TrimLeft(sanitized, ".-")
	sanitized = strings.TrimRight(sanitized, ". ")

	if reservedNames[strings.TrimSuffix(strings.ToLower(sanitized), filepath.Ext(sanitized))] {
		sanitized += "_"
	}
	if sanitized == "" {
		return "giao-an"
	}
	return sanitized
}

// MarkdownPath appends the .md extension when the path lacks one.
func MarkdownPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".md") {
		return path
	}
	return path + ".md"
}
