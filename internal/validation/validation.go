// Package validation checks user-supplied paths and sniffs the container
// format of input files.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// MaxPathLength is the maximum allowed path length.
const MaxPathLength = 4096

// Common validation errors.
var (
	ErrPathTraversal    = errors.New("path traversal detected")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
)

// ValidatePath performs path validation without requiring a base directory.
// It checks length limits and rejects NUL and control characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}

	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}

	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}

	return nil
}

// SanitizePath validates a relative path that is about to be joined onto
// baseDir and returns the joined path. It fails if the result would escape
// baseDir.
func SanitizePath(baseDir, relPath string) (string, error) {
	if err := ValidatePath(relPath); err != nil {
		return "", err
	}

	cleanPath := filepath.Clean(relPath)
	if filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("%w: absolute path not allowed", ErrPathTraversal)
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	fullPath := filepath.Join(baseDir, cleanPath)
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	return fullPath, nil
}

// Compression identifies a stream container.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionXZ   Compression = "xz"
	CompressionGzip Compression = "gzip"
)

// MagicLen is how many leading bytes DetectCompression needs.
const MagicLen = 6

var magicBytes = []struct {
	compression Compression
	magic       []byte
}{
	{CompressionXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{CompressionGzip, []byte{0x1f, 0x8b}},
}

// DetectCompression recognises a compressed stream from its first bytes.
func DetectCompression(head []byte) Compression {
	for _, sig := range magicBytes {
		if bytes.HasPrefix(head, sig.magic) {
			return sig.compression
		}
	}
	return CompressionNone
}

// CompressionFromExtension picks the output container from a file name.
func CompressionFromExtension(name string) Compression {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xz":
		return CompressionXZ
	case ".gz":
		return CompressionGzip
	default:
		return CompressionNone
	}
}
