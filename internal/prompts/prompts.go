// Package prompts loads the system and user message files a batch is built from.
package prompts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

var (
	// ErrNotFound is returned when a message file does not exist.
	ErrNotFound = errors.New("message file not found")
	// ErrEmptyPool is returned when the system message file holds no text at all.
	ErrEmptyPool = errors.New("system message pool is empty")
)

// Set holds the messages of one batch. Both slices are read-only after Load.
type Set struct {
	System []string
	User   []string
}

// Load reads the system pool first and the user queue second, so a missing
// system file is reported even when the user file is missing too.
func Load(systemPath, userPath string) (Set, error) {
	system, err := LoadSystem(systemPath)
	if err != nil {
		return Set{}, err
	}
	user, err := LoadUser(userPath)
	if err != nil {
		return Set{}, err
	}
	return Set{System: system, User: user}, nil
}

// LoadSystem splits the trimmed file content on newlines. Blank lines between
// prompts are kept as empty system messages.
func LoadSystem(path string) ([]string, error) {
	text, err := readText(path)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPool, path)
	}
	return strings.Split(text, "\n"), nil
}

// LoadUser returns every non-blank line, trimmed, in file order.
func LoadUser(path string) ([]string, error) {
	text, err := readText(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}
