package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// SafeJoin places the last element of a client-supplied name under root.
// Windows separators count as separators; names with no usable element
// (empty, ".", "..", bare separators) are replaced by fallback.
func SafeJoin(root, name, fallback string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	switch base {
	case "", ".", "..", "/":
		base = fallback
	}
	return filepath.Join(root, base)
}
