package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// ContentKey hashes parts into a stable hex key. Each part is length-prefixed
// so ("ab", "c") and ("a", "bc") differ.
func ContentKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strconv.Itoa(len(p))))
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
