package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// StableHash hashes the JSON encoding of each value; map keys are sorted by encoding/json.
func StableHash(values ...any) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		parts = append(parts, string(b))
	}
	return SHA256Hex([]byte(strings.Join(parts, ":")))
}

// Truncate cuts s to max runes and appends suffix when it was cut.
func Truncate(s string, max int, suffix string) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + suffix
}
