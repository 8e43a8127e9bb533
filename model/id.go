package model

import (
	"crypto/md5"
	"encoding/hex"
)

// StableID derives a 24-hex-char document id from an arbitrary string.
// Changing this breaks lookups of every already inserted document, so don't.
func StableID(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:24]
}
