package crypto

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const maxRandomBytes = 1 << 16

// MD5 returns the lowercase hex digest of s
func MD5(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// RandomBytes returns size random bytes, base64 encoded
func RandomBytes(size int) (string, error) {
	if size <= 0 || size > maxRandomBytes {
		return "", fmt.Errorf("size must be between 1 and %d", maxRandomBytes)
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
