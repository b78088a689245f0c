package bridge

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

const secretBytes = 32

// Secret authorizes bridge calls for one session. Its formatting methods
// never print the value.
type Secret struct {
	value string
}

// NewSecret returns a fresh unguessable secret
func NewSecret() (Secret, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return Secret{}, fmt.Errorf("generate session secret: %w", err)
	}
	return Secret{value: base64.RawURLEncoding.EncodeToString(buf)}, nil
}

// Equal compares in constant time. The zero Secret matches nothing.
func (s Secret) Equal(other Secret) bool {
	if s.value == "" || other.value == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.value), []byte(other.value)) == 1
}

// IsZero reports whether s was never generated
func (s Secret) IsZero() bool {
	return s.value == ""
}

func (s Secret) String() string   { return "[redacted]" }
func (s Secret) GoString() string { return "bridge.Secret{[redacted]}" }

// MarshalText keeps the secret out of JSON, YAML and log encoders
func (s Secret) MarshalText() ([]byte, error) {
	return []byte("[redacted]"), nil
}
