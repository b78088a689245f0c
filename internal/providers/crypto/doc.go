// Package crypto wraps the standard library RSA and AES primitives behind the
// string-in, string-out contract plugins and the host expect: inputs and
// ciphertexts are base64, decrypt returns the plaintext string, keys are
// base64 DER (SPKI public, PKCS#8 private) or PEM, and padding or mode is
// named by its Java-style identifier.
//
// Supported transforms:
//   - RSA/ECB/OAEPWithSHA1AndMGF1Padding
//   - RSA/ECB/NoPadding
//   - AES/CBC/PKCS7Padding (also aes-128-cbc and friends)
//   - AES/ECB/NoPadding (also aes-128-ecb and friends)
package crypto
