package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// RSA padding identifiers accepted by Encrypt and Decrypt
const (
	PaddingOAEP = "RSA/ECB/OAEPWithSHA1AndMGF1Padding"
	PaddingNone = "RSA/ECB/NoPadding"
)

const rsaKeyBits = 2048

var ErrUnsupportedPadding = errors.New("unsupported padding")

// KeyPair is a base64 DER encoded RSA key pair
type KeyPair struct {
	PublicKey  string `json:"publicKey"`  // SubjectPublicKeyInfo
	PrivateKey string `json:"privateKey"` // PKCS#8
}

// GenerateKeyPair creates a 2048-bit RSA key pair
func GenerateKeyPair() (KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return KeyPair{}, err
	}

	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return KeyPair{}, err
	}
	priv, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return KeyPair{}, err
	}

	return KeyPair{
		PublicKey:  base64.StdEncoding.EncodeToString(pub),
		PrivateKey: base64.StdEncoding.EncodeToString(priv),
	}, nil
}

// RSAEncrypt encrypts base64 data with a base64 or PEM public key
func RSAEncrypt(data, publicKey, padding string) (string, error) {
	plain, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decode data: %w", err)
	}
	pub, err := parsePublicKey(publicKey)
	if err != nil {
		return "", err
	}

	var out []byte
	switch padding {
	case PaddingOAEP:
		out, err = rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, plain, nil)
	case PaddingNone:
		out, err = rawRSA(plain, pub.N, big.NewInt(int64(pub.E)))
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPadding, padding)
	}
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// RSADecrypt decrypts base64 ciphertext with a base64 or PEM PKCS#8 private
// key and returns the plaintext string
func RSADecrypt(data, privateKey, padding string) (string, error) {
	cipherText, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decode data: %w", err)
	}
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}

	var out []byte
	switch padding {
	case PaddingOAEP:
		out, err = rsa.DecryptOAEP(sha1.New(), nil, priv, cipherText, nil)
	case PaddingNone:
		out, err = rawRSA(cipherText, priv.N, priv.D)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPadding, padding)
	}
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// rawRSA computes in^exp mod n, left-padded to the modulus size
func rawRSA(in []byte, n, exp *big.Int) ([]byte, error) {
	size := (n.BitLen() + 7) / 8
	if len(in) > size {
		return nil, errors.New("data too long for key size")
	}
	m := new(big.Int).SetBytes(in)
	if m.Cmp(n) >= 0 {
		return nil, errors.New("data out of range for key")
	}
	return new(big.Int).Exp(m, exp, n).FillBytes(make([]byte, size)), nil
}

func parsePublicKey(key string) (*rsa.PublicKey, error) {
	der, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return pub, nil
}

func parsePrivateKey(key string) (*rsa.PrivateKey, error) {
	der, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("not an RSA private key")
	}
	return priv, nil
}

// decodeKey accepts bare base64 or a PEM block and returns the DER bytes
func decodeKey(key string) ([]byte, error) {
	var b strings.Builder
	for _, line := range strings.Split(key, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-----") {
			continue
		}
		b.WriteString(line)
	}
	der, err := base64.StdEncoding.DecodeString(b.String())
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	return der, nil
}
