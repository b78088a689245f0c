package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// AES mode identifiers accepted by Encrypt and Decrypt
const (
	ModeCBC = "AES/CBC/PKCS7Padding"
	ModeECB = "AES/ECB/NoPadding"
)

var errBadPadding = errors.New("invalid PKCS7 padding")

// normalizeMode maps the short script-side names onto the full identifiers
func normalizeMode(mode string) (string, error) {
	switch strings.ToLower(mode) {
	case strings.ToLower(ModeCBC), "aes-128-cbc", "aes-192-cbc", "aes-256-cbc":
		return ModeCBC, nil
	case strings.ToLower(ModeECB), "aes-128-ecb", "aes-192-ecb", "aes-256-ecb":
		return ModeECB, nil
	default:
		return "", fmt.Errorf("unsupported AES mode: %s", mode)
	}
}

// AESEncrypt encrypts base64 data with a base64 key and IV
func AESEncrypt(data, key, iv, mode string) (string, error) {
	return aesTransform(data, key, iv, mode, true)
}

// AESDecrypt decrypts base64 ciphertext with a base64 key and IV and returns
// the plaintext string
func AESDecrypt(data, key, iv, mode string) (string, error) {
	return aesTransform(data, key, iv, mode, false)
}

func aesTransform(data, key, iv, mode string, encrypt bool) (string, error) {
	mode, err := normalizeMode(mode)
	if err != nil {
		return "", err
	}

	in, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decode data: %w", err)
	}
	rawKey, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("decode key: %w", err)
	}
	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return "", err
	}

	var out []byte
	switch mode {
	case ModeCBC:
		rawIV, err := base64.StdEncoding.DecodeString(iv)
		if err != nil {
			return "", fmt.Errorf("decode iv: %w", err)
		}
		if len(rawIV) != aes.BlockSize {
			return "", fmt.Errorf("iv must be %d bytes", aes.BlockSize)
		}
		if encrypt {
			out = pkcs7Pad(in, aes.BlockSize)
			cipher.NewCBCEncrypter(block, rawIV).CryptBlocks(out, out)
		} else {
			if len(in) == 0 || len(in)%aes.BlockSize != 0 {
				return "", errors.New("ciphertext is not a multiple of the block size")
			}
			out = make([]byte, len(in))
			cipher.NewCBCDecrypter(block, rawIV).CryptBlocks(out, in)
			if out, err = pkcs7Unpad(out, aes.BlockSize); err != nil {
				return "", err
			}
		}
	case ModeECB:
		if len(in)%aes.BlockSize != 0 {
			return "", errors.New("data is not a multiple of the block size")
		}
		out = make([]byte, len(in))
		for i := 0; i < len(in); i += aes.BlockSize {
			if encrypt {
				block.Encrypt(out[i:i+aes.BlockSize], in[i:i+aes.BlockSize])
			} else {
				block.Decrypt(out[i:i+aes.BlockSize], in[i:i+aes.BlockSize])
			}
		}
	}

	if !encrypt {
		return string(out), nil
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

func pkcs7Pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, size int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errBadPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, errBadPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errBadPadding
		}
	}
	return data[:len(data)-n], nil
}
