package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestRSARoundTrip(t *testing.T) {
	keys, err := GenerateKeyPair()
	require.NoError(t, err)
	require.NotEmpty(t, keys.PublicKey)
	require.NotEmpty(t, keys.PrivateKey)

	t.Run("oaep", func(t *testing.T) {
		enc, err := RSAEncrypt(b64("hello"), keys.PublicKey, PaddingOAEP)
		require.NoError(t, err)

		dec, err := RSADecrypt(enc, keys.PrivateKey, PaddingOAEP)
		require.NoError(t, err)
		assert.Equal(t, "hello", dec)
	})

	t.Run("no padding", func(t *testing.T) {
		enc, err := RSAEncrypt(b64("hello"), keys.PublicKey, PaddingNone)
		require.NoError(t, err)

		raw, err := base64.StdEncoding.DecodeString(enc)
		require.NoError(t, err)
		assert.Len(t, raw, 256)

		dec, err := RSADecrypt(enc, keys.PrivateKey, PaddingNone)
		require.NoError(t, err)
		assert.Len(t, dec, 256)
		assert.True(t, strings.HasSuffix(dec, "hello"))
	})

	t.Run("pem key accepted", func(t *testing.T) {
		pem := "-----BEGIN PUBLIC KEY-----\n" + keys.PublicKey + "\n-----END PUBLIC KEY-----\n"
		_, err := RSAEncrypt(b64("x"), pem, PaddingOAEP)
		assert.NoError(t, err)
	})
}

func TestRSAErrors(t *testing.T) {
	keys, err := GenerateKeyPair()
	require.NoError(t, err)

	tests := []struct {
		name    string
		data    string
		key     string
		padding string
	}{
		{name: "bad padding", data: b64("x"), key: keys.PublicKey, padding: "RSA/PKCS1"},
		{name: "bad key", data: b64("x"), key: "not-a-key", padding: PaddingOAEP},
		{name: "bad data", data: "%%%", key: keys.PublicKey, padding: PaddingOAEP},
		{name: "private key as public", data: b64("x"), key: keys.PrivateKey, padding: PaddingOAEP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RSAEncrypt(tt.data, tt.key, tt.padding)
			assert.Error(t, err)
		})
	}
}

func TestAESRoundTrip(t *testing.T) {
	key := b64("0123456789abcdef")
	iv := b64("fedcba9876543210")

	tests := []struct {
		name string
		mode string
		data string
	}{
		{name: "cbc", mode: ModeCBC, data: "some plugin payload"},
		{name: "cbc short name", mode: "aes-128-cbc", data: "x"},
		{name: "cbc empty", mode: ModeCBC, data: ""},
		{name: "ecb", mode: ModeECB, data: "exactly16bytes!!"},
		{name: "ecb short name", mode: "aes-128-ecb", data: "0123456789abcdef0123456789abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := AESEncrypt(b64(tt.data), key, iv, tt.mode)
			require.NoError(t, err)

			dec, err := AESDecrypt(enc, key, iv, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.data, dec)
		})
	}
}

func TestAESKnownVector(t *testing.T) {
	// FIPS-197 appendix C.1
	key := base64.StdEncoding.EncodeToString(mustHex(t, "000102030405060708090a0b0c0d0e0f"))
	plain := base64.StdEncoding.EncodeToString(mustHex(t, "00112233445566778899aabbccddeeff"))

	enc, err := AESEncrypt(plain, key, "", ModeECB)
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(mustHex(t, "69c4e0d86a7b0430d8cdb78070b4c55a")), enc)
}

func TestAESErrors(t *testing.T) {
	key := b64("0123456789abcdef")
	iv := b64("fedcba9876543210")

	_, err := AESEncrypt(b64("short"), key, iv, ModeECB)
	assert.Error(t, err)

	_, err = AESEncrypt(b64("x"), b64("shortkey"), iv, ModeCBC)
	assert.Error(t, err)

	_, err = AESEncrypt(b64("x"), key, b64("short"), ModeCBC)
	assert.Error(t, err)

	_, err = AESEncrypt(b64("x"), key, iv, "AES/GCM/NoPadding")
	assert.Error(t, err)

	_, err = AESDecrypt(b64("not a block multiple"), key, iv, ModeCBC)
	assert.Error(t, err)
}

func TestAESDecryptKnownVector(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(mustHex(t, "000102030405060708090a0b0c0d0e0f"))
	cipherText := base64.StdEncoding.EncodeToString(mustHex(t, "69c4e0d86a7b0430d8cdb78070b4c55a"))

	dec, err := AESDecrypt(cipherText, key, "", ModeECB)
	require.NoError(t, err)
	assert.Equal(t, string(mustHex(t, "00112233445566778899aabbccddeeff")), dec)
}

func TestMD5(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", MD5(""))
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", MD5("hello"))
}

func TestRandomBytes(t *testing.T) {
	out, err := RandomBytes(16)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(out)
	require.NoError(t, err)
	assert.Len(t, raw, 16)

	_, err = RandomBytes(0)
	assert.Error(t, err)
	_, err = RandomBytes(maxRandomBytes + 1)
	assert.Error(t, err)
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	out, err := hex.DecodeString(s)
	require.NoError(t, err)
	return out
}
