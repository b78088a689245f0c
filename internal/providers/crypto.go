package providers

import (
	"context"

	"github.com/GriffinCanCode/scriptbridge/internal/logging"
	"github.com/GriffinCanCode/scriptbridge/internal/providers/crypto"
	"github.com/GriffinCanCode/scriptbridge/internal/types"
	"go.uber.org/zap"
)

// Crypto exposes RSA and AES helpers. Primitive failures yield an empty
// result rather than an error, so script code sees "" instead of a throw.
type Crypto struct {
	logger *logging.Logger
}

// NewCrypto creates a crypto provider
func NewCrypto(logger *logging.Logger) *Crypto {
	return &Crypto{logger: logger.Named("crypto")}
}

// Definition returns service metadata
func (c *Crypto) Definition() types.Service {
	data := types.Parameter{Name: "data", Type: "string", Description: "Base64 input", Required: true}

	return types.Service{
		ID:           "crypto",
		Name:         "Crypto Service",
		Description:  "RSA and AES primitives over base64 buffers",
		Category:     types.CategoryCrypto,
		Capabilities: []string{"rsa", "aes", "md5", "random"},
		Tools: []types.Tool{
			{
				ID:          "crypto.generateRsaKey",
				Name:        "Generate RSA Key",
				Description: "Generate a 2048-bit RSA key pair (SPKI public, PKCS#8 private)",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "crypto.rsaEncrypt",
				Name:        "RSA Encrypt",
				Description: "Encrypt with a public key",
				Parameters: []types.Parameter{
					data,
					{Name: "key", Type: "string", Description: "Public key (base64 or PEM)", Required: true},
					{Name: "padding", Type: "string", Description: crypto.PaddingOAEP + " or " + crypto.PaddingNone, Required: true},
				},
				Returns: "string",
			},
			{
				ID:          "crypto.rsaDecrypt",
				Name:        "RSA Decrypt",
				Description: "Decrypt with a PKCS#8 private key, returning the plaintext",
				Parameters: []types.Parameter{
					data,
					{Name: "key", Type: "string", Description: "Private key (base64 or PEM)", Required: true},
					{Name: "padding", Type: "string", Description: crypto.PaddingOAEP + " or " + crypto.PaddingNone, Required: true},
				},
				Returns: "string",
			},
			{
				ID:          "crypto.aesEncrypt",
				Name:        "AES Encrypt",
				Description: "Encrypt with AES",
				Parameters: []types.Parameter{
					data,
					{Name: "key", Type: "string", Description: "Base64 key", Required: true},
					{Name: "iv", Type: "string", Description: "Base64 IV (CBC only)", Required: false},
					{Name: "mode", Type: "string", Description: crypto.ModeCBC + " or " + crypto.ModeECB, Required: true},
				},
				Returns: "string",
			},
			{
				ID:          "crypto.aesDecrypt",
				Name:        "AES Decrypt",
				Description: "Decrypt with AES, returning the plaintext",
				Parameters: []types.Parameter{
					data,
					{Name: "key", Type: "string", Description: "Base64 key", Required: true},
					{Name: "iv", Type: "string", Description: "Base64 IV (CBC only)", Required: false},
					{Name: "mode", Type: "string", Description: crypto.ModeCBC + " or " + crypto.ModeECB, Required: true},
				},
				Returns: "string",
			},
			{
				ID:          "crypto.md5",
				Name:        "MD5",
				Description: "Hex MD5 digest of a string",
				Parameters: []types.Parameter{
					{Name: "data", Type: "string", Description: "Input text", Required: true},
				},
				Returns: "string",
			},
			{
				ID:          "crypto.randomBytes",
				Name:        "Random Bytes",
				Description: "Cryptographically random bytes, base64 encoded",
				Parameters: []types.Parameter{
					{Name: "size", Type: "number", Description: "Byte count", Required: true},
				},
				Returns: "string",
			},
		},
	}
}

// Execute runs a crypto operation
func (c *Crypto) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "crypto.generateRsaKey":
		keys, err := crypto.GenerateKeyPair()
		if err != nil {
			c.logger.Warn("RSA key generation failed", zap.Error(err))
			return success(map[string]interface{}{"publicKey": "", "privateKey": ""})
		}
		return success(map[string]interface{}{"publicKey": keys.PublicKey, "privateKey": keys.PrivateKey})

	case "crypto.rsaEncrypt", "crypto.rsaDecrypt":
		args, err := c.strings(params, "data", "key", "padding")
		if err != nil {
			return failure(err.Error())
		}
		op := crypto.RSAEncrypt
		if toolID == "crypto.rsaDecrypt" {
			op = crypto.RSADecrypt
		}
		return c.guard(toolID, appCtx)(op(args[0], args[1], args[2]))

	case "crypto.aesEncrypt", "crypto.aesDecrypt":
		args, err := c.strings(params, "data", "key", "mode")
		if err != nil {
			return failure(err.Error())
		}
		iv, _ := types.GetString(params, "iv", false)
		op := crypto.AESEncrypt
		if toolID == "crypto.aesDecrypt" {
			op = crypto.AESDecrypt
		}
		return c.guard(toolID, appCtx)(op(args[0], args[1], iv, args[2]))

	case "crypto.md5":
		data, err := types.GetString(params, "data", false)
		if err != nil {
			return failure(err.Error())
		}
		return stringResult(crypto.MD5(data))

	case "crypto.randomBytes":
		size, err := types.GetNumber(params, "size", true)
		if err != nil {
			return failure(err.Error())
		}
		return c.guard(toolID, appCtx)(crypto.RandomBytes(int(size)))

	default:
		return unknownTool(toolID)
	}
}

func (c *Crypto) strings(params map[string]interface{}, keys ...string) ([]string, error) {
	out := make([]string, len(keys))
	for i, key := range keys {
		// empty data is a valid buffer
		val, err := types.GetString(params, key, key != "data")
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}

// guard turns a primitive failure into an empty result
func (c *Crypto) guard(toolID string, appCtx *types.Context) func(string, error) (*types.Result, error) {
	return func(value string, err error) (*types.Result, error) {
		if err != nil {
			fields := []zap.Field{zap.String("tool", toolID), zap.Error(err)}
			if appCtx.FromPlugin() {
				fields = append(fields, logging.Plugin(appCtx.PluginID, appCtx.SessionID)...)
			}
			c.logger.Debug("Crypto operation failed", fields...)
			return stringResult("")
		}
		return stringResult(value)
	}
}
