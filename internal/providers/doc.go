// Package providers implements the host services plugins and the host
// application call into.
//
// Available Providers:
//   - Crypto: RSA and AES over base64 buffers, MD5, random bytes
//   - Codec: buffer text encodings and zlib compression
//   - Cache: on-disk cache accounting and cleanup
//   - Lyric: desktop lyric surface state, published as host events
//   - Device: network, locale, display and power queries
//
// Outbound HTTP lives in the fetch subpackage.
//
// Provider Interface:
//   - Definition(): Returns service metadata and tool definitions
//   - Execute(): Executes a tool with parameters and context
//
// Single-value results are returned as {"result": value}.
//
// Example Usage:
//
//	codec := providers.NewCodec()
//	result, err := codec.Execute(ctx, "codec.deflate", map[string]interface{}{"data": buf}, appCtx)
package providers
