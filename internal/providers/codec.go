package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/GriffinCanCode/scriptbridge/internal/types"
	"github.com/klauspost/compress/zlib"
)

const maxInflatedSize = 32 << 20

// Codec converts between the base64 buffers plugins pass around and text
// encodings, and compresses them with zlib.
type Codec struct{}

// NewCodec creates a codec provider
func NewCodec() *Codec {
	return &Codec{}
}

// Definition returns service metadata
func (c *Codec) Definition() types.Service {
	encoding := types.Parameter{Name: "encoding", Type: "string", Description: "utf8, base64, hex or binary (default utf8)", Required: false}
	data := types.Parameter{Name: "data", Type: "string", Description: "Base64 buffer", Required: true}

	return types.Service{
		ID:           "codec",
		Name:         "Codec Service",
		Description:  "Buffer encoding conversion and zlib compression",
		Category:     types.CategoryCodec,
		Capabilities: []string{"base64", "hex", "utf8", "zlib"},
		Tools: []types.Tool{
			{
				ID:          "codec.from",
				Name:        "Buffer From",
				Description: "Encode a string into a base64 buffer",
				Parameters: []types.Parameter{
					{Name: "input", Type: "string", Description: "Source string", Required: true},
					encoding,
				},
				Returns: "string",
			},
			{
				ID:          "codec.toString",
				Name:        "Buffer To String",
				Description: "Decode a base64 buffer into a string",
				Parameters:  []types.Parameter{data, encoding},
				Returns:     "string",
			},
			{
				ID:          "codec.inflate",
				Name:        "Inflate",
				Description: "zlib-decompress a base64 buffer",
				Parameters:  []types.Parameter{data},
				Returns:     "string",
			},
			{
				ID:          "codec.deflate",
				Name:        "Deflate",
				Description: "zlib-compress a base64 buffer",
				Parameters:  []types.Parameter{data},
				Returns:     "string",
			},
		},
	}
}

// Execute runs a codec operation
func (c *Codec) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	encoding, err := types.GetString(params, "encoding", false)
	if err != nil {
		return failure(err.Error())
	}

	switch toolID {
	case "codec.from":
		input, err := types.GetString(params, "input", false)
		if err != nil {
			return failure(err.Error())
		}
		buf, err := decodeText(input, encoding)
		if err != nil {
			return failure(err.Error())
		}
		return stringResult(base64.StdEncoding.EncodeToString(buf))

	case "codec.toString":
		buf, err := bufferParam(params)
		if err != nil {
			return failure(err.Error())
		}
		out, err := encodeText(buf, encoding)
		if err != nil {
			return failure(err.Error())
		}
		return stringResult(out)

	case "codec.inflate":
		buf, err := bufferParam(params)
		if err != nil {
			return failure(err.Error())
		}
		out, err := Inflate(buf)
		if err != nil {
			return failure(fmt.Sprintf("inflate failed: %v", err))
		}
		return stringResult(base64.StdEncoding.EncodeToString(out))

	case "codec.deflate":
		buf, err := bufferParam(params)
		if err != nil {
			return failure(err.Error())
		}
		out, err := Deflate(buf)
		if err != nil {
			return failure(fmt.Sprintf("deflate failed: %v", err))
		}
		return stringResult(base64.StdEncoding.EncodeToString(out))

	default:
		return unknownTool(toolID)
	}
}

// Inflate decompresses a zlib stream
func Inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxInflatedSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxInflatedSize {
		return nil, fmt.Errorf("inflated data exceeds %d bytes", maxInflatedSize)
	}
	return out, nil
}

// Deflate compresses data into a zlib stream
func Deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func bufferParam(params map[string]interface{}) ([]byte, error) {
	data, err := types.GetString(params, "data", false)
	if err != nil {
		return nil, err
	}
	buf, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("data must be base64: %w", err)
	}
	return buf, nil
}

func decodeText(input, encoding string) ([]byte, error) {
	switch strings.ToLower(encoding) {
	case "", "utf8", "utf-8":
		return []byte(input), nil
	case "base64":
		return base64.StdEncoding.DecodeString(input)
	case "hex":
		return hex.DecodeString(input)
	case "binary", "latin1":
		out := make([]byte, 0, len(input))
		for _, r := range input {
			out = append(out, byte(r))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}

func encodeText(buf []byte, encoding string) (string, error) {
	switch strings.ToLower(encoding) {
	case "", "utf8", "utf-8":
		if !utf8.Valid(buf) {
			return strings.ToValidUTF8(string(buf), "�"), nil
		}
		return string(buf), nil
	case "base64":
		return base64.StdEncoding.EncodeToString(buf), nil
	case "hex":
		return hex.EncodeToString(buf), nil
	case "binary", "latin1":
		runes := make([]rune, len(buf))
		for i, b := range buf {
			runes[i] = rune(b)
		}
		return string(runes), nil
	default:
		return "", fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
