package fetch

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
)

// Request is an outbound plugin request
type Request struct {
	URL      string
	Method   string
	Headers  map[string]string
	Body     interface{}       // string sent as-is, anything else as JSON
	Form     map[string]string // application/x-www-form-urlencoded
	FormData map[string]string // multipart/form-data
	Timeout  time.Duration
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// Response is what the plugin callback receives
type Response struct {
	StatusCode    int               `json:"statusCode"`
	StatusMessage string            `json:"statusMessage"`
	Headers       map[string]string `json:"headers"`
	Body          interface{}       `json:"body"`
	Encoding      string            `json:"encoding,omitempty"` // "base64" for binary bodies
	ContentType   string            `json:"contentType"`
	Duration      int64             `json:"duration"` // milliseconds
}

// ParseRequest builds a Request from the url and options object a plugin
// passes to lx.request
func ParseRequest(rawURL string, options map[string]interface{}) (Request, error) {
	req := Request{URL: rawURL}
	if rawURL == "" {
		return req, fmt.Errorf("url is required")
	}

	if m, ok := options["method"].(string); ok {
		req.Method = m
	}
	req.Headers = stringMap(options["headers"])
	req.Form = stringMap(options["form"])
	req.FormData = stringMap(options["formData"])
	if body, ok := options["body"]; ok && body != nil {
		req.Body = body
	}
	if timeout, ok := options["timeout"].(float64); ok && timeout > 0 {
		req.Timeout = time.Duration(timeout) * time.Millisecond
	}

	switch req.method() {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodHead, http.MethodOptions:
	default:
		return req, fmt.Errorf("unsupported method: %s", req.Method)
	}
	return req, nil
}

func stringMap(v interface{}) map[string]string {
	m, ok := v.(map[string]interface{})
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

func newResponse(resp *resty.Response) *Response {
	headers := make(map[string]string, len(resp.Header()))
	for k, v := range resp.Header() {
		if len(v) > 0 {
			headers[strings.ToLower(k)] = v[0]
		}
	}

	out := &Response{
		StatusCode:    resp.StatusCode(),
		StatusMessage: http.StatusText(resp.StatusCode()),
		Headers:       headers,
		Duration:      resp.Time().Milliseconds(),
	}
	out.Body, out.Encoding, out.ContentType = decodeBody(resp.Body(), resp.Header().Get("Content-Type"))
	return out
}

// decodeBody returns parsed JSON, text, or base64 for binary content
func decodeBody(raw []byte, contentType string) (interface{}, string, string) {
	if len(raw) == 0 {
		return "", "", contentType
	}

	detected := mimetype.Detect(raw)
	if contentType == "" {
		contentType = detected.String()
	}

	if strings.Contains(contentType, "json") || detected.Is("application/json") {
		var parsed interface{}
		if err := sonic.Unmarshal(raw, &parsed); err == nil {
			return parsed, "", contentType
		}
	}

	if isText(detected) || strings.HasPrefix(contentType, "text/") {
		return string(raw), "", contentType
	}
	return base64.StdEncoding.EncodeToString(raw), "base64", contentType
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// Map returns the response as a result payload
func (r *Response) Map() map[string]interface{} {
	out := map[string]interface{}{
		"statusCode":    r.StatusCode,
		"statusMessage": r.StatusMessage,
		"headers":       r.Headers,
		"body":          r.Body,
		"contentType":   r.ContentType,
		"duration":      r.Duration,
	}
	if r.Encoding != "" {
		out["encoding"] = r.Encoding
	}
	return out
}
