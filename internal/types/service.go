package types

// Category represents service categories
type Category string

const (
	CategoryCrypto Category = "crypto"
	CategoryCache  Category = "cache"
	CategoryLyric  Category = "lyric"
	CategoryDevice Category = "device"
	CategoryCodec  Category = "codec"
	CategoryHTTP   Category = "http"
)

// Service represents a service definition
type Service struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     Category `json:"category"`
	Capabilities []string `json:"capabilities"`
	Tools        []Tool   `json:"tools"`
}

// Tool represents a service tool
type Tool struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Returns     string      `json:"returns"`
}

// Parameter represents a tool parameter
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Context identifies who is calling a service. A nil Context means the host
// itself; a non-nil one means a plugin session reached the service through
// the capability bridge.
type Context struct {
	PluginID  string `json:"plugin_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// FromPlugin reports whether the call originated inside a sandbox
func (c *Context) FromPlugin() bool {
	return c != nil && c.SessionID != ""
}

// Result represents a service execution result
type Result struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *string                `json:"error,omitempty"`
}

// Success creates a successful result
func Success(data map[string]interface{}) (*Result, error) {
	return &Result{Success: true, Data: data}, nil
}

// Failure creates a failed result
func Failure(message string) (*Result, error) {
	msg := message
	return &Result{Success: false, Error: &msg}, nil
}

// ErrorMessage returns the failure message or an empty string
func (r *Result) ErrorMessage() string {
	if r == nil || r.Error == nil {
		return ""
	}
	return *r.Error
}
