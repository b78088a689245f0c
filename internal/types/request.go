package types

// ExecuteRequest represents a host service execution request
type ExecuteRequest struct {
	ToolID string                 `json:"tool_id" binding:"required"`
	Params map[string]interface{} `json:"params"`
}

// ActionRequest asks the loaded plugin to handle an action. Data is any
// JSON value and reaches the handler as its payload.
type ActionRequest struct {
	Action string      `json:"action" binding:"required"`
	Data   interface{} `json:"data,omitempty"`
}

// WSMessage is a client message on the event stream
type WSMessage struct {
	Type   string      `json:"type"`
	ID     string      `json:"id,omitempty"`
	Action string      `json:"action,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}
