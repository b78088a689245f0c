package providers

import (
	"fmt"

	"github.com/GriffinCanCode/scriptbridge/internal/types"
)

func success(data map[string]interface{}) (*types.Result, error) {
	return types.Success(data)
}

func failure(message string) (*types.Result, error) {
	return types.Failure(message)
}

func unknownTool(toolID string) (*types.Result, error) {
	return failure(fmt.Sprintf("unknown tool: %s", toolID))
}

// stringResult wraps a single string value the way bridge callers expect it
func stringResult(value string) (*types.Result, error) {
	return success(map[string]interface{}{"result": value})
}
