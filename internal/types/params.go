package types

import "fmt"

// GetString extracts string parameter
func GetString(params map[string]interface{}, key string, required bool) (string, error) {
	val, ok := params[key]
	if !ok || val == nil {
		if required {
			return "", fmt.Errorf("%s parameter required", key)
		}
		return "", nil
	}

	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("%s must be string", key)
	}

	if required && str == "" {
		return "", fmt.Errorf("%s cannot be empty", key)
	}

	return str, nil
}

// GetBool extracts bool parameter
func GetBool(params map[string]interface{}, key string, defaultVal bool) bool {
	b, ok := params[key].(bool)
	if !ok {
		return defaultVal
	}
	return b
}

// GetNumber extracts numeric parameter
func GetNumber(params map[string]interface{}, key string, required bool) (float64, error) {
	val, ok := params[key]
	if !ok || val == nil {
		if required {
			return 0, fmt.Errorf("%s parameter required", key)
		}
		return 0, nil
	}

	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%s must be number", key)
	}
}

// GetMap extracts map parameter
func GetMap(params map[string]interface{}, key string) map[string]interface{} {
	m, _ := params[key].(map[string]interface{})
	return m
}
